/* {{{ Copyright (C) 2022 Ali Mosajjal
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>. }}} */

// Package util holds the general options shared by the gopcap packages:
// logging and metric reporting.
package util

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogOptions struct {
	LogFormat     string `long:"logformat"     ini-name:"logformat"     env:"GOPCAP_LOGFORMAT"     default:"text" description:"Set debug Log format"                                          choice:"json" choice:"text"`
	LogLevel      uint   `long:"loglevel"      ini-name:"loglevel"      env:"GOPCAP_LOGLEVEL"      default:"3"    description:"Set debug Log level, 0:PANIC, 1:ERROR, 2:WARN, 3:INFO, 4:DEBUG" choice:"0" choice:"1" choice:"2" choice:"3" choice:"4"`
	LogFile       string `long:"logfile"       ini-name:"logfile"       env:"GOPCAP_LOGFILE"       default:""     description:"Also write logs to this file, rotated by size"`
	LogMaxSizeMB  int    `long:"logmaxsizemb"  ini-name:"logmaxsizemb"  env:"GOPCAP_LOGMAXSIZEMB"  default:"100"  description:"Size in megabytes at which the log file is rotated"`
	LogMaxBackups int    `long:"logmaxbackups" ini-name:"logmaxbackups" env:"GOPCAP_LOGMAXBACKUPS" default:"3"    description:"Number of rotated log files to keep"`
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Apply configures the standard logrus logger. The returned Closer flushes
// and closes the log file, if any.
func (o LogOptions) Apply() (io.Closer, error) {
	var lvl log.Level
	switch o.LogLevel {
	case 0:
		lvl = log.PanicLevel
	case 1:
		lvl = log.ErrorLevel
	case 2:
		lvl = log.WarnLevel
	case 3:
		lvl = log.InfoLevel
	case 4:
		lvl = log.DebugLevel
		log.SetReportCaller(true)
	default:
		return nil, fmt.Errorf("invalid log level %d", o.LogLevel)
	}
	log.SetLevel(lvl)

	switch o.LogFormat {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&log.TextFormatter{})
	default:
		return nil, fmt.Errorf("invalid log format %s", o.LogFormat)
	}

	if o.LogFile == "" {
		log.SetOutput(os.Stderr)
		return nopCloser{}, nil
	}
	lj := &lumberjack.Logger{
		Filename:   o.LogFile,
		MaxSize:    o.LogMaxSizeMB,
		MaxBackups: o.LogMaxBackups,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, lj))
	return lj, nil
}

// vim: foldmethod=marker
