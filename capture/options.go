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

// Package capture puts an option layer on top of package pcap: command line
// and environment configuration, opening a filtered session, and running the
// packet loop on its own goroutine until a context is done.
package capture

import (
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"

	"github.com/mosajjal/gopcap/internal/util"
)

// MaxSnapLength is the largest snapshot length libpcap accepts.
const MaxSnapLength = 262144

// Options describe one capture source and how it is read.
type Options struct {
	DevName           string        `long:"devname"           ini-name:"devname"           env:"GOPCAP_DEVNAME"           default:""      description:"Device used to capture, any for all devices"`
	PcapFile          string        `long:"pcapfile"          ini-name:"pcapfile"          env:"GOPCAP_PCAPFILE"          default:""      description:"Pcap filename to run"`
	SnapLength        int           `long:"snaplen"           ini-name:"snaplen"           env:"GOPCAP_SNAPLEN"           default:"65535" description:"Maximum number of bytes captured per packet"`
	ReadTimeout       time.Duration `long:"readtimeout"       ini-name:"readtimeout"       env:"GOPCAP_READTIMEOUT"       default:"500ms" description:"Live read timeout, 0 blocks until packets arrive"`
	Filter            string        `long:"filter"            ini-name:"filter"            env:"GOPCAP_FILTER"            default:""      description:"BPF filter applied to the packet stream"`
	PacketCount       int           `long:"packetcount"       ini-name:"packetcount"       env:"GOPCAP_PACKETCOUNT"       default:"0"     description:"Stop after this many packets, 0 for no limit"`
	CaptureStatsDelay time.Duration `long:"capturestatsdelay" ini-name:"capturestatsdelay" env:"GOPCAP_CAPTURESTATSDELAY" default:"1s"    description:"Duration to calculate interface stats"`
	NoPromiscuous     bool          `long:"nopromiscuous"     ini-name:"nopromiscuous"     env:"GOPCAP_NOPROMISCUOUS"     description:"Do not put the interface in promiscuous mode"`
	NoOptimize        bool          `long:"nooptimize"        ini-name:"nooptimize"        env:"GOPCAP_NOOPTIMIZE"        description:"Do not optimize the compiled BPF filter"`
	ImmediateMode     bool          `long:"immediatemode"     ini-name:"immediatemode"     env:"GOPCAP_IMMEDIATEMODE"     description:"Deliver packets as soon as they arrive"`
}

// Validate checks the options without touching the system.
func (o Options) Validate() error {
	switch {
	case o.DevName == "" && o.PcapFile == "":
		return errors.New("one of --devname or --pcapfile is required")
	case o.DevName != "" && o.PcapFile != "":
		return errors.New("you must set only one of --devname or --pcapfile")
	case o.SnapLength < 1 || o.SnapLength > MaxSnapLength:
		return errors.Errorf("--snaplen must be between 1 and %d", MaxSnapLength)
	case o.ReadTimeout < 0:
		return errors.New("--readtimeout must not be negative")
	case o.PacketCount < 0:
		return errors.New("--packetcount must not be negative")
	}
	return nil
}

func (o Options) source() string {
	if o.PcapFile != "" {
		return o.PcapFile
	}
	return o.DevName
}

// Config groups every option of a gopcap based program.
type Config struct {
	Capture Options
	Log     util.LogOptions
	Profile util.ProfileOptions
	Metric  util.MetricOptions
}

// NewParser returns a parser with the option groups bound to cfg.
func NewParser(cfg *Config) (*flags.Parser, error) {
	p := flags.NewNamedParser("gopcap", flags.PassDoubleDash|flags.PrintErrors)
	if _, err := p.AddGroup("capture", "Options specific to capture side", &cfg.Capture); err != nil {
		return nil, errors.Wrap(err, "error adding capture group")
	}
	if _, err := p.AddGroup("general", "General Options", &cfg.Log); err != nil {
		return nil, errors.Wrap(err, "error adding general group")
	}
	if _, err := p.AddGroup("profile", "Profiling", &cfg.Profile); err != nil {
		return nil, errors.Wrap(err, "error adding profile group")
	}
	if _, err := p.AddGroup("metric", "Metrics", &cfg.Metric); err != nil {
		return nil, errors.Wrap(err, "error adding metric group")
	}
	return p, nil
}

// vim: foldmethod=marker
