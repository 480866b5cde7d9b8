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

package util

import (
	"fmt"

	"github.com/pkg/profile"
	log "github.com/sirupsen/logrus"
)

// ProfileOptions turn on one runtime profile for the lifetime of a capture.
type ProfileOptions struct {
	Profile     string `long:"profile"     ini-name:"profile"     env:"GOPCAP_PROFILE"     default:""  description:"Write a runtime profile while capturing: cpu or mem"`
	ProfilePath string `long:"profilepath" ini-name:"profilepath" env:"GOPCAP_PROFILEPATH" default:"." description:"Directory the profile is written to"`
}

// Stopper ends a profile and flushes it to disk.
type Stopper interface {
	Stop()
}

type nopStopper struct{}

func (nopStopper) Stop() {}

// Start begins the selected profile. Only one profile may run per process.
func (o ProfileOptions) Start() (Stopper, error) {
	var mode func(*profile.Profile)
	switch o.Profile {
	case "":
		return nopStopper{}, nil
	case "cpu":
		mode = profile.CPUProfile
	case "mem":
		mode = profile.MemProfile
	default:
		return nil, fmt.Errorf("invalid profile %s", o.Profile)
	}
	log.Infof("writing %s profile to %s", o.Profile, o.ProfilePath)
	return profile.Start(mode, profile.ProfilePath(o.ProfilePath), profile.NoShutdownHook, profile.Quiet), nil
}

// vim: foldmethod=marker
