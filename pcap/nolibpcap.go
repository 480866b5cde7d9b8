//go:build !cgo || nolibpcap || windows

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

package pcap

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

var defaultEngine engine = stubEngine{}

var errNoLibpcap = NewError("compiled without libpcap support")

// stubEngine stands in for libpcap in builds without it. Every handle
// operation fails; device enumeration is served from the OS interface table.
type stubEngine struct{}

func (stubEngine) openLive(device string, _ int, _ bool, _ int) (nativeHandle, error) {
	log.Warnf("gopcap has been compiled without libpcap support, cannot capture on %q", device)
	return nil, fmt.Errorf("open %s: %w", device, errNoLibpcap)
}

func (stubEngine) openOffline(path string) (nativeHandle, error) {
	log.Warnf("gopcap has been compiled without libpcap support, cannot read %q", path)
	return nil, fmt.Errorf("open %s: %w", path, errNoLibpcap)
}

func (stubEngine) create(device string) (inactiveHandle, error) {
	return nil, fmt.Errorf("create %s: %w", device, errNoLibpcap)
}

func (stubEngine) findAllDevices() (deviceNode, func(), error) {
	return goDeviceChain()
}

func (stubEngine) version() string {
	return "gopcap without libpcap"
}

// vim: foldmethod=marker
