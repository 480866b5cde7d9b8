//go:build linux

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
	"net"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// interfaceFlags asks the kernel for the interface flags, falling back to
// what the net package reports when the ioctl fails.
func interfaceFlags(ifc net.Interface) DeviceFlags {
	f, err := ioctlFlags(ifc.Name)
	if err != nil {
		f = netFlags(ifc)
	}
	if _, err := os.Stat(filepath.Join("/sys/class/net", ifc.Name, "wireless")); err == nil {
		f |= FlagWireless
	}
	return f
}

func ioctlFlags(name string) (DeviceFlags, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return 0, err
	}
	defer unix.Close(fd)
	ifr, err := unix.NewIfreq(name)
	if err != nil {
		return 0, err
	}
	if err := unix.IoctlIfreq(fd, unix.SIOCGIFFLAGS, ifr); err != nil {
		return 0, err
	}
	return kernelFlags(ifr.Uint16()), nil
}

func kernelFlags(raw uint16) DeviceFlags {
	var f DeviceFlags
	if raw&unix.IFF_LOOPBACK != 0 {
		f |= FlagLoopback
	}
	if raw&unix.IFF_UP != 0 {
		f |= FlagUp
	}
	if raw&unix.IFF_RUNNING != 0 {
		f |= FlagRunning
	}
	return f
}

// vim: foldmethod=marker
