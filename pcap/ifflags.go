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

import "net"

func netFlags(ifc net.Interface) DeviceFlags {
	var f DeviceFlags
	if ifc.Flags&net.FlagLoopback != 0 {
		f |= FlagLoopback
	}
	if ifc.Flags&net.FlagUp != 0 {
		f |= FlagUp
	}
	if ifc.Flags&net.FlagRunning != 0 {
		f |= FlagRunning
	}
	return f
}

// vim: foldmethod=marker
