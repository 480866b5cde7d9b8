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

// Package pcap is a binding over libpcap for live and offline packet capture.
//
// A Session wraps one pcap_t. Packets are either pulled one at a time with
// NextPacket, or pushed to a Handler by Dispatch and Loop. The []byte handed
// to a Handler points into libpcap's buffer and is only valid until the
// handler returns; copy it to keep it.
//
// A Session is meant to be driven by one goroutine. BreakLoop is the only
// method that may be called from another goroutine while Dispatch or Loop is
// running.
//
// Building with the nolibpcap tag, without cgo, or for windows replaces libpcap
// with a stub: opening a session fails, while FindAllDevices still lists the
// host interfaces.
package pcap

// vim: foldmethod=marker
