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
	"time"

	"github.com/gopacket/gopacket"
)

// PacketHeader is a copy of the per-packet header libpcap delivers with each
// packet. Length is never smaller than CaptureLength.
type PacketHeader struct {
	sec    int64
	usec   int64
	caplen uint32
	length uint32
}

func newPacketHeader(sec, usec int64, caplen, length uint32) PacketHeader {
	if length < caplen {
		length = caplen
	}
	return PacketHeader{sec: sec, usec: usec, caplen: caplen, length: length}
}

// CaptureLength is the number of bytes actually captured.
func (h PacketHeader) CaptureLength() int { return int(h.caplen) }

// Length is the length of the packet on the wire.
func (h PacketHeader) Length() int { return int(h.length) }

func (h PacketHeader) Seconds() int64      { return h.sec }
func (h PacketHeader) Microseconds() int64 { return h.usec }

func (h PacketHeader) Timestamp() time.Time {
	return time.Unix(h.sec, h.usec*int64(time.Microsecond))
}

// CaptureInfo converts the header for use with gopacket decoders.
func (h PacketHeader) CaptureInfo() gopacket.CaptureInfo {
	return gopacket.CaptureInfo{
		Timestamp:     h.Timestamp(),
		CaptureLength: h.CaptureLength(),
		Length:        h.Length(),
	}
}

func (h PacketHeader) String() string {
	return fmt.Sprintf("%s caplen=%d len=%d", h.Timestamp().UTC().Format(time.RFC3339Nano), h.caplen, h.length)
}

// vim: foldmethod=marker
