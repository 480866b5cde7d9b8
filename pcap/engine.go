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

	"golang.org/x/net/bpf"
)

// engine is the set of native operations a Session is built on. libpcap.go
// provides the real one; nolibpcap.go a stub.
type engine interface {
	openLive(device string, snaplen int, promisc bool, timeoutMillis int) (nativeHandle, error)
	openOffline(path string) (nativeHandle, error)
	create(device string) (inactiveHandle, error)
	// findAllDevices returns the head of the device chain (nil when empty) and
	// the function releasing the whole chain.
	findAllDevices() (deviceNode, func(), error)
	version() string
}

// nativeHandle is an activated pcap_t. Integer results use libpcap's return
// conventions.
type nativeHandle interface {
	close()
	compile(expr string, optimize bool, netmask uint32) (nativeProgram, error)
	compileInstructions(insns []bpf.RawInstruction) (nativeProgram, error)
	setFilter(p nativeProgram) error
	// dispatch and loop call deliverPacket(ctx, ...) for every packet.
	dispatch(count int, ctx uintptr) int
	loop(count int, ctx uintptr) int
	breakLoop()
	// next returns 1 with a packet, 0 on timeout, -1 on error and -2 at end
	// of file. The data is valid until the following call.
	next() (PacketHeader, []byte, int)
	inject(data []byte) int
	stats() (Statistics, error)
	snapshot() int
	setSnapLength(n int) int
	datalink() int
	lastError() *Error
}

// inactiveHandle is a pcap_t between pcap_create and pcap_activate.
type inactiveHandle interface {
	setSnapLength(n int) int
	setPromisc(promisc bool) int
	setTimeout(timeoutMillis int) int
	setImmediateMode(immediate bool) int
	// activate returns the activated handle when the code is >= 0.
	activate() (nativeHandle, int)
	lastError() *Error
	close()
}

type nativeProgram interface {
	free()
	instructions() []bpf.RawInstruction
	matches(hdr PacketHeader, data []byte) bool
}

// deviceNode and addressNode are single links of a pcap_findalldevs chain.
// next returns an untyped nil at the end of the chain.
type deviceNode interface {
	name() string
	description() string
	flags() uint32
	addresses() addressNode
	next() deviceNode
}

type addressNode interface {
	addr() net.IP
	netmask() net.IP
	broadaddr() net.IP
	dstaddr() net.IP
	next() addressNode
}

// vim: foldmethod=marker
