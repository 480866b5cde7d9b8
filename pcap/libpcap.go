//go:build cgo && !nolibpcap && !windows

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

/*
#cgo linux LDFLAGS: -lpcap
#cgo freebsd LDFLAGS: -lpcap
#cgo openbsd LDFLAGS: -lpcap
#cgo netbsd LDFLAGS: -lpcap
#cgo dragonfly LDFLAGS: -lpcap
#cgo darwin LDFLAGS: -lpcap
#cgo solaris LDFLAGS: -L /opt/local/lib -lpcap
#include <stdlib.h>
#include <stdint.h>
#include <pcap.h>

// defined in libpcap_bridge.c
int gopcap_dispatch(pcap_t *p, int cnt, uintptr_t ctx);
int gopcap_loop(pcap_t *p, int cnt, uintptr_t ctx);
*/
import "C"

import (
	"fmt"
	"net"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/net/bpf"
)

const errorBufferSize = 256

// maxBpfInstructions mirrors BPF_MAXINSNS.
const maxBpfInstructions = 4096

var defaultEngine engine = libpcapEngine{}

// pcap_compile is not reentrant before libpcap 1.8.
var compileMu sync.Mutex

//export goPacketHandler
func goPacketHandler(ctx C.uintptr_t, hdr *C.struct_pcap_pkthdr, data *C.u_char) {
	h := newPacketHeader(int64(hdr.ts.tv_sec), int64(hdr.ts.tv_usec), uint32(hdr.caplen), uint32(hdr.len))
	deliverPacket(uintptr(ctx), h, cBytes(data, h.CaptureLength()))
}

func cBytes(p *C.u_char, n int) []byte {
	if p == nil || n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(p)), n)
}

func withErrorBuffer(f func(buf *C.char) error) error {
	buf := (*C.char)(C.calloc(errorBufferSize, 1))
	defer C.free(unsafe.Pointer(buf))
	return f(buf)
}

func bufferError(buf *C.char) *Error {
	return ErrorFromBuffer(C.GoBytes(unsafe.Pointer(buf), errorBufferSize))
}

type libpcapEngine struct{}

func (libpcapEngine) openLive(device string, snaplen int, promisc bool, timeoutMillis int) (nativeHandle, error) {
	var dev *C.char
	if device != "" {
		dev = C.CString(device)
		defer C.free(unsafe.Pointer(dev))
	}
	var pro C.int
	if promisc {
		pro = 1
	}
	var h nativeHandle
	err := withErrorBuffer(func(buf *C.char) error {
		p := C.pcap_open_live(dev, C.int(snaplen), pro, C.int(timeoutMillis), buf)
		if p == nil {
			return bufferError(buf)
		}
		h = &libpcapHandle{cptr: p}
		return nil
	})
	return h, err
}

func (libpcapEngine) openOffline(path string) (nativeHandle, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	var h nativeHandle
	err := withErrorBuffer(func(buf *C.char) error {
		p := C.pcap_open_offline(cpath, buf)
		if p == nil {
			return bufferError(buf)
		}
		h = &libpcapHandle{cptr: p}
		return nil
	})
	return h, err
}

func (libpcapEngine) create(device string) (inactiveHandle, error) {
	var dev *C.char
	if device != "" {
		dev = C.CString(device)
		defer C.free(unsafe.Pointer(dev))
	}
	var h inactiveHandle
	err := withErrorBuffer(func(buf *C.char) error {
		p := C.pcap_create(dev, buf)
		if p == nil {
			return bufferError(buf)
		}
		h = &libpcapInactive{cptr: p}
		return nil
	})
	return h, err
}

func (libpcapEngine) findAllDevices() (deviceNode, func(), error) {
	var all *C.struct_pcap_if
	err := withErrorBuffer(func(buf *C.char) error {
		if C.pcap_findalldevs((**C.pcap_if_t)(unsafe.Pointer(&all)), buf) < 0 {
			return bufferError(buf)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	free := func() {
		if all != nil {
			C.pcap_freealldevs((*C.pcap_if_t)(unsafe.Pointer(all)))
		}
	}
	if all == nil {
		return nil, free, nil
	}
	return cDevice{all}, free, nil
}

func (libpcapEngine) version() string {
	return C.GoString(C.pcap_lib_version())
}

type libpcapHandle struct {
	cptr   *C.pcap_t
	pkthdr *C.struct_pcap_pkthdr
	bufptr *C.u_char
}

func (h *libpcapHandle) close() {
	C.pcap_close(h.cptr)
	h.cptr = nil
}

func (h *libpcapHandle) lastError() *Error {
	return &Error{Kind: KindGeneric, Code: CodeError, Msg: C.GoString(C.pcap_geterr(h.cptr))}
}

func (h *libpcapHandle) compile(expr string, optimize bool, netmask uint32) (nativeProgram, error) {
	cexpr := C.CString(expr)
	defer C.free(unsafe.Pointer(cexpr))
	var opt C.int
	if optimize {
		opt = 1
	}
	p := &libpcapProgram{}

	compileMu.Lock()
	defer compileMu.Unlock()
	if C.pcap_compile(h.cptr, &p.bpf, cexpr, opt, C.bpf_u_int32(netmask)) < 0 {
		return nil, h.lastError()
	}
	return p, nil
}

func (h *libpcapHandle) compileInstructions(insns []bpf.RawInstruction) (nativeProgram, error) {
	if len(insns) == 0 || len(insns) > maxBpfInstructions {
		return nil, NewError(fmt.Sprintf("invalid number of BPF instructions: %d", len(insns)))
	}
	size := C.size_t(unsafe.Sizeof(C.struct_bpf_insn{}))
	mem := C.calloc(C.size_t(len(insns)), size)
	if mem == nil {
		return nil, NewError("failed to allocate BPF program")
	}
	dst := unsafe.Slice((*C.struct_bpf_insn)(mem), len(insns))
	for i, in := range insns {
		dst[i].code = C.u_short(in.Op)
		dst[i].jt = C.u_char(in.Jt)
		dst[i].jf = C.u_char(in.Jf)
		dst[i].k = C.bpf_u_int32(in.K)
	}
	p := &libpcapProgram{}
	p.bpf.bf_len = C.u_int(len(insns))
	p.bpf.bf_insns = (*C.struct_bpf_insn)(mem)
	return p, nil
}

func (h *libpcapHandle) setFilter(p nativeProgram) error {
	prog, ok := p.(*libpcapProgram)
	if !ok {
		return NewError(fmt.Sprintf("foreign filter program %T", p))
	}
	if C.pcap_setfilter(h.cptr, &prog.bpf) < 0 {
		return h.lastError()
	}
	return nil
}

func (h *libpcapHandle) dispatch(count int, ctx uintptr) int {
	return int(C.gopcap_dispatch(h.cptr, C.int(count), C.uintptr_t(ctx)))
}

func (h *libpcapHandle) loop(count int, ctx uintptr) int {
	return int(C.gopcap_loop(h.cptr, C.int(count), C.uintptr_t(ctx)))
}

func (h *libpcapHandle) breakLoop() {
	C.pcap_breakloop(h.cptr)
}

func (h *libpcapHandle) next() (PacketHeader, []byte, int) {
	rc := int(C.pcap_next_ex(h.cptr, &h.pkthdr, &h.bufptr))
	if rc != 1 {
		return PacketHeader{}, nil, rc
	}
	hdr := newPacketHeader(int64(h.pkthdr.ts.tv_sec), int64(h.pkthdr.ts.tv_usec), uint32(h.pkthdr.caplen), uint32(h.pkthdr.len))
	return hdr, cBytes(h.bufptr, hdr.CaptureLength()), rc
}

func (h *libpcapHandle) inject(data []byte) int {
	var p unsafe.Pointer
	if len(data) > 0 {
		p = unsafe.Pointer(&data[0])
	}
	return int(C.pcap_inject(h.cptr, p, C.size_t(len(data))))
}

func (h *libpcapHandle) stats() (Statistics, error) {
	var cs C.struct_pcap_stat
	if C.pcap_stats(h.cptr, &cs) < 0 {
		return Statistics{}, h.lastError()
	}
	return Statistics{
		Received:  int(cs.ps_recv),
		Dropped:   int(cs.ps_drop),
		IfDropped: int(cs.ps_ifdrop),
	}, nil
}

func (h *libpcapHandle) snapshot() int {
	return int(C.pcap_snapshot(h.cptr))
}

func (h *libpcapHandle) setSnapLength(n int) int {
	return int(C.pcap_set_snaplen(h.cptr, C.int(n)))
}

func (h *libpcapHandle) datalink() int {
	return int(C.pcap_datalink(h.cptr))
}

type libpcapInactive struct {
	cptr *C.pcap_t
}

func boolInt(v bool) C.int {
	if v {
		return 1
	}
	return 0
}

func (h *libpcapInactive) setSnapLength(n int) int {
	return int(C.pcap_set_snaplen(h.cptr, C.int(n)))
}

func (h *libpcapInactive) setPromisc(promisc bool) int {
	return int(C.pcap_set_promisc(h.cptr, boolInt(promisc)))
}

func (h *libpcapInactive) setTimeout(timeoutMillis int) int {
	return int(C.pcap_set_timeout(h.cptr, C.int(timeoutMillis)))
}

func (h *libpcapInactive) setImmediateMode(immediate bool) int {
	return int(C.pcap_set_immediate_mode(h.cptr, boolInt(immediate)))
}

func (h *libpcapInactive) activate() (nativeHandle, int) {
	rc := int(C.pcap_activate(h.cptr))
	if rc < 0 {
		return nil, rc
	}
	return &libpcapHandle{cptr: h.cptr}, rc
}

func (h *libpcapInactive) lastError() *Error {
	return &Error{Kind: KindGeneric, Code: CodeError, Msg: C.GoString(C.pcap_geterr(h.cptr))}
}

func (h *libpcapInactive) close() {
	C.pcap_close(h.cptr)
}

type libpcapProgram struct {
	bpf C.struct_bpf_program
}

func (p *libpcapProgram) free() {
	C.pcap_freecode(&p.bpf)
}

func (p *libpcapProgram) instructions() []bpf.RawInstruction {
	n := int(p.bpf.bf_len)
	if n == 0 || p.bpf.bf_insns == nil {
		return nil
	}
	out := make([]bpf.RawInstruction, n)
	for i, in := range unsafe.Slice(p.bpf.bf_insns, n) {
		out[i] = bpf.RawInstruction{Op: uint16(in.code), Jt: uint8(in.jt), Jf: uint8(in.jf), K: uint32(in.k)}
	}
	return out
}

func (p *libpcapProgram) matches(hdr PacketHeader, data []byte) bool {
	// the timestamp takes no part in filtering
	var ch C.struct_pcap_pkthdr
	ch.caplen = C.bpf_u_int32(len(data))
	ch.len = C.bpf_u_int32(hdr.Length())
	if hdr.Length() < len(data) {
		ch.len = ch.caplen
	}
	var ptr *C.u_char
	if len(data) > 0 {
		ptr = (*C.u_char)(unsafe.Pointer(&data[0]))
	}
	return C.pcap_offline_filter(&p.bpf, &ch, ptr) != 0
}

// cDevice and cAddress walk the pcap_findalldevs chain in place.
type cDevice struct {
	p *C.struct_pcap_if
}

func (d cDevice) name() string {
	return C.GoString(d.p.name)
}

func (d cDevice) description() string {
	if d.p.description == nil {
		return ""
	}
	return C.GoString(d.p.description)
}

func (d cDevice) flags() uint32 {
	return uint32(d.p.flags)
}

func (d cDevice) addresses() addressNode {
	if d.p.addresses == nil {
		return nil
	}
	return cAddress{d.p.addresses}
}

func (d cDevice) next() deviceNode {
	if d.p.next == nil {
		return nil
	}
	return cDevice{d.p.next}
}

type cAddress struct {
	p *C.struct_pcap_addr
}

func (a cAddress) addr() net.IP      { return sockaddrToIP(a.p.addr) }
func (a cAddress) netmask() net.IP   { return sockaddrToIP(a.p.netmask) }
func (a cAddress) broadaddr() net.IP { return sockaddrToIP(a.p.broadaddr) }
func (a cAddress) dstaddr() net.IP   { return sockaddrToIP(a.p.dstaddr) }

func (a cAddress) next() addressNode {
	if a.p.next == nil {
		return nil
	}
	return cAddress{a.p.next}
}

// sockaddrToIP copies an AF_INET or AF_INET6 address, nil for anything else.
func sockaddrToIP(sa *C.struct_sockaddr) net.IP {
	if sa == nil {
		return nil
	}
	rsa := (*syscall.RawSockaddr)(unsafe.Pointer(sa))
	switch rsa.Family {
	case syscall.AF_INET:
		pp := (*syscall.RawSockaddrInet4)(unsafe.Pointer(rsa))
		return append(net.IP(nil), pp.Addr[:]...)
	case syscall.AF_INET6:
		pp := (*syscall.RawSockaddrInet6)(unsafe.Pointer(rsa))
		return append(net.IP(nil), pp.Addr[:]...)
	}
	return nil
}

// vim: foldmethod=marker
