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
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/bpf"
)

// fakeEngine scripts the native layer: handles serve a fixed packet list with
// libpcap's return conventions, and filters run on the x/net/bpf VM.
type fakeEngine struct {
	packets    []fakePacket
	openErr    error
	devices    *goDevice
	devErr     error
	freed      int
	activateRC int
	activeErr  string
}

type fakePacket struct {
	hdr  PacketHeader
	data []byte
}

func testPackets(sizes ...int) []fakePacket {
	pkts := make([]fakePacket, len(sizes))
	for i, n := range sizes {
		data := make([]byte, n)
		for j := range data {
			data[j] = byte(i + 1)
		}
		pkts[i] = fakePacket{
			hdr:  newPacketHeader(1650000000+int64(i), int64(i)*1000, uint32(n), uint32(n)),
			data: data,
		}
	}
	return pkts
}

func (e *fakeEngine) newHandle(snaplen int, live bool) *fakeHandle {
	return &fakeHandle{
		live:      live,
		snaplen:   snaplen,
		pkts:      e.packets,
		failAfter: -1,
		wake:      make(chan struct{}, 1),
	}
}

func (e *fakeEngine) openLive(device string, snaplen int, promisc bool, timeoutMillis int) (nativeHandle, error) {
	if e.openErr != nil {
		return nil, e.openErr
	}
	return e.newHandle(snaplen, true), nil
}

func (e *fakeEngine) openOffline(path string) (nativeHandle, error) {
	if e.openErr != nil {
		return nil, e.openErr
	}
	return e.newHandle(65535, false), nil
}

func (e *fakeEngine) create(device string) (inactiveHandle, error) {
	if e.openErr != nil {
		return nil, e.openErr
	}
	return &fakeInactive{engine: e, snaplen: 65535, rc: e.activateRC, errMsg: e.activeErr}, nil
}

func (e *fakeEngine) findAllDevices() (deviceNode, func(), error) {
	if e.devErr != nil {
		return nil, nil, e.devErr
	}
	free := func() { e.freed++ }
	if e.devices == nil {
		return nil, free, nil
	}
	return e.devices, free, nil
}

func (e *fakeEngine) version() string { return "fake libpcap" }

type fakeHandle struct {
	live      bool
	snaplen   int
	pkts      []fakePacket
	pos       int
	buf       []byte
	delivered int
	failAfter int
	errMsg    string
	filter    []bpf.RawInstruction
	stat      Statistics
	injected  [][]byte
	brk       atomic.Bool
	wake      chan struct{}
	// blockNext makes a live next wait for a packet that never comes.
	blockNext bool
	waiting   atomic.Bool

	mu     sync.Mutex
	closed int
}

func (h *fakeHandle) closeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *fakeHandle) close() {
	h.mu.Lock()
	h.closed++
	h.mu.Unlock()
}

func (h *fakeHandle) lastError() *Error {
	return &Error{Kind: KindGeneric, Code: CodeError, Msg: h.errMsg}
}

func (h *fakeHandle) compile(expr string, optimize bool, netmask uint32) (nativeProgram, error) {
	var insns []bpf.Instruction
	var n uint32
	switch {
	case expr == "":
		insns = []bpf.Instruction{bpf.RetConstant{Val: 65535}}
	case func() bool { _, err := fmt.Sscanf(expr, "greater %d", &n); return err == nil }():
		insns = []bpf.Instruction{
			bpf.LoadExtension{Num: bpf.ExtLen},
			bpf.JumpIf{Cond: bpf.JumpGreaterOrEqual, Val: n, SkipFalse: 1},
			bpf.RetConstant{Val: 65535},
			bpf.RetConstant{Val: 0},
		}
	default:
		h.errMsg = "syntax error"
		return nil, h.lastError()
	}
	raw, err := bpf.Assemble(insns)
	if err != nil {
		return nil, NewError(err.Error())
	}
	return &fakeProgram{insns: raw}, nil
}

func (h *fakeHandle) compileInstructions(insns []bpf.RawInstruction) (nativeProgram, error) {
	if len(insns) == 0 {
		return nil, NewError("invalid number of BPF instructions: 0")
	}
	return &fakeProgram{insns: append([]bpf.RawInstruction(nil), insns...)}, nil
}

func (h *fakeHandle) setFilter(p nativeProgram) error {
	h.filter = append([]bpf.RawInstruction(nil), p.(*fakeProgram).insns...)
	return nil
}

func runFilter(insns []bpf.RawInstruction, data []byte) bool {
	decoded, _ := bpf.Disassemble(insns)
	vm, err := bpf.NewVM(decoded)
	if err != nil {
		return false
	}
	n, err := vm.Run(data)
	return err == nil && n > 0
}

// pull returns the next packet accepted by the installed filter.
func (h *fakeHandle) pull() (fakePacket, bool) {
	for h.pos < len(h.pkts) {
		p := h.pkts[h.pos]
		h.pos++
		if h.filter == nil || runFilter(h.filter, p.data) {
			return p, true
		}
	}
	return fakePacket{}, false
}

// deliver hands the packet over in a reused buffer and scribbles over it
// afterwards, as libpcap reuses its ring.
func (h *fakeHandle) deliver(ctx uintptr, p fakePacket) {
	h.buf = append(h.buf[:0], p.data...)
	deliverPacket(ctx, p.hdr, h.buf)
	for i := range h.buf {
		h.buf[i] = 0xff
	}
	h.delivered++
}

func (h *fakeHandle) dispatch(count int, ctx uintptr) int {
	n := 0
	for count <= 0 || n < count {
		if h.brk.Load() {
			if n == 0 {
				h.brk.Store(false)
				return CodeErrorBreak
			}
			return n
		}
		if h.failAfter >= 0 && h.delivered >= h.failAfter {
			h.errMsg = "read error"
			return CodeError
		}
		p, ok := h.pull()
		if !ok {
			break
		}
		h.deliver(ctx, p)
		n++
	}
	return n
}

func (h *fakeHandle) loop(count int, ctx uintptr) int {
	n := 0
	for count <= 0 || n < count {
		left := Unlimited
		if count > 0 {
			left = count - n
		}
		rc := h.dispatch(left, ctx)
		if rc < 0 {
			return rc
		}
		if rc == 0 {
			if !h.live {
				return 0
			}
			<-h.wake
			continue
		}
		n += rc
	}
	return 0
}

func (h *fakeHandle) breakLoop() {
	h.brk.Store(true)
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// next checks the break flag on live handles only, like pcap_next_ex.
func (h *fakeHandle) next() (PacketHeader, []byte, int) {
	if h.live && h.brk.Swap(false) {
		return PacketHeader{}, nil, CodeErrorBreak
	}
	if h.failAfter >= 0 && h.delivered >= h.failAfter {
		h.errMsg = "read error"
		return PacketHeader{}, nil, CodeError
	}
	p, ok := h.pull()
	if !ok {
		if !h.live {
			return PacketHeader{}, nil, CodeErrorBreak
		}
		if h.blockNext {
			h.waiting.Store(true)
			<-h.wake
			if h.brk.Swap(false) {
				return PacketHeader{}, nil, CodeErrorBreak
			}
		}
		return PacketHeader{}, nil, 0
	}
	h.buf = append(h.buf[:0], p.data...)
	h.delivered++
	return p.hdr, h.buf, 1
}

func (h *fakeHandle) inject(data []byte) int {
	if !h.live {
		h.errMsg = "Packet injection is not supported on savefiles"
		return CodeError
	}
	h.injected = append(h.injected, append([]byte(nil), data...))
	return len(data)
}

func (h *fakeHandle) stats() (Statistics, error) {
	if !h.live {
		h.errMsg = "Statistics aren't available from savefiles"
		return Statistics{}, h.lastError()
	}
	return h.stat, nil
}

func (h *fakeHandle) snapshot() int         { return h.snaplen }
func (h *fakeHandle) setSnapLength(int) int { return CodeErrorActivated }
func (h *fakeHandle) datalink() int         { return 1 }

type fakeProgram struct {
	insns []bpf.RawInstruction
	frees int
}

func (p *fakeProgram) free() {
	if p.insns == nil {
		panic("double free of filter program")
	}
	p.insns = nil
	p.frees++
}

func (p *fakeProgram) instructions() []bpf.RawInstruction {
	return append([]bpf.RawInstruction(nil), p.insns...)
}

func (p *fakeProgram) matches(hdr PacketHeader, data []byte) bool {
	return runFilter(p.insns, data)
}

type fakeInactive struct {
	engine    *fakeEngine
	snaplen   int
	promisc   bool
	timeout   int
	immediate bool
	rc        int
	errMsg    string
	closed    int
}

func (h *fakeInactive) setSnapLength(n int) int {
	if n <= 0 {
		return CodeError
	}
	h.snaplen = n
	return 0
}

func (h *fakeInactive) setPromisc(v bool) int       { h.promisc = v; return 0 }
func (h *fakeInactive) setTimeout(ms int) int       { h.timeout = ms; return 0 }
func (h *fakeInactive) setImmediateMode(v bool) int { h.immediate = v; return 0 }
func (h *fakeInactive) lastError() *Error           { return &Error{Code: CodeError, Msg: h.errMsg} }
func (h *fakeInactive) close()                      { h.closed++ }

func (h *fakeInactive) activate() (nativeHandle, int) {
	if h.rc < 0 {
		return nil, h.rc
	}
	return h.engine.newHandle(h.snaplen, true), h.rc
}

// liveHandlers counts the registry entries.
func liveHandlers() int {
	n := 0
	handlers.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

func openFake(t *testing.T, live bool, pkts []fakePacket) (*Session, *fakeHandle) {
	t.Helper()
	e := &fakeEngine{packets: pkts}
	var s *Session
	var err error
	if live {
		s, err = openLive(e, "eth0", 1500, true, BlockForever)
	} else {
		s, err = openOffline(e, "test.pcap")
	}
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, s.h.(*fakeHandle)
}

// vim: foldmethod=marker
