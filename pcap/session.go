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
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/bpf"
)

// NetmaskUnknown is passed to CompileFilter when the network mask of the
// capture device is unknown. Only broadcast tests depend on it.
const NetmaskUnknown uint32 = 0xffffffff

// BlockForever makes live reads wait until a packet arrives.
const BlockForever time.Duration = 0

// Session is an open capture handle, live or offline. The zero value is not
// usable; sessions come from OpenLive, OpenOffline or InactiveSession.Activate.
type Session struct {
	h      nativeHandle
	source string
	log    *log.Entry

	// every call touching h holds rw for reading. Close never blocks on it:
	// when a call is in flight the last reader out releases the handle.
	rw          sync.RWMutex
	closed      atomic.Bool
	releaseOnce sync.Once

	// breakMu guards the read state. h stays open while reading is set.
	breakMu        sync.Mutex
	reading        bool
	looping        bool
	breakRequested bool
	// libpcap keeps a break flag set when the read it was meant for had
	// already delivered packets; the next read then returns -2 at once.
	staleBreak bool
}

func newSession(h nativeHandle, source string) *Session {
	s := &Session{
		h:      h,
		source: source,
		log:    log.WithField("source", source),
	}
	s.log.Debugf("opened capture session (snaplen %d, linktype %s)", h.snapshot(), layers.LinkType(h.datalink()))
	return s
}

// OpenLive opens device for live capture. An empty device name, or "any",
// captures on all interfaces where libpcap supports it. A timeout of
// BlockForever (or any non-positive value) waits indefinitely for packets.
func OpenLive(device string, snaplen int, promisc bool, timeout time.Duration) (*Session, error) {
	return openLive(defaultEngine, device, snaplen, promisc, timeout)
}

func openLive(e engine, device string, snaplen int, promisc bool, timeout time.Duration) (*Session, error) {
	if snaplen <= 0 {
		return nil, &Error{Kind: KindOpen, Msg: fmt.Sprintf("invalid snapshot length %d", snaplen)}
	}
	h, err := e.openLive(device, snaplen, promisc, timeoutMillis(timeout))
	if err != nil {
		return nil, asKind(err, KindOpen)
	}
	if device == "" {
		device = "any"
	}
	return newSession(h, device), nil
}

// OpenOffline opens a savefile for reading. "-" reads from standard input.
func OpenOffline(path string) (*Session, error) {
	return openOffline(defaultEngine, path)
}

func openOffline(e engine, path string) (*Session, error) {
	h, err := e.openOffline(path)
	if err != nil {
		return nil, asKind(err, KindOpen)
	}
	return newSession(h, path), nil
}

// Version returns the libpcap version string.
func Version() string {
	return defaultEngine.version()
}

func timeoutMillis(timeout time.Duration) int {
	if timeout <= 0 {
		return 0
	}
	if timeout < time.Millisecond {
		return 1
	}
	return int(timeout / time.Millisecond)
}

// enter must be paired with leave.
func (s *Session) enter() error {
	s.rw.RLock()
	if s.closed.Load() {
		s.leave()
		return ErrClosed
	}
	return nil
}

func (s *Session) leave() {
	s.rw.RUnlock()
	if s.closed.Load() && s.rw.TryLock() {
		s.release()
		s.rw.Unlock()
	}
}

func (s *Session) release() {
	s.releaseOnce.Do(func() {
		s.h.close()
		s.log.Debug("capture session closed")
	})
}

// Close releases the handle. It is safe to call more than once and from
// inside a Handler. A Dispatch, Loop or NextPacket in progress is broken and
// the handle is released when it returns; a NextPacket blocked on a live
// handle only wakes up if libpcap can interrupt its wait (Linux, libpcap 1.10
// and later), otherwise at the next packet or timeout.
func (s *Session) Close() {
	if s.closed.Swap(true) {
		return
	}
	if s.rw.TryLock() {
		s.release()
		s.rw.Unlock()
		return
	}
	s.breakMu.Lock()
	defer s.breakMu.Unlock()
	if s.reading {
		s.breakRequested = true
		s.h.breakLoop()
	}
}

// Error returns the last error reported by libpcap for this session.
func (s *Session) Error() error {
	if err := s.enter(); err != nil {
		return err
	}
	defer s.leave()
	return s.h.lastError()
}

// SnapLength returns the snapshot length, 0 once closed.
func (s *Session) SnapLength() int {
	if s.enter() != nil {
		return 0
	}
	defer s.leave()
	return s.h.snapshot()
}

// SetSnapLength changes the snapshot length. libpcap refuses this on an
// activated handle; use InactiveSession to pick the length before activation.
func (s *Session) SetSnapLength(n int) error {
	if err := s.enter(); err != nil {
		return err
	}
	defer s.leave()
	if rc := s.h.setSnapLength(n); rc != 0 {
		return ErrorFromCode(rc).withKind(KindRuntime)
	}
	return nil
}

// LinkType returns the link-layer header type of the capture.
func (s *Session) LinkType() layers.LinkType {
	if s.enter() != nil {
		return layers.LinkTypeNull
	}
	defer s.leave()
	return layers.LinkType(s.h.datalink())
}

// CompileFilter compiles a filter expression in tcpdump syntax. The program
// belongs to the caller and is independent from the session.
func (s *Session) CompileFilter(expr string, optimize bool, netmask uint32) (*FilterProgram, error) {
	if err := s.enter(); err != nil {
		return nil, err
	}
	defer s.leave()
	p, err := s.h.compile(expr, optimize, netmask)
	if err != nil {
		return nil, asKind(err, KindCompile)
	}
	return newFilterProgram(p, expr), nil
}

// CompileInstructions builds a filter program from raw BPF bytecode, as
// produced by bpf.Assemble or tcpdump -ddd.
func (s *Session) CompileInstructions(insns []bpf.RawInstruction) (*FilterProgram, error) {
	if err := s.enter(); err != nil {
		return nil, err
	}
	defer s.leave()
	p, err := s.h.compileInstructions(insns)
	if err != nil {
		return nil, asKind(err, KindCompile)
	}
	return newFilterProgram(p, fmt.Sprintf("<%d instructions>", len(insns))), nil
}

// SetFilter installs p. libpcap keeps its own copy, p may be closed afterwards.
func (s *Session) SetFilter(p *FilterProgram) error {
	if err := s.enter(); err != nil {
		return err
	}
	defer s.leave()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.prog == nil {
		return ErrProgramClosed
	}
	if err := s.h.setFilter(p.prog); err != nil {
		return asKind(err, KindRuntime)
	}
	s.log.Debugf("filter installed: %s", p.expr)
	return nil
}

// SetBPFFilter compiles expr with optimization and an unknown netmask,
// installs it and frees the program.
func (s *Session) SetBPFFilter(expr string) error {
	p, err := s.CompileFilter(expr, true, NetmaskUnknown)
	if err != nil {
		return err
	}
	defer p.Close()
	return s.SetFilter(p)
}

// Statistics returns the capture counters. Savefiles have none.
func (s *Session) Statistics() (Statistics, error) {
	if err := s.enter(); err != nil {
		return Statistics{}, err
	}
	defer s.leave()
	st, err := s.h.stats()
	if err != nil {
		return Statistics{}, asKind(err, KindRuntime)
	}
	return st, nil
}

// Inject sends a raw link-layer frame and returns the number of bytes written.
func (s *Session) Inject(data []byte) (int, error) {
	if err := s.enter(); err != nil {
		return 0, err
	}
	defer s.leave()
	n := s.h.inject(data)
	if n < 0 {
		runtimeErrors.Inc(1)
		return 0, s.h.lastError().withKind(KindRuntime)
	}
	return n, nil
}

// startReading claims the session for one read and reports whether a break
// flag may be left over from the previous one.
func (s *Session) startReading(op string, looping bool) (bool, error) {
	s.breakMu.Lock()
	defer s.breakMu.Unlock()
	if s.reading {
		runtimeErrors.Inc(1)
		return false, &Error{Kind: KindRuntime, Msg: op + " called while another read on the session is active"}
	}
	s.reading = true
	s.looping = looping
	s.breakRequested = false
	stale := s.staleBreak
	s.staleBreak = false
	return stale, nil
}

// stopReading releases the read claim and reports whether a break was
// requested during it. rc is the native result; unless it is -2 libpcap did
// not consume the break. keepStale carries an unconsumed stale break over.
func (s *Session) stopReading(rc int, keepStale bool) bool {
	s.breakMu.Lock()
	defer s.breakMu.Unlock()
	brk := s.breakRequested
	s.staleBreak = keepStale || (brk && rc != CodeErrorBreak)
	s.reading = false
	s.looping = false
	s.breakRequested = false
	return brk
}

func (s *Session) breakPending() bool {
	s.breakMu.Lock()
	defer s.breakMu.Unlock()
	return s.breakRequested
}

// NextPacket reads one packet and returns a copy of its data. It returns
// ErrNoPacket when the read timeout expired and io.EOF at the end of a
// savefile.
func (s *Session) NextPacket() (PacketHeader, []byte, error) {
	return s.next(true)
}

// ZeroCopyNextPacket is NextPacket without the copy: data is only valid until
// the next call on the session.
func (s *Session) ZeroCopyNextPacket() (PacketHeader, []byte, error) {
	return s.next(false)
}

func (s *Session) next(copyData bool) (PacketHeader, []byte, error) {
	if err := s.enter(); err != nil {
		return PacketHeader{}, nil, err
	}
	defer s.leave()
	stale, err := s.startReading("NextPacket", false)
	if err != nil {
		return PacketHeader{}, nil, err
	}

	// savefile reads never look at the break flag, so a stale one is only
	// known to be gone after a retried -2 turned into something else.
	hdr, data, rc := s.h.next()
	retried := false
	if rc == CodeErrorBreak && stale && !s.breakPending() {
		hdr, data, rc = s.h.next()
		retried = true
	}
	s.stopReading(rc, stale && (!retried || rc == CodeErrorBreak))
	if rc != 1 && s.closed.Load() {
		return PacketHeader{}, nil, ErrClosed
	}
	switch rc {
	case 1:
	case 0:
		return PacketHeader{}, nil, ErrNoPacket
	case CodeErrorBreak:
		return PacketHeader{}, nil, io.EOF
	default:
		runtimeErrors.Inc(1)
		return PacketHeader{}, nil, s.h.lastError().withKind(KindRuntime)
	}
	packetsDelivered.Inc(1)
	if copyData {
		data = append([]byte(nil), data...)
	}
	return hdr, data, nil
}

// ReadPacketData implements gopacket.PacketDataSource.
func (s *Session) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	hdr, data, err := s.NextPacket()
	return data, hdr.CaptureInfo(), err
}

// ZeroCopyReadPacketData implements gopacket.ZeroCopyPacketDataSource.
func (s *Session) ZeroCopyReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	hdr, data, err := s.ZeroCopyNextPacket()
	return data, hdr.CaptureInfo(), err
}

// Dispatch processes at most one buffer of packets, or maxCount packets when
// maxCount is positive, calling h for each on the current goroutine.
func (s *Session) Dispatch(maxCount int, h Handler) Status {
	return s.run("Dispatch", maxCount, h, func(count int, ctx uintptr) int {
		return s.h.dispatch(count, ctx)
	})
}

// Loop processes packets until maxCount were handled, the savefile ends,
// BreakLoop is called or an error occurs. Unlimited (or any non-positive
// count) keeps going until one of the other conditions.
func (s *Session) Loop(maxCount int, h Handler) Status {
	return s.run("Loop", maxCount, h, func(count int, ctx uintptr) int {
		return s.h.loop(count, ctx)
	})
}

func (s *Session) run(op string, maxCount int, h Handler, call func(count int, ctx uintptr) int) Status {
	if h == nil {
		return errorStatus(&Error{Kind: KindRuntime, Msg: op + " called with a nil handler"}, 0)
	}
	if err := s.enter(); err != nil {
		return errorStatus(err, 0)
	}
	defer s.leave()
	stale, err := s.startReading(op, true)
	if err != nil {
		return errorStatus(err, 0)
	}
	if maxCount <= 0 {
		maxCount = Unlimited
	}

	dispatchCalls.Inc(1)
	// rc stays 0 when the handler panicked, which leaves the native break
	// flag marked as stale.
	var rc, delivered int
	var brk bool
	func() {
		defer func() { brk = s.stopReading(rc, false) }()
		rc, delivered = withHandler(h, s.BreakLoop, func(ctx uintptr) int {
			n := call(maxCount, ctx)
			if n == CodeErrorBreak && stale && !s.breakPending() {
				n = call(maxCount, ctx)
			}
			return n
		})
	}()
	packetsDelivered.Inc(int64(delivered))

	st := statusFromCode(rc, maxCount, delivered, s.h.lastError)
	if brk && rc >= 0 {
		st = Status{Kind: StatusInterrupted, Count: delivered}
	}
	switch st.Kind {
	case StatusInterrupted:
		loopInterrupted.Inc(1)
	case StatusError:
		runtimeErrors.Inc(1)
		s.log.Debugf("%s failed: %v", op, st.Err)
	}
	return st
}

// BreakLoop makes an active Dispatch or Loop return StatusInterrupted at the
// next packet boundary. It may be called from any goroutine, including from a
// Handler, and does nothing when no Dispatch or Loop is running.
func (s *Session) BreakLoop() {
	s.breakMu.Lock()
	defer s.breakMu.Unlock()
	if s.looping {
		s.breakRequested = true
		s.h.breakLoop()
	}
}

// vim: foldmethod=marker
