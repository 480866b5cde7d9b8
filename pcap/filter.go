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
	"runtime"
	"sync"

	"golang.org/x/net/bpf"
)

// FilterProgram is a compiled BPF program. It is created by
// Session.CompileFilter and must be released with Close.
type FilterProgram struct {
	expr string

	mu   sync.Mutex
	prog nativeProgram // nil once freed
}

func newFilterProgram(p nativeProgram, expr string) *FilterProgram {
	f := &FilterProgram{expr: expr, prog: p}
	runtime.SetFinalizer(f, (*FilterProgram).Close)
	return f
}

// String returns the expression the program was compiled from.
func (f *FilterProgram) String() string {
	return f.expr
}

// Close frees the program. Further calls are no-ops.
func (f *FilterProgram) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prog == nil {
		return
	}
	f.prog.free()
	f.prog = nil
	runtime.SetFinalizer(f, nil)
}

// Instructions returns a copy of the program's bytecode.
func (f *FilterProgram) Instructions() ([]bpf.RawInstruction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prog == nil {
		return nil, ErrProgramClosed
	}
	return f.prog.instructions(), nil
}

// Matches runs the program against one packet without a capture session.
func (f *FilterProgram) Matches(hdr PacketHeader, data []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prog == nil {
		return false, ErrProgramClosed
	}
	return f.prog.matches(hdr, data), nil
}

// vim: foldmethod=marker
