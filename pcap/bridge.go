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
	"sync"
	"sync/atomic"
)

// Handler receives one packet. data aliases the capture buffer and must not
// be retained after the handler returns.
type Handler func(hdr PacketHeader, data []byte)

// handlerHolder is the per call state reachable from the C trampoline.
type handlerHolder struct {
	callback  Handler
	breakLoop func()
	delivered int
	panicked  bool
	recovered interface{}
}

// The registry maps the opaque value passed to libpcap as the user argument
// back to its holder. C never sees a Go pointer.
var (
	handlers   sync.Map // uintptr -> *handlerHolder
	handlerSeq atomic.Uintptr
)

func registerHandler(h *handlerHolder) uintptr {
	id := handlerSeq.Add(1)
	handlers.Store(id, h)
	return id
}

func releaseHandler(id uintptr) {
	handlers.Delete(id)
}

func lookupHandler(id uintptr) *handlerHolder {
	v, ok := handlers.Load(id)
	if !ok {
		return nil
	}
	return v.(*handlerHolder)
}

// deliverPacket runs on the native callback. A panic must not unwind through
// C frames, so it is stored on the holder, the loop is broken and withHandler
// raises it again once the native call has returned.
func deliverPacket(id uintptr, hdr PacketHeader, data []byte) {
	h := lookupHandler(id)
	if h == nil || h.panicked {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			h.panicked = true
			h.recovered = r
			handlerPanics.Inc(1)
			if h.breakLoop != nil {
				h.breakLoop()
			}
		}
	}()
	h.delivered++
	h.callback(hdr, data)
}

// withHandler registers cb for the duration of call and returns call's result
// and the number of packets handed to cb.
func withHandler(cb Handler, breakLoop func(), call func(ctx uintptr) int) (int, int) {
	h := &handlerHolder{callback: cb, breakLoop: breakLoop}
	id := registerHandler(h)
	rc := func() int {
		defer releaseHandler(id)
		return call(id)
	}()
	if h.panicked {
		panic(h.recovered)
	}
	return rc, h.delivered
}

// vim: foldmethod=marker
