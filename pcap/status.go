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

import "fmt"

// Unlimited asks Dispatch and Loop to process packets without a count limit.
const Unlimited = -1

// StatusKind is the outcome class of a Dispatch or Loop call.
type StatusKind int

const (
	// StatusCompleted: the requested count was reached, an unlimited call
	// drained what was available, or the source ended.
	StatusCompleted StatusKind = iota
	// StatusInterrupted: BreakLoop stopped the call.
	StatusInterrupted
	// StatusPartial: the call returned short of a positive requested count,
	// for example on a live read timeout.
	StatusPartial
	// StatusError: the engine failed, Err says why.
	StatusError
)

func (k StatusKind) String() string {
	switch k {
	case StatusCompleted:
		return "completed"
	case StatusInterrupted:
		return "interrupted"
	case StatusPartial:
		return "partial"
	case StatusError:
		return "error"
	}
	return fmt.Sprintf("status(%d)", int(k))
}

// Status is what Dispatch and Loop return. Count is the number of packets
// handed to the handler during the call.
type Status struct {
	Kind  StatusKind
	Count int
	Err   error
}

func (s Status) String() string {
	if s.Kind == StatusError {
		return fmt.Sprintf("error: %v", s.Err)
	}
	return fmt.Sprintf("%s (%d packets)", s.Kind, s.Count)
}

func errorStatus(err error, delivered int) Status {
	return Status{Kind: StatusError, Count: delivered, Err: err}
}

// statusFromCode maps a pcap_dispatch/pcap_loop return value. lastErr is only
// consulted for -1.
func statusFromCode(rc, maxCount, delivered int, lastErr func() *Error) Status {
	switch {
	case rc == CodeErrorBreak:
		return Status{Kind: StatusInterrupted, Count: delivered}
	case rc < 0:
		return errorStatus(lastErr().withKind(KindRuntime), delivered)
	case rc == 0:
		return Status{Kind: StatusCompleted, Count: delivered}
	case maxCount <= 0 || rc >= maxCount:
		return Status{Kind: StatusCompleted, Count: rc}
	}
	return Status{Kind: StatusPartial, Count: rc}
}

// vim: foldmethod=marker
