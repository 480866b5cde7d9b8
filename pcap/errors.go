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
	"bytes"
	"errors"
	"fmt"
)

// ErrorKind says which family of operation produced an Error.
type ErrorKind int

const (
	KindGeneric ErrorKind = iota
	KindOpen
	KindCompile
	KindRuntime
	KindActivate
)

func (k ErrorKind) String() string {
	switch k {
	case KindGeneric:
		return "generic"
	case KindOpen:
		return "open"
	case KindCompile:
		return "compile"
	case KindRuntime:
		return "runtime"
	case KindActivate:
		return "activate"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// libpcap status codes, as defined in pcap/pcap.h.
const (
	CodeWarning                    = 1
	CodeWarningPromiscNotSupported = 2
	CodeWarningTstampTypeNotSup    = 3

	CodeError                      = -1
	CodeErrorBreak                 = -2
	CodeErrorNotActivated          = -3
	CodeErrorActivated             = -4
	CodeErrorNoSuchDevice          = -5
	CodeErrorRfmonNotSupported     = -6
	CodeErrorNotRfmon              = -7
	CodeErrorPermDenied            = -8
	CodeErrorIfaceNotUp            = -9
	CodeErrorCantSetTstampType     = -10
	CodeErrorPromiscPermDenied     = -11
	CodeErrorTstampPrecisionNotSup = -12
)

var codeMessages = map[int]string{
	CodeWarning:                    "Generic warning",
	CodeWarningPromiscNotSupported: "That device doesn't support promiscuous mode",
	CodeWarningTstampTypeNotSup:    "That type of time stamp is not supported by that device",
	CodeError:                      "Generic error",
	CodeErrorBreak:                 "Loop terminated by pcap_breakloop",
	CodeErrorNotActivated:          "The pcap_t has not been activated",
	CodeErrorActivated:             "The setting can't be changed after the pcap_t is activated",
	CodeErrorNoSuchDevice:          "No such device exists",
	CodeErrorRfmonNotSupported:     "That device doesn't support monitor mode",
	CodeErrorNotRfmon:              "That operation is supported only in monitor mode",
	CodeErrorPermDenied:            "You don't have permission to perform this capture on that device",
	CodeErrorIfaceNotUp:            "That device is not up",
	CodeErrorCantSetTstampType:     "That device doesn't support setting the time stamp type",
	CodeErrorPromiscPermDenied:     "You don't have permission to capture in promiscuous mode on that device",
	CodeErrorTstampPrecisionNotSup: "That device doesn't support that time stamp precision",
}

// Error is the error type returned by every failing libpcap call. Values are
// never modified after construction.
type Error struct {
	Kind ErrorKind
	// Code is the libpcap status code the error came from, 0 when the error
	// was built from a message.
	Code int
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

// Is reports whether target is the sentinel of e's kind (ErrOpen, ErrCompile,
// ...) or an Error with the same kind, code and message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Msg == "" && t.Code == 0 {
		return t.Kind == e.Kind
	}
	return *t == *e
}

func (e *Error) withKind(k ErrorKind) *Error {
	c := *e
	c.Kind = k
	return &c
}

// Kind sentinels for errors.Is.
var (
	ErrGeneric  = &Error{Kind: KindGeneric}
	ErrOpen     = &Error{Kind: KindOpen}
	ErrCompile  = &Error{Kind: KindCompile}
	ErrRuntime  = &Error{Kind: KindRuntime}
	ErrActivate = &Error{Kind: KindActivate}
)

var (
	// ErrClosed is returned by calls on a Session or InactiveSession after Close.
	ErrClosed = errors.New("pcap: session is closed")
	// ErrProgramClosed is returned when a closed FilterProgram is used.
	ErrProgramClosed = errors.New("pcap: filter program is closed")
	// ErrDeviceListClosed is the panic value raised by a Device or Address
	// view used after its DeviceList was closed.
	ErrDeviceListClosed = errors.New("pcap: device list is closed")
)

// ErrNoPacket is returned by NextPacket when the read timeout expired before a
// packet arrived. It satisfies net.Error with Timeout and Temporary true, so
// gopacket.PacketSource retries on it.
var ErrNoPacket error = timeoutError{}

type timeoutError struct{}

func (timeoutError) Error() string   { return "pcap: timeout expired, no packet available" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// NewError builds a generic error carrying msg.
func NewError(msg string) *Error {
	return &Error{Kind: KindGeneric, Msg: msg}
}

// ErrorFromBuffer converts a libpcap error buffer. The message is the content
// up to the first NUL; a nil buffer gives "no error".
func ErrorFromBuffer(buf []byte) *Error {
	if buf == nil {
		return NewError("no error")
	}
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	return NewError(string(buf))
}

// ErrorFromCode converts a libpcap status code into its fixed message.
func ErrorFromCode(code int) *Error {
	msg, ok := codeMessages[code]
	if !ok {
		msg = fmt.Sprintf("Unknown error: %d", code)
	}
	return &Error{Kind: KindGeneric, Code: code, Msg: msg}
}

// asKind returns err as an *Error of kind k.
func asKind(err error, k ErrorKind) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.withKind(k)
	}
	return &Error{Kind: k, Msg: err.Error()}
}

// vim: foldmethod=marker
