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
	"time"

	log "github.com/sirupsen/logrus"
)

// InactiveSession is a handle that is configured before capture starts. It
// must end in either Activate or CleanUp.
type InactiveSession struct {
	device string

	mu sync.Mutex
	h  inactiveHandle // nil after activation or clean up
}

// NewInactive creates a handle on device that is not capturing yet.
func NewInactive(device string) (*InactiveSession, error) {
	return newInactive(defaultEngine, device)
}

func newInactive(e engine, device string) (*InactiveSession, error) {
	h, err := e.create(device)
	if err != nil {
		return nil, asKind(err, KindOpen)
	}
	if device == "" {
		device = "any"
	}
	return &InactiveSession{device: device, h: h}, nil
}

func (p *InactiveSession) set(name string, f func(h inactiveHandle) int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.h == nil {
		return ErrClosed
	}
	if rc := f(p.h); rc != 0 {
		err := ErrorFromCode(rc).withKind(KindRuntime)
		err.Msg = fmt.Sprintf("%s: %s", name, err.Msg)
		return err
	}
	return nil
}

func (p *InactiveSession) SetSnapLength(n int) error {
	return p.set("snaplen", func(h inactiveHandle) int { return h.setSnapLength(n) })
}

func (p *InactiveSession) SetPromiscuous(promisc bool) error {
	return p.set("promisc", func(h inactiveHandle) int { return h.setPromisc(promisc) })
}

// SetTimeout sets the read timeout. Non-positive values block forever.
func (p *InactiveSession) SetTimeout(timeout time.Duration) error {
	return p.set("timeout", func(h inactiveHandle) int { return h.setTimeout(timeoutMillis(timeout)) })
}

// SetImmediateMode delivers packets as soon as they arrive instead of
// buffering them until the timeout.
func (p *InactiveSession) SetImmediateMode(immediate bool) error {
	return p.set("immediate mode", func(h inactiveHandle) int { return h.setImmediateMode(immediate) })
}

// Activate starts the capture and hands the handle over to the returned
// Session. On failure the handle is released.
func (p *InactiveSession) Activate() (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.h == nil {
		return nil, ErrClosed
	}
	h, rc := p.h.activate()
	if rc < 0 {
		err := ErrorFromCode(rc).withKind(KindActivate)
		switch rc {
		case CodeError, CodeErrorNoSuchDevice, CodeErrorPermDenied, CodeErrorPromiscPermDenied:
			if detail := p.h.lastError().Msg; detail != "" {
				err.Msg = fmt.Sprintf("%s: %s", err.Msg, detail)
			}
		}
		p.h.close()
		p.h = nil
		return nil, err
	}
	if rc > 0 {
		log.WithField("source", p.device).Warnf("activated with warning: %s", ErrorFromCode(rc).Msg)
	}
	p.h = nil
	return newSession(h, p.device), nil
}

// CleanUp releases a handle that was never activated. It does nothing after
// Activate or a previous CleanUp.
func (p *InactiveSession) CleanUp() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.h != nil {
		p.h.close()
		p.h = nil
	}
}

// vim: foldmethod=marker
