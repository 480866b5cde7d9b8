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
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
)

// DeviceFlags are the PCAP_IF_* interface flags.
type DeviceFlags uint32

const (
	FlagLoopback DeviceFlags = 0x1
	FlagUp       DeviceFlags = 0x2
	FlagRunning  DeviceFlags = 0x4
	FlagWireless DeviceFlags = 0x8
)

func (f DeviceFlags) Has(flag DeviceFlags) bool {
	return f&flag == flag
}

func (f DeviceFlags) String() string {
	var names []string
	for _, fl := range []struct {
		flag DeviceFlags
		name string
	}{
		{FlagLoopback, "loopback"},
		{FlagUp, "up"},
		{FlagRunning, "running"},
		{FlagWireless, "wireless"},
	} {
		if f.Has(fl.flag) {
			names = append(names, fl.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// DeviceList owns the chain returned by FindAllDevices. The Device and
// Address values obtained from it are views into the chain and panic with
// ErrDeviceListClosed once the list is closed.
type DeviceList struct {
	head   deviceNode
	free   func()
	once   sync.Once
	closed atomic.Bool
}

// FindAllDevices lists the capture devices of the host.
func FindAllDevices() (*DeviceList, error) {
	return findAllDevices(defaultEngine)
}

func findAllDevices(e engine) (*DeviceList, error) {
	head, free, err := e.findAllDevices()
	if err != nil {
		return nil, asKind(err, KindGeneric)
	}
	return newDeviceList(head, free), nil
}

func newDeviceList(head deviceNode, free func()) *DeviceList {
	l := &DeviceList{head: head, free: free}
	runtime.SetFinalizer(l, (*DeviceList).Close)
	return l
}

// Close frees the chain. It is safe to call more than once.
func (l *DeviceList) Close() {
	l.once.Do(func() {
		l.closed.Store(true)
		if l.free != nil {
			l.free()
		}
		runtime.SetFinalizer(l, nil)
	})
}

func (l *DeviceList) check() {
	if l == nil || l.closed.Load() {
		panic(ErrDeviceListClosed)
	}
}

// Iterator returns a cursor at the first device. Each call starts over.
func (l *DeviceList) Iterator() *DeviceIterator {
	l.check()
	return &DeviceIterator{list: l, cur: l.head}
}

func (l *DeviceList) Len() int {
	n := 0
	for it := l.Iterator(); ; n++ {
		if _, ok := it.Next(); !ok {
			return n
		}
	}
}

// Interface is a copy of one device, usable after the list is closed.
type Interface struct {
	Name        string
	Description string
	Flags       DeviceFlags
	Addresses   []InterfaceAddress
}

type InterfaceAddress struct {
	IP          net.IP
	Netmask     net.IPMask
	Broadaddr   net.IP
	Destination net.IP
}

// Interfaces copies the whole list.
func (l *DeviceList) Interfaces() []Interface {
	var out []Interface
	for it := l.Iterator(); ; {
		d, ok := it.Next()
		if !ok {
			return out
		}
		ifc := Interface{Name: d.Name(), Description: d.Description(), Flags: d.Flags()}
		for ait := d.Addresses().Iterator(); ; {
			a, ok := ait.Next()
			if !ok {
				break
			}
			ia := InterfaceAddress{IP: a.IP(), Broadaddr: a.Broadcast(), Destination: a.Destination()}
			if m := a.Netmask(); m != nil {
				ia.Netmask = net.IPMask(m)
			}
			ifc.Addresses = append(ifc.Addresses, ia)
		}
		out = append(out, ifc)
	}
}

// DeviceIterator walks a DeviceList once.
type DeviceIterator struct {
	list *DeviceList
	cur  deviceNode
}

// Next returns the current device and advances, or false at the end.
func (it *DeviceIterator) Next() (Device, bool) {
	it.list.check()
	if it.cur == nil {
		return Device{}, false
	}
	n := it.cur
	it.cur = n.next()
	return Device{list: it.list, node: n}, true
}

// Device is a view of one entry of a DeviceList.
type Device struct {
	list *DeviceList
	node deviceNode
}

func (d Device) Name() string {
	d.list.check()
	return d.node.name()
}

// Description is empty when libpcap has none.
func (d Device) Description() string {
	d.list.check()
	return d.node.description()
}

func (d Device) Flags() DeviceFlags {
	d.list.check()
	return DeviceFlags(d.node.flags())
}

func (d Device) Addresses() AddressList {
	d.list.check()
	return AddressList{list: d.list, head: d.node.addresses()}
}

func (d Device) String() string {
	return d.Name()
}

// AddressList is the address chain of one Device.
type AddressList struct {
	list *DeviceList
	head addressNode
}

func (a AddressList) Iterator() *AddressIterator {
	a.list.check()
	return &AddressIterator{list: a.list, cur: a.head}
}

type AddressIterator struct {
	list *DeviceList
	cur  addressNode
}

func (it *AddressIterator) Next() (Address, bool) {
	it.list.check()
	if it.cur == nil {
		return Address{}, false
	}
	n := it.cur
	it.cur = n.next()
	return Address{list: it.list, node: n}, true
}

// Address is a view of one address of a Device. The returned IPs are copies
// and nil when libpcap has no value.
type Address struct {
	list *DeviceList
	node addressNode
}

func (a Address) IP() net.IP {
	a.list.check()
	return a.node.addr()
}

func (a Address) Netmask() net.IP {
	a.list.check()
	return a.node.netmask()
}

func (a Address) Broadcast() net.IP {
	a.list.check()
	return a.node.broadaddr()
}

// Destination is the peer address of a point-to-point interface.
func (a Address) Destination() net.IP {
	a.list.check()
	return a.node.dstaddr()
}

// String is the textual form of the address, "" when it has none.
func (a Address) String() string {
	if ip := a.IP(); ip != nil {
		return ip.String()
	}
	return ""
}

// vim: foldmethod=marker
