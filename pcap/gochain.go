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
	"net"
)

// goDevice and goAddress hold a device chain built in Go memory, shaped like
// the one pcap_findalldevs returns.
type goDevice struct {
	nextDev  *goDevice
	devName  string
	desc     string
	devFlags DeviceFlags
	addrs    *goAddress
}

func (d *goDevice) name() string        { return d.devName }
func (d *goDevice) description() string { return d.desc }
func (d *goDevice) flags() uint32       { return uint32(d.devFlags) }

func (d *goDevice) addresses() addressNode {
	if d.addrs == nil {
		return nil
	}
	return d.addrs
}

func (d *goDevice) next() deviceNode {
	if d.nextDev == nil {
		return nil
	}
	return d.nextDev
}

type goAddress struct {
	nextAddr *goAddress
	ip       net.IP
	mask     net.IP
	broad    net.IP
	dst      net.IP
}

func cloneIP(ip net.IP) net.IP {
	if ip == nil {
		return nil
	}
	return append(net.IP(nil), ip...)
}

func (a *goAddress) addr() net.IP      { return cloneIP(a.ip) }
func (a *goAddress) netmask() net.IP   { return cloneIP(a.mask) }
func (a *goAddress) broadaddr() net.IP { return cloneIP(a.broad) }
func (a *goAddress) dstaddr() net.IP   { return cloneIP(a.dst) }

func (a *goAddress) next() addressNode {
	if a.nextAddr == nil {
		return nil
	}
	return a.nextAddr
}

// goDeviceChain lists the host interfaces through the net package.
func goDeviceChain() (deviceNode, func(), error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list interfaces: %w", err)
	}
	head, err := buildDeviceChain(ifaces, func(ifc net.Interface) ([]net.Addr, error) { return ifc.Addrs() }, interfaceFlags)
	if err != nil {
		return nil, nil, err
	}
	free := func() {}
	if head == nil {
		return nil, free, nil
	}
	return head, free, nil
}

func buildDeviceChain(ifaces []net.Interface, addrsOf func(net.Interface) ([]net.Addr, error), flagsOf func(net.Interface) DeviceFlags) (*goDevice, error) {
	var head, tail *goDevice
	for _, ifc := range ifaces {
		addrs, err := addrsOf(ifc)
		if err != nil {
			return nil, fmt.Errorf("failed to list addresses of %s: %w", ifc.Name, err)
		}
		d := &goDevice{devName: ifc.Name, devFlags: flagsOf(ifc), addrs: addressChain(ifc, addrs)}
		if tail == nil {
			head = d
		} else {
			tail.nextDev = d
		}
		tail = d
	}
	return head, nil
}

func addressChain(ifc net.Interface, addrs []net.Addr) *goAddress {
	var head, tail *goAddress
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ga := &goAddress{ip: ipnet.IP, mask: net.IP(ipnet.Mask)}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			ga.ip = ip4
			if len(ipnet.Mask) == net.IPv6len {
				ga.mask = net.IP(ipnet.Mask[12:])
			}
			if ifc.Flags&net.FlagBroadcast != 0 {
				ga.broad = broadcastOf(ip4, net.IPMask(ga.mask))
			}
		}
		if tail == nil {
			head = ga
		} else {
			tail.nextAddr = ga
		}
		tail = ga
	}
	return head
}

func broadcastOf(ip4 net.IP, mask net.IPMask) net.IP {
	b := make(net.IP, net.IPv4len)
	for i := range b {
		b[i] = ip4[i] | ^mask[i]
	}
	return b
}

// vim: foldmethod=marker
