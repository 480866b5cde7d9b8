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
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildDeviceChain(t *testing.T) {
	ifaces := []net.Interface{
		{Index: 1, Name: "lo", Flags: net.FlagUp | net.FlagLoopback | net.FlagRunning},
		{Index: 2, Name: "eth0", Flags: net.FlagUp | net.FlagBroadcast},
		{Index: 3, Name: "tun0", Flags: net.FlagPointToPoint},
	}
	addrs := map[string][]net.Addr{
		"lo": {
			&net.IPNet{IP: net.IPv4(127, 0, 0, 1), Mask: net.CIDRMask(8, 32)},
			&net.IPNet{IP: net.IPv6loopback, Mask: net.CIDRMask(128, 128)},
		},
		"eth0": {
			&net.IPNet{IP: net.IPv4(10, 1, 2, 3), Mask: net.CIDRMask(20, 32)},
			&net.IPAddr{IP: net.IPv4(10, 9, 9, 9)},
		},
	}
	head, err := buildDeviceChain(ifaces, func(ifc net.Interface) ([]net.Addr, error) {
		return addrs[ifc.Name], nil
	}, netFlags)
	require.NoError(t, err)

	l := newDeviceList(head, nil)
	defer l.Close()
	ifs := l.Interfaces()
	require.Len(t, ifs, 3)

	require.Equal(t, "lo", ifs[0].Name)
	require.Equal(t, FlagLoopback|FlagUp|FlagRunning, ifs[0].Flags)
	require.Len(t, ifs[0].Addresses, 2)
	require.Equal(t, net.IP{127, 0, 0, 1}, ifs[0].Addresses[0].IP)
	require.Equal(t, net.IPv4Mask(255, 0, 0, 0), ifs[0].Addresses[0].Netmask)
	// no broadcast flag, no broadcast address
	require.Nil(t, ifs[0].Addresses[0].Broadaddr)
	require.Equal(t, net.IPv6loopback, ifs[0].Addresses[1].IP)
	require.Nil(t, ifs[0].Addresses[1].Broadaddr)

	require.Equal(t, FlagUp, ifs[1].Flags)
	// only *net.IPNet values carry a mask and are listed
	require.Len(t, ifs[1].Addresses, 1)
	require.Equal(t, net.IP{10, 1, 15, 255}, ifs[1].Addresses[0].Broadaddr)

	require.Equal(t, DeviceFlags(0), ifs[2].Flags)
	require.Empty(t, ifs[2].Addresses)
}

func TestBuildDeviceChainError(t *testing.T) {
	_, err := buildDeviceChain([]net.Interface{{Name: "eth0"}}, func(net.Interface) ([]net.Addr, error) {
		return nil, errors.New("boom")
	}, netFlags)
	require.EqualError(t, err, "failed to list addresses of eth0: boom")
}

func TestBuildDeviceChainEmpty(t *testing.T) {
	head, err := buildDeviceChain(nil, nil, netFlags)
	require.NoError(t, err)
	require.Nil(t, head)
}

func TestGoDeviceChain(t *testing.T) {
	head, free, err := goDeviceChain()
	require.NoError(t, err)
	require.NotNil(t, free)

	l := newDeviceList(head, free)
	defer l.Close()
	ifaces, err := net.Interfaces()
	require.NoError(t, err)
	require.Equal(t, len(ifaces), l.Len())
}

// vim: foldmethod=marker
