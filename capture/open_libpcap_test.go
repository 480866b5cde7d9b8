//go:build cgo && !nolibpcap && !windows

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

package capture

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcapgo"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/mosajjal/gopcap/pcap"
)

func writeFixture(t *testing.T, sizes ...int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65535, layers.LinkTypeEthernet))
	for i, n := range sizes {
		ci := gopacket.CaptureInfo{Timestamp: time.Unix(1650000000+int64(i), 0), CaptureLength: n, Length: n}
		require.NoError(t, w.WritePacket(ci, make([]byte, n)))
	}
	return path
}

func TestOpenAndRunSavefile(t *testing.T) {
	path := writeFixture(t, 60, 150, 400, 90)
	s, err := Options{PcapFile: path, SnapLength: 65535, Filter: "greater 100"}.Open()
	require.NoError(t, err)
	defer s.Close()

	var lengths []int
	st, err := Run(context.Background(), s, 0, 0, func(hdr pcap.PacketHeader, _ []byte) {
		lengths = append(lengths, hdr.Length())
	})
	require.NoError(t, err)
	require.Equal(t, pcap.StatusCompleted, st.Kind)
	require.Equal(t, []int{150, 400}, lengths)
}

func TestOpenBadFilter(t *testing.T) {
	path := writeFixture(t, 60)
	s, err := Options{PcapFile: path, SnapLength: 65535, Filter: "not ( a filter"}.Open()
	require.Nil(t, s)
	require.True(t, errors.Is(err, pcap.ErrCompile), err)
}

func TestRunSavefileWithCount(t *testing.T) {
	path := writeFixture(t, 60, 60, 60, 60, 60)
	s, err := Options{PcapFile: path, SnapLength: 65535}.Open()
	require.NoError(t, err)
	defer s.Close()

	count := 0
	st, err := Run(context.Background(), s, 2, time.Millisecond, func(pcap.PacketHeader, []byte) { count++ })
	require.NoError(t, err)
	require.Equal(t, pcap.StatusCompleted, st.Kind)
	require.Equal(t, 2, count)
}

// vim: foldmethod=marker
