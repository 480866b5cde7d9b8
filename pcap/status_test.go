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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusFromCode(t *testing.T) {
	lastErr := func() *Error { return NewError("read failed") }
	tests := []struct {
		name      string
		rc        int
		maxCount  int
		delivered int
		want      Status
	}{
		{"break", -2, Unlimited, 3, Status{Kind: StatusInterrupted, Count: 3}},
		{"end of file", 0, Unlimited, 7, Status{Kind: StatusCompleted, Count: 7}},
		{"nothing", 0, 10, 0, Status{Kind: StatusCompleted}},
		{"count reached", 5, 5, 5, Status{Kind: StatusCompleted, Count: 5}},
		{"short read", 3, 5, 3, Status{Kind: StatusPartial, Count: 3}},
		{"unlimited buffer drained", 4, Unlimited, 4, Status{Kind: StatusCompleted, Count: 4}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, statusFromCode(tc.rc, tc.maxCount, tc.delivered, lastErr))
		})
	}

	st := statusFromCode(-1, Unlimited, 2, lastErr)
	require.Equal(t, StatusError, st.Kind)
	require.Equal(t, 2, st.Count)
	require.ErrorIs(t, st.Err, ErrRuntime)
	require.EqualError(t, st.Err, "read failed")
}

func TestStatusString(t *testing.T) {
	require.Equal(t, "completed (3 packets)", Status{Kind: StatusCompleted, Count: 3}.String())
	require.Equal(t, "interrupted (0 packets)", Status{Kind: StatusInterrupted}.String())
	require.Equal(t, "error: boom", errorStatus(NewError("boom"), 0).String())
	require.Equal(t, "status(9)", StatusKind(9).String())
}

// vim: foldmethod=marker
