// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package ui_test

import (
	"testing"
	"time"

	"go.chromium.org/infra/build/compdb/ui"
)

func TestFormatDuration(t *testing.T) {
	for _, tc := range []struct {
		name string
		dur  time.Duration
		want string
	}{
		{
			name: "zero",
			want: "0.00s",
		},
		{
			name: "cached-run",
			dur:  4 * time.Millisecond,
			want: "0.00s",
		},
		{
			name: "round-up",
			dur:  999*time.Millisecond + 996*time.Microsecond,
			want: "1.00s",
		},
		{
			name: "seconds",
			dur:  12*time.Second + 345*time.Millisecond,
			want: "12.35s",
		},
		{
			name: "round-to-minute",
			dur:  59*time.Second + 999*time.Millisecond,
			want: "1m00.00s",
		},
		{
			name: "minutes",
			dur:  3*time.Minute + 7*time.Second + 250*time.Millisecond,
			want: "3m07.25s",
		},
		{
			name: "full-tree",
			dur:  1*time.Hour + 2*time.Minute + 3*time.Second + 40*time.Millisecond,
			want: "1h2m03.04s",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := ui.FormatDuration(tc.dur)
			if got != tc.want {
				t.Errorf("ui.FormatDuration(%v)=%q; want=%q", tc.dur, got, tc.want)
			}
		})
	}
}
