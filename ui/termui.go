// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package ui

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

// TermUI is a terminal-based UI.
type TermUI struct {
	width int

	mu sync.Mutex
	w  io.Writer
}

func newTermUI(f *os.File) *TermUI {
	width, _, _ := term.GetSize(int(f.Fd()))
	return &TermUI{
		width: width,
		w:     f,
	}
}

// PrintLines implements the ui.UI interface.
// If msgs starts with \n, it will print from the current line.
// Otherwise, it will replace the last N lines, where N is len(msgs).
func (t *TermUI) PrintLines(msgs ...string) {
	var buf bytes.Buffer
	if len(msgs) > 0 && msgs[0] == "\n" {
		msgs = msgs[1:]
	} else {
		for i := 0; i < len(msgs)-1; i++ {
			fmt.Fprintf(&buf, "\r\033[K\033[A")
		}
		fmt.Fprintf(&buf, "\r\033[K")
	}
	writeLinesMaxWidth(&buf, msgs, t.width)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.w.Write(buf.Bytes())
}

// NewSpinner returns a terminal-based spinner.
func (t *TermUI) NewSpinner() Spinner {
	return &termSpinner{w: t.w}
}

// Infof prints a message on a new line.
func (t *TermUI) Infof(format string, args ...any) {
	t.PrintLines("\n", fmt.Sprintf(format, args...)+"\n")
}

// Warningf prints a warning in yellow.
func (t *TermUI) Warningf(format string, args ...any) {
	t.PrintLines("\n", SGR(Yellow, fmt.Sprintf(format, args...))+"\n")
}

// Errorf prints an error in red.
func (t *TermUI) Errorf(format string, args ...any) {
	t.PrintLines("\n", SGR(Red, fmt.Sprintf(format, args...))+"\n")
}
