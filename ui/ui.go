// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package ui provides user interface functionalities.
// Status is written to stderr, as stdout may carry the database.
package ui

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
)

// Spinner shows progress of a long operation.
type Spinner interface {
	// Start starts the spinner with the specified formatted string.
	Start(format string, args ...any)
	// Stop stops the spinner, outputting an error if provided.
	Stop(err error)
	// Done finishes the spinner with message.
	Done(format string, args ...any)
}

// UI is a user interface.
type UI interface {
	// PrintLines prints message lines.
	// If msgs starts with \n, it will print from the current line.
	// Otherwise, it will replaces the last N lines, where N is len(msgs).
	PrintLines(msgs ...string)
	// NewSpinner returns a new spinner.
	NewSpinner() Spinner
	// Infof reports a message to the user.
	Infof(format string, args ...any)
	// Warningf reports a warning to the user.
	Warningf(format string, args ...any)
	// Errorf reports an error to the user.
	Errorf(format string, args ...any)
}

// DurationThreshold is the threshold to omit duration of short operations.
const DurationThreshold = 5 * time.Second

// Default holds the default UI interface.
// Making changes to this variable after init is undefined behavior.
var Default UI

func init() {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		Default = newTermUI(os.Stderr)
		return
	}
	Default = &LogUI{}
}

// IsTerminal returns whether currently using a terminal UI.
func IsTerminal() bool {
	_, ok := Default.(*TermUI)
	return ok
}

func writeLinesMaxWidth(buf *bytes.Buffer, msgs []string, width int) {
	first := true
	for i, msg := range msgs {
		if msg == "" {
			continue
		}
		// a message terminated with newline is not a status line.
		last := i == len(msgs)-1
		if (last && !strings.Contains(msg, "\n")) || (!last && !strings.Contains(strings.TrimSuffix(msg, "\n"), "\n")) {
			msg = elideMiddle(msg, width)
		}
		if !first {
			fmt.Fprintln(buf)
		}
		first = false
		fmt.Fprint(buf, msg)
	}
}

const elideMarker = "..."

// elideMiddle elides msg in the middle to fit in width.
// SGR escape sequences are dropped from an elided msg.
func elideMiddle(msg string, width int) string {
	if width <= len(elideMarker)+1 || len(msg) < width {
		return msg
	}
	plain := StripANSIEscapeCodes(msg)
	if len(plain) < width {
		return msg
	}
	n := (width - len(elideMarker) - 1) / 2
	return plain[:n] + elideMarker + plain[len(plain)-n:]
}

// SGRCode is a SGR (select graphic rendition) parameter.
// https://en.wikipedia.org/wiki/ANSI_escape_code#SGR_(Select_Graphic_Rendition)_parameters
type SGRCode int

const (
	Red SGRCode = iota
	Yellow
	Reset
)

var sgrEscSeq = map[SGRCode]string{
	Red:    "\033[31;1m",
	Yellow: "\033[33m",
	Reset:  "\033[0m",
}

func (s SGRCode) String() string {
	return sgrEscSeq[s]
}

// SGR formats s in SGR (select graphic rendition).
func SGR(n SGRCode, s string) string {
	return n.String() + s + Reset.String()
}

// StripANSIEscapeCodes strips CSI escape sequences.
func StripANSIEscapeCodes(s string) string {
	if !strings.Contains(s, "\033") {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\033' {
			sb.WriteByte(s[i])
			continue
		}
		if i+1 >= len(s) || s[i+1] != '[' {
			continue
		}
		// skip to the final byte in [a-zA-Z].
		i += 2
		for i < len(s) && !isFinalByte(s[i]) {
			i++
		}
	}
	return sb.String()
}

func isFinalByte(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}
