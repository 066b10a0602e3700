// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package compdb provides the compilation database model, its ingestion
// from compile_commands.json and its serialization.
package compdb

import (
	"encoding/json"
	"io"
)

// BuildRecord is a compiler invocation of a build.
type BuildRecord struct {
	// File is an absolute path of the source file.
	File string
	// Directory is an absolute path of the working directory.
	Directory string
	// Arguments is the command line.
	Arguments []string
	// Command is the original command line string, if the record
	// was given as a command.
	Command string
	// Output is the output file, if known.
	Output string
	// Compiler is the compiler, i.e. Arguments[0].
	Compiler string
}

// Entry is an entry of compilation database.
type Entry struct {
	Directory string   `json:"directory"`
	File      string   `json:"file"`
	Command   string   `json:"command,omitempty"`
	Arguments []string `json:"arguments,omitempty"`
	Output    string   `json:"output,omitempty"`
	// Headers are project headers the file includes.
	Headers []string `json:"headers,omitempty"`
}

func newEntry(rec BuildRecord) Entry {
	ent := Entry{
		Directory: rec.Directory,
		File:      rec.File,
		Output:    rec.Output,
	}
	if rec.Command != "" {
		ent.Command = rec.Command
	} else {
		ent.Arguments = rec.Arguments
	}
	return ent
}

// Database is a compilation database.
type Database struct {
	Entries []Entry
}

// Len returns the number of entries.
func (db *Database) Len() int {
	if db == nil {
		return 0
	}
	return len(db.Entries)
}

// WriteJSON writes db in compile_commands.json format.
func (db *Database) WriteJSON(w io.Writer) error {
	entries := []Entry{}
	if db != nil && db.Entries != nil {
		entries = db.Entries
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(entries)
}
