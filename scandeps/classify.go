// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scandeps

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Class is a classification of a header path.
type Class int

const (
	// Project is a header that belongs to the project.
	Project Class = iota
	// System is a header under one of the system roots.
	System
)

// String returns the name of the class.
func (c Class) String() string {
	switch c {
	case Project:
		return "project"
	case System:
		return "system"
	}
	return fmt.Sprintf("Class(%d)", int(c))
}

// MarshalText implements encoding.TextMarshaler.
func (c Class) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Class) UnmarshalText(b []byte) error {
	switch string(b) {
	case "project":
		*c = Project
	case "system":
		*c = System
	default:
		return fmt.Errorf("unknown class %q", b)
	}
	return nil
}

// Classifier classifies absolute paths into Project or System
// by configured system root prefixes.
type Classifier struct {
	roots []string
}

// NewClassifier creates a classifier for the system roots.
// Roots must be absolute paths.
func NewClassifier(roots []string) (*Classifier, error) {
	c := &Classifier{}
	seen := make(map[string]bool)
	for _, root := range roots {
		if root == "" {
			continue
		}
		if !filepath.IsAbs(root) {
			return nil, fmt.Errorf("system root %q is not absolute", root)
		}
		root = filepath.Clean(root)
		if seen[root] {
			continue
		}
		seen[root] = true
		c.roots = append(c.roots, root)
	}
	sort.Strings(c.roots)
	return c, nil
}

// Roots returns sorted system roots.
func (c *Classifier) Roots() []string {
	return c.roots
}

// Classify returns System if path is one of the roots or under them,
// Project otherwise.
func (c *Classifier) Classify(path string) Class {
	if c == nil {
		return Project
	}
	for _, root := range c.roots {
		if underDir(path, root) {
			return System
		}
	}
	return Project
}

func underDir(path, dir string) bool {
	if !strings.HasPrefix(path, dir) {
		return false
	}
	if len(path) == len(dir) {
		return true
	}
	if strings.HasSuffix(dir, string(filepath.Separator)) {
		// root directory, e.g. "/"
		return true
	}
	return path[len(dir)] == filepath.Separator
}
