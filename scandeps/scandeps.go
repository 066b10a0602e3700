// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scandeps

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	log "github.com/golang/glog"

	"go.chromium.org/infra/build/compdb/o11y/clog"
	"go.chromium.org/infra/build/compdb/o11y/iometrics"
)

// ErrUnreadableSource is returned when the source file can't be read.
var ErrUnreadableSource = errors.New("unreadable source")

// HeaderRef is a resolved header.
type HeaderRef struct {
	Path  string `json:"path"`
	Class Class  `json:"class"`
}

// Unresolved is an include directive that could not be resolved.
type Unresolved struct {
	// From is the file that has the directive.
	// It is empty if the directive is in the source file itself,
	// as a result is shared by sources with the same fingerprint.
	// See Result.ForSource.
	From string `json:"from"`
	// Line is 1-based line number of the directive in From.
	Line int `json:"line"`
	// Directive is the include target as written, e.g. `<foo.h>`.
	Directive string `json:"directive"`
}

func (u Unresolved) String() string {
	return fmt.Sprintf("%s:%d: %s", u.From, u.Line, u.Directive)
}

// Result is a resolution result of one compilation unit.
type Result struct {
	// Headers are resolved headers in discovery order.
	// System headers are included, but headers included from
	// system headers are not.
	Headers []HeaderRef `json:"headers,omitempty"`

	// Partial is true if some directive was not resolved.
	Partial bool `json:"partial,omitempty"`

	Unresolved []Unresolved `json:"unresolved,omitempty"`
}

// ForSource returns the result for the source file src, i.e.
// Unresolved.From of directives in the source file is set to src.
func (r *Result) ForSource(src string) *Result {
	if r == nil {
		return nil
	}
	i := slices.IndexFunc(r.Unresolved, func(u Unresolved) bool { return u.From == "" })
	if i < 0 {
		return r
	}
	nr := *r
	nr.Unresolved = slices.Clone(r.Unresolved)
	for i := range nr.Unresolved {
		if nr.Unresolved[i].From == "" {
			nr.Unresolved[i].From = src
		}
	}
	return &nr
}

// ProjectHeaders returns paths of project headers in the result.
func (r *Result) ProjectHeaders() []string {
	if r == nil {
		return nil
	}
	var hdrs []string
	for _, h := range r.Headers {
		if h.Class == Project {
			hdrs = append(hdrs, h.Path)
		}
	}
	return hdrs
}

// ScanDeps resolves header dependencies.
// It is safe for concurrent use, and shares file system
// lookups among resolutions.
type ScanDeps struct {
	fs         *filesystem
	classifier *Classifier
}

// New creates new ScanDeps with the classifier.
func New(classifier *Classifier) *ScanDeps {
	return &ScanDeps{
		fs:         newFilesystem(),
		classifier: classifier,
	}
}

// Classifier returns the classifier used by s.
func (s *ScanDeps) Classifier() *Classifier {
	return s.classifier
}

// IOStats returns file I/O metrics of s.
func (s *ScanDeps) IOStats() iometrics.Stats {
	return s.fs.m.Stats()
}

// Fingerprint returns the fingerprint of resolution of src with sp.
// It reads src, so it returns ErrUnreadableSource if src can't be read.
func (s *ScanDeps) Fingerprint(ctx context.Context, src string, sp SearchPath) (Fingerprint, error) {
	src = filepath.Clean(src)
	sr, err := s.fs.scan(ctx, src)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("%w: %w", ErrUnreadableSource, err)
	}
	return computeFingerprint(filepath.Dir(src), sr.digest, sp), nil
}

// Resolve resolves header dependencies of src, an absolute path of
// the source file, with the search path sp.
func (s *ScanDeps) Resolve(ctx context.Context, src string, sp SearchPath) (*Result, error) {
	r, _, err := s.ResolveInputs(ctx, src, sp)
	return r, err
}

// ResolveInputs is like Resolve, but also returns the stamps of the
// files the result depends on: src, the resolved headers, the header
// maps consulted, and the candidates that were probed and absent.
// The result is stale if any of them changes.
func (s *ScanDeps) ResolveInputs(ctx context.Context, src string, sp SearchPath) (*Result, []FileStamp, error) {
	src = filepath.Clean(src)
	t := &traversal{
		s:       s,
		src:     src,
		sp:      sp,
		macros:  sp.Macros(),
		visited: make(map[string]bool),
		foundAt: make(map[string]int),
		probed:  make(map[string]bool),
		result:  &Result{},
	}
	sr, err := s.fs.scan(ctx, src)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrUnreadableSource, err)
	}
	t.visited[src] = true
	t.foundAt[src] = -1
	for _, inc := range sp.Includes {
		err := t.forceInclude(ctx, src, inc)
		if err != nil {
			return nil, nil, err
		}
	}
	err = t.walk(ctx, src, sr)
	if err != nil {
		return nil, nil, err
	}
	t.result.Partial = len(t.result.Unresolved) > 0
	stamps := []FileStamp{sr.stamp}
	for _, p := range t.probes {
		if st, ok := s.fs.stamp(p); ok {
			stamps = append(stamps, st)
		}
	}
	if log.V(1) {
		clog.Infof(ctx, "resolve %s: headers=%d unresolved=%d inputs=%d", src, len(t.result.Headers), len(t.result.Unresolved), len(stamps))
	}
	return t.result, stamps, nil
}

// traversal is a state of one Resolve.
type traversal struct {
	s      *ScanDeps
	src    string
	sp     SearchPath
	macros map[string][]string

	// visited is keyed by absolute path.
	visited map[string]bool

	// foundAt is index of sp.Angle where the file was found,
	// or -1 if it was not found in sp.Angle.
	// used for #include_next.
	foundAt map[string]int

	// probes are the paths checked for existence, in order,
	// whether found or not.
	probed map[string]bool
	probes []string

	result *Result
}

// walk resolves includes in fname in file order, and descends into
// project headers.
func (t *traversal) walk(ctx context.Context, fname string, sr *scanResult) error {
	for _, d := range sr.directives {
		if err := ctx.Err(); err != nil {
			return context.Cause(ctx)
		}
		if d.Kind == Define {
			t.define(d)
			continue
		}
		names := t.expand(ctx, d)
		if len(names) == 0 {
			t.unresolved(fname, d)
			continue
		}
		resolved := false
		for _, name := range names {
			ok, err := t.include(ctx, fname, d.Kind, name)
			if err != nil {
				return err
			}
			resolved = resolved || ok
		}
		if !resolved {
			t.unresolved(fname, d)
		}
	}
	return nil
}

func (t *traversal) define(d Directive) {
	for _, v := range t.macros[d.Name] {
		if v == d.Value {
			return
		}
	}
	t.macros[d.Name] = append(t.macros[d.Name], d.Value)
}

// expand returns include directives that d expands to.
// Macro form may expand to several candidates, as #if is not evaluated.
func (t *traversal) expand(ctx context.Context, d Directive) []Directive {
	if d.Form != Macro {
		return []Directive{d}
	}
	var out []Directive
	seen := make(map[string]bool)
	var expand func(name string, depth int)
	expand = func(name string, depth int) {
		if depth > 16 || seen[name] {
			return
		}
		seen[name] = true
		for _, v := range t.macros[name] {
			switch v[0] {
			case '"':
				out = append(out, Directive{Kind: d.Kind, Form: Quoted, Name: v[1 : len(v)-1], Line: d.Line})
			case '<':
				out = append(out, Directive{Kind: d.Kind, Form: Angle, Name: v[1 : len(v)-1], Line: d.Line})
			default:
				expand(v, depth+1)
			}
		}
	}
	expand(d.Name, 0)
	if log.V(1) {
		clog.Infof(ctx, "expand %s -> %v", d.Name, out)
	}
	return out
}

func (t *traversal) unresolved(fname string, d Directive) {
	if fname == t.src {
		fname = ""
	}
	t.result.Unresolved = append(t.result.Unresolved, Unresolved{
		From:      fname,
		Line:      d.Line,
		Directive: d.Spelling(),
	})
}

// include resolves d included from fname, and descends into it if
// it is a project header not visited yet.
// It returns false if d is not found.
func (t *traversal) include(ctx context.Context, fname string, kind Kind, d Directive) (bool, error) {
	incpath, idx, err := t.find(ctx, fname, kind, d)
	if err != nil {
		return false, err
	}
	if incpath == "" {
		return false, nil
	}
	return true, t.visit(ctx, incpath, idx)
}

// forceInclude resolves -include file as if `#include "inc"` is in the
// first line of src, but searched from the working directory first.
func (t *traversal) forceInclude(ctx context.Context, src, inc string) error {
	d := Directive{Kind: Include, Form: Quoted, Name: inc}
	if !filepath.IsAbs(inc) && t.sp.WorkDir != "" {
		cand := filepath.Join(t.sp.WorkDir, inc)
		ok, err := t.probe(ctx, cand)
		if err != nil {
			return err
		}
		if ok {
			return t.visit(ctx, cand, -1)
		}
	}
	ok, err := t.include(ctx, src, Include, d)
	if err != nil {
		return err
	}
	if !ok {
		t.unresolved(src, d)
	}
	return nil
}

// probe reports whether fname exists, and records fname as an input
// of the result.
func (t *traversal) probe(ctx context.Context, fname string) (bool, error) {
	if !t.probed[fname] {
		t.probed[fname] = true
		t.probes = append(t.probes, fname)
	}
	return t.s.fs.exists(ctx, fname)
}

func (t *traversal) visit(ctx context.Context, incpath string, idx int) error {
	if t.visited[incpath] {
		return nil
	}
	t.visited[incpath] = true
	t.foundAt[incpath] = idx
	class := t.s.classifier.Classify(incpath)
	t.result.Headers = append(t.result.Headers, HeaderRef{
		Path:  incpath,
		Class: class,
	})
	if class == System {
		// system headers are leaves.
		return nil
	}
	sr, err := t.s.fs.scan(ctx, incpath)
	if err != nil {
		return fmt.Errorf("scan %s: %w", incpath, err)
	}
	return t.walk(ctx, incpath, sr)
}

// find finds the header for d included from fname.
// It returns the absolute path of the header and the index of
// sp.Angle where it was found (-1 if found elsewhere), or "" if not found.
func (t *traversal) find(ctx context.Context, fname string, kind Kind, d Directive) (string, int, error) {
	if filepath.IsAbs(d.Name) {
		ok, err := t.probe(ctx, filepath.Clean(d.Name))
		if err != nil || !ok {
			return "", -1, err
		}
		return filepath.Clean(d.Name), -1, nil
	}
	start := 0
	next := false
	if kind == IncludeNext {
		// #include_next in a file not found in the angle chain
		// works as #include.
		if idx, ok := t.foundAt[fname]; ok && idx >= 0 {
			start = idx + 1
			next = true
		}
	}
	if d.Form == Quoted && !next {
		dirs := make([]string, 0, len(t.sp.Quoted)+1)
		dirs = append(dirs, filepath.Dir(fname))
		dirs = append(dirs, t.sp.Quoted...)
		seen := make(map[string]bool, len(dirs))
		for _, dir := range dirs {
			if seen[dir] {
				continue
			}
			seen[dir] = true
			incpath, err := t.lookup(ctx, dir, d.Name)
			if err != nil {
				return "", -1, err
			}
			if incpath != "" {
				return incpath, -1, nil
			}
		}
	}
	for i := start; i < len(t.sp.Angle); i++ {
		incpath, err := t.lookup(ctx, t.sp.Angle[i], d.Name)
		if err != nil {
			return "", -1, err
		}
		if incpath != "" {
			return incpath, i, nil
		}
	}
	if log.V(1) {
		clog.Infof(ctx, "find %s from %s: not found", d.Spelling(), fname)
	}
	return "", -1, nil
}

// lookup returns the path of name in dir if it exists.
func (t *traversal) lookup(ctx context.Context, dir, name string) (string, error) {
	if filepath.Ext(dir) == ".hmap" {
		ok, err := t.probe(ctx, dir)
		if err != nil || !ok {
			return "", err
		}
		m, err := t.s.fs.headerMap(ctx, dir)
		if err != nil {
			// the compiler ignores broken header maps.
			if log.V(1) {
				clog.Infof(ctx, "hmap %s: %v", dir, err)
			}
			return "", nil
		}
		p, ok := m[name]
		if !ok {
			return "", nil
		}
		ok, err = t.probe(ctx, p)
		if err != nil || !ok {
			return "", err
		}
		return p, nil
	}
	p := filepath.Join(dir, name)
	ok, err := t.probe(ctx, p)
	if err != nil || !ok {
		return "", err
	}
	if log.V(2) {
		clog.Infof(ctx, "find %s in %s", name, dir)
	}
	return p, nil
}
