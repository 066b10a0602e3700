// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scandeps

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	log "github.com/golang/glog"

	"go.chromium.org/infra/build/compdb/o11y/clog"
)

// Kind is a kind of directive.
type Kind int

const (
	// Include is `#include` or `#import`.
	Include Kind = iota
	// IncludeNext is `#include_next`.
	IncludeNext
	// Define is `#define` of a macro usable in `#include MACRO`.
	Define
)

// Form is a form of include target.
type Form int

const (
	// Quoted is `"foo.h"`.
	Quoted Form = iota
	// Angle is `<foo.h>`.
	Angle
	// Macro is `FOO_H`.
	Macro
)

// Directive is a raw preprocessor directive found by CPPScan.
type Directive struct {
	Kind Kind
	Form Form
	// Name is include target without delimiters, or macro name for Define.
	Name string
	// Value is a macro value for Define, e.g. `"foo.h"`, `<foo.h>` or `FOO_H`.
	Value string
	// Line is 1-based line number.
	Line int
}

// Spelling returns the include target as written, e.g. `"foo.h"`.
func (d Directive) Spelling() string {
	switch d.Form {
	case Quoted:
		return `"` + d.Name + `"`
	case Angle:
		return "<" + d.Name + ">"
	}
	return d.Name
}

// String returns the directive as source text.
func (d Directive) String() string {
	switch d.Kind {
	case IncludeNext:
		return "#include_next " + d.Spelling()
	case Define:
		return fmt.Sprintf("#define %s %s", d.Name, d.Value)
	}
	return "#include " + d.Spelling()
}

// condFrame is a state of one #if group.
type condFrame struct {
	// known is true if the condition of the group is a literal.
	known bool
	// taken is true if a branch of the known group was taken.
	taken bool
	// active is true if the current branch is active.
	active bool
}

// CPPScan returns a lazy sequence of #include and #define directives in buf,
// in file order.
// Directives in block comments and in inactive `#if 0` branches are skipped.
func CPPScan(ctx context.Context, fname string, buf []byte) iter.Seq[Directive] {
	return func(yield func(Directive) bool) {
		started := time.Now()
		defer func() {
			if dur := time.Since(started); dur > time.Second {
				clog.Infof(ctx, "slow cppScan %s %s", fname, dur)
			}
		}()
		var conds []condFrame
		active := func() bool {
			for _, c := range conds {
				if !c.active {
					return false
				}
			}
			return true
		}
		inComment := false
		lineno := 0
		for len(buf) > 0 {
			var line []byte
			i := bytes.IndexByte(buf, '\n')
			if i < 0 {
				line, buf = buf, nil
			} else {
				line, buf = buf[:i], buf[i+1:]
			}
			lineno++
			startLine := lineno
			contComment := inComment
			line, inComment = stripComments(line, inComment)
			line = bytes.TrimSpace(line)
			if contComment || len(line) == 0 || line[0] != '#' {
				// a directive must start a line, not follow
				// a comment continued from the previous line.
				continue
			}
			// join continuation lines of the directive.
			for bytes.HasSuffix(line, []byte{'\\'}) && len(buf) > 0 {
				var next []byte
				i := bytes.IndexByte(buf, '\n')
				if i < 0 {
					next, buf = buf, nil
				} else {
					next, buf = buf[:i], buf[i+1:]
				}
				lineno++
				next, inComment = stripComments(next, inComment)
				joined := make([]byte, 0, len(line)+len(next))
				joined = append(joined, line[:len(line)-1]...)
				joined = append(joined, next...)
				line = bytes.TrimSpace(joined)
			}
			name, rest := directiveName(line[1:])
			switch name {
			case "if":
				conds = append(conds, newCondFrame(rest))
				continue
			case "ifdef", "ifndef":
				conds = append(conds, condFrame{active: true})
				continue
			case "elif", "elifdef", "elifndef":
				if len(conds) > 0 {
					c := &conds[len(conds)-1]
					switch {
					case !c.known:
						c.active = true
					case c.taken:
						c.active = false
					default:
						f := newCondFrame(rest)
						if name != "elif" {
							f = condFrame{active: true}
						}
						c.known = f.known
						c.taken = f.taken
						c.active = f.active
					}
				}
				continue
			case "else":
				if len(conds) > 0 {
					c := &conds[len(conds)-1]
					if c.known {
						c.active = !c.taken
						c.taken = true
					} else {
						c.active = true
					}
				}
				continue
			case "endif":
				if len(conds) > 0 {
					conds = conds[:len(conds)-1]
				}
				continue
			}
			if !active() {
				if log.V(3) {
					clog.Infof(ctx, "%s:%d: skip inactive %q", fname, startLine, line)
				}
				continue
			}
			var d Directive
			var ok bool
			switch name {
			case "include", "import":
				d, ok = parseInclude(Include, rest)
			case "include_next":
				d, ok = parseInclude(IncludeNext, rest)
			case "define":
				d, ok = parseDefine(rest)
			default:
				continue
			}
			if !ok {
				if log.V(2) {
					clog.Infof(ctx, "%s:%d: skip %q", fname, startLine, line)
				}
				continue
			}
			d.Line = startLine
			if !yield(d) {
				return
			}
		}
	}
}

// Collect returns all directives in buf.
func Collect(ctx context.Context, fname string, buf []byte) []Directive {
	var ds []Directive
	for d := range CPPScan(ctx, fname, buf) {
		ds = append(ds, d)
	}
	return ds
}

func newCondFrame(cond []byte) condFrame {
	switch string(bytes.TrimSpace(cond)) {
	case "0":
		return condFrame{known: true}
	case "1":
		return condFrame{known: true, taken: true, active: true}
	}
	return condFrame{active: true}
}

// directiveName splits a directive line (after '#') into name and rest.
func directiveName(line []byte) (string, []byte) {
	line = bytes.TrimLeft(line, " \t")
	i := 0
	for i < len(line) && isIdentChar(line[i]) {
		i++
	}
	return string(line[:i]), line[i:]
}

func parseInclude(kind Kind, rest []byte) (Directive, bool) {
	if len(rest) > 0 && rest[0] != ' ' && rest[0] != '\t' && rest[0] != '"' && rest[0] != '<' {
		// e.g. #includefoo
		return Directive{}, false
	}
	rest = bytes.TrimSpace(rest)
	if len(rest) == 0 {
		return Directive{}, false
	}
	switch rest[0] {
	case '"', '<':
		form := Quoted
		delim := byte('"')
		if rest[0] == '<' {
			form = Angle
			delim = '>'
		}
		i := bytes.IndexByte(rest[1:], delim)
		if i <= 0 {
			// unclosed or empty path.
			return Directive{}, false
		}
		return Directive{
			Kind: kind,
			Form: form,
			Name: string(rest[1 : i+1]),
		}, true
	}
	macro := identPrefix(rest)
	if macro == "" {
		return Directive{}, false
	}
	return Directive{
		Kind: kind,
		Form: Macro,
		Name: macro,
	}, true
}

func parseDefine(rest []byte) (Directive, bool) {
	rest = bytes.TrimSpace(rest)
	macro := identPrefix(rest)
	if macro == "" {
		return Directive{}, false
	}
	rest = rest[len(macro):]
	if len(rest) > 0 && rest[0] == '(' {
		// function-like macro.
		return Directive{}, false
	}
	value := MacroValue(string(bytes.TrimSpace(rest)))
	if value == "" {
		return Directive{}, false
	}
	return Directive{
		Kind:  Define,
		Name:  macro,
		Value: value,
	}, true
}

// MacroValue returns the include target of a macro definition value,
// i.e. `"path.h"`, `<path.h>` or a single identifier token.
// It returns "" if the value can't be used in `#include MACRO`.
func MacroValue(v string) string {
	if v == "" {
		return ""
	}
	switch v[0] {
	case '"', '<':
		delim := byte('"')
		if v[0] == '<' {
			delim = '>'
		}
		i := strings.IndexByte(v[1:], delim)
		if i <= 0 {
			return ""
		}
		return v[:i+2]
	}
	ident := identPrefix([]byte(v))
	if ident == "" || len(strings.TrimSpace(v[len(ident):])) > 0 {
		// not a single token.
		return ""
	}
	if ident[0] >= '0' && ident[0] <= '9' {
		return ""
	}
	return ident
}

func identPrefix(b []byte) string {
	i := 0
	for i < len(b) && isIdentChar(b[i]) {
		i++
	}
	if i == 0 || (b[0] >= '0' && b[0] <= '9') {
		return ""
	}
	return string(b[:i])
}

func isIdentChar(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}

// stripComments removes comments from line.
// inComment reports whether line starts inside a block comment,
// and the returned bool reports whether the next line does.
func stripComments(line []byte, inComment bool) ([]byte, bool) {
	if !inComment && bytes.IndexByte(line, '/') < 0 {
		return line, false
	}
	var out []byte
	start := 0
	if inComment {
		i := bytes.Index(line, []byte("*/"))
		if i < 0 {
			return nil, true
		}
		start = i + 2
		out = make([]byte, 0, len(line))
	}
	var quote byte
	for i := start; i < len(line); i++ {
		ch := line[i]
		if quote != 0 {
			switch ch {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch ch {
		case '"', '\'':
			// an unterminated quote, e.g. in `#error don't`,
			// is a lone character.
			if closingQuote(line[i+1:], ch) >= 0 {
				quote = ch
			}
			continue
		case '/':
		default:
			continue
		}
		if i+1 >= len(line) {
			break
		}
		switch line[i+1] {
		case '/':
			out = append(out, line[start:i]...)
			return out, false
		case '*':
			out = append(out, line[start:i]...)
			out = append(out, ' ')
			j := bytes.Index(line[i+2:], []byte("*/"))
			if j < 0 {
				return out, true
			}
			start = i + 2 + j + 2
			i = start - 1
		}
	}
	if out == nil {
		return line[start:], false
	}
	return append(out, line[start:]...), false
}

// closingQuote returns the index of the quote q that closes a literal
// in s, or -1 if the literal is not closed in s.
func closingQuote(s []byte, q byte) int {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case q:
			return i
		}
	}
	return -1
}
