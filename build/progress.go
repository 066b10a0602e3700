// Copyright 2026 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package build

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.chromium.org/infra/build/compdb/ui"
)

type progress struct {
	started time.Time
	total   int
	stats   *stats

	mu      sync.Mutex
	current string

	done          chan struct{}
	updateStopped chan struct{}
}

func (p *progress) start(ctx context.Context, total int, s *stats) {
	p.started = time.Now()
	p.total = total
	p.stats = s
	p.done = make(chan struct{})
	p.updateStopped = make(chan struct{})
	go p.update(ctx)
}

// setCurrent sets the file being resolved.
func (p *progress) setCurrent(fname string) {
	p.mu.Lock()
	p.current = fname
	p.mu.Unlock()
}

func (p *progress) update(ctx context.Context) {
	defer close(p.updateStopped)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !ui.IsTerminal() {
				continue
			}
			p.mu.Lock()
			current := p.current
			p.mu.Unlock()
			ui.Default.PrintLines(p.msg(current))
		}
	}
}

func (p *progress) msg(current string) string {
	msg := fmt.Sprintf("[%d/%d] %s", p.stats.done.Load(), p.total, ui.FormatDuration(time.Since(p.started)))
	if n := p.stats.partial.Load(); n > 0 {
		msg += " " + ui.SGR(ui.Yellow, fmt.Sprintf("partial:%d", n))
	}
	if n := p.stats.failed.Load(); n > 0 {
		msg += " " + ui.SGR(ui.Red, fmt.Sprintf("failed:%d", n))
	}
	if current != "" {
		msg += " " + current
	}
	return msg
}

func (p *progress) stop() {
	close(p.done)
	<-p.updateStopped
	if ui.IsTerminal() {
		ui.Default.PrintLines(p.msg(""))
	}
}
