package watch

import (
	"context"
	"log"
	"time"

	"github.com/TWRT/taskboard/internal/repository"
)

// RevisionSource is the change-detection half of a store.
type RevisionSource interface {
	LastModified(ctx context.Context) (repository.Revision, error)
}

// Poller checks a store's revision on a fixed interval and reports changes.
// It never applies them; the receiver does that on its own goroutine.
type Poller struct {
	source   RevisionSource
	interval time.Duration
	changes  chan repository.Revision
}

func NewPoller(source RevisionSource, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Poller{
		source:   source,
		interval: interval,
		changes:  make(chan repository.Revision, 1),
	}
}

// Changes delivers each new revision. It is closed when Run returns.
func (p *Poller) Changes() <-chan repository.Revision {
	return p.changes
}

// Run polls until ctx is cancelled. The first successful read sets the
// baseline and is not reported. Read errors are logged and retried on the
// next tick.
func (p *Poller) Run(ctx context.Context) {
	defer close(p.changes)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var last repository.Revision
	seen := false
	if rev, err := p.source.LastModified(ctx); err == nil {
		last, seen = rev, true
	} else {
		log.Printf("[poller] read revision: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		rev, err := p.source.LastModified(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("[poller] read revision: %v", err)
			}
			continue
		}
		if seen && rev == last {
			continue
		}
		last, seen = rev, true

		select {
		case p.changes <- rev:
		case <-ctx.Done():
			return
		}
	}
}
