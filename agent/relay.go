package agent

import (
	"context"
	"sync"

	"github.com/hupe1980/adkpatterns/core"
)

// relay runs a child agent on a private emit/resume pair and forwards its
// events to the parent context one at a time. The mutex is shared by
// siblings running concurrently, so the parent's single resume signal is
// never consumed by two forwards at once.
//
// parent may carry a context that ends early (a failed sibling). Once an
// event has been sent, the relay waits for its resume signal under owner,
// the context that owns the resume channel, so no signal is left behind
// for owner's next emit.
type relay struct {
	parent  *core.RunContext
	owner   *core.RunContext
	mu      *sync.Mutex
	branch  string
	observe func(core.Event)
}

func (r relay) forward(ev core.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.parent.EmitEvent(ev); err != nil {
		return err
	}

	if ev.IsPartial() {
		return nil
	}

	owner := r.owner
	if owner == nil {
		owner = r.parent
	}

	return owner.WaitForResume()
}

func (r relay) run(child core.Agent) error {
	ctx, cancel := context.WithCancel(r.parent.Context)
	defer cancel()

	emit := make(chan core.Event, 16)
	resume := make(chan struct{}, 1)

	childCtx := r.parent.NewChildContext(emit, resume, r.branch)
	childCtx.Context = ctx

	done := make(chan error, 1)

	go func() {
		defer close(emit)
		done <- child.Run(childCtx)
	}()

	var forwardErr error

	for ev := range emit {
		if forwardErr != nil {
			continue
		}

		if r.observe != nil {
			r.observe(ev)
		}

		if err := r.forward(ev); err != nil {
			forwardErr = err
			cancel()

			continue
		}

		if !ev.IsPartial() {
			select {
			case resume <- struct{}{}:
			case <-ctx.Done():
			}
		}
	}

	err := <-done
	if forwardErr != nil {
		return forwardErr
	}

	return err
}
