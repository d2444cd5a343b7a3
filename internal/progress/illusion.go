// Package progress renders upload progress.
//
// The remote addFile call reports nothing until it settles, so an Illusion
// advances a value on a fixed cadence toward a ceiling below 100. Only
// Run.Complete, called once the real call succeeded, reports 100.
package progress

import (
	"context"
	"sync"
	"time"

	"github.com/canfiles/canfiles/internal/constants"
)

// Illusion describes the ramp: linear from 0 to Ceiling over Ramp, sampled
// every Tick.
type Illusion struct {
	Tick    time.Duration
	Ramp    time.Duration
	Ceiling int
}

// DefaultIllusion is a 1.5s ramp to 95 sampled every 100ms.
func DefaultIllusion() Illusion {
	return Illusion{
		Tick:    constants.ProgressTickInterval,
		Ramp:    constants.ProgressRampDuration,
		Ceiling: constants.ProgressCeiling,
	}
}

// ValueAt returns the illusion's value after elapsed time. It is clamped to
// the ceiling, which is itself kept below 100.
func (il Illusion) ValueAt(elapsed time.Duration) int {
	ceiling := il.ceiling()
	if elapsed <= 0 {
		return 0
	}
	if il.Ramp <= 0 || elapsed >= il.Ramp {
		return ceiling
	}
	return int(int64(ceiling) * int64(elapsed) / int64(il.Ramp))
}

func (il Illusion) ceiling() int {
	switch {
	case il.Ceiling < 0:
		return 0
	case il.Ceiling >= constants.ProgressComplete:
		return constants.ProgressComplete - 1
	}
	return il.Ceiling
}

func (il Illusion) tick() time.Duration {
	if il.Tick <= 0 {
		return constants.ProgressTickInterval
	}
	return il.Tick
}

type runState int

const (
	running runState = iota
	completed
	discarded
)

// Run is one started illusion. It owns a goroutine and a ticker until
// Complete, Discard or Stop is called or its context ends.
type Run struct {
	il       Illusion
	onUpdate func(int)
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu    sync.Mutex
	value int
	state runState
}

// Start reports 0 and begins advancing. onUpdate is called from the run's
// goroutine for every increase and never after the run has been stopped.
func (il Illusion) Start(ctx context.Context, onUpdate func(int)) *Run {
	if onUpdate == nil {
		onUpdate = func(int) {}
	}
	r := &Run{
		il:       il,
		onUpdate: onUpdate,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	onUpdate(0)
	go r.loop(ctx, time.Now())
	return r
}

func (r *Run) loop(ctx context.Context, started time.Time) {
	defer close(r.done)

	ticker := time.NewTicker(r.il.tick())
	defer ticker.Stop()

	ceiling := r.il.ceiling()
	for {
		select {
		case <-r.stop:
			return
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			v := r.il.ValueAt(now.Sub(started))
			r.mu.Lock()
			advanced := v > r.value
			if advanced {
				r.value = v
			}
			r.mu.Unlock()
			if advanced {
				r.onUpdate(v)
			}
			if v >= ceiling {
				// Parked at the ceiling; the ticker has nothing left to do.
				ticker.Stop()
				select {
				case <-r.stop:
				case <-ctx.Done():
				}
				return
			}
		}
	}
}

// halt stops the goroutine and waits for it to exit.
func (r *Run) halt() {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
}

// Complete stops the ramp and reports 100. It does nothing on a run that
// was already discarded.
func (r *Run) Complete() {
	r.halt()

	r.mu.Lock()
	if r.state != running {
		r.mu.Unlock()
		return
	}
	r.state = completed
	r.value = constants.ProgressComplete
	r.mu.Unlock()

	r.onUpdate(constants.ProgressComplete)
}

// Discard stops the ramp without completing it. A discarded run can never
// reach 100.
func (r *Run) Discard() {
	r.halt()

	r.mu.Lock()
	if r.state == running {
		r.state = discarded
	}
	r.mu.Unlock()
}

// Stop releases the run. Safe to defer after Complete or Discard.
func (r *Run) Stop() {
	r.Discard()
}

// Value returns the last reported value.
func (r *Run) Value() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value
}

// Completed reports whether Complete ran.
func (r *Run) Completed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == completed
}
