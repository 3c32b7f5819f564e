package wgpu

import "time"

// timerScope accumulates program execution time for one Time call.
type timerScope struct {
	total time.Duration
}

// Time runs f and reports how long the programs dispatched inside it spent
// executing on the device. With FLARE_DISJOINT_TIMER enabled each dispatch is
// timed individually: a timestamp-query bracket around the compute pass when
// the adapter supports it, host clock between completion barriers when not.
// The scope sums per-program durations. Without the flag the scope degrades
// to whole-scope wall clock behind a single trailing barrier. Scopes nest,
// and a nested scope's total folds into its parent.
func (b *Backend) Time(f func() error) (time.Duration, error) {
	scope := &timerScope{}
	b.timers = append(b.timers, scope)

	perProgram := b.ctx.flags.DisjointTimer > 0
	var err error
	if perProgram {
		err = f()
	} else {
		start := time.Now()
		err = f()
		b.ctx.RunBarrier()
		scope.total = time.Since(start)
	}

	b.timers = b.timers[:len(b.timers)-1]
	if perProgram && len(b.timers) > 0 {
		b.timers[len(b.timers)-1].total += scope.total
	}
	return scope.total, err
}
