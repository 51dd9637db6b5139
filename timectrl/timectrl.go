package timectrl

import (
	"context"
	"sync"
	"time"
)

// Clock exposes the current discrete timestep. Components that only need
// to know "when" depend on this rather than on the controller.
type Clock interface {
	// Step returns the timestep currently being processed, or -1 before
	// the first one starts.
	Step() int
}

// Mode describes how the StepController advances timesteps.
type Mode int

const (
	// Accelerated runs the next step as soon as the previous one finishes.
	Accelerated Mode = iota
	// Paced waits Interval of wall-clock time between steps, e.g. for a
	// live rendering of the grid.
	Paced
)

// Listener is invoked once per timestep. Returning an error stops the run.
type Listener func(ctx context.Context, step int) error

// StepController drives timesteps 0..n-1 and notifies registered listeners
// in registration order. A step is fully processed before the next begins.
type StepController struct {
	mu       sync.RWMutex
	Mode     Mode
	Interval time.Duration

	current   int
	listeners []Listener
}

// NewStepController constructs a controller. Interval is only used in
// Paced mode.
func NewStepController(mode Mode, interval time.Duration) *StepController {
	return &StepController{
		Mode:     mode,
		Interval: interval,
		current:  -1,
	}
}

// Step returns the timestep in progress. Implements Clock.
func (sc *StepController) Step() int {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.current
}

// AddListener registers a callback invoked on every step.
func (sc *StepController) AddListener(fn Listener) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.listeners = append(sc.listeners, fn)
}

// Run processes steps timesteps synchronously. It returns ctx.Err() if the
// context is cancelled between steps, or the first listener error.
func (sc *StepController) Run(ctx context.Context, steps int) error {
	sc.mu.RLock()
	listeners := append([]Listener(nil), sc.listeners...)
	sc.mu.RUnlock()

	var ticker *time.Ticker
	if sc.Mode == Paced && sc.Interval > 0 {
		ticker = time.NewTicker(sc.Interval)
		defer ticker.Stop()
	}

	for step := 0; step < steps; step++ {
		if step > 0 && ticker != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		sc.mu.Lock()
		sc.current = step
		sc.mu.Unlock()

		for _, fn := range listeners {
			if err := fn(ctx, step); err != nil {
				return err
			}
		}
	}
	return nil
}

// Start runs the controller in a separate goroutine. The returned channel
// receives the result of Run and is then closed.
func (sc *StepController) Start(ctx context.Context, steps int) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- sc.Run(ctx, steps)
	}()
	return done
}
