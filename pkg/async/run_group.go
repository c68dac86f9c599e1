// Package async runs a group of long running functions and stops all of them when one fails
// or Stop is called.
package async

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/tryfix/log"
)

// Fn is a function that can be run asynchronously.
type Fn func(*Opts) error

// Opts is handed to every Fn of a RunGroup.
type Opts struct {
	stopping  <-chan struct{}
	readyOnce sync.Once
	ready     chan struct{}
}

// Stopping is closed when the function should return.
func (opts *Opts) Stopping() <-chan struct{} {
	return opts.stopping
}

// Ready signals that the function finished its bootstrap (eg: the first refresh).
func (opts *Opts) Ready() {
	opts.readyOnce.Do(func() {
		close(opts.ready)
	})
}

var ErrInterrupted = errors.New(`interrupted`)

type RunGroup struct {
	fns      []Fn
	opts     []*Opts
	stopping chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
	mu       sync.Mutex
	err      error
	logger   log.Logger
}

func NewRunGroup(logger log.Logger, fns ...Fn) *RunGroup {
	g := &RunGroup{
		stopping: make(chan struct{}),
		stopped:  make(chan struct{}),
		logger:   logger.NewLog(log.Prefixed(`run-group`)),
	}
	for _, fn := range fns {
		g.Add(fn)
	}

	return g
}

// Add registers fn. Functions cannot be added once Run was called.
func (g *RunGroup) Add(fn Fn) *RunGroup {
	g.fns = append(g.fns, fn)
	g.opts = append(g.opts, &Opts{
		stopping: g.stopping,
		ready:    make(chan struct{}),
	})

	return g
}

// Run starts every function on its own goroutine and blocks until all of them returned. The
// first error returned by any function stops the group and is returned.
func (g *RunGroup) Run() error {
	wg := new(sync.WaitGroup)
	wg.Add(len(g.fns))

	for i, fn := range g.fns {
		go func(fn Fn, opts *Opts) {
			defer wg.Done()
			// a returning function never blocks Ready
			defer opts.Ready()
			defer g.recoverPanic()

			if err := fn(opts); err != nil {
				g.fail(err)
			}
		}(fn, g.opts[i])
	}

	wg.Wait()
	close(g.stopped)

	g.mu.Lock()
	defer g.mu.Unlock()

	return g.err
}

func (g *RunGroup) recoverPanic() {
	if r := recover(); r != nil {
		g.logger.Error(fmt.Sprintf(`panic: %v`, r), string(debug.Stack()))
		g.fail(fmt.Errorf(`panic: %v`, r))
	}
}

func (g *RunGroup) fail(err error) {
	g.mu.Lock()
	if g.err == nil {
		g.err = err
	}
	g.mu.Unlock()

	g.shutDown(err)
}

func (g *RunGroup) shutDown(err error) {
	g.stopOnce.Do(func() {
		if err != nil {
			g.logger.Error(fmt.Sprintf(`processes stopping due to %s`, err))
		} else {
			g.logger.Info(`interrupted, processes stopping...`)
		}
		close(g.stopping)
	})
}

// Ready blocks until every function called Ready or returned. It returns ErrInterrupted
// when the group was stopped before that.
func (g *RunGroup) Ready() error {
	for _, opts := range g.opts {
		<-opts.ready
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}

	select {
	case <-g.stopping:
		return ErrInterrupted
	default:
		return nil
	}
}

// Stop signals every function to return and waits until Run completes.
func (g *RunGroup) Stop() {
	g.shutDown(nil)
	<-g.stopped
	g.logger.Info(`processes stopped`)
}
