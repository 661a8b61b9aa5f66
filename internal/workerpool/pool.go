// Package workerpool runs CPU-bound work on a fixed number of goroutines so
// request intake does not compete with rendering for CPU.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/wb-go/wbf/zlog"
)

var ErrStopped = errors.New("worker pool is stopped")

type task struct {
	fn   func() error
	done chan error
}

type Pool struct {
	size   int
	tasks  chan task
	quit   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// New makes a pool of size workers; size <= 0 means one per CPU.
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &Pool{
		size:  size,
		tasks: make(chan task),
		quit:  make(chan struct{}),
	}
}

func (p *Pool) Size() int {
	return p.size
}

func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.run(ctx)
	}
	zlog.Logger.Info().Int("workers", p.size).Msg("Render pool started")
}

// Stop rejects new tasks and waits for running ones to finish.
func (p *Pool) Stop() {
	p.once.Do(func() {
		close(p.quit)
		if p.cancel != nil {
			p.cancel()
		}
	})
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-p.tasks:
			t.done <- safeCall(t.fn)
		}
	}
}

// Submit blocks until a worker picks fn up and finishes it. If ctx ends
// first, ctx.Err() is returned; a task already running is not interrupted.
func (p *Pool) Submit(ctx context.Context, fn func() error) error {
	t := task{fn: fn, done: make(chan error, 1)}

	select {
	case <-p.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	case p.tasks <- t:
	}

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return fn()
}
