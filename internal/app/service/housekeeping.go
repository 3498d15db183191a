package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gammazero/workerpool"
)

// Housekeeper corre tareas de mantenimiento (sweep de ventanas de raid, etc)
// sobre un workerpool chico. No es un scheduler general.
type Housekeeper struct {
	pool *workerpool.WorkerPool
	log  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

func NewHousekeeper(workers int, log *slog.Logger) *Housekeeper {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Housekeeper{
		pool:   workerpool.New(workers),
		log:    log.With("component", "housekeeping"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Submit encola una tarea; devuelve false si el housekeeper ya se detuvo.
func (h *Housekeeper) Submit(name string, task func(ctx context.Context)) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return false
	}
	h.pool.Submit(func() { h.run(name, task) })
	return true
}

func (h *Housekeeper) run(name string, task func(ctx context.Context)) {
	defer func() {
		if rec := recover(); rec != nil {
			h.log.Error("task panicked", "task", name, "panic", rec)
		}
	}()
	start := time.Now()
	task(h.ctx)
	h.log.Debug("task done", "task", name, "took", time.Since(start))
}

// Every encola task cada interval. Si la corrida anterior sigue pendiente, el
// tick se saltea.
func (h *Housekeeper) Every(name string, interval time.Duration, task func(ctx context.Context)) {
	var busy atomic.Bool
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-h.ctx.Done():
				return
			case <-t.C:
				if !busy.CompareAndSwap(false, true) {
					continue
				}
				ok := h.Submit(name, func(ctx context.Context) {
					defer busy.Store(false)
					task(ctx)
				})
				if !ok {
					return
				}
			}
		}
	}()
}

// Stop corta los tickers y espera a que terminen las tareas encoladas.
func (h *Housekeeper) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	h.mu.Unlock()

	h.cancel()
	h.wg.Wait()
	h.pool.StopWait()
}
