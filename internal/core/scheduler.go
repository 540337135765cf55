package core

/*
rxsub — concurrent subdomain discovery from wordlists and Certificate Transparency logs
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/x-stp/rxsub/internal/metrics"
)

// SchedulerConfig sizes the worker pool.
type SchedulerConfig struct {
	// Workers is the number of worker goroutines, capped at MaxWorkers.
	Workers int
	// Rate is the total callbacks per second across the pool; 0 means unlimited.
	Rate float64
	// Burst is the limiter burst; 0 means 1.
	Burst int
	// PinWorkers binds each worker's OS thread to a CPU core (Linux only).
	PinWorkers bool
	// QueueSize is the shared queue capacity; 0 means WorkerQueueCapacity per worker.
	QueueSize int
}

// Scheduler manages a pool of worker goroutines fed from one shared queue.
// Any idle worker takes the next item, so a slow item only ever holds up the
// worker running it.
type Scheduler struct {
	numWorkers   int
	workers      []*worker
	queue        chan *WorkItem
	limiter      *rate.Limiter
	ctx          context.Context
	cancel       context.CancelFunc
	shutdown     atomic.Bool
	submitMu     sync.RWMutex // held for read while sending, for write while closing the queue
	workItemPool sync.Pool
	activeWork   sync.WaitGroup
	running      sync.WaitGroup
}

type worker struct {
	id          int
	cpuAffinity int
	pin         bool
	scheduler   *Scheduler
}

// NewScheduler creates and starts the scheduler and its worker pool.
func NewScheduler(parentCtx context.Context, cfg SchedulerConfig) *Scheduler {
	numWorkers := cfg.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > MaxWorkers {
		numWorkers = MaxWorkers
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = numWorkers * WorkerQueueCapacity
	}

	sctx, cancel := context.WithCancel(parentCtx)
	s := &Scheduler{
		numWorkers: numWorkers,
		workers:    make([]*worker, numWorkers),
		queue:      make(chan *WorkItem, queueSize),
		ctx:        sctx,
		cancel:     cancel,
		workItemPool: sync.Pool{
			New: func() interface{} {
				return &WorkItem{}
			},
		},
	}
	if cfg.Rate > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
	}

	for i := 0; i < numWorkers; i++ {
		w := &worker{
			id:          i,
			cpuAffinity: i % runtime.NumCPU(),
			pin:         cfg.PinWorkers,
			scheduler:   s,
		}
		s.workers[i] = w
		s.running.Add(1)
		go w.run()
	}

	logrus.Debugf("Scheduler initialized with %d workers (rate %.1f/s, pinned %v)", numWorkers, cfg.Rate, cfg.PinWorkers)
	return s
}

// NumWorkers returns the size of the pool.
func (s *Scheduler) NumWorkers() int { return s.numWorkers }

// run takes items from the shared queue until Shutdown closes it.
func (w *worker) run() {
	defer w.scheduler.running.Done()
	if w.pin {
		setAffinity(w.id, w.cpuAffinity)
	}

	for item := range w.scheduler.queue {
		w.process(item)
		item.Callback = nil
		item.Ctx = nil
		item.Key = ""
		w.scheduler.workItemPool.Put(item)
	}
}

func (w *worker) process(item *WorkItem) {
	defer w.scheduler.activeWork.Done()
	defer func() {
		if r := recover(); r != nil {
			metrics.GetMetrics().IncPanic("worker")
			logrus.Errorf("Panic recovered in worker %d processing %s: %v", w.id, item.Key, r)
		}
	}()

	// Cancelled items are drained without running so Wait can return.
	if w.scheduler.ctx.Err() != nil || item.Ctx.Err() != nil {
		return
	}

	if l := w.scheduler.limiter; l != nil {
		start := time.Now()
		if err := l.Wait(item.Ctx); err != nil {
			return
		}
		metrics.GetMetrics().ObserveRateLimitWait(time.Since(start))
	}

	if err := item.Callback(item); err != nil {
		logrus.Debugf("Error processing %s: %v", item.Key, err)
	}
}

func (s *Scheduler) newItem(ctx context.Context, key string, callback WorkCallback) *WorkItem {
	item := s.workItemPool.Get().(*WorkItem)
	item.Key = key
	item.Callback = callback
	item.Ctx = ctx
	item.CreatedAt = time.Now()
	return item
}

func (s *Scheduler) release(item *WorkItem) {
	s.activeWork.Done()
	item.Callback = nil
	item.Ctx = nil
	s.workItemPool.Put(item)
}

// TrySubmit queues a work item without blocking. It returns ErrQueueFull
// when the queue is at capacity.
func (s *Scheduler) TrySubmit(ctx context.Context, key string, callback WorkCallback) error {
	s.submitMu.RLock()
	defer s.submitMu.RUnlock()
	if s.shutdown.Load() {
		return ErrSchedulerShutdown
	}

	item := s.newItem(ctx, key, callback)
	s.activeWork.Add(1)
	select {
	case s.queue <- item:
		return nil
	default:
		s.release(item)
		metrics.GetMetrics().IncBackpressure()
		return fmt.Errorf("queueing %s: %w", key, ErrQueueFull)
	}
}

// SubmitWork queues a work item, blocking while the queue is full until ctx
// is done or the scheduler shuts down.
func (s *Scheduler) SubmitWork(ctx context.Context, key string, callback WorkCallback) error {
	s.submitMu.RLock()
	defer s.submitMu.RUnlock()
	if s.shutdown.Load() {
		return ErrSchedulerShutdown
	}

	item := s.newItem(ctx, key, callback)
	s.activeWork.Add(1)
	select {
	case s.queue <- item:
		return nil
	case <-ctx.Done():
		s.release(item)
		return ctx.Err()
	case <-s.ctx.Done():
		s.release(item)
		return ErrSchedulerShutdown
	}
}

// Wait waits until all submitted work items have been processed.
func (s *Scheduler) Wait() {
	s.activeWork.Wait()
}

// Shutdown stops accepting work, cancels pending items and waits for the
// workers to exit. It is safe to call more than once.
func (s *Scheduler) Shutdown() {
	if !s.shutdown.CompareAndSwap(false, true) {
		return
	}
	logrus.Debug("Scheduler shutting down...")
	// Cancel first so submitters blocked on a full queue release the read lock.
	s.cancel()
	s.submitMu.Lock()
	close(s.queue)
	s.submitMu.Unlock()
	s.running.Wait()
	logrus.Debug("Scheduler stopped.")
}
