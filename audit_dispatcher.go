package goCtrl

import (
	"context"
	"sync"
	"sync/atomic"
)

// auditDispatcher moves records from the request path to the configured
// sink on a dedicated goroutine. Emit never blocks the caller beyond a
// channel send; with DropIfFull set it never blocks at all.
type auditDispatcher struct {
	cfg       AuditConfig
	sink      AuditSink
	ch        chan AuditRecord
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		cfg:  cfg,
		sink: sink,
		ch:   make(chan AuditRecord, cfg.BufferSize),
		done: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *auditDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case record := <-d.ch:
			d.deliver(record)
		case <-d.done:
			for {
				select {
				case record := <-d.ch:
					d.deliver(record)
				default:
					return
				}
			}
		}
	}
}

// deliver shields the dispatcher goroutine from sink panics; a failed
// delivery is discarded, never retried here.
func (d *auditDispatcher) deliver(record AuditRecord) {
	defer func() { _ = recover() }()
	d.sink.Emit(context.Background(), record)
}

// Emit enqueues a record for delivery. Safe for concurrent use; a nil or
// closed dispatcher silently discards.
func (d *auditDispatcher) Emit(ctx context.Context, record AuditRecord) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- record:
		case <-d.done:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.ch <- record:
	case <-ctx.Done():
	case <-d.done:
	}
}

// Close drains buffered records into the sink and stops the goroutine.
// Idempotent.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped reports how many records were discarded because the buffer was
// full.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
