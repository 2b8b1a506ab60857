package goCtrl

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// AuditRecord describes one outbound controller call. Context values have
// already passed through the masker by the time a record exists; an
// unmasked record is never handed to a sink.
type AuditRecord struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action"`
	Resource  string         `json:"resource"`
	Context   map[string]any `json:"context,omitempty"`
}

// AuditSink receives records from the dispatcher, off the caller's request
// path. Emit must tolerate being called concurrently with Close of the
// owning Client; delivery failures are the sink's to absorb.
type AuditSink interface {
	Emit(ctx context.Context, record AuditRecord)
}

// NoOpSink discards every record.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditRecord) {}

// ChannelSink hands records to a consumer-owned channel. Useful in tests
// and for custom shippers.
type ChannelSink struct {
	records chan AuditRecord
}

// NewChannelSink builds a sink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		records: make(chan AuditRecord, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, record AuditRecord) {
	select {
	case s.records <- record:
	case <-ctx.Done():
	}
}

// Records exposes the receiving side of the sink.
func (s *ChannelSink) Records() <-chan AuditRecord {
	return s.records
}

// JSONWriterSink writes one JSON record per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink builds a line-delimited JSON sink over w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, record AuditRecord) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(record)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// RedisQueueSink pushes records onto a capped Redis list for batched
// consumption. When Redis is down it falls back to a single direct POST to
// the controller's log-ingestion endpoint; if that also fails the record
// is dropped. One fallback attempt is the whole retry budget — audit
// delivery is never allowed to loop.
type RedisQueueSink struct {
	rdb        redis.Cmdable
	key        string
	maxLen     int64
	fallback   Doer // raw transport; its log-ingestion calls are audit-excluded
	ingestPath string
	timeout    time.Duration
	log        *zap.Logger
}

// NewRedisQueueSink builds the queue sink. fallback may be nil, in which
// case records are dropped when Redis is unavailable.
func NewRedisQueueSink(rdb redis.Cmdable, key string, maxLen int64, fallback Doer, ingestPath string, timeout time.Duration, log *zap.Logger) *RedisQueueSink {
	if key == "" {
		key = "goctrl:audit:queue"
	}
	if maxLen <= 0 {
		maxLen = 10000
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisQueueSink{
		rdb:        rdb,
		key:        key,
		maxLen:     maxLen,
		fallback:   fallback,
		ingestPath: ingestPath,
		timeout:    timeout,
		log:        log.Named("auditqueue"),
	}
}

func (s *RedisQueueSink) Emit(ctx context.Context, record AuditRecord) {
	if s == nil {
		return
	}
	data, err := json.Marshal(record)
	if err != nil {
		return
	}

	if s.rdb != nil {
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		pipe := s.rdb.Pipeline()
		pipe.LPush(cctx, s.key, data)
		pipe.LTrim(cctx, s.key, 0, s.maxLen-1)
		_, err = pipe.Exec(cctx)
		cancel()
		if err == nil {
			return
		}
		s.log.Debug("audit queue push failed, trying ingestion fallback", zap.Error(err))
	}

	if s.fallback == nil || s.ingestPath == "" {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.fallback.Do(cctx, Request{Method: "POST", Path: s.ingestPath, Body: record}); err != nil {
		s.log.Debug("audit ingestion fallback failed, record dropped", zap.Error(err))
	}
}
