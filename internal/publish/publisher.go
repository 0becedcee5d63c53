// Package publish delivers finalized lead messages to a broker. Every
// message is either acknowledged by the broker or written to exactly one
// fallback file holding the same bytes, so it can be replayed later.
package publish

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/resilience"
)

// Defaults applied to zero Options fields.
const (
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = time.Second
	DefaultFallbackDir    = "fallback_queue"
)

// Options configures a Publisher.
type Options struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	FallbackDir    string
}

// Delivery is the outcome of one publish.
type Delivery struct {
	Sent     bool
	Fallback *FallbackRecord
}

// Publisher sends messages through a Broker, falling back to a FallbackQueue.
type Publisher struct {
	broker   Broker
	fallback *FallbackQueue
	retry    resilience.RetryConfig
	now      func() time.Time

	// Deliveries hold the read lock; Flush takes the write lock to wait
	// for them. A WaitGroup cannot be shared by concurrent flushes.
	inflight sync.RWMutex
}

// New creates a Publisher and its fallback directory.
func New(broker Broker, opts Options) (*Publisher, error) {
	if broker == nil {
		return nil, eris.New("publish: broker is required")
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = DefaultInitialBackoff
	}
	if opts.FallbackDir == "" {
		opts.FallbackDir = DefaultFallbackDir
	}
	queue, err := NewFallbackQueue(opts.FallbackDir)
	if err != nil {
		return nil, err
	}
	return &Publisher{
		broker:   broker,
		fallback: queue,
		retry: resilience.RetryConfig{
			MaxAttempts:    opts.MaxAttempts,
			InitialBackoff: opts.InitialBackoff,
			MaxBackoff:     8 * opts.InitialBackoff,
			Multiplier:     2.0,
			ShouldRetry:    resilience.RetryUnlessCanceled,
		},
		now: time.Now,
	}, nil
}

// Queue returns the fallback queue.
func (p *Publisher) Queue() *FallbackQueue { return p.fallback }

// Publish reports whether msg was acknowledged by the broker. When it was
// not, the payload has been written to the fallback queue.
func (p *Publisher) Publish(ctx context.Context, msg model.LeadMessage) bool {
	d, err := p.Deliver(ctx, msg)
	if err != nil {
		zap.L().Error("publish: message lost", zap.String("entity_id", msg.Partner.EntityID), zap.Error(err))
	}
	return d.Sent
}

// Deliver marshals msg once and sends it with retries. On exhaustion the
// same bytes are written to the fallback queue. An error means neither the
// broker nor the fallback queue accepted the message.
func (p *Publisher) Deliver(ctx context.Context, msg model.LeadMessage) (Delivery, error) {
	p.inflight.RLock()
	defer p.inflight.RUnlock()

	payload, err := json.Marshal(msg)
	if err != nil {
		return Delivery{}, eris.Wrap(err, "publish: marshal message")
	}
	key := msg.Partner.EntityID
	log := zap.L().With(zap.String("entity_id", key), zap.String("job_id", msg.JobID))

	cfg := p.retry
	cfg.OnRetry = resilience.RetryLogger("broker", "send", zap.String("entity_id", key))
	sendErr := resilience.Do(ctx, cfg, func(ctx context.Context) error {
		return p.broker.Send(ctx, key, payload)
	})
	if sendErr == nil {
		log.Debug("publish: sent", zap.Int("bytes", len(payload)))
		return Delivery{Sent: true}, nil
	}

	rec, err := p.fallback.Write(msg.Partner.OrgName, payload, p.now())
	if err != nil {
		return Delivery{}, eris.Wrapf(err, "publish: fallback after send error: %v", sendErr)
	}
	log.Warn("publish: broker unavailable, wrote fallback file",
		zap.String("file", rec.FileName),
		zap.String("error_class", resilience.ClassifyError(sendErr)),
		zap.Error(sendErr),
	)
	return Delivery{Fallback: &rec}, nil
}

// Flush waits for in-flight publishes, then flushes the broker. Deliveries
// that start while Flush is waiting block until it has the lock.
func (p *Publisher) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.inflight.Lock()
		p.inflight.Unlock() //nolint:staticcheck // empty critical section waits for readers
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "publish: flush")
	}
	return p.broker.Flush(ctx)
}

// ReplayResult summarizes a replay of the fallback queue.
type ReplayResult struct {
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Remaining int `json:"remaining"`
}

// Replay re-sends every fallback record and deletes the ones the broker
// accepted. Records that fail stay in place for the next replay.
func (p *Publisher) Replay(ctx context.Context) (ReplayResult, error) {
	records, err := p.fallback.List()
	if err != nil {
		return ReplayResult{}, err
	}

	var res ReplayResult
	for _, rec := range records {
		if ctx.Err() != nil {
			res.Remaining = len(records) - res.Sent
			return res, eris.Wrap(ctx.Err(), "publish: replay canceled")
		}
		key := entityKey(rec.Payload)
		cfg := p.retry
		cfg.OnRetry = resilience.RetryLogger("broker", "replay", zap.String("file", rec.FileName))
		err := resilience.Do(ctx, cfg, func(ctx context.Context) error {
			return p.broker.Send(ctx, key, rec.Payload)
		})
		if err != nil {
			zap.L().Warn("publish: replay failed", zap.String("file", rec.FileName), zap.Error(err))
			res.Failed++
			continue
		}
		if err := p.fallback.Remove(rec); err != nil {
			return res, err
		}
		res.Sent++
	}
	res.Remaining = len(records) - res.Sent
	if err := p.broker.Flush(ctx); err != nil {
		return res, err
	}
	zap.L().Info("publish: replay complete",
		zap.Int("sent", res.Sent),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

func entityKey(payload []byte) string {
	var msg struct {
		Partner struct {
			EntityID string `json:"entity_id"`
		} `json:"partner"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		return ""
	}
	return msg.Partner.EntityID
}
