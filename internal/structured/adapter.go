// Package structured asks an external language-model service for typed
// records and tolerates malformed replies. The service is treated as a
// fallible oracle: it is retried, guarded by a circuit breaker, and its
// replies go through a chain of increasingly lenient parsers.
package structured

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/resilience"
)

// DefaultMaxContentChars caps the content embedded in a prompt.
const DefaultMaxContentChars = 8000

// Service completes a prompt. schema is the JSON Schema the reply should
// satisfy; services may use it to constrain their output.
type Service interface {
	Complete(ctx context.Context, prompt string, schema []byte) (string, error)
}

// Request describes one extraction.
type Request struct {
	// Instructions tell the service what to extract.
	Instructions string
	// Content is the source text. It is truncated to MaxContentChars.
	Content string
	// Focus lists words used to keep the most relevant sections when
	// Content must be truncated.
	Focus string
	// FieldScrapers names string fields that may be scraped from a reply
	// that is not valid JSON.
	FieldScrapers []string
}

// Options configures an Adapter.
type Options struct {
	MaxAttempts     int
	MaxContentChars int
	Retry           *resilience.RetryConfig
}

// Adapter runs typed extractions against a Service.
type Adapter struct {
	svc        Service
	breaker    *resilience.CircuitBreaker
	retry      resilience.RetryConfig
	maxContent int
}

// NewAdapter creates an Adapter. A nil breaker gets a private one.
func NewAdapter(svc Service, opts Options, breaker *resilience.CircuitBreaker) *Adapter {
	retry := resilience.NewRetryConfig(opts.MaxAttempts, 500, 8000, 2.0, 0.25)
	if opts.Retry != nil {
		retry = *opts.Retry
		if opts.MaxAttempts > 0 {
			retry.MaxAttempts = opts.MaxAttempts
		}
	}
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker("extraction", resilience.DefaultCircuitBreakerConfig())
	}
	maxContent := opts.MaxContentChars
	if maxContent <= 0 {
		maxContent = DefaultMaxContentChars
	}
	return &Adapter{svc: svc, breaker: breaker, retry: retry, maxContent: maxContent}
}

var schemaCache sync.Map

// SchemaFor returns the JSON Schema of T, generated once per type.
func SchemaFor[T any]() ([]byte, error) {
	key := reflect.TypeFor[T]()
	if cached, ok := schemaCache.Load(key); ok {
		return cached.([]byte), nil
	}
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, eris.Wrap(err, "structured: generate schema")
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, eris.Wrap(err, "structured: marshal schema")
	}
	schemaCache.Store(key, raw)
	return raw, nil
}

// Extract asks the service for a T. Service errors and unparseable replies
// are retried with backoff and jitter. On failure the zero T is returned
// with an *ExtractionError; callers substitute their own defaults.
func Extract[T any](ctx context.Context, a *Adapter, req Request) (T, error) {
	var zero T

	schema, err := SchemaFor[T]()
	if err != nil {
		return zero, &ExtractionError{Kind: ServiceFailure, Cause: err}
	}
	prompt := BuildPrompt(req.Instructions, schema, TruncateByRelevance(req.Content, req.Focus, a.maxContent))

	attempts := 0
	cfg := a.retry
	cfg.ShouldRetry = func(err error) bool {
		return resilience.RetryUnlessCanceled(err) && !eris.Is(err, resilience.ErrCircuitOpen)
	}
	cfg.OnRetry = resilience.RetryLogger("structured", "extract")

	start := time.Now()
	val, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (T, error) {
		attempts++
		reply, err := resilience.ExecuteVal(ctx, a.breaker, func(ctx context.Context) (string, error) {
			return a.svc.Complete(ctx, prompt, schema)
		})
		if err != nil {
			return zero, err
		}
		v, strategy, ok := Parse[T](reply, req.FieldScrapers)
		if !ok {
			return zero, eris.Wrapf(errUnparseable, "reply of %d bytes", len(reply))
		}
		if strategy != StrategyWhole {
			zap.L().Debug("structured: lenient parse", zap.String("strategy", string(strategy)))
		}
		return v, nil
	})
	if err == nil {
		zap.L().Debug("structured: extracted",
			zap.Int("attempts", attempts),
			zap.Duration("elapsed", time.Since(start)),
		)
		return val, nil
	}

	kind := ServiceFailure
	switch {
	case ctx.Err() != nil || resilience.IsCanceled(err):
		kind = Canceled
	case eris.Is(err, errUnparseable):
		kind = Unparseable
	}
	return zero, &ExtractionError{Kind: kind, Attempts: attempts, Cause: err}
}
