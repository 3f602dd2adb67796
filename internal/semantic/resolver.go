// Package semantic wraps the generative model used as a fallback classifier
// and mapper. Calls are single request/response exchanges, optionally
// constrained by a response schema.
package semantic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/genai"

	"github.com/JaimeStill/tally/pkg/formatting"
	"github.com/JaimeStill/tally/pkg/throttle"
)

// Request is one model call. Purpose labels logs and metrics.
// A non-nil Schema requests a JSON response conforming to it.
type Request struct {
	Purpose string
	Prompt  string
	Schema  *genai.Schema
}

// System resolves prompts against the generative model.
type System interface {
	// Generate returns the trimmed response text. Empty responses are
	// retried and finally reported as ErrEmptyResponse.
	Generate(ctx context.Context, req Request) (string, error)
}

// Model is the content generation call. *genai.Models satisfies it.
type Model interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

type resolver struct {
	model       Model
	name        string
	temperature float32
	policy      *throttle.Policy
	logger      *slog.Logger
	calls       *prometheus.CounterVec
}

// Option configures the resolver.
type Option func(*resolver)

// WithRegisterer registers the call counter on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(r *resolver) {
		if err := reg.Register(r.calls); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				r.calls = are.ExistingCollector.(*prometheus.CounterVec)
			}
		}
	}
}

// New creates a resolver backed by the Gemini API.
func New(ctx context.Context, cfg *Config, logger *slog.Logger, opts ...Option) (System, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return NewWithModel(client.Models, cfg, logger, opts...), nil
}

// NewWithModel creates a resolver over an existing Model.
func NewWithModel(model Model, cfg *Config, logger *slog.Logger, opts ...Option) System {
	r := &resolver{
		model:       model,
		name:        cfg.Model,
		temperature: float32(cfg.Temperature),
		policy:      throttle.New(&cfg.Throttle),
		logger:      logger.With("system", "semantic"),
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_model_requests_total",
				Help: "Generative model calls by purpose and outcome.",
			},
			[]string{"purpose", "outcome"},
		),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *resolver) Generate(ctx context.Context, req Request) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(r.temperature),
	}
	if req.Schema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = req.Schema
	}

	start := time.Now()
	text, err := throttle.Do(ctx, r.policy, func(ctx context.Context) (string, error) {
		resp, err := r.model.GenerateContent(ctx, r.name, genai.Text(req.Prompt), config)
		if err != nil {
			return "", classify(err)
		}
		text := strings.TrimSpace(resp.Text())
		if text == "" {
			return "", ErrEmptyResponse
		}
		return text, nil
	})

	if err != nil {
		r.calls.WithLabelValues(req.Purpose, "error").Inc()
		r.logger.Error("model call failed", "purpose", req.Purpose, "error", err)
		return "", err
	}

	r.calls.WithLabelValues(req.Purpose, "ok").Inc()
	r.logger.Debug("model call", "purpose", req.Purpose, "duration", time.Since(start))
	return text, nil
}

// classify marks client-side API errors as permanent. Rate limiting and
// server errors stay retryable.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError {
			return err
		}
		return throttle.Permanent(err)
	}
	if errors.Is(err, context.Canceled) {
		return throttle.Permanent(err)
	}
	return err
}

// Structured generates a schema-constrained response and decodes it into T.
func Structured[T any](ctx context.Context, sys System, req Request) (T, error) {
	var zero T

	text, err := sys.Generate(ctx, req)
	if err != nil {
		return zero, err
	}

	v, err := formatting.Parse[T](text)
	if err != nil {
		return zero, fmt.Errorf("%w: %s: %v", ErrUnparsable, req.Purpose, err)
	}
	return v, nil
}

// Text generates a short free-text answer with surrounding quotes and
// code markers removed.
func Text(ctx context.Context, sys System, req Request) (string, error) {
	text, err := sys.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	if label := formatting.Label(text); label != "" {
		return label, nil
	}
	return "", ErrEmptyResponse
}
