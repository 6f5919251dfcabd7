package llmprovider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/haasonsaas/groundedcore/internal/retry"
)

// Dispatcher generates against a primary provider with bounded retry, then
// falls back to the next provider in Chain on exhaustion. Every attempt is
// recorded via Audit regardless of outcome.
type Dispatcher struct {
	Chain       []Provider
	RetryConfig retry.Config
	Audit       func(AuditRecord)
}

// NewDispatcher builds a Dispatcher over the given provider chain (primary
// first, fallbacks after) with the package's default retry policy.
func NewDispatcher(chain []Provider, audit func(AuditRecord)) *Dispatcher {
	if audit == nil {
		audit = func(AuditRecord) {}
	}
	return &Dispatcher{
		Chain:       chain,
		RetryConfig: retry.DefaultConfig(),
		Audit:       audit,
	}
}

// Generate tries each provider in Chain in order. Within one provider, a
// retryable ErrorType is retried per RetryConfig; a non-retryable error or
// retry exhaustion moves on to the next provider in the chain. The first
// successful response is returned; if every provider fails the last error
// is returned.
func (d *Dispatcher) Generate(ctx context.Context, req Request) (Response, error) {
	if len(d.Chain) == 0 {
		return Response{}, fmt.Errorf("llmprovider: no providers configured")
	}

	hash := requestHash(req)
	var lastErr error

	for i, provider := range d.Chain {
		fallback := i > 0
		resp, err := d.generateWithRetry(ctx, provider, req, hash, fallback)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return Response{}, lastErr
}

func (d *Dispatcher) generateWithRetry(ctx context.Context, provider Provider, req Request, hash string, fallback bool) (Response, error) {
	resp, result := retry.DoWithValue(ctx, d.RetryConfig, func() (Response, error) {
		start := time.Now()
		r, err := provider.Generate(ctx, req)
		latency := time.Since(start).Milliseconds()

		if err != nil {
			errType := classify(err)
			d.Audit(AuditRecord{
				Provider:     provider.Name(),
				Model:        req.Model,
				RequestHash:  hash,
				LatencyMs:    latency,
				Status:       "error",
				ErrorType:    errType,
				ErrorMessage: err.Error(),
				Fallback:     fallback,
				CreatedAt:    time.Now(),
			})
			if !errType.Retryable() {
				return Response{}, retry.Permanent(err)
			}
			return Response{}, err
		}

		d.Audit(AuditRecord{
			Provider:     provider.Name(),
			Model:        r.Model,
			RequestHash:  hash,
			TokensInput:  r.TokensInput,
			TokensOutput: r.TokensOutput,
			LatencyMs:    latency,
			Status:       "success",
			Fallback:     fallback,
			CreatedAt:    time.Now(),
		})
		return r, nil
	})

	if result.Err != nil {
		return Response{}, fmt.Errorf("llmprovider: %s: %w", provider.Name(), result.Err)
	}
	return resp, nil
}

func classify(err error) ErrorType {
	var pe *ProviderError
	if asProviderError(err, &pe) {
		return pe.Type
	}
	return ErrUnknown
}

func asProviderError(err error, target **ProviderError) bool {
	for err != nil {
		if pe, ok := err.(*ProviderError); ok {
			*target = pe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// requestHash is a stable, non-reversible fingerprint of a request used for
// audit correlation without storing raw prompt content (spec.md §4.4
// requires a redacted/hashed request prefix, not plaintext).
func requestHash(req Request) string {
	h := sha256.New()
	h.Write([]byte(req.Model))
	h.Write([]byte(req.System))
	for _, m := range req.Messages {
		h.Write([]byte(m.Role))
		h.Write([]byte(m.Content))
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
