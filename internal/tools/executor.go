package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/haasonsaas/groundedcore/pkg/domain"
)

// Executor dispatches validated tool calls and records a ToolCallAudit plus
// a TraceRecord for every attempt, per spec.md §4.5's "always persist,
// success or failure" rule.
type Executor struct {
	Registry   *Registry
	PersistTrace func(domain.TraceRecord)
}

func NewExecutor(registry *Registry, persistTrace func(domain.TraceRecord)) *Executor {
	if persistTrace == nil {
		persistTrace = func(domain.TraceRecord) {}
	}
	return &Executor{Registry: registry, PersistTrace: persistTrace}
}

// Execute resolves, validates, and dispatches one tool call, always
// returning a populated domain.ToolCallResult — it never returns a Go error
// to the caller, since the caller is the Dialog Runtime's trace-writing
// path and every outcome (including ToolNotFound) is itself tracer data.
func (e *Executor) Execute(ctx context.Context, tc domain.ToolContext, name string, input json.RawMessage) domain.ToolCallResult {
	start := time.Now()
	hash := requestPayloadHash(input)

	def, handler, ok := e.Registry.Get(name)
	if !ok {
		result := e.finish(tc, name, hash, start, nil, &toolError{errType: domain.ErrTypeToolNotFound, err: ErrToolNotFound})
		return result
	}

	if err := validateInput(name, def.InputSchema, input); err != nil {
		result := e.finish(tc, name, hash, start, nil, &toolError{errType: domain.ErrTypeValidation, err: err})
		return result
	}

	output, err := e.dispatch(ctx, handler, &tc, input)
	return e.finish(tc, name, hash, start, output, err)
}

// dispatch isolates the handler call so a handler panic (a programming
// error, never expected in a correctly built handler) still surfaces as a
// typed ToolCallResult instead of crashing the dialog turn.
func (e *Executor) dispatch(ctx context.Context, handler Handler, tc *domain.ToolContext, input json.RawMessage) (output any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &toolError{errType: domain.ErrTypeConfiguration, err: errors.New("tools: handler panicked")}
		}
	}()

	select {
	case <-ctx.Done():
		return nil, &toolError{errType: domain.ErrTypeTransientRemote, err: ctx.Err()}
	default:
	}

	out, handlerErr := handler(tc, input)
	if handlerErr != nil {
		return nil, wrapHandlerErr(handlerErr)
	}
	return out, nil
}

func (e *Executor) finish(tc domain.ToolContext, name, hash string, start time.Time, output any, err error) domain.ToolCallResult {
	latency := time.Since(start).Milliseconds()

	audit := domain.ToolCallAudit{
		Name:               name,
		LatencyMs:          latency,
		RequestPayloadHash: hash,
	}

	result := domain.ToolCallResult{Audit: audit}

	if err != nil {
		var te *toolError
		errType := domain.ErrTypeConfiguration
		if errors.As(err, &te) {
			errType = te.errType
		}
		result.Success = false
		result.Error = err.Error()
		result.ErrorType = errType
		result.Audit.Status = domain.ToolStatusError
		result.Audit.ErrorType = errType
		result.Audit.ErrorMessage = err.Error()
	} else {
		encoded, marshalErr := json.Marshal(output)
		if marshalErr != nil {
			result.Success = false
			result.Error = marshalErr.Error()
			result.ErrorType = domain.ErrTypeConfiguration
			result.Audit.Status = domain.ToolStatusError
			result.Audit.ErrorType = domain.ErrTypeConfiguration
			result.Audit.ErrorMessage = marshalErr.Error()
		} else {
			result.Success = true
			result.Output = encoded
			result.Audit.Status = domain.ToolStatusSuccess
		}
	}

	e.PersistTrace(domain.TraceRecord{
		Scope:       tc.Scope,
		TraceID:     tc.TraceID,
		SessionID:   tc.SessionID,
		NPCID:       tc.NPCID,
		RequestType: domain.RequestToolCall,
		ToolCalls:   []domain.ToolCallAudit{result.Audit},
		Status:      traceStatus(result.Success),
		LatencyMs:   latency,
		StartedAt:   start,
		CompletedAt: time.Now(),
	})

	return result
}

func traceStatus(success bool) domain.TraceStatus {
	if success {
		return domain.TraceSuccess
	}
	return domain.TraceError
}

// toolError carries a classified error type through the dispatch path
// (spec.md §7's validation/not_found/dependency_unavailable/
// transient_remote/policy_violation/configuration_error taxonomy).
type toolError struct {
	errType string
	err     error
}

func (e *toolError) Error() string { return e.err.Error() }
func (e *toolError) Unwrap() error { return e.err }

func wrapHandlerErr(err error) error {
	var te *toolError
	if errors.As(err, &te) {
		return te
	}
	return &toolError{errType: domain.ErrTypeDependencyUnavailable, err: err}
}

// ValidationError marks a handler failure as a non-retried input error.
func ValidationError(err error) error {
	return &toolError{errType: domain.ErrTypeValidation, err: err}
}

// NotFoundError marks a handler failure as a missing-entity error.
func NotFoundError(err error) error {
	return &toolError{errType: domain.ErrTypeNotFound, err: err}
}

// PolicyViolationError marks a handler failure as an authorized refusal,
// not a system error.
func PolicyViolationError(err error) error {
	return &toolError{errType: domain.ErrTypePolicyViolation, err: err}
}

// requestPayloadHash is sha256(json_sorted(input))[:16] per spec.md §4.5.
// json.Marshal on a map already emits keys in sorted order, so re-decoding
// through a map[string]any before re-encoding gives the sorted form
// regardless of the caller's original key order.
func requestPayloadHash(input json.RawMessage) string {
	var decoded any
	if len(input) > 0 {
		if err := json.Unmarshal(input, &decoded); err != nil {
			decoded = string(input)
		}
	}
	sorted, err := json.Marshal(decoded)
	if err != nil {
		sorted = input
	}
	h := sha256.Sum256(sorted)
	return hex.EncodeToString(h[:])[:16]
}
