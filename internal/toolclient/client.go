// Package toolclient is the Resilient Tool Client (C6): it sits between the
// Dialog Runtime and the Tool Registry/Executor (C5), adding per-tool
// timeout, bounded retry, and cache-aside behavior driven by a static
// priority table (spec.md §4.6). Grounded on internal/retry/retry.go for
// the bounded-backoff loop and internal/cache (C1) for the cache-aside
// read-through, the same pairing internal/toolclient's teacher analog
// internal/tools/gateway uses ad hoc per call site — here centralized into
// one dispatch path so every tool call gets the same audit fields.
package toolclient

import (
	"context"
	"encoding/json"
	"time"

	"github.com/haasonsaas/groundedcore/internal/cache"
	"github.com/haasonsaas/groundedcore/internal/retry"
	"github.com/haasonsaas/groundedcore/internal/tools"
	"github.com/haasonsaas/groundedcore/pkg/domain"
)

// Priority ranks how the Dialog Runtime should react to a tool call's
// ultimate failure: a critical tool failing aborts the turn into the
// conservative/refuse path, an important tool failing degrades gracefully,
// an optional tool failing is invisible to the end user.
type Priority string

const (
	PriorityCritical  Priority = "critical"
	PriorityImportant Priority = "important"
	PriorityOptional  Priority = "optional"
)

// Config is one tool's resilience profile.
type Config struct {
	Timeout       time.Duration
	MaxRetries    int
	Cacheable     bool
	CacheTTL      time.Duration
	Priority      Priority
	FireAndForget bool
}

// DefaultConfig is used for any tool not named in Configs.
var DefaultConfig = Config{
	Timeout:    500 * time.Millisecond,
	MaxRetries: 1,
	Cacheable:  false,
	Priority:   PriorityImportant,
}

// Configs is the per-tool resilience table from spec.md §4.6.
var Configs = map[string]Config{
	"get_prompt_active": {
		Timeout: 200 * time.Millisecond, MaxRetries: 2,
		Cacheable: true, CacheTTL: cache.TTLActivePrompt, Priority: PriorityCritical,
	},
	"get_npc_profile": {
		Timeout: 300 * time.Millisecond, MaxRetries: 2,
		Cacheable: true, CacheTTL: cache.TTLPersona, Priority: PriorityCritical,
	},
	"get_site_map": {
		Timeout: 300 * time.Millisecond, MaxRetries: 1,
		Cacheable: true, CacheTTL: cache.TTLSiteMap, Priority: PriorityOptional,
	},
	"retrieve_evidence": {
		Timeout: 800 * time.Millisecond, MaxRetries: 1,
		Cacheable: true, CacheTTL: cache.TTLEvidence, Priority: PriorityImportant,
	},
	"search_content": {
		Timeout: 500 * time.Millisecond, MaxRetries: 1,
		Cacheable: false, Priority: PriorityImportant,
	},
	"log_user_event": {
		Timeout: 150 * time.Millisecond, MaxRetries: 0,
		Cacheable: false, Priority: PriorityOptional, FireAndForget: true,
	},
	"create_trace": {
		Timeout: 300 * time.Millisecond, MaxRetries: 1,
		Cacheable: false, Priority: PriorityImportant, FireAndForget: true,
	},
}

// configFor resolves a tool's resilience profile, falling back to
// DefaultConfig for anything not in the table (e.g. create_draft_content,
// submit_feedback, list_feedback — write/feedback tools that are neither
// cacheable nor worth a bespoke row in spec.md §4.6's table).
func configFor(name string) Config {
	if c, ok := Configs[name]; ok {
		return c
	}
	return DefaultConfig
}

// Client wraps an Executor with per-tool timeout/retry/cache behavior.
type Client struct {
	Executor *tools.Executor
	Cache    cache.Cache
}

// New builds a Client. cache may be nil, in which case every call behaves
// as non-cacheable regardless of its Config.
func New(executor *tools.Executor, c cache.Cache) *Client {
	return &Client{Executor: executor, Cache: c}
}

// cacheKey follows prefix:tenant:site:resource_type:resource_id, with
// resource_id the tool's own request payload hash — stable across callers
// regardless of JSON key order, and for retrieve_evidence/search_content
// effectively a hash of query+domains since those are exactly the fields
// the input payload carries.
func cacheKey(tc domain.ToolContext, toolName string, input json.RawMessage) string {
	return cache.Key("toolclient", tc.TenantID, tc.SiteID, toolName, requestHash(input))
}

// Call dispatches one tool call with the tool's configured timeout, retries
// a transient failure up to MaxRetries times with exponential backoff, and
// serves/populates the cache for cacheable tools. The returned
// ToolCallResult's Audit.RetryCount and Audit.CacheHit reflect this layer's
// behavior on top of whatever the Executor itself recorded.
func (c *Client) Call(ctx context.Context, tc domain.ToolContext, name string, input json.RawMessage) domain.ToolCallResult {
	cfg := configFor(name)

	if cfg.Cacheable && c.Cache != nil {
		key := cacheKey(tc, name, input)
		if raw, ok := c.Cache.Get(ctx, key); ok {
			var cached domain.ToolCallResult
			if err := json.Unmarshal(raw, &cached); err == nil {
				cached.Audit.CacheHit = true
				return cached
			}
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	var result domain.ToolCallResult
	retryResult := retry.Do(callCtx, retry.Config{
		MaxAttempts:  cfg.MaxRetries + 1,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     cfg.Timeout,
		Factor:       2.0,
	}, func() error {
		result = c.Executor.Execute(callCtx, tc, name, input)
		if result.Success {
			return nil
		}
		if !isRetryableType(result.ErrorType) {
			return retry.Permanent(errCallFailed(result))
		}
		return errCallFailed(result)
	})
	result.Audit.RetryCount = retryResult.Attempts - 1

	if cfg.Cacheable && c.Cache != nil && result.Success {
		if encoded, err := json.Marshal(result); err == nil {
			c.Cache.Set(ctx, cacheKey(tc, name, input), encoded, cfg.CacheTTL)
		}
	}

	return result
}

// isRetryableType reports whether a classified tool error is worth another
// attempt: transient_remote and dependency_unavailable are, the rest
// (validation, not_found, policy_violation, configuration_error,
// tool_not_found) are not — retrying a bad request just wastes the budget.
func isRetryableType(errType string) bool {
	switch errType {
	case domain.ErrTypeTransientRemote, domain.ErrTypeDependencyUnavailable:
		return true
	default:
		return false
	}
}

type callFailedError struct{ result domain.ToolCallResult }

func errCallFailed(result domain.ToolCallResult) error { return &callFailedError{result: result} }

func (e *callFailedError) Error() string { return e.result.Error }
