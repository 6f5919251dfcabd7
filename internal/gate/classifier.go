// Package gate implements the Evidence Gate (C8): an intent classifier plus
// pre-LLM and post-LLM checks that keep ungrounded factual claims out of an
// NPC's response. Grounded on internal/policy/activation.go's
// compiled-regex-at-package-scope, parse-into-struct idiom, generalized
// from single-command parsing to multi-pattern classification/scanning.
package gate

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/haasonsaas/groundedcore/internal/cache"
	"github.com/haasonsaas/groundedcore/internal/llmprovider"
	"github.com/haasonsaas/groundedcore/pkg/domain"
)

// Classifier labels a query with an Intent.
type Classifier interface {
	Classify(ctx context.Context, query string) (domain.IntentResult, error)
}

var (
	factPhraseRegex = regexp.MustCompile(`(?i)(what|when|who|which|how many|哪|什么|几|多少|谁)`)
	eraDateRegex    = regexp.MustCompile(`(公元|距今|[0-9]{3,4}\s*年|第[一二三四五六七八九十百千0-9]+[代世])`)
	properNounRegex = regexp.MustCompile(`[A-Z][a-z]+(\s[A-Z][a-z]+)*`)
	greetingRegex   = regexp.MustCompile(`(?i)^\s*(hi|hello|hey|你好|您好|嗨)\b`)
	clarifyRegex    = regexp.MustCompile(`(?i)(what do you mean|can you explain|再说一遍|你是说|这是什么意思)`)
	prefRegex       = regexp.MustCompile(`(?i)(do you like|what do you think|你喜欢|你觉得|你认为)`)
)

// RuleClassifier matches configurable keyword/regex patterns against the
// five Intent labels, checked in order of specificity: greeting and
// clarifying phrasing first (they're the most distinctive), then fact
// phrasing or era/date/proper-noun mentions for fact_seeking, then
// preference phrasing for context_preference, defaulting to out_of_scope.
type RuleClassifier struct{}

func NewRuleClassifier() *RuleClassifier { return &RuleClassifier{} }

func (c *RuleClassifier) Classify(_ context.Context, query string) (domain.IntentResult, error) {
	trimmed := strings.TrimSpace(query)
	switch {
	case greetingRegex.MatchString(trimmed):
		return domain.IntentResult{Label: domain.IntentGreeting, Confidence: 0.9, Type: domain.ClassifierRule}, nil
	case clarifyRegex.MatchString(trimmed):
		return domain.IntentResult{Label: domain.IntentClarifying, Confidence: 0.7, Type: domain.ClassifierRule}, nil
	case factPhraseRegex.MatchString(trimmed), eraDateRegex.MatchString(trimmed), properNounRegex.MatchString(trimmed):
		return domain.IntentResult{Label: domain.IntentFactSeeking, Confidence: 0.75, Type: domain.ClassifierRule}, nil
	case prefRegex.MatchString(trimmed):
		return domain.IntentResult{Label: domain.IntentContextPref, Confidence: 0.6, Type: domain.ClassifierRule}, nil
	default:
		return domain.IntentResult{Label: domain.IntentOutOfScope, Confidence: 0.5, Type: domain.ClassifierRule}, nil
	}
}

// LLMClassifier asks a provider to label intent, caching the result and
// falling back to a RuleClassifier on any provider failure — the spec is
// explicit that an LLM classifier's failure must never block the turn.
type LLMClassifier struct {
	Provider llmprovider.Provider
	Fallback *RuleClassifier
	Cache    cache.Cache
	TTL      time.Duration
}

func NewLLMClassifier(provider llmprovider.Provider, c cache.Cache) *LLMClassifier {
	return &LLMClassifier{Provider: provider, Fallback: NewRuleClassifier(), Cache: c, TTL: 60 * time.Second}
}

func (c *LLMClassifier) Classify(ctx context.Context, query string) (domain.IntentResult, error) {
	key := cache.Key("gate_intent", "_", "_", "query", query)
	if c.Cache != nil {
		if raw, ok := c.Cache.Get(ctx, key); ok {
			return domain.IntentResult{Label: domain.Intent(raw), Confidence: 1, Type: domain.ClassifierLLM, Cached: true}, nil
		}
	}

	resp, err := c.Provider.Generate(ctx, llmprovider.Request{
		System: "Classify the user's intent as exactly one of: fact_seeking, context_preference, clarifying_follow_up, greeting, out_of_scope. Respond with only the label.",
		Messages: []llmprovider.Message{{Role: "user", Content: query}},
		MaxTokens: 16,
	})
	if err != nil {
		return c.Fallback.Classify(ctx, query)
	}

	label := domain.Intent(strings.TrimSpace(resp.Text))
	if !validIntent(label) {
		return c.Fallback.Classify(ctx, query)
	}

	if c.Cache != nil {
		c.Cache.Set(ctx, key, []byte(label), c.TTL)
	}
	return domain.IntentResult{Label: label, Confidence: 0.85, Type: domain.ClassifierLLM}, nil
}

func validIntent(label domain.Intent) bool {
	switch label {
	case domain.IntentFactSeeking, domain.IntentContextPref, domain.IntentClarifying, domain.IntentGreeting, domain.IntentOutOfScope:
		return true
	default:
		return false
	}
}
