package gate

import "github.com/haasonsaas/groundedcore/pkg/domain"

// defaultConservativeTemplates are NPC-agnostic fallbacks used when the
// active prompt carries no policy.conservative_template, keyed by intent.
var defaultConservativeTemplates = map[domain.Intent]string{
	domain.IntentFactSeeking: "I don't have enough verified information to answer that precisely.",
	domain.IntentOutOfScope:  "That's outside what I can speak to here.",
	domain.IntentContextPref: "I'd rather not speculate beyond what's documented.",
}

const defaultConservativeTemplate = "I'm not able to answer that with confidence right now."

// ConservativeResponse resolves the text to return for a conservative- or
// refuse-mode turn: the active prompt's policy.conservative_template when
// present, else an intent-specific default, else a generic fallback.
func ConservativeResponse(policy domain.PromptPolicy, intent domain.Intent) string {
	if policy.ConservativeTemplate != "" {
		return policy.ConservativeTemplate
	}
	if tmpl, ok := defaultConservativeTemplates[intent]; ok {
		return tmpl
	}
	return defaultConservativeTemplate
}
