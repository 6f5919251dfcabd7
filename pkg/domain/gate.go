package domain

// Intent is the classification label produced by the Evidence Gate's
// intent classifier.
type Intent string

const (
	IntentFactSeeking     Intent = "fact_seeking"
	IntentContextPref     Intent = "context_preference"
	IntentClarifying      Intent = "clarifying_follow_up"
	IntentGreeting        Intent = "greeting"
	IntentOutOfScope      Intent = "out_of_scope"
)

// ClassifierType distinguishes the rule-based classifier from an optional
// LLM-backed one.
type ClassifierType string

const (
	ClassifierRule ClassifierType = "rule"
	ClassifierLLM  ClassifierType = "llm"
)

// IntentResult is the output of the intent classifier.
type IntentResult struct {
	Label     Intent         `json:"label"`
	Confidence float64       `json:"confidence"`
	Type      ClassifierType `json:"classifier_type"`
	Cached    bool           `json:"cached"`
}

// PolicyMode is the authorized outcome of a turn.
type PolicyMode string

const (
	PolicyNormal       PolicyMode = "normal"
	PolicyConservative PolicyMode = "conservative"
	PolicyRefuse       PolicyMode = "refuse"
)

// GateResult is the outcome of either phase of the Evidence Gate.
type GateResult struct {
	Passed             bool       `json:"passed"`
	ForcedPolicyMode   PolicyMode `json:"forced_policy_mode,omitempty"`
	Intent             Intent     `json:"intent"`
	CitationsCount     int        `json:"citations_count"`
	ForbiddenAssertions []string  `json:"forbidden_assertions,omitempty"`
	RequiresFiltering  bool       `json:"requires_filtering"`
	Reason             string     `json:"reason,omitempty"`
}
