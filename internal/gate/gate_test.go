package gate

import (
	"context"
	"testing"

	"github.com/haasonsaas/groundedcore/pkg/domain"
)

func TestRuleClassifierLabelsGreeting(t *testing.T) {
	c := NewRuleClassifier()
	result, err := c.Classify(context.Background(), "Hello there!")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if result.Label != domain.IntentGreeting {
		t.Fatalf("expected greeting, got %q", result.Label)
	}
}

func TestRuleClassifierLabelsFactSeeking(t *testing.T) {
	c := NewRuleClassifier()
	result, err := c.Classify(context.Background(), "What year was this hall built?")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if result.Label != domain.IntentFactSeeking {
		t.Fatalf("expected fact_seeking, got %q", result.Label)
	}
}

func TestRuleClassifierDefaultsOutOfScope(t *testing.T) {
	c := NewRuleClassifier()
	result, err := c.Classify(context.Background(), "xyz plain statement")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if result.Label != domain.IntentOutOfScope {
		t.Fatalf("expected out_of_scope, got %q", result.Label)
	}
}

func TestCheckBeforeLLMFactSeekingRequiresCitations(t *testing.T) {
	g := New(NewRuleClassifier())
	result := g.CheckBeforeLLM(domain.IntentFactSeeking, 0)
	if result.Passed {
		t.Fatal("expected fact_seeking with 0 citations to fail")
	}
	if result.ForcedPolicyMode != domain.PolicyConservative {
		t.Fatalf("expected conservative mode, got %q", result.ForcedPolicyMode)
	}
}

func TestCheckBeforeLLMFactSeekingPassesWithCitation(t *testing.T) {
	g := New(NewRuleClassifier())
	result := g.CheckBeforeLLM(domain.IntentFactSeeking, 1)
	if !result.Passed {
		t.Fatalf("expected pass with 1 citation, got reason %q", result.Reason)
	}
}

func TestCheckBeforeLLMGreetingAlwaysPasses(t *testing.T) {
	g := New(NewRuleClassifier())
	result := g.CheckBeforeLLM(domain.IntentGreeting, 0)
	if !result.Passed || result.RequiresFiltering {
		t.Fatalf("expected greeting to pass without filtering, got %+v", result)
	}
}

func TestCheckBeforeLLMOutOfScopeFails(t *testing.T) {
	g := New(NewRuleClassifier())
	result := g.CheckBeforeLLM(domain.IntentOutOfScope, 5)
	if result.Passed {
		t.Fatal("expected out_of_scope to always fail pre-check")
	}
}

func TestCheckBeforeLLMContextPreferenceRequiresFiltering(t *testing.T) {
	g := New(NewRuleClassifier())
	result := g.CheckBeforeLLM(domain.IntentContextPref, 0)
	if !result.Passed {
		t.Fatal("expected context_preference to pass pre-check")
	}
	if !result.RequiresFiltering {
		t.Fatal("expected context_preference to require post-LLM filtering")
	}
}

func TestCheckAfterLLMDowngradesUnsupportedContextPreference(t *testing.T) {
	g := New(NewRuleClassifier())
	result := g.CheckAfterLLM("This hall was built in 距今两千年, during 第三代.", 0, domain.IntentContextPref)
	if result.Passed {
		t.Fatal("expected downgrade for unsupported assertion in context_preference response")
	}
	if len(result.ForbiddenAssertions) == 0 {
		t.Fatal("expected forbidden assertions to be populated")
	}
}

func TestCheckAfterLLMPassesWhenCitationsPresent(t *testing.T) {
	g := New(NewRuleClassifier())
	result := g.CheckAfterLLM("It happened 公元200年.", 1, domain.IntentContextPref)
	if !result.Passed {
		t.Fatal("expected pass when citations back the assertion")
	}
}

func TestFindForbiddenAssertionsMatchesYearAndGeneration(t *testing.T) {
	found := FindForbiddenAssertions("建于公元200年, 距今1800年, 第五代传人")
	if len(found) < 3 {
		t.Fatalf("expected at least 3 matches, got %v", found)
	}
}

func TestFilterBlursYearsAndGenerations(t *testing.T) {
	filtered := Filter("建于公元200年，是第五代传人所建。")
	if filtered == "建于公元200年，是第五代传人所建。" {
		t.Fatal("expected filter to rewrite the text")
	}
}

func TestConservativeResponsePrefersPolicyTemplate(t *testing.T) {
	policy := domain.PromptPolicy{ConservativeTemplate: "Let me check and get back to you."}
	got := ConservativeResponse(policy, domain.IntentFactSeeking)
	if got != policy.ConservativeTemplate {
		t.Fatalf("expected policy template, got %q", got)
	}
}

func TestConservativeResponseFallsBackToIntentDefault(t *testing.T) {
	got := ConservativeResponse(domain.PromptPolicy{}, domain.IntentOutOfScope)
	if got == "" {
		t.Fatal("expected a non-empty default conservative response")
	}
}
