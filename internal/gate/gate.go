package gate

import (
	"fmt"

	"github.com/haasonsaas/groundedcore/pkg/domain"
)

// MinCitationsForFact is the default fact_seeking citation floor
// (spec.md §4.8); a Release's RetrievalDefaults may override it per site.
const MinCitationsForFact = 1

// Gate runs the pre/post-LLM checks described in spec.md §4.8.
type Gate struct {
	Classifier              Classifier
	MinCitationsForFact     int
}

// New builds a Gate with the spec's default citation floor.
func New(classifier Classifier) *Gate {
	return &Gate{Classifier: classifier, MinCitationsForFact: MinCitationsForFact}
}

func (g *Gate) minCitations() int {
	if g.MinCitationsForFact > 0 {
		return g.MinCitationsForFact
	}
	return MinCitationsForFact
}

// CheckBeforeLLM applies the pre-LLM policy for the given intent and
// citation count, before any generation happens.
func (g *Gate) CheckBeforeLLM(intent domain.Intent, citationsCount int) domain.GateResult {
	switch intent {
	case domain.IntentFactSeeking:
		if citationsCount < g.minCitations() {
			return domain.GateResult{
				Passed:           false,
				ForcedPolicyMode: domain.PolicyConservative,
				Intent:           intent,
				CitationsCount:   citationsCount,
				Reason:           fmt.Sprintf("fact_seeking query has %d citation(s), need at least %d", citationsCount, g.minCitations()),
			}
		}
		return domain.GateResult{Passed: true, Intent: intent, CitationsCount: citationsCount}

	case domain.IntentGreeting:
		return domain.GateResult{Passed: true, Intent: intent, CitationsCount: citationsCount}

	case domain.IntentOutOfScope:
		return domain.GateResult{
			Passed:           false,
			ForcedPolicyMode: domain.PolicyConservative,
			Intent:           intent,
			CitationsCount:   citationsCount,
			Reason:           "query classified out_of_scope",
		}

	case domain.IntentContextPref, domain.IntentClarifying:
		return domain.GateResult{
			Passed:            true,
			Intent:            intent,
			CitationsCount:    citationsCount,
			RequiresFiltering: true,
		}

	default:
		return domain.GateResult{
			Passed:           false,
			ForcedPolicyMode: domain.PolicyConservative,
			Intent:           intent,
			CitationsCount:   citationsCount,
			Reason:           fmt.Sprintf("unrecognized intent %q", intent),
		}
	}
}

// CheckAfterLLM scans the generated response for forbidden factual
// assertions. Per spec.md §4.8 the hard downgrade only applies when intent
// is context_preference with zero citations; other intents still get their
// forbidden assertions reported (for filtering) without forcing the policy
// mode, since a fact_seeking turn was already required to carry citations
// before generation ran.
func (g *Gate) CheckAfterLLM(responseText string, citationsCount int, intent domain.Intent) domain.GateResult {
	assertions := FindForbiddenAssertions(responseText)

	if intent == domain.IntentContextPref && citationsCount == 0 && len(assertions) > 0 {
		return domain.GateResult{
			Passed:              false,
			ForcedPolicyMode:    domain.PolicyConservative,
			Intent:              intent,
			CitationsCount:      citationsCount,
			ForbiddenAssertions: assertions,
			RequiresFiltering:   true,
			Reason:              "context_preference response asserts undated facts with no supporting citation",
		}
	}

	return domain.GateResult{
		Passed:              true,
		Intent:              intent,
		CitationsCount:      citationsCount,
		ForbiddenAssertions: assertions,
		RequiresFiltering:   len(assertions) > 0,
	}
}
