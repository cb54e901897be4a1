package router

import (
	"context"
	"testing"

	"github.com/haasonsaas/nexus/internal/utility"
	"github.com/haasonsaas/nexus/pkg/models"
)

func TestRoute_ExplicitOverrideWinsAtFullConfidence(t *testing.T) {
	r := New(utility.New(), nil)
	out := r.Route(context.Background(), "s1", "/search latest go releases")
	if out.Intent != models.IntentLookupSearch || out.Layer != models.LayerExplicitOverride || out.Confidence != 1.0 {
		t.Fatalf("got %+v", out)
	}
}

func TestRoute_DeterministicUtilityHitNeverNeedsWeb(t *testing.T) {
	r := New(utility.New(), nil)
	out := r.Route(context.Background(), "s1", "350F in C")
	if out.Intent != models.IntentUtilityDeterministic || out.NeedsWeb {
		t.Fatalf("got %+v", out)
	}
	if !out.HasCapability(models.CapabilityDeterministicUtility) {
		t.Fatalf("expected deterministic_utility capability, got %+v", out.RequiredCapabilities)
	}
}

func TestRoute_HeuristicNewsIntent(t *testing.T) {
	r := New(utility.New(), nil)
	out := r.Route(context.Background(), "s1", "what's the latest breaking news today")
	if out.Intent != models.IntentLookupNews || out.Layer != models.LayerHeuristic || out.Confidence != 0.8 {
		t.Fatalf("got %+v", out)
	}
	if !out.NeedsWeb || !out.NeedsSearch {
		t.Fatalf("news lookup should need web and search, got %+v", out)
	}
}

type stubClassifier struct {
	intent models.Intent
	err    error
}

func (s stubClassifier) Classify(ctx context.Context, userMessage string) (models.Intent, error) {
	return s.intent, s.err
}

func TestRoute_LLMFallbackUsedWhenDeterministicLayersMiss(t *testing.T) {
	r := New(utility.New(), stubClassifier{intent: models.IntentGeneralTool})
	out := r.Route(context.Background(), "s1", "do something unusual for me please")
	if out.Intent != models.IntentGeneralTool || out.Layer != models.LayerLLM {
		t.Fatalf("got %+v", out)
	}
}

func TestRoute_LLMFailureFallsBackToChatOnly(t *testing.T) {
	r := New(utility.New(), stubClassifier{err: context.DeadlineExceeded})
	out := r.Route(context.Background(), "s1", "do something unusual for me please")
	if out.Intent != models.IntentChatOnly {
		t.Fatalf("got %+v", out)
	}
}
