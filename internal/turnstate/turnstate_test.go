package turnstate

import (
	"testing"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

func TestSearchSession_LazyExpiry(t *testing.T) {
	store := New()
	now := time.Now()
	store.SetNowFunc(func() time.Time { return now })

	store.SetSearchSession("u1", models.SearchSession{LastQuery: "x", UpdatedAt: now})

	if _, ok := store.SearchSession("u1"); !ok {
		t.Fatalf("expected session present immediately after set")
	}

	store.SetNowFunc(func() time.Time { return now.Add(20 * time.Minute) })
	if _, ok := store.SearchSession("u1"); ok {
		t.Fatalf("expected session to have lazily expired")
	}
}

func TestResetSearchSession(t *testing.T) {
	store := New()
	store.SetSearchSession("u1", models.SearchSession{LastQuery: "x", UpdatedAt: time.Now()})
	store.ResetSearchSession("u1")
	if _, ok := store.SearchSession("u1"); ok {
		t.Fatalf("expected session cleared after explicit reset")
	}
}

func TestDialogueState_RoundTrip(t *testing.T) {
	store := New()
	store.SetDialogueState("u1", models.DialogueState{Topic: "weather"})
	state, ok := store.DialogueState("u1")
	if !ok || state.Topic != "weather" {
		t.Fatalf("got %+v ok=%v", state, ok)
	}
}
