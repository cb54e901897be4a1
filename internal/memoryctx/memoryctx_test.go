package memoryctx

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/haasonsaas/nexus/internal/audit"
)

type fakeTools struct {
	response string
	delay    time.Duration
}

func (f *fakeTools) Call(ctx context.Context, name string, argsJSON json.RawMessage, actor string) string {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ""
		}
	}
	return f.response
}

func newSink(t *testing.T) *audit.TurnSink {
	t.Helper()
	sink, err := audit.NewTurnSink("")
	if err != nil {
		t.Fatalf("NewTurnSink: %v", err)
	}
	return sink
}

func TestGetContext_DisabledIsSyncSkipped(t *testing.T) {
	p := New(&fakeTools{}, newSink(t))
	res := p.GetContext(context.Background(), Request{MemoryEnabled: false})
	if !res.Provenance.Skipped {
		t.Fatalf("expected skipped provenance, got %+v", res.Provenance)
	}
}

func TestGetContext_Success(t *testing.T) {
	p := New(&fakeTools{response: `{"pack_text":"some facts","facts":3,"has_profile":true}`}, newSink(t))
	res := p.GetContext(context.Background(), Request{MemoryEnabled: true})
	if !res.Provenance.Success || res.PackText != "some facts" || res.Provenance.Facts != 3 {
		t.Fatalf("got %+v", res)
	}
}

func TestGetContext_TimesOut(t *testing.T) {
	p := New(&fakeTools{delay: 50 * time.Millisecond}, newSink(t))
	res := p.GetContext(context.Background(), Request{MemoryEnabled: true, Timeout: 5 * time.Millisecond})
	if !res.Provenance.TimedOut {
		t.Fatalf("expected timed out provenance, got %+v", res.Provenance)
	}
}

func TestGetContext_MalformedResponse(t *testing.T) {
	p := New(&fakeTools{response: "not json"}, newSink(t))
	res := p.GetContext(context.Background(), Request{MemoryEnabled: true})
	if res.Error == "" {
		t.Fatalf("expected error provenance for malformed pack, got %+v", res)
	}
}

func TestGetContext_ColdGreetingUsesGreetMode(t *testing.T) {
	p := New(&fakeTools{response: `{"pack_text":""}`}, newSink(t))
	res := p.GetContext(context.Background(), Request{MemoryEnabled: true, IsColdGreeting: true})
	if res.Provenance.RetrievalMode != "greet" {
		t.Fatalf("expected greet mode, got %q", res.Provenance.RetrievalMode)
	}
}
