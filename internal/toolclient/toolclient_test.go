package toolclient

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/haasonsaas/nexus/internal/audit"
	"github.com/haasonsaas/nexus/internal/tools/policy"
	"github.com/haasonsaas/nexus/pkg/models"
)

type fakeServer struct {
	output string
	err    error
	delay  time.Duration
}

func (f *fakeServer) Call(ctx context.Context, canonicalName string, argsJSON json.RawMessage) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.output, f.err
}

func (f *fakeServer) List() []models.ToolDefinition { return nil }

func newSink(t *testing.T) *audit.TurnSink {
	t.Helper()
	sink, err := audit.NewTurnSink("")
	if err != nil {
		t.Fatalf("NewTurnSink: %v", err)
	}
	return sink
}

func TestCall_DeniedToolShortCircuits(t *testing.T) {
	gate := policy.NewPermissionGate(policy.Config{Files: policy.SettingOff}, false)
	client := New(&fakeServer{output: "should not be reached"}, gate, newSink(t), 0)

	got := client.Call(context.Background(), "write_file", nil, "test")
	if !strings.HasPrefix(got, "Tool call blocked:") {
		t.Fatalf("got %q, want blocked prefix", got)
	}
}

func TestCall_ServerErrorWrapped(t *testing.T) {
	gate := policy.NewPermissionGate(policy.Config{Web: policy.SettingAlways}, false)
	client := New(&fakeServer{err: errBoom{}}, gate, newSink(t), 0)

	got := client.Call(context.Background(), "web_search", nil, "test")
	if !strings.HasPrefix(got, "Tool execution failed:") {
		t.Fatalf("got %q, want execution-failed prefix", got)
	}
}

func TestCall_TimesOut(t *testing.T) {
	gate := policy.NewPermissionGate(policy.Config{Web: policy.SettingAlways}, false)
	client := New(&fakeServer{delay: 50 * time.Millisecond}, gate, newSink(t), 5*time.Millisecond)

	got := client.Call(context.Background(), "web_search", nil, "test")
	if !strings.HasPrefix(got, "Tool execution failed:") {
		t.Fatalf("got %q, want execution-failed prefix on timeout", got)
	}
}

func TestCall_SuccessRedactsScreenCapture(t *testing.T) {
	gate := policy.NewPermissionGate(policy.Config{Screen: policy.SettingAlways}, false)
	client := New(&fakeServer{output: "binary-ish-blob"}, gate, newSink(t), 0)

	got := client.Call(context.Background(), "ScreenCapture", nil, "test")
	if !strings.HasPrefix(got, "screen_capture: ") || !strings.Contains(got, "sha256=") {
		t.Fatalf("got %q, want redacted screen_capture summary", got)
	}
}

func TestRedact_ScrubsSecretShapedOutput(t *testing.T) {
	out := Redact("web_search", `{"result":"token: abcdefghijklmnopqrstuvwxyz0123456789"}`)
	if strings.Contains(out, "abcdefghijklmnopqrstuvwxyz0123456789") {
		t.Fatalf("secret leaked through scrub: %s", out)
	}
}

func TestRedact_ScrubsSensitiveJSONKey(t *testing.T) {
	out := Redact("web_search", `{"password":"hunter2"}`)
	if strings.Contains(out, "hunter2") {
		t.Fatalf("password leaked through scrub: %s", out)
	}
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }
