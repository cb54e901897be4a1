package utility

import "testing"

func TestMatch_TemperatureConversion(t *testing.T) {
	e := New()
	m, ok := e.Match("s1", "350F in C")
	if !ok || m.Kind != KindInline || m.Category != CategoryTemperature {
		t.Fatalf("got %+v, ok=%v", m, ok)
	}
	if m.AnswerText != "176.7°C" {
		t.Fatalf("answer = %q", m.AnswerText)
	}
}

func TestMatch_DistanceConversionTwoDecimals(t *testing.T) {
	e := New()
	m, ok := e.Match("s1", "10 miles to km")
	if !ok {
		t.Fatalf("expected match")
	}
	if m.AnswerText != "16.09 km" {
		t.Fatalf("answer = %q", m.AnswerText)
	}
}

func TestMatch_KelvinAlwaysDecimal(t *testing.T) {
	e := New()
	m, ok := e.Match("s1", "0 C to K")
	if !ok {
		t.Fatalf("expected match")
	}
	if m.AnswerText != "273.15K" {
		t.Fatalf("answer = %q", m.AnswerText)
	}
}

func TestMatch_LetterCount(t *testing.T) {
	e := New()
	m, ok := e.Match("s1", "how many times does the letter 'r' appear in strawberry")
	if !ok || m.Category != CategoryLetterCount {
		t.Fatalf("got %+v ok=%v", m, ok)
	}
}

func TestMatch_Arithmetic(t *testing.T) {
	e := New()
	m, ok := e.Match("s1", "12 * 7")
	if !ok || m.AnswerText != "12 * 7 = **84**" {
		t.Fatalf("got %+v ok=%v", m, ok)
	}
}

func TestMatch_ArithmeticStripsInterrogativePrefixAndNormalizesOperator(t *testing.T) {
	e := New()
	m, ok := e.Match("s1", "what's 6x7?")
	if !ok || m.Category != CategoryArithmetic {
		t.Fatalf("got %+v ok=%v", m, ok)
	}
	if m.AnswerText != "6 * 7 = **42**" {
		t.Fatalf("answer = %q", m.AnswerText)
	}
}

func TestMatch_FollowUpUsesLastInlineOnly(t *testing.T) {
	e := New()
	if _, ok := e.Match("s1", "350F in C"); !ok {
		t.Fatalf("expected first match")
	}
	m, ok := e.Match("s1", "what is that in feet?")
	if !ok || m.Kind != KindInline || m.Category != CategoryFollowUp {
		t.Fatalf("follow-up should resolve inline, got %+v ok=%v", m, ok)
	}
}

func TestMatch_FollowUpWithoutPriorAnswerMisses(t *testing.T) {
	e := New()
	if _, ok := e.Match("fresh-session", "what is that in feet?"); ok {
		t.Fatalf("should not match without a prior inline answer")
	}
}

func TestMatch_PlaceNameStripsTemporalTail(t *testing.T) {
	e := New()
	m, ok := e.Match("s1", "weather in Rexburg today")
	if !ok || m.Kind != KindTool || m.ToolName != "weather_geocode" {
		t.Fatalf("got %+v ok=%v", m, ok)
	}
	if m.ToolArgsJSON != `{"place":"Rexburg"}` {
		t.Fatalf("args = %s", m.ToolArgsJSON)
	}
}

func TestMatch_PlaceNameOnlyTemporalTailNoMatch(t *testing.T) {
	e := New()
	if _, ok := e.Match("s1", "weather in today"); ok {
		t.Fatalf("bare temporal marker should not match")
	}
}

func TestMatch_NoMatchOnUnrelatedText(t *testing.T) {
	e := New()
	if _, ok := e.Match("s1", "tell me a joke"); ok {
		t.Fatalf("unrelated text should not match")
	}
}

func TestMatch_EmptyInput(t *testing.T) {
	e := New()
	if _, ok := e.Match("s1", "   "); ok {
		t.Fatalf("blank input should not match")
	}
}
