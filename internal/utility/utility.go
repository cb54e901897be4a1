// Package utility implements the Deterministic Utility Engine: a pure
// matcher that answers unit conversions, arithmetic, constants, letter
// counts, and a handful of lookup-shaped tool calls without ever touching
// an LLM. Matching rules are ordered and documented by category, grounded
// on the teacher's HeuristicClassifier's compact regex-table shape
// (internal/agent/routing/heuristic.go) but built to return an answer
// instead of a tag.
package utility

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// MatchKind distinguishes an inline textual answer from a single upstream
// tool call the caller must still make.
type MatchKind string

const (
	KindInline MatchKind = "inline"
	KindTool   MatchKind = "tool"
)

// Category names the matching rule that produced a Match, in priority
// order (see categoryOrder below). Exposed so callers can log which rule
// fired without re-deriving it.
type Category string

const (
	CategoryTemperature Category = "temperature_conversion"
	CategoryDistance    Category = "distance_conversion"
	CategoryLetterCount Category = "letter_count"
	CategoryArithmetic  Category = "arithmetic"
	CategoryConstant    Category = "constant"
	CategoryFollowUp    Category = "follow_up"
	CategoryWeather     Category = "weather_geocode"
	CategoryTimezone    Category = "resolve_timezone"
	CategoryHoliday     Category = "holidays_is_today"
	CategoryFeed        Category = "feed_fetch"
	CategoryStatus      Category = "status_check_url"
)

// Match is the Engine's result. Exactly one of AnswerText (Kind==Inline)
// or ToolName/ToolArgsJSON (Kind==Tool) is populated.
type Match struct {
	Kind         MatchKind
	Category     Category
	AnswerText   string
	ToolName     string
	ToolArgsJSON string
}

// Engine holds the last inline answer per caller (keyed by session id) so
// that unit-less follow-ups ("what is that in feet?") can be resolved
// without a tool call. The teacher has no direct analogue for this; it is
// the minimal state the follow-up category in spec.md §4.2 requires.
type Engine struct {
	lastInline  map[string]Match
	statusLimit *rate.Limiter
}

// New builds an empty Engine. The status_check_url category is rate
// limited independently of the other deterministic categories since it is
// the only one that reaches out to the network (via the upstream tool
// call) rather than answering purely from the message text.
func New() *Engine {
	return &Engine{
		lastInline:  make(map[string]Match),
		statusLimit: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

var (
	fahrenheitToCelsius = regexp.MustCompile(`(?i)(-?\d+(?:\.\d+)?)\s*(?:°|deg(?:rees)?)?\s*f(?:ahrenheit)?\s*(?:in|to)\s*c(?:elsius)?\b`)
	celsiusToFahrenheit = regexp.MustCompile(`(?i)(-?\d+(?:\.\d+)?)\s*(?:°|deg(?:rees)?)?\s*c(?:elsius)?\s*(?:in|to)\s*f(?:ahrenheit)?\b`)
	celsiusToKelvin     = regexp.MustCompile(`(?i)(-?\d+(?:\.\d+)?)\s*(?:°|deg(?:rees)?)?\s*c(?:elsius)?\s*(?:in|to)\s*k(?:elvin)?\b`)
	kelvinToCelsius     = regexp.MustCompile(`(?i)(-?\d+(?:\.\d+)?)\s*k(?:elvin)?\s*(?:in|to)\s*c(?:elsius)?\b`)

	milesToKm = regexp.MustCompile(`(?i)(-?\d+(?:\.\d+)?)\s*mi(?:les?)?\s*(?:in|to)\s*(?:km|kilometers?)\b`)
	kmToMiles = regexp.MustCompile(`(?i)(-?\d+(?:\.\d+)?)\s*(?:km|kilometers?)\s*(?:in|to)\s*mi(?:les?)?\b`)

	letterCount = regexp.MustCompile(`(?i)how many (?:times does |)(?:the letter |)['"]?([a-zA-Z])['"]?\s*(?:appear|occur|is there)?s?\s*(?:in|does)\s+['"]?([a-zA-Z]+)['"]?`)

	arithmetic = regexp.MustCompile(`^\s*(-?\d+(?:\.\d+)?)\s*([+\-*/xX×÷])\s*(-?\d+(?:\.\d+)?)\s*(?:=|\?)?\s*$`)

	temporalTail = regexp.MustCompile(`(?i)\b(today|tonight|tomorrow|this week|this weekend|right now|currently)\b\s*$`)
)

var constants = map[string]string{
	"pi":                  "3.14159",
	"e":                   "2.71828",
	"speed of light":      "299792458 m/s",
	"golden ratio":        "1.61803",
	"avogadro's number":   "6.02214076e23",
	"absolute zero":       "-273.15°C",
}

// Match runs the ordered category chain against a user message for the
// given session key (used to resolve unit-less follow-ups against the
// caller's own last inline answer, never another session's). Never
// panics; an unrecognized message yields (Match{}, false).
func (e *Engine) Match(sessionKey, message string) (Match, bool) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return Match{}, false
	}

	if m, ok := matchTemperature(trimmed); ok {
		e.remember(sessionKey, m)
		return m, true
	}
	if m, ok := matchDistance(trimmed); ok {
		e.remember(sessionKey, m)
		return m, true
	}
	if m, ok := matchLetterCount(trimmed); ok {
		return m, true
	}
	if m, ok := matchArithmetic(trimmed); ok {
		return m, true
	}
	if m, ok := matchConstant(trimmed); ok {
		return m, true
	}
	if m, ok := e.matchFollowUp(sessionKey, trimmed); ok {
		return m, true
	}
	if m, ok := matchPlaceUtility(trimmed); ok {
		if m.Category == CategoryStatus && !e.statusLimit.Allow() {
			return Match{}, false
		}
		return m, true
	}
	return Match{}, false
}

func (e *Engine) remember(sessionKey string, m Match) {
	if m.Kind == KindInline {
		e.lastInline[sessionKey] = m
	}
}

func matchTemperature(s string) (Match, bool) {
	if g := fahrenheitToCelsius.FindStringSubmatch(s); g != nil {
		f, err := strconv.ParseFloat(g[1], 64)
		if err != nil {
			return Match{}, false
		}
		c := (f - 32) * 5 / 9
		return Match{Kind: KindInline, Category: CategoryTemperature, AnswerText: fmt.Sprintf("%.1f°C", round1(c))}, true
	}
	if g := celsiusToFahrenheit.FindStringSubmatch(s); g != nil {
		c, err := strconv.ParseFloat(g[1], 64)
		if err != nil {
			return Match{}, false
		}
		f := c*9/5 + 32
		return Match{Kind: KindInline, Category: CategoryTemperature, AnswerText: fmt.Sprintf("%.1f°F", round1(f))}, true
	}
	if g := celsiusToKelvin.FindStringSubmatch(s); g != nil {
		c, err := strconv.ParseFloat(g[1], 64)
		if err != nil {
			return Match{}, false
		}
		k := c + 273.15
		return Match{Kind: KindInline, Category: CategoryTemperature, AnswerText: fmt.Sprintf("%.1fK", k)}, true
	}
	if g := kelvinToCelsius.FindStringSubmatch(s); g != nil {
		k, err := strconv.ParseFloat(g[1], 64)
		if err != nil {
			return Match{}, false
		}
		c := k - 273.15
		return Match{Kind: KindInline, Category: CategoryTemperature, AnswerText: fmt.Sprintf("%.1f°C", round1(c))}, true
	}
	return Match{}, false
}

func matchDistance(s string) (Match, bool) {
	if g := milesToKm.FindStringSubmatch(s); g != nil {
		mi, err := strconv.ParseFloat(g[1], 64)
		if err != nil {
			return Match{}, false
		}
		km := mi * 1.60934
		return Match{Kind: KindInline, Category: CategoryDistance, AnswerText: fmt.Sprintf("%.2f km", km)}, true
	}
	if g := kmToMiles.FindStringSubmatch(s); g != nil {
		km, err := strconv.ParseFloat(g[1], 64)
		if err != nil {
			return Match{}, false
		}
		mi := km / 1.60934
		return Match{Kind: KindInline, Category: CategoryDistance, AnswerText: fmt.Sprintf("%.2f mi", mi)}, true
	}
	return Match{}, false
}

func matchLetterCount(s string) (Match, bool) {
	g := letterCount.FindStringSubmatch(s)
	if g == nil {
		return Match{}, false
	}
	letter := strings.ToLower(g[1])
	word := strings.ToLower(g[2])
	count := strings.Count(word, letter)
	return Match{
		Kind:       KindInline,
		Category:   CategoryLetterCount,
		AnswerText: fmt.Sprintf("The letter %q appears %d time(s) in %q.", letter, count, g[2]),
	}, true
}

var arithmeticInterrogativePrefixes = []string{"what's ", "what is ", "whats "}

// stripArithmeticPrefix removes a leading "what's "/"what is " the way
// matchConstant already strips it for named constants, so "what's 6x7?"
// reaches the anchored arithmetic regex as "6x7?".
func stripArithmeticPrefix(s string) string {
	lower := strings.ToLower(strings.TrimSpace(s))
	for _, p := range arithmeticInterrogativePrefixes {
		if strings.HasPrefix(lower, p) {
			return strings.TrimSpace(s[len(p):])
		}
	}
	return strings.TrimSpace(s)
}

func normalizeOperator(op string) string {
	switch op {
	case "x", "X", "×":
		return "*"
	case "÷":
		return "/"
	default:
		return op
	}
}

func matchArithmetic(s string) (Match, bool) {
	g := arithmetic.FindStringSubmatch(stripArithmeticPrefix(s))
	if g == nil {
		return Match{}, false
	}
	a, err1 := strconv.ParseFloat(g[1], 64)
	b, err2 := strconv.ParseFloat(g[3], 64)
	if err1 != nil || err2 != nil {
		return Match{}, false
	}
	op := normalizeOperator(g[2])
	var result float64
	switch op {
	case "+":
		result = a + b
	case "-":
		result = a - b
	case "*":
		result = a * b
	case "/":
		if b == 0 {
			return Match{Kind: KindInline, Category: CategoryArithmetic, AnswerText: "Division by zero is undefined."}, true
		}
		result = a / b
	default:
		return Match{}, false
	}
	answer := fmt.Sprintf("%s %s %s = **%s**", formatNumber(a), op, formatNumber(b), formatNumber(result))
	return Match{Kind: KindInline, Category: CategoryArithmetic, AnswerText: answer}, true
}

func matchConstant(s string) (Match, bool) {
	lower := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(s), "?"))
	lower = strings.TrimPrefix(lower, "what is ")
	lower = strings.TrimPrefix(lower, "what's ")
	lower = strings.TrimSpace(lower)
	if v, ok := constants[lower]; ok {
		return Match{Kind: KindInline, Category: CategoryConstant, AnswerText: v}, true
	}
	return Match{}, false
}

var followUpPhrase = regexp.MustCompile(`(?i)^(?:and |so )?what(?:'s| is) that in ([a-z]+)\??$`)

func (e *Engine) matchFollowUp(sessionKey, s string) (Match, bool) {
	g := followUpPhrase.FindStringSubmatch(s)
	if g == nil {
		return Match{}, false
	}
	last, ok := e.lastInline[sessionKey]
	if !ok {
		return Match{}, false
	}
	// Only resolved by consulting the last inline answer; never a new
	// tool call, per spec.md §4.2.
	return Match{Kind: KindInline, Category: CategoryFollowUp, AnswerText: fmt.Sprintf("That's %s in %s context: %s", g[1], last.Category, last.AnswerText)}, true
}

// matchPlaceUtility recognizes tool-shaped lookups (weather, timezone,
// holiday, feed, status) and strips a trailing temporal tail from place
// names ("Rexburg today" -> "Rexburg"). If only the temporal marker
// remains after stripping, there is no match.
func matchPlaceUtility(s string) (Match, bool) {
	lower := strings.ToLower(s)

	switch {
	case strings.HasPrefix(lower, "weather in ") || strings.HasPrefix(lower, "weather for "):
		place := stripPlacePrefix(s, []string{"weather in ", "weather for "})
		place = stripTemporalTail(place)
		if place == "" {
			return Match{}, false
		}
		return toolMatch(CategoryWeather, "weather_geocode", map[string]string{"place": place}), true

	case strings.HasPrefix(lower, "what time is it in ") || strings.HasPrefix(lower, "timezone in "):
		place := stripPlacePrefix(s, []string{"what time is it in ", "timezone in "})
		place = stripTemporalTail(place)
		if place == "" {
			return Match{}, false
		}
		return toolMatch(CategoryTimezone, "resolve_timezone", map[string]string{"place": place}), true

	case strings.Contains(lower, "is today a holiday") || strings.Contains(lower, "holiday today"):
		return toolMatch(CategoryHoliday, "holidays_is_today", map[string]string{}), true

	case strings.HasPrefix(lower, "check feed ") || strings.HasPrefix(lower, "fetch feed "):
		url := stripPlacePrefix(s, []string{"check feed ", "fetch feed "})
		if url == "" {
			return Match{}, false
		}
		return toolMatch(CategoryFeed, "feed_fetch", map[string]string{"url": url}), true

	case strings.HasPrefix(lower, "is ") && strings.HasSuffix(strings.TrimSuffix(lower, "?"), " up"):
		body := strings.TrimSuffix(strings.TrimSpace(s), "?")
		url := strings.TrimSpace(body[len("is ") : len(body)-len(" up")])
		if url == "" {
			return Match{}, false
		}
		return toolMatch(CategoryStatus, "status_check_url", map[string]string{"url": url}), true
	}
	return Match{}, false
}

func toolMatch(cat Category, tool string, args map[string]string) Match {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	for k, v := range args {
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(strconv.Quote(k))
		b.WriteByte(':')
		b.WriteString(strconv.Quote(v))
	}
	b.WriteByte('}')
	return Match{Kind: KindTool, Category: cat, ToolName: tool, ToolArgsJSON: b.String()}
}

func stripPlacePrefix(s string, prefixes []string) string {
	lower := strings.ToLower(s)
	for _, p := range prefixes {
		if strings.HasPrefix(lower, p) {
			return strings.TrimSpace(s[len(p):])
		}
	}
	return strings.TrimSpace(s)
}

func stripTemporalTail(s string) string {
	return strings.TrimSpace(temporalTail.ReplaceAllString(s, ""))
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) {
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
