package toolclient

import (
	"encoding/json"
	"regexp"
	"strings"
)

// secretPatterns mirrors observability.DefaultRedactPatterns: the same
// key=value and bearer/JWT shapes, reused here because tool output is a
// different surface (a return string, not a log line) but the same secrets
// can leak through it.
var secretPatterns = []struct {
	re          *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`(?i)(api[_-]?key|apikey)[\s:=]+["']?([a-zA-Z0-9_\-]{16,})["']?`), "$1=[REDACTED_SECRET]"},
	{regexp.MustCompile(`(?i)(bearer|token)[\s:]+([a-zA-Z0-9_\-.]{16,})`), "$1 [REDACTED]"},
	{regexp.MustCompile(`(?i)(secret|password|passwd|pwd)[\s:=]+["']?([^\s"']{8,})["']?`), "$1=[REDACTED_SECRET]"},
	{regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]{95,}`), "[REDACTED_SECRET]"},
	{regexp.MustCompile(`sk-[a-zA-Z0-9]{48,}`), "[REDACTED_SECRET]"},
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`), "[REDACTED_JWT]"},
	{regexp.MustCompile(`(?i)(secret|key|token)[\s:=]+["']?([a-fA-F0-9]{32,})["']?`), "$1=[REDACTED_SECRET]"},
}

var sensitiveKeys = map[string]bool{
	"password":      true,
	"passwd":        true,
	"api_key":       true,
	"apikey":        true,
	"authorization": true,
	"secret":        true,
	"token":         true,
	"access_token":  true,
	"refresh_token": true,
}

// scrub redacts secret-shaped substrings from a tool result. If the result
// parses as JSON, it walks the structure and blanks sensitive keys outright
// in addition to the regex pass, since a key name alone ("password": "x")
// can be worth redacting even when the value doesn't look high-entropy.
func scrub(output string) string {
	var doc any
	if err := json.Unmarshal([]byte(output), &doc); err == nil {
		walkRedact(doc)
		if scrubbed, err := json.Marshal(doc); err == nil {
			return applyPatterns(string(scrubbed))
		}
	}
	return applyPatterns(output)
}

func applyPatterns(s string) string {
	for _, p := range secretPatterns {
		s = p.re.ReplaceAllString(s, p.replacement)
	}
	return s
}

func walkRedact(node any) {
	switch v := node.(type) {
	case map[string]any:
		for key, val := range v {
			if sensitiveKeys[strings.ToLower(key)] {
				v[key] = "[REDACTED]"
				continue
			}
			walkRedact(val)
		}
	case []any:
		for _, item := range v {
			walkRedact(item)
		}
	}
}
