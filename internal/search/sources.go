package search

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

// sourcesDelimiter is the literal marker the web_search tool emits before
// its machine-readable source array (spec.md §6).
const sourcesDelimiter = "<!-- SOURCES_JSON -->"

type rawSource struct {
	URL         string  `json:"url"`
	Title       string  `json:"title"`
	Domain      string  `json:"domain,omitempty"`
	PublishedAt *string `json:"published_at,omitempty"`
}

// ParseSources splits a web_search tool result into its human-readable
// body and parsed source list. Absence of the delimiter, or malformed
// JSON after it, yields an empty source list rather than an error.
func ParseSources(toolResult string) (body string, sources []models.SourceItem) {
	idx := strings.Index(toolResult, sourcesDelimiter)
	if idx < 0 {
		return toolResult, nil
	}
	body = strings.TrimSpace(toolResult[:idx])
	jsonPart := strings.TrimSpace(toolResult[idx+len(sourcesDelimiter):])

	var raws []rawSource
	if err := json.Unmarshal([]byte(jsonPart), &raws); err != nil {
		return body, nil
	}

	sources = make([]models.SourceItem, 0, len(raws))
	for _, r := range raws {
		if r.URL == "" {
			continue
		}
		item := models.SourceItem{
			URL:      r.URL,
			Title:    r.Title,
			Domain:   r.Domain,
			SourceID: SourceID(r.URL),
		}
		if r.PublishedAt != nil {
			if t, err := time.Parse(time.RFC3339, *r.PublishedAt); err == nil {
				item.PublishedAt = &t
			}
		}
		sources = append(sources, item)
	}
	return body, sources
}
