package search

import (
	"regexp"
	"strings"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

// sessionTTL is the ~15 minute bound (spec.md §3) after which a
// SearchSession's results are no longer considered recent enough to
// support a follow-up.
const sessionTTL = 15 * time.Minute

var followUpSignal = regexp.MustCompile(`(?i)\b(more|another|else|again|what about|tell me more|dig deeper|go deeper)\b`)
var deepDiveSignal = regexp.MustCompile(`(?i)\b(dig deeper|more detail|go deeper|full story|read more)\b`)

// ClassifyMode is the mode classifier: a pure function of the message and
// the session. Follow-up requires a session with results still within
// sessionTTL; absent that, falls back to fact-find.
func ClassifyMode(message string, session *models.SearchSession, now time.Time) models.SearchMode {
	if session != nil && len(session.LastResults) > 0 && now.Sub(session.UpdatedAt) <= sessionTTL {
		if followUpSignal.MatchString(message) {
			return models.SearchModeFollowUp
		}
	}

	lower := strings.ToLower(message)
	if strings.Contains(lower, "news") || strings.Contains(lower, "headlines") {
		return models.SearchModeNewsAggregate
	}
	return models.SearchModeWebFactFind
}

// ClassifyFollowUp picks MoreSources or DeepDive (default) for a FollowUp
// mode turn.
func ClassifyFollowUp(message string) FollowUpKind {
	if deepDiveSignal.MatchString(message) {
		return FollowUpDeepDive
	}
	if followUpSignal.MatchString(message) {
		return FollowUpMoreSources
	}
	return FollowUpDeepDive
}
