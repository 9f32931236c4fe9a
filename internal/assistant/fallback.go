package assistant

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Rule pairs a keyword predicate with a canned answer.
type Rule struct {
	Name     string
	Keywords []string // all must appear
	Response string
}

// Matches reports whether every keyword occurs in the lowercased query.
func (r Rule) Matches(lowered string) bool {
	for _, k := range r.Keywords {
		if !strings.Contains(lowered, k) {
			return false
		}
	}
	return true
}

// DefaultResponse is returned when no rule matches.
const DefaultResponse = "I understand you're asking about project information. Could you please specify which workstream, milestone, risk, or issue you're interested in?"

// Rules is the fallback table, in priority order. The first match wins.
var Rules = []Rule{
	{
		Name:     "data_migration_status",
		Keywords: []string{"status", "data migration"},
		Response: "The Data Migration workstream is currently in AMBER status. There's a risk of data corruption that's being mitigated with a backup strategy.",
	},
	{
		Name:     "api_issue",
		Keywords: []string{"api", "issue"},
		Response: "The API Development workstream has a critical issue with performance. Response times are exceeding the SLA, and this is currently assigned to Robert Johnson.",
	},
	{
		Name:     "dependencies",
		Keywords: []string{"dependency"},
		Response: "There are three key dependencies in the project: 1) Data migration must complete before UI connection, 2) APIs must be developed before testing can begin, 3) UI must be complete before end-to-end testing.",
	},
	{
		Name:     "sentiment",
		Keywords: []string{"sentiment"},
		Response: "The overall sentiment for the project has been improving over the last two weeks. The most recent sentiment analysis shows a positive trend with key issues being resolved.",
	},
}

// Match returns the first rule matching the query, and false if none does.
func Match(query string) (Rule, bool) {
	// Casers carry state, so each call gets its own.
	lowered := cases.Lower(language.Und).String(query)
	for _, r := range Rules {
		if r.Matches(lowered) {
			return r, true
		}
	}
	return Rule{}, false
}

// Fallback answers a query from the rule table alone.
func Fallback(query string) string {
	if r, ok := Match(query); ok {
		return r.Response
	}
	return DefaultResponse
}
