package agent

import (
	"regexp"
	"strings"
)

// intent maps a keyword pattern onto the single tool that answers it when
// the reasoning model is unavailable.
type intent struct {
	name    string
	pattern *regexp.Regexp
	tool    string
}

// fallbackIntents is ordered; the first match wins.
var fallbackIntents = []intent{
	{"graduation_requirements", regexp.MustCompile(`(?i)\bgraduat\w*|\brequirements?\b|\bcurriculum\b|졸업|이수\s*학점|교육과정`), "get_requirements"},
	{"meals", regexp.MustCompile(`(?i)\b(menu|lunch|dinner|breakfast|meals?|cafeteria)\b|학식|메뉴|식단|점심|저녁|아침`), "get_meals"},
	{"notices", regexp.MustCompile(`(?i)\b(notices?|announcements?)\b|공지`), "get_notices"},
}

func matchIntent(text string) (intent, bool) {
	text = strings.TrimSpace(text)
	for _, in := range fallbackIntents {
		if in.pattern.MatchString(text) {
			return in, true
		}
	}
	return intent{}, false
}
