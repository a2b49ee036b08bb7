package agent

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Protocol-Lattice/campus-agent/src/dispatch"
)

const summaryItems = 5

// messages holds the user-facing strings per locale.
type messages struct {
	apology      string
	noResults    string
	needsLogin   string
	toolFailed   string
	requirements string
	admission    string
	total        string
	major        string
	general      string
	notes        string
	locations    string
	notices      string
	courses      string
	library      string
	meals        string
	seats        string
}

var catalogs = map[string]messages{
	"en": {
		apology:      "Sorry, I couldn't answer that right now. Please try again in a moment.",
		noResults:    "I couldn't find any matching campus information.",
		needsLogin:   "Please sign in to use: %s.",
		toolFailed:   "Some information could not be retrieved: %s.",
		requirements: "Graduation requirements",
		admission:    "%d admission",
		total:        "Total credits",
		major:        "Major credits",
		general:      "General education credits",
		notes:        "Notes",
		locations:    "Locations",
		notices:      "Notices",
		courses:      "Courses",
		library:      "Library",
		meals:        "Meals",
		seats:        "%d/%d seats free",
	},
	"ko": {
		apology:      "죄송합니다. 지금은 답변을 드리기 어렵습니다. 잠시 후 다시 시도해 주세요.",
		noResults:    "일치하는 캠퍼스 정보를 찾지 못했습니다.",
		needsLogin:   "다음 기능은 로그인이 필요합니다: %s.",
		toolFailed:   "일부 정보를 가져오지 못했습니다: %s.",
		requirements: "졸업요건 요약",
		admission:    "%d학번",
		total:        "총 이수학점",
		major:        "전공 학점",
		general:      "교양 학점",
		notes:        "참고",
		locations:    "위치",
		notices:      "공지사항",
		courses:      "강의",
		library:      "도서관",
		meals:        "식단",
		seats:        "잔여 좌석 %d/%d",
	},
}

func catalogFor(locale string) messages {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(locale, "-_"); i > 0 {
		locale = locale[:i]
	}
	if m, ok := catalogs[locale]; ok {
		return m
	}
	return catalogs["en"]
}

// Apology returns the generic failure text for locale.
func Apology(locale string) string { return catalogFor(locale).apology }

// compileText merges the model's final text with the accumulated results.
// Without model text the results are summarized instead. A requirement
// summary block is appended whenever curriculum data was retrieved.
func compileText(text string, acc Accumulated, locale string) string {
	m := catalogFor(locale)
	var parts []string

	if text = strings.TrimSpace(text); text != "" {
		parts = append(parts, text)
	} else if summary := summarize(acc, m); summary != "" {
		parts = append(parts, summary)
	}
	if acc.Curriculum != nil {
		parts = append(parts, requirementSummary(*acc.Curriculum, m))
	}
	if len(acc.NeedsLogin) > 0 {
		parts = append(parts, fmt.Sprintf(m.needsLogin, strings.Join(acc.NeedsLogin, ", ")))
	}
	if len(parts) == 0 && len(acc.Failures) > 0 {
		tools := make([]string, 0, len(acc.Failures))
		for _, f := range acc.Failures {
			tools = appendUnique(tools, f.Tool)
		}
		parts = append(parts, fmt.Sprintf(m.toolFailed, strings.Join(tools, ", ")))
	}
	if len(parts) == 0 {
		return m.noResults
	}
	return strings.Join(parts, "\n\n")
}

func summarize(acc Accumulated, m messages) string {
	var b strings.Builder
	section := func(title string, lines []string) {
		if len(lines) == 0 {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(title)
		b.WriteString(":\n")
		for i, l := range lines {
			if i == summaryItems {
				fmt.Fprintf(&b, "- … (+%d)\n", len(lines)-summaryItems)
				break
			}
			b.WriteString("- ")
			b.WriteString(l)
			b.WriteString("\n")
		}
	}

	section(m.locations, mapLines(acc.Locations, func(l dispatch.Location) string {
		return joinNonEmpty(" ", l.Name, paren(l.Building), l.Description)
	}))
	section(m.notices, mapLines(acc.Notices, func(n dispatch.Notice) string {
		return joinNonEmpty(" ", n.Title, paren(n.Date), n.URL)
	}))
	section(m.courses, mapLines(acc.Courses, func(c dispatch.Course) string {
		return joinNonEmpty(" ", c.Code, c.Name, paren(c.Professor), c.Schedule)
	}))
	section(m.library, mapLines(acc.Library, func(l dispatch.LibraryStatus) string {
		seats := ""
		if l.SeatsTotal > 0 {
			seats = fmt.Sprintf(m.seats, l.SeatsAvailable, l.SeatsTotal)
		}
		return joinNonEmpty(" ", l.Name, l.Hours, l.Status, seats)
	}))
	section(m.meals, mapLines(acc.Meals, func(meal dispatch.Meal) string {
		head := joinNonEmpty(" ", meal.Cafeteria, meal.Meal)
		return joinNonEmpty(": ", head, strings.Join(meal.Menu, ", "))
	}))
	for _, t := range acc.Texts {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(strings.TrimSpace(t))
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func requirementSummary(c dispatch.Curriculum, m messages) string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(m.requirements)
	var scope []string
	if c.Program != "" {
		scope = append(scope, c.Program)
	}
	if c.Year != 0 {
		scope = append(scope, fmt.Sprintf(m.admission, c.Year))
	}
	if len(scope) > 0 {
		b.WriteString(" · ")
		b.WriteString(strings.Join(scope, ", "))
	}
	b.WriteString("]\n")

	credit := func(label string, v float64) {
		if v > 0 {
			fmt.Fprintf(&b, "- %s: %s\n", label, formatCredits(v))
		}
	}
	credit(m.total, c.TotalCredits)
	credit(m.major, c.MajorCredits)
	credit(m.general, c.GeneralCredits)
	for _, cat := range c.Categories {
		credit(cat.Name, cat.Credits)
	}
	if len(c.Notes) > 0 {
		fmt.Fprintf(&b, "%s:\n", m.notes)
		for _, n := range c.Notes {
			fmt.Fprintf(&b, "- %s\n", n)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatCredits(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func mapLines[T any](items []T, fn func(T) string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if line := strings.TrimSpace(fn(it)); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func paren(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return "(" + strings.TrimSpace(s) + ")"
}
