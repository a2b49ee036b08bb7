package agent

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

type Classification string

const (
	Simple  Classification = "simple"
	Complex Classification = "complex"
)

// DefaultLongQuestionRunes is the length above which an unmatched question
// counts as complex.
const DefaultLongQuestionRunes = 120

type rule struct {
	pattern *regexp.Regexp
	tag     string
}

// complexRules are checked first; any match makes the question complex.
var complexRules = []rule{
	{regexp.MustCompile(`(?i)\b(compare|comparison|versus|vs\.?|difference between)\b|비교|차이`), "comparison"},
	{regexp.MustCompile(`(?i)\b(graduat\w*|requirements?|curriculum|credits?)\b|졸업|이수|학점|교육과정`), "requirements"},
	{regexp.MustCompile(`(?i)\b(recommend\w*|plan|should i|which courses)\b|추천|계획`), "planning"},
	{regexp.MustCompile(`(?i)\b(why|how come|explain)\b|왜|설명해`), "reasoning"},
	{regexp.MustCompile(`(?i)\b(and then|as well as|also)\b|그리고|또한`), "multi_part"},
	{regexp.MustCompile(`(?i)\b(reserve|book a seat|my loans?|borrowed)\b|예약|대출`), "personal"},
}

// simpleRules mark questions a short answer can satisfy.
var simpleRules = []rule{
	{regexp.MustCompile(`(?i)^\s*(hi|hello|hey|thanks|thank you)\b|안녕|고마워|감사합니다`), "greeting"},
	{regexp.MustCompile(`(?i)\b(menu|lunch|dinner|breakfast|cafeteria)\b|학식|메뉴|식단`), "meals"},
	{regexp.MustCompile(`(?i)\b(notices?|announcements?)\b|공지`), "notices"},
	{regexp.MustCompile(`(?i)\b(library|opening hours|seats?)\b|도서관|열람실`), "library"},
	{regexp.MustCompile(`(?i)\b(where is|building|located)\b|어디|위치|건물`), "location"},
	{regexp.MustCompile(`(?i)^\s*(what|when|who)\b|뭐야|언제`), "lookup"},
}

// Classifier routes questions between the local and the remote path. It is
// pure and safe for concurrent use.
type Classifier struct {
	// DefaultComplex decides questions no rule or heuristic matched.
	DefaultComplex    bool
	LongQuestionRunes int
}

// Classify returns the class of text and the tags that decided it.
func (c Classifier) Classify(text string) (Classification, []string) {
	text = strings.TrimSpace(text)
	if tags := match(complexRules, text); len(tags) > 0 {
		return Complex, tags
	}
	if tags := match(simpleRules, text); len(tags) > 0 {
		return Simple, tags
	}

	limit := c.LongQuestionRunes
	if limit <= 0 {
		limit = DefaultLongQuestionRunes
	}
	if utf8.RuneCountInString(text) > limit {
		return Complex, []string{"long"}
	}
	if strings.Count(text, "?")+strings.Count(text, "？") >= 2 {
		return Complex, []string{"multi_question"}
	}
	if c.DefaultComplex {
		return Complex, []string{"default"}
	}
	return Simple, []string{"default"}
}

// Classify uses the zero Classifier.
func Classify(text string) Classification {
	class, _ := Classifier{}.Classify(text)
	return class
}

func match(rules []rule, text string) []string {
	var tags []string
	for _, r := range rules {
		if r.pattern.MatchString(text) {
			tags = append(tags, r.tag)
		}
	}
	return tags
}
