package agent

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Protocol-Lattice/campus-agent/src/dispatch"
)

func TestCompileTextAppendsRequirementSummary(t *testing.T) {
	acc := Accumulated{Curriculum: &dispatch.Curriculum{
		Program:      "software",
		Year:         2023,
		TotalCredits: 130,
		MajorCredits: 72.5,
		Categories:   []dispatch.CreditCategory{{Name: "Capstone", Credits: 6}},
		Notes:        []string{"TOPIK level 4 for international students"},
	}}

	got := compileText("Here you go.", acc, "en")
	want := "Here you go.\n\n" +
		"[Graduation requirements · software, 2023 admission]\n" +
		"- Total credits: 130\n" +
		"- Major credits: 72.5\n" +
		"- Capstone: 6\n" +
		"Notes:\n" +
		"- TOPIK level 4 for international students"
	assert.Equal(t, want, got)

	ko := compileText("", acc, "ko")
	assert.True(t, strings.HasPrefix(ko, "[졸업요건 요약 · software, 2023학번]"), ko)
	assert.Contains(t, ko, "- 총 이수학점: 130")
}

func TestCompileTextSummarizesWithoutModelText(t *testing.T) {
	var notices []dispatch.Notice
	for i := 1; i <= 7; i++ {
		notices = append(notices, dispatch.Notice{Title: fmt.Sprintf("Notice %d", i)})
	}
	acc := Accumulated{
		Notices: notices,
		Meals:   []dispatch.Meal{{Cafeteria: "Union", Meal: "lunch", Menu: []string{"rice", "soup"}}},
		Texts:   []string{"  Library closes early on Friday.  "},
	}

	got := compileText("   ", acc, "en")
	assert.Contains(t, got, "Notices:\n- Notice 1\n")
	assert.Contains(t, got, "- Notice 5\n- … (+2)")
	assert.NotContains(t, got, "Notice 6")
	assert.Contains(t, got, "Meals:\n- Union lunch: rice, soup")
	assert.True(t, strings.HasSuffix(got, "Library closes early on Friday."))
}

func TestCompileTextEmptyAndFailures(t *testing.T) {
	assert.Equal(t, "I couldn't find any matching campus information.", compileText("", Accumulated{}, "fr"))
	assert.Equal(t, "일치하는 캠퍼스 정보를 찾지 못했습니다.", compileText("", Accumulated{}, "ko_KR"))

	acc := Accumulated{Failures: []ToolFailure{{Tool: "get_meals"}, {Tool: "get_meals"}, {Tool: "get_notices"}}}
	assert.Equal(t, "Some information could not be retrieved: get_meals, get_notices.", compileText("", acc, "en"))
}

func TestMatchIntent(t *testing.T) {
	cases := map[string]string{
		"what are the graduation requirements":  "get_requirements",
		"23학번 졸업요건":                             "get_requirements",
		"lunch menu at the student union":       "get_meals",
		"오늘 점심 뭐 나와?":                           "get_meals",
		"any new announcements":                 "get_notices",
		"장학 공지":                                 "get_notices",
		"requirements for the dinner reception": "get_requirements",
	}
	for text, tool := range cases {
		in, ok := matchIntent(text)
		if assert.True(t, ok, text) {
			assert.Equal(t, tool, in.tool, text)
		}
	}
	_, ok := matchIntent("where is parking lot B")
	assert.False(t, ok)
}

func TestCatalogSpecs(t *testing.T) {
	c, err := NewToolCatalog(dispatch.DefaultTools())
	assert.NoError(t, err)
	specs := c.Specs()
	assert.Len(t, specs, len(dispatch.DefaultTools()))
	assert.Equal(t, "search_locations", specs[0].Name)
	assert.Equal(t, "object", specs[0].Parameters["type"])

	_, ok := c.Lookup("GET_MEALS")
	assert.True(t, ok)

	_, err = NewToolCatalog([]dispatch.Tool{{Name: "a"}, {Name: "A"}})
	assert.Error(t, err)
	_, err = NewToolCatalog([]dispatch.Tool{{Name: " "}})
	assert.Error(t, err)
}
