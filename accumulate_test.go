package agent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Protocol-Lattice/campus-agent/src/dispatch"
)

func data(tool string, category dispatch.Category, v any) dispatch.Result {
	return dispatch.Result{Tool: tool, Category: category, Kind: dispatch.KindData, Data: v}
}

func TestAccumulateMergesByCategory(t *testing.T) {
	var acc Accumulated
	acc = Accumulate(acc, "get_notices", data("get_notices", dispatch.CategoryNotices, []dispatch.Notice{{Title: "A"}, {Title: "B"}}))
	acc = Accumulate(acc, "get_notices", data("get_notices", dispatch.CategoryNotices, []dispatch.Notice{{Title: "B"}, {Title: "C"}}))
	acc = Accumulate(acc, "search_locations", data("search_locations", dispatch.CategoryLocations, []dispatch.Location{{Name: "Gym"}}))
	acc = Accumulate(acc, "get_requirements", data("get_requirements", dispatch.CategoryCurriculum, dispatch.Curriculum{Program: "software", TotalCredits: 130}))
	acc = Accumulate(acc, "reserve_library_seat", data("reserve_library_seat", dispatch.CategoryNone, map[string]any{"ok": true}))
	acc = Accumulate(acc, "get_library_info", dispatch.Result{Kind: dispatch.KindText, Text: "Closed for holidays"})

	assert.Equal(t, []dispatch.Notice{{Title: "A"}, {Title: "B"}, {Title: "C"}}, acc.Notices)
	assert.Equal(t, []dispatch.Location{{Name: "Gym"}}, acc.Locations)
	assert.Equal(t, "software", acc.Curriculum.Program)
	assert.Equal(t, []ToolOutput{{Tool: "reserve_library_seat", Data: map[string]any{"ok": true}}}, acc.Extras)
	assert.Equal(t, []string{"Closed for holidays"}, acc.Texts)
	assert.Equal(t, []string{"get_notices", "search_locations", "get_requirements", "reserve_library_seat", "get_library_info"}, acc.ToolsUsed)
	assert.False(t, acc.Empty())
}

func TestAccumulateRecordsFailuresAndLogin(t *testing.T) {
	var acc Accumulated
	acc = Accumulate(acc, "get_meals", dispatch.Result{Kind: dispatch.KindError, Error: "timeout", Err: errors.New("timeout")})
	acc = Accumulate(acc, "get_library_loans", dispatch.Result{Kind: dispatch.KindNeedsLogin, NeedsLogin: true})
	acc = Accumulate(acc, "get_library_loans", dispatch.Result{Kind: dispatch.KindNeedsLogin, NeedsLogin: true})

	assert.Equal(t, []ToolFailure{{Tool: "get_meals", Message: "timeout"}}, acc.Failures)
	assert.Equal(t, []string{"get_library_loans"}, acc.NeedsLogin)
	assert.True(t, acc.Empty())
}

func TestAccumulateLeavesInputUntouched(t *testing.T) {
	base := Accumulate(Accumulated{}, "get_meals", data("get_meals", dispatch.CategoryMeals, []dispatch.Meal{
		{Cafeteria: "Union", Meal: "lunch", Menu: []string{"rice"}},
	}))
	base = Accumulate(base, "get_requirements", data("get_requirements", dispatch.CategoryCurriculum, dispatch.Curriculum{TotalCredits: 120}))

	next := Accumulate(base, "get_meals", data("get_meals", dispatch.CategoryMeals, []dispatch.Meal{
		{Cafeteria: "Union", Meal: "lunch", Menu: []string{"noodles"}},
		{Cafeteria: "Union", Meal: "dinner", Menu: []string{"curry"}},
	}))
	next = Accumulate(next, "get_requirements", data("get_requirements", dispatch.CategoryCurriculum, dispatch.Curriculum{TotalCredits: 130}))

	assert.Equal(t, []string{"rice"}, base.Meals[0].Menu)
	assert.Len(t, base.Meals, 1)
	assert.Equal(t, float64(120), base.Curriculum.TotalCredits)

	assert.Len(t, next.Meals, 2)
	assert.Equal(t, []string{"noodles"}, next.Meals[0].Menu, "same cafeteria and meal is replaced")
	assert.Equal(t, float64(130), next.Curriculum.TotalCredits)
}
