package agent

import (
	"slices"

	"github.com/Protocol-Lattice/campus-agent/src/dispatch"
)

// ToolFailure is a tool call that produced an error result.
type ToolFailure struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
}

// ToolOutput is data from a tool without a semantic category.
type ToolOutput struct {
	Tool string `json:"tool"`
	Data any    `json:"data"`
}

// Accumulated merges the tool results of one query by category. Values are
// never shared with earlier states.
type Accumulated struct {
	Locations  []dispatch.Location
	Notices    []dispatch.Notice
	Courses    []dispatch.Course
	Curriculum *dispatch.Curriculum
	Library    []dispatch.LibraryStatus
	Meals      []dispatch.Meal
	Texts      []string
	Extras     []ToolOutput

	ToolsUsed  []string
	NeedsLogin []string
	Failures   []ToolFailure
}

// Accumulate folds one tool result into state and returns the new state.
// state is left unchanged.
func Accumulate(state Accumulated, tool string, r dispatch.Result) Accumulated {
	next := state.clone()
	next.ToolsUsed = appendUnique(next.ToolsUsed, tool)

	switch r.Kind {
	case dispatch.KindNeedsLogin:
		next.NeedsLogin = appendUnique(next.NeedsLogin, tool)
	case dispatch.KindError:
		next.Failures = append(next.Failures, ToolFailure{Tool: tool, Message: r.Error})
	case dispatch.KindText:
		if r.Text != "" {
			next.Texts = append(next.Texts, r.Text)
		}
	case dispatch.KindData:
		switch data := r.Data.(type) {
		case []dispatch.Location:
			next.Locations = appendUnique(next.Locations, data...)
		case []dispatch.Notice:
			next.Notices = appendUnique(next.Notices, data...)
		case []dispatch.Course:
			next.Courses = appendUnique(next.Courses, data...)
		case []dispatch.LibraryStatus:
			next.Library = appendUnique(next.Library, data...)
		case []dispatch.Meal:
			next.Meals = mergeMeals(next.Meals, data)
		case dispatch.Curriculum:
			c := data
			c.Notes = slices.Clone(data.Notes)
			c.Categories = slices.Clone(data.Categories)
			next.Curriculum = &c
		default:
			next.Extras = append(next.Extras, ToolOutput{Tool: tool, Data: r.Data})
		}
	}
	return next
}

// Empty reports whether no tool returned anything usable.
func (a Accumulated) Empty() bool {
	return len(a.Locations) == 0 && len(a.Notices) == 0 && len(a.Courses) == 0 &&
		a.Curriculum == nil && len(a.Library) == 0 && len(a.Meals) == 0 &&
		len(a.Texts) == 0 && len(a.Extras) == 0
}

func (a Accumulated) clone() Accumulated {
	out := Accumulated{
		Locations:  slices.Clone(a.Locations),
		Notices:    slices.Clone(a.Notices),
		Courses:    slices.Clone(a.Courses),
		Library:    slices.Clone(a.Library),
		Meals:      slices.Clone(a.Meals),
		Texts:      slices.Clone(a.Texts),
		Extras:     slices.Clone(a.Extras),
		ToolsUsed:  slices.Clone(a.ToolsUsed),
		NeedsLogin: slices.Clone(a.NeedsLogin),
		Failures:   slices.Clone(a.Failures),
	}
	if a.Curriculum != nil {
		c := *a.Curriculum
		out.Curriculum = &c
	}
	return out
}

func appendUnique[T comparable](dst []T, items ...T) []T {
	for _, it := range items {
		if !slices.Contains(dst, it) {
			dst = append(dst, it)
		}
	}
	return dst
}

// mergeMeals keeps one entry per cafeteria, date and meal; later results
// replace earlier ones.
func mergeMeals(dst, items []dispatch.Meal) []dispatch.Meal {
	for _, m := range items {
		m.Menu = slices.Clone(m.Menu)
		i := slices.IndexFunc(dst, func(e dispatch.Meal) bool {
			return e.Cafeteria == m.Cafeteria && e.Date == m.Date && e.Meal == m.Meal
		})
		if i >= 0 {
			dst[i] = m
			continue
		}
		dst = append(dst, m)
	}
	return dst
}
