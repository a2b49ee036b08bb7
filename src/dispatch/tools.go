// Package dispatch maps tool names requested by the reasoning model onto
// provider operations. It resolves context-dependent arguments, consults the
// result cache, invokes the provider and normalizes whatever comes back into
// one schema per category.
package dispatch

import "time"

// Category is the semantic bucket a tool's results are accumulated under.
type Category string

const (
	CategoryNone       Category = ""
	CategoryLocations  Category = "locations"
	CategoryNotices    Category = "notices"
	CategoryCourses    Category = "courses"
	CategoryCurriculum Category = "curriculum"
	CategoryLibrary    Category = "library"
	CategoryMeals      Category = "meals"
)

// Tool is one row of the dispatch table.
type Tool struct {
	Name        string
	Description string
	Provider    string
	Operation   string
	Category    Category

	// Cacheable enables the result cache. It has no effect on tools that
	// are side-effecting, real-time or credentialed; see NeverCached.
	Cacheable bool
	TTL       time.Duration
	Timeout   time.Duration
	Retries   int

	// SideEffect tools change provider state; RealTime tools return data
	// that is stale as soon as it is read.
	SideEffect bool
	RealTime   bool

	// NeedsCredentials tools answer needs_login without spawning a provider
	// when the session carries no credentials for Provider.
	NeedsCredentials bool

	Args       []Arg
	Parameters map[string]any // JSON schema advertised to the model
}

// DefaultTools is the campus tool table.
func DefaultTools() []Tool {
	return []Tool{
		{
			Name:        "search_locations",
			Description: "Find campus buildings, rooms and facilities by name or keyword.",
			Provider:    "locations",
			Operation:   "search_location",
			Category:    CategoryLocations,
			Cacheable:   true,
			TTL:         24 * time.Hour,
			Timeout:     15 * time.Second,
			Retries:     2,
			Args: []Arg{
				{Name: "query", Trim: true},
				{Name: "campus", FromSession: sessionCampus, Fallback: "main"},
			},
			Parameters: object(map[string]any{
				"query":  prop("string", "Building, room or facility name"),
				"campus": prop("string", "Campus identifier; defaults to the user's campus"),
			}, "query"),
		},
		{
			Name:        "get_notices",
			Description: "List recent university notices, optionally filtered by category or keyword.",
			Provider:    "notices",
			Operation:   "get_notices",
			Category:    CategoryNotices,
			Cacheable:   true,
			TTL:         10 * time.Minute,
			Timeout:     20 * time.Second,
			Retries:     2,
			Args: []Arg{
				{Name: "category", Fallback: "all", Lower: true},
				{Name: "keyword", Trim: true},
				{Name: "limit", Fallback: 10, Integer: true},
			},
			Parameters: object(map[string]any{
				"category": prop("string", "academic, scholarship, event, employment or all"),
				"keyword":  prop("string", "Optional keyword filter"),
				"limit":    prop("integer", "Maximum number of notices"),
			}),
		},
		{
			Name:        "search_courses",
			Description: "Search the course catalog by name, code or professor for a term.",
			Provider:    "courses",
			Operation:   "search_courses",
			Category:    CategoryCourses,
			Cacheable:   true,
			TTL:         6 * time.Hour,
			Timeout:     25 * time.Second,
			Retries:     2,
			Args: []Arg{
				{Name: "query", Trim: true},
				{Name: "term", Rewrite: RewriteTerm, FromSession: configTerm},
			},
			Parameters: object(map[string]any{
				"query": prop("string", "Course name, code or professor"),
				"term":  prop("string", "Term such as 2025-1, or \"current\""),
			}, "query"),
		},
		{
			Name:        "get_requirements",
			Description: "Get graduation requirements (credit totals and categories) for a program and admission year.",
			Provider:    "requirements",
			Operation:   "get_graduation_requirements",
			Category:    CategoryCurriculum,
			Cacheable:   true,
			TTL:         24 * time.Hour,
			Timeout:     30 * time.Second,
			Retries:     2,
			Args: []Arg{
				{Name: "program", FromSession: sessionProgram, Lower: true},
				{Name: "year", FromSession: sessionAdmissionYear, Rewrite: RewriteYear, Integer: true},
			},
			Parameters: object(map[string]any{
				"program": prop("string", "Program or major, e.g. computer-science"),
				"year":    prop("string", "Admission year such as 2024, or \"latest\""),
			}),
		},
		{
			Name:        "get_library_info",
			Description: "Get library opening hours and general status.",
			Provider:    "library",
			Operation:   "get_library_info",
			Category:    CategoryLibrary,
			Cacheable:   true,
			TTL:         time.Hour,
			Timeout:     15 * time.Second,
			Retries:     1,
			Args:        []Arg{{Name: "library", Fallback: "central", Lower: true}},
			Parameters: object(map[string]any{
				"library": prop("string", "Library branch; defaults to central"),
			}),
		},
		{
			Name:        "get_library_seats",
			Description: "Get real-time reading room seat availability.",
			Provider:    "library",
			Operation:   "get_seat_status",
			Category:    CategoryLibrary,
			RealTime:    true,
			Timeout:     15 * time.Second,
			Retries:     1,
			Args:        []Arg{{Name: "library", Fallback: "central", Lower: true}, {Name: "room", Trim: true}},
			Parameters: object(map[string]any{
				"library": prop("string", "Library branch"),
				"room":    prop("string", "Reading room name"),
			}),
		},
		{
			Name:             "get_library_loans",
			Description:      "List the signed-in user's current library loans and due dates.",
			Provider:         "library",
			Operation:        "get_my_loans",
			Timeout:          20 * time.Second,
			Retries:          1,
			NeedsCredentials: true,
			Parameters:       object(map[string]any{}),
		},
		{
			Name:             "reserve_library_seat",
			Description:      "Reserve a reading room seat for the signed-in user.",
			Provider:         "library",
			Operation:        "reserve_seat",
			SideEffect:       true,
			Timeout:          20 * time.Second,
			NeedsCredentials: true,
			Args:             []Arg{{Name: "room", Trim: true}, {Name: "seat", Integer: true}},
			Parameters: object(map[string]any{
				"room": prop("string", "Reading room name"),
				"seat": prop("integer", "Seat number"),
			}, "room", "seat"),
		},
		{
			Name:        "get_meals",
			Description: "Get cafeteria menus for a date and meal.",
			Provider:    "meals",
			Operation:   "get_meals",
			Category:    CategoryMeals,
			Cacheable:   true,
			TTL:         30 * time.Minute,
			Timeout:     15 * time.Second,
			Retries:     2,
			Args: []Arg{
				{Name: "date", Fallback: "today", Lower: true},
				{Name: "campus", FromSession: sessionCampus, Fallback: "main"},
				{Name: "cafeteria", Fallback: "all", Lower: true},
				{Name: "meal", Fallback: "all", Lower: true},
			},
			Parameters: object(map[string]any{
				"date":      prop("string", "YYYY-MM-DD, today or tomorrow"),
				"campus":    prop("string", "Campus identifier; defaults to the user's campus"),
				"cafeteria": prop("string", "Cafeteria name or all"),
				"meal":      prop("string", "breakfast, lunch, dinner or all"),
			}),
		},
	}
}

// NeverCached reports whether the tool is on the cache denylist. The
// denylist cannot be overridden by Cacheable.
func (t Tool) NeverCached() bool {
	return t.SideEffect || t.RealTime || t.NeedsCredentials
}

// Caches reports whether results of the tool are read from and written to
// the cache.
func (t Tool) Caches() bool {
	return t.Cacheable && !t.NeverCached()
}

func object(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{"type": "object", "properties": properties}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func prop(typ, description string) map[string]any {
	return map[string]any{"type": typ, "description": description}
}
