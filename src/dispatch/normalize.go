package dispatch

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type Location struct {
	Name        string  `json:"name"`
	Building    string  `json:"building,omitempty"`
	Code        string  `json:"code,omitempty"`
	Latitude    float64 `json:"latitude,omitempty"`
	Longitude   float64 `json:"longitude,omitempty"`
	Description string  `json:"description,omitempty"`
}

type Notice struct {
	Title    string `json:"title"`
	URL      string `json:"url,omitempty"`
	Date     string `json:"date,omitempty"`
	Category string `json:"category,omitempty"`
	Author   string `json:"author,omitempty"`
}

type Course struct {
	Code      string  `json:"code,omitempty"`
	Name      string  `json:"name"`
	Professor string  `json:"professor,omitempty"`
	Credits   float64 `json:"credits,omitempty"`
	Schedule  string  `json:"schedule,omitempty"`
	Room      string  `json:"room,omitempty"`
	Year      int     `json:"year,omitempty"`
	Semester  string  `json:"semester,omitempty"`
}

// CreditCategory is one bucket of a graduation requirement.
type CreditCategory struct {
	Name    string  `json:"name"`
	Credits float64 `json:"credits"`
}

type Curriculum struct {
	Program        string           `json:"program,omitempty"`
	Year           int              `json:"year,omitempty"`
	TotalCredits   float64          `json:"total_credits,omitempty"`
	MajorCredits   float64          `json:"major_credits,omitempty"`
	GeneralCredits float64          `json:"general_credits,omitempty"`
	Notes          []string         `json:"notes,omitempty"`
	Categories     []CreditCategory `json:"categories,omitempty"`
}

type LibraryStatus struct {
	Name           string `json:"name"`
	Hours          string `json:"hours,omitempty"`
	Status         string `json:"status,omitempty"`
	SeatsAvailable int    `json:"seats_available,omitempty"`
	SeatsTotal     int    `json:"seats_total,omitempty"`
}

type Meal struct {
	Cafeteria string   `json:"cafeteria,omitempty"`
	Date      string   `json:"date,omitempty"`
	Meal      string   `json:"meal,omitempty"`
	Menu      []string `json:"menu"`
	Price     string   `json:"price,omitempty"`
}

// listKeys are probed, after the category name, to find the item list in an
// object payload.
var listKeys = []string{"results", "items", "data", "list", "rows"}

// normalize maps a decoded payload into the canonical value for category.
// CategoryNone payloads are returned unchanged.
func normalize(category Category, value any) any {
	switch category {
	case CategoryLocations:
		return mapItems(items(value, "locations", "places", "buildings"), toLocation)
	case CategoryNotices:
		return mapItems(items(value, "notices", "posts", "articles"), toNotice)
	case CategoryCourses:
		return mapItems(items(value, "courses", "lectures", "classes"), toCourse)
	case CategoryCurriculum:
		return toCurriculum(single(value, "curriculum", "requirements", "requirement"))
	case CategoryLibrary:
		return mapItems(items(value, "libraries", "rooms", "seats"), toLibrary)
	case CategoryMeals:
		return mapItems(items(value, "meals", "menus", "cafeterias"), toMeal)
	}
	return value
}

func items(value any, keys ...string) []map[string]any {
	switch v := value.(type) {
	case []any:
		return objects(v)
	case map[string]any:
		for _, k := range append(keys, listKeys...) {
			if list, ok := v[k].([]any); ok {
				return objects(list)
			}
		}
		return []map[string]any{v}
	}
	return nil
}

func single(value any, keys ...string) map[string]any {
	switch v := value.(type) {
	case map[string]any:
		for _, k := range keys {
			if inner, ok := v[k].(map[string]any); ok {
				return inner
			}
		}
		return v
	case []any:
		if objs := objects(v); len(objs) > 0 {
			return objs[0]
		}
	}
	return map[string]any{}
}

func objects(list []any) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func mapItems[T any](in []map[string]any, fn func(map[string]any) T) []T {
	out := make([]T, 0, len(in))
	for _, m := range in {
		out = append(out, fn(m))
	}
	return out
}

func toLocation(m map[string]any) Location {
	return Location{
		Name:        str(m, "name", "title", "place", "building_name"),
		Building:    str(m, "building", "building_name", "bldg"),
		Code:        str(m, "code", "building_code", "id"),
		Latitude:    num(m, "latitude", "lat"),
		Longitude:   num(m, "longitude", "lng", "lon"),
		Description: str(m, "description", "desc", "summary", "address"),
	}
}

func toNotice(m map[string]any) Notice {
	return Notice{
		Title:    str(m, "title", "subject", "name"),
		URL:      str(m, "url", "link", "href"),
		Date:     str(m, "date", "posted_at", "created_at", "published"),
		Category: str(m, "category", "type", "board"),
		Author:   str(m, "author", "writer", "department"),
	}
}

func toCourse(m map[string]any) Course {
	return Course{
		Code:      str(m, "code", "course_code", "course_id"),
		Name:      str(m, "name", "title", "course_name"),
		Professor: str(m, "professor", "instructor", "teacher"),
		Credits:   num(m, "credits", "credit", "units"),
		Schedule:  str(m, "schedule", "time", "timetable"),
		Room:      str(m, "room", "classroom", "location"),
		Year:      int(num(m, "year", "grade")),
		Semester:  str(m, "semester", "term"),
	}
}

func toCurriculum(m map[string]any) Curriculum {
	c := Curriculum{
		Program:        str(m, "program", "major", "department"),
		Year:           int(num(m, "year", "admission_year")),
		TotalCredits:   num(m, "total_credits", "total", "required_credits"),
		MajorCredits:   num(m, "major_credits", "major_required"),
		GeneralCredits: num(m, "general_credits", "liberal_arts", "general"),
		Notes:          strs(m, "notes", "remarks", "note"),
	}
	for _, cat := range objects(list(m, "categories", "requirements", "areas")) {
		c.Categories = append(c.Categories, CreditCategory{
			Name:    str(cat, "name", "category", "area"),
			Credits: num(cat, "credits", "required", "min_credits"),
		})
	}
	return c
}

func toLibrary(m map[string]any) LibraryStatus {
	return LibraryStatus{
		Name:           str(m, "name", "library", "room"),
		Hours:          str(m, "hours", "opening_hours", "open_hours"),
		Status:         str(m, "status", "state"),
		SeatsAvailable: int(num(m, "seats_available", "available_seats", "available", "free")),
		SeatsTotal:     int(num(m, "seats_total", "total_seats", "total", "capacity")),
	}
}

func toMeal(m map[string]any) Meal {
	menu := strs(m, "menu", "items", "dishes")
	if menu == nil {
		menu = []string{}
	}
	return Meal{
		Cafeteria: str(m, "cafeteria", "restaurant", "place", "location"),
		Date:      str(m, "date"),
		Meal:      str(m, "meal", "meal_type", "type", "time"),
		Menu:      menu,
		Price:     str(m, "price", "cost"),
	}
}

func str(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(v)
		}
	}
	return ""
}

func num(m map[string]any, keys ...string) float64 {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			return v
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && !math.IsNaN(f) {
				return f
			}
		}
	}
	return 0
}

func list(m map[string]any, keys ...string) []any {
	for _, k := range keys {
		if l, ok := m[k].([]any); ok {
			return l
		}
	}
	return nil
}

// strs reads a list of strings, or splits a comma or newline separated
// string.
func strs(m map[string]any, keys ...string) []string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case []any:
			out := make([]string, 0, len(v))
			for _, item := range v {
				if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
					out = append(out, s)
				}
			}
			return out
		case string:
			var out []string
			for _, part := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == '\n' }) {
				if s := strings.TrimSpace(part); s != "" {
					out = append(out, s)
				}
			}
			if out != nil {
				return out
			}
		}
	}
	return nil
}
