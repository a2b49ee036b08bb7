package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnsupportedTool is reported for tool names missing from the table.
var ErrUnsupportedTool = errors.New("unsupported operation")

// Kind tags which arm of a Result is populated.
type Kind int

const (
	KindData Kind = iota
	KindText
	KindError
	KindNeedsLogin
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindText:
		return "text"
	case KindError:
		return "error"
	case KindNeedsLogin:
		return "needs_login"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Result is the normalized outcome of one dispatch. Exactly one of Data,
// Text, Error or NeedsLogin is meaningful, as reported by Kind.
type Result struct {
	Tool     string
	Category Category
	Kind     Kind

	// Data holds the canonical value: []Location, []Notice, []Course,
	// Curriculum, []LibraryStatus, []Meal, or the decoded payload for
	// uncategorised tools.
	Data       any
	Text       string
	Error      string
	NeedsLogin bool

	Cached bool
	// Err is the underlying failure for errors.Is checks; it is not
	// serialized.
	Err error
}

// OK reports whether the result carries usable data or text.
func (r Result) OK() bool { return r.Kind == KindData || r.Kind == KindText }

// MarshalJSON renders the tagged shape sent back to the model:
// {"data":...}, {"text":...}, {"error":...} or {"needs_login":true}.
func (r Result) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case KindData:
		return json.Marshal(struct {
			Data any `json:"data"`
		}{r.Data})
	case KindText:
		return json.Marshal(struct {
			Text string `json:"text"`
		}{r.Text})
	case KindNeedsLogin:
		return json.Marshal(struct {
			NeedsLogin bool   `json:"needs_login"`
			Message    string `json:"message,omitempty"`
		}{true, r.Error})
	}
	return json.Marshal(struct {
		Error string `json:"error"`
	}{r.Error})
}

// Content is the JSON text of the result for a tool-result message.
func (r Result) Content() string {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	return string(data)
}

func dataResult(tool Tool, data any) Result {
	return Result{Tool: tool.Name, Category: tool.Category, Kind: KindData, Data: data}
}

func textResult(tool Tool, text string) Result {
	return Result{Tool: tool.Name, Category: tool.Category, Kind: KindText, Text: text}
}

func errorResult(name string, category Category, err error) Result {
	return Result{Tool: name, Category: category, Kind: KindError, Error: err.Error(), Err: err}
}

func loginResult(tool Tool, message string) Result {
	return Result{Tool: tool.Name, Category: tool.Category, Kind: KindNeedsLogin, NeedsLogin: true, Error: message}
}

// cachedValue is the stored form of a successful result.
type cachedValue struct {
	Data json.RawMessage `json:"data,omitempty"`
	Text *string         `json:"text,omitempty"`
}

func encodeCached(r Result) ([]byte, error) {
	if r.Kind == KindText {
		return json.Marshal(cachedValue{Text: &r.Text})
	}
	data, err := json.Marshal(r.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(cachedValue{Data: data})
}

func decodeCached(tool Tool, raw []byte) (Result, error) {
	var v cachedValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return Result{}, err
	}
	if v.Text != nil {
		return textResult(tool, *v.Text), nil
	}
	data, err := decodeData(tool.Category, v.Data)
	if err != nil {
		return Result{}, err
	}
	return dataResult(tool, data), nil
}

// decodeData restores the canonical Go type for a category.
func decodeData(category Category, raw json.RawMessage) (any, error) {
	var err error
	switch category {
	case CategoryLocations:
		var v []Location
		err = json.Unmarshal(raw, &v)
		return v, err
	case CategoryNotices:
		var v []Notice
		err = json.Unmarshal(raw, &v)
		return v, err
	case CategoryCourses:
		var v []Course
		err = json.Unmarshal(raw, &v)
		return v, err
	case CategoryCurriculum:
		var v Curriculum
		err = json.Unmarshal(raw, &v)
		return v, err
	case CategoryLibrary:
		var v []LibraryStatus
		err = json.Unmarshal(raw, &v)
		return v, err
	case CategoryMeals:
		var v []Meal
		err = json.Unmarshal(raw, &v)
		return v, err
	}
	var v any
	err = json.Unmarshal(raw, &v)
	return v, err
}
