package dispatch

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Session is the caller context a request arrives with.
type Session struct {
	UserID        string
	Program       string
	AdmissionYear int
	Campus        string
	Locale        string
	// Credentials are passed through to credentialed tools, keyed by
	// provider name. They are never cached or logged.
	Credentials map[string]Credential
	// Question is the raw user text, used for argument hints.
	Question string
}

// Credential is a pass-through login for one provider.
type Credential struct {
	ID     string
	Secret string
}

// Anonymous reports whether the session has no user identity.
func (s Session) Anonymous() bool { return strings.TrimSpace(s.UserID) == "" }

// Defaults are the configured values that replace "latest" and "current"
// and fill arguments no other source supplies.
type Defaults struct {
	AdmissionYear int
	CurrentTerm   string
}

// Rewrite selects how symbolic values such as "latest" are made concrete.
type Rewrite int

const (
	RewriteNone Rewrite = iota
	RewriteYear
	RewriteTerm
)

// Arg declares how one argument is resolved: an explicit value wins, then
// FromSession, then Fallback.
type Arg struct {
	Name        string
	FromSession func(Session, Defaults) (any, bool)
	Fallback    any
	Rewrite     Rewrite
	Trim        bool
	Lower       bool
	Integer     bool
}

// Resolve computes the arguments actually sent to the provider. It is a pure
// function of its inputs and never mutates raw.
func Resolve(tool Tool, raw map[string]any, s Session, d Defaults) map[string]any {
	out := make(map[string]any, len(raw)+len(tool.Args))
	declared := make(map[string]struct{}, len(tool.Args))
	for _, a := range tool.Args {
		declared[a.Name] = struct{}{}
	}
	for k, v := range raw {
		if _, ok := declared[k]; ok || isCredentialArg(k) {
			continue
		}
		if v, ok := explicit(v); ok {
			out[k] = v
		}
	}

	for _, a := range tool.Args {
		v, ok := explicit(raw[a.Name])
		if !ok && a.FromSession != nil {
			v, ok = a.FromSession(s, d)
		}
		if !ok && a.Fallback != nil {
			v, ok = a.Fallback, true
		}
		if !ok {
			continue
		}
		if v, ok = a.apply(v, d); ok {
			out[a.Name] = v
		}
	}

	if tool.NeedsCredentials {
		if cred, ok := s.Credentials[tool.Provider]; ok {
			out["student_id"] = cred.ID
			out["password"] = cred.Secret
		}
	}
	return out
}

func (a Arg) apply(v any, d Defaults) (any, bool) {
	if str, ok := v.(string); ok {
		str = strings.TrimSpace(str)
		if symbolic(str) {
			switch a.Rewrite {
			case RewriteYear:
				if d.AdmissionYear <= 0 {
					return nil, false
				}
				return d.AdmissionYear, true
			case RewriteTerm:
				if d.CurrentTerm == "" {
					return nil, false
				}
				return d.CurrentTerm, true
			}
		}
		if a.Lower {
			str = strings.ToLower(str)
		}
		v = str
	}
	if a.Integer {
		if n, ok := toInt(v); ok {
			return n, true
		}
	}
	return v, true
}

func symbolic(s string) bool {
	switch strings.ToLower(s) {
	case "latest", "current", "newest", "최신", "현재":
		return true
	}
	return false
}

func explicit(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case string:
		t = strings.TrimSpace(t)
		return t, t != ""
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n), true
		}
		f, err := t.Float64()
		return f, err == nil
	}
	return v, true
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		if t == math.Trunc(t) {
			return int(t), true
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n, true
		}
	}
	return 0, false
}

func isCredentialArg(k string) bool {
	return k == "student_id" || k == "password"
}

func sessionCampus(s Session, _ Defaults) (any, bool) {
	c := strings.TrimSpace(s.Campus)
	return c, c != ""
}

func sessionProgram(s Session, _ Defaults) (any, bool) {
	if p := strings.TrimSpace(s.Program); p != "" {
		return p, true
	}
	if p, ok := ProgramHint(s.Question); ok {
		return p, true
	}
	return nil, false
}

func sessionAdmissionYear(s Session, d Defaults) (any, bool) {
	if s.AdmissionYear > 0 {
		return s.AdmissionYear, true
	}
	if y, ok := YearHint(s.Question); ok {
		return y, true
	}
	if d.AdmissionYear > 0 {
		return d.AdmissionYear, true
	}
	return nil, false
}

func configTerm(_ Session, d Defaults) (any, bool) {
	return d.CurrentTerm, d.CurrentTerm != ""
}

var (
	cohortPattern = regexp.MustCompile(`(\d{2})\s*학번`)
	yearPattern   = regexp.MustCompile(`(?:^|\D)(20\d{2})(?:\D|$)`)
)

// YearHint extracts an admission year from question text: "24학번" or a
// four-digit 20xx year.
func YearHint(text string) (int, bool) {
	if m := cohortPattern.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return 2000 + n, true
	}
	if m := yearPattern.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, true
	}
	return 0, false
}

type programRule struct {
	pattern *regexp.Regexp
	program string
}

// programRules are checked in order; the first match wins.
var programRules = []programRule{
	{regexp.MustCompile(`(?i)computer[\s-]*science|컴퓨터\s*공학|컴퓨터\s*과학|컴공`), "computer-science"},
	{regexp.MustCompile(`(?i)software|소프트웨어`), "software"},
	{regexp.MustCompile(`(?i)electrical|electronic|전자|전기`), "electrical-engineering"},
	{regexp.MustCompile(`(?i)mechanical|기계`), "mechanical-engineering"},
	{regexp.MustCompile(`(?i)business|경영`), "business-administration"},
	{regexp.MustCompile(`(?i)math(ematics)?|수학`), "mathematics"},
}

// ProgramHint maps question text onto a program identifier.
func ProgramHint(text string) (string, bool) {
	for _, r := range programRules {
		if r.pattern.MatchString(text) {
			return r.program, true
		}
	}
	return "", false
}
