package agent

import (
	"time"

	"github.com/Protocol-Lattice/campus-agent/src/dispatch"
)

// Query is one question from an upstream caller.
type Query struct {
	Text    string
	Session dispatch.Session
}

// RoutingDecision records which path produced a Response.
type RoutingDecision string

const (
	DecisionLocal               RoutingDecision = "local"
	DecisionRemote              RoutingDecision = "remote"
	DecisionRemotePartial       RoutingDecision = "remote_partial"
	DecisionRemoteMaxIterations RoutingDecision = "remote_max_iterations"
	DecisionFallbackDirect      RoutingDecision = "fallback_direct"
	DecisionApology             RoutingDecision = "apology"
)

// Response is the compiled answer. Ask always returns one.
type Response struct {
	Text            string          `json:"text"`
	Classification  Classification  `json:"classification"`
	RoutingDecision RoutingDecision `json:"routing_decision"`
	ToolsUsed       []string        `json:"tools_used"`
	NeedsLogin      []string        `json:"needs_login,omitempty"`

	Locations  []dispatch.Location      `json:"locations,omitempty"`
	Notices    []dispatch.Notice        `json:"notices,omitempty"`
	Courses    []dispatch.Course        `json:"courses,omitempty"`
	Curriculum *dispatch.Curriculum     `json:"curriculum,omitempty"`
	Library    []dispatch.LibraryStatus `json:"library,omitempty"`
	Meals      []dispatch.Meal          `json:"meals,omitempty"`

	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Latency   time.Duration `json:"-"`
	LatencyMS int64         `json:"latency_ms"`
}

func responseFrom(acc Accumulated) Response {
	tools := acc.ToolsUsed
	if tools == nil {
		tools = []string{}
	}
	return Response{
		ToolsUsed:  tools,
		NeedsLogin: acc.NeedsLogin,
		Locations:  acc.Locations,
		Notices:    acc.Notices,
		Courses:    acc.Courses,
		Curriculum: acc.Curriculum,
		Library:    acc.Library,
		Meals:      acc.Meals,
		Success:    true,
	}
}
