// Package directive defines the textual markers an assistant reply may
// carry and the fail-closed parser that extracts them from prose.
package directive

import "renoplan/internal/task"

// 指令标记（线上兼容契约，必须逐字节一致，不得改动）
// Marker tokens. Wire-level contract: must stay bit-exact for
// compatibility with stored conversations.
const (
	MarkerGeneratePlan      = "[GENERATE_PLAN]"
	markerUpdatePlanPrefix  = "[UPDATE_PLAN:"
	markerSuggestTaskPrefix = "[SUGGEST_TASK:"
	markerSuffix            = "]"
)

// Directive is a machine-actionable instruction embedded in an assistant
// turn, as opposed to prose meant for display.
type Directive interface {
	isDirective()
}

// GeneratePlan signals that enough detail has been gathered and a
// structured plan-generation call should follow. No payload.
type GeneratePlan struct{}

func (GeneratePlan) isDirective() {}

// UpdatePlan carries a partial plan patch agreed with the user.
type UpdatePlan struct {
	Patch task.UpdatePatch
}

func (UpdatePlan) isDirective() {}

// SuggestTask proposes a new task; creation is always an explicit user
// action, never automatic.
type SuggestTask struct {
	Title string `json:"title"`
	Room  string `json:"room"`
}

func (SuggestTask) isDirective() {}

// Result is the parse outcome: prose left for display plus the
// successfully extracted directives in order of appearance.
type Result struct {
	DisplayText string
	Directives  []Directive
}

// FirstUpdate returns the UpdatePlan directive, if one was parsed.
func (r Result) FirstUpdate() (UpdatePlan, bool) {
	for _, d := range r.Directives {
		if up, ok := d.(UpdatePlan); ok {
			return up, true
		}
	}
	return UpdatePlan{}, false
}

// HasGeneratePlan reports whether a plan-generation marker was parsed.
func (r Result) HasGeneratePlan() bool {
	for _, d := range r.Directives {
		if _, ok := d.(GeneratePlan); ok {
			return true
		}
	}
	return false
}

// Suggestions returns the SuggestTask directives in order.
func (r Result) Suggestions() []SuggestTask {
	var out []SuggestTask
	for _, d := range r.Directives {
		if st, ok := d.(SuggestTask); ok {
			out = append(out, st)
		}
	}
	return out
}
