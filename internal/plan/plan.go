// Package plan defines the structured payload a plan-generation call must
// return, its validation, and post-generation normalization.
package plan

import (
	"encoding/json"
	"fmt"
	"strings"

	"renoplan/internal/task"
)

type checklistPayload struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

type materialPayload struct {
	Text         string `json:"text"`
	Done         bool   `json:"done"`
	Cost         string `json:"cost,omitempty"`
	PurchaseLink string `json:"purchaseLink,omitempty"`
}

type toolPayload struct {
	Text  string `json:"text"`
	Owned bool   `json:"owned"`
}

// Payload 计划生成调用的结构化结果
// Payload is the structured result of a plan-generation call.
type Payload struct {
	Guide        []checklistPayload `json:"guide"`
	Materials    []materialPayload  `json:"materials,omitempty"`
	Tools        []toolPayload      `json:"tools,omitempty"`
	SafetyNotes  []string           `json:"safetyNotes,omitempty"`
	CostRange    string             `json:"costRange,omitempty"`
	TimeEstimate string             `json:"timeEstimate,omitempty"`
	ProNote      string             `json:"professionalHiringNote,omitempty"`
}

// Decode 解析并校验生成结果；不符合 schema 的结果整体拒绝，
// 绝不合并半成品计划。
// Decode parses and validates a generation result. A nonconforming
// payload is rejected wholesale — a partially shaped plan is never
// merged into task state.
func Decode(raw string) (Payload, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	var p Payload
	if err := dec.Decode(&p); err != nil {
		return Payload{}, fmt.Errorf("decode plan payload: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Payload{}, err
	}
	return p, nil
}

// Validate checks the structural invariants of a generated plan.
func (p Payload) Validate() error {
	if len(p.Guide) == 0 {
		return fmt.Errorf("plan payload has no guide steps")
	}
	for i, e := range p.Guide {
		if strings.TrimSpace(e.Text) == "" {
			return fmt.Errorf("guide step %d has empty text", i)
		}
	}
	for i, e := range p.Materials {
		if strings.TrimSpace(e.Text) == "" {
			return fmt.Errorf("material %d has empty text", i)
		}
	}
	for i, e := range p.Tools {
		if strings.TrimSpace(e.Text) == "" {
			return fmt.Errorf("tool %d has empty text", i)
		}
	}
	return nil
}

// ApplyToTask merges a validated, normalized payload into the task's plan
// fields once, then re-derives the lifecycle status.
func (p Payload) ApplyToTask(t *task.Task) {
	if t == nil {
		return
	}
	t.Guide = make([]task.ChecklistEntry, 0, len(p.Guide))
	for _, e := range p.Guide {
		t.Guide = append(t.Guide, task.ChecklistEntry{Text: e.Text, Done: e.Done})
	}
	t.Materials = make([]task.MaterialEntry, 0, len(p.Materials))
	for _, e := range p.Materials {
		t.Materials = append(t.Materials, task.MaterialEntry{
			Text:         e.Text,
			Done:         e.Done,
			Cost:         e.Cost,
			PurchaseLink: e.PurchaseLink,
		})
	}
	t.Tools = make([]task.ToolEntry, 0, len(p.Tools))
	for _, e := range p.Tools {
		t.Tools = append(t.Tools, task.ToolEntry{Text: e.Text, Owned: e.Owned})
	}
	t.SafetyNotes = append([]string(nil), p.SafetyNotes...)
	t.CostRange = p.CostRange
	t.TimeEstimate = p.TimeEstimate
	t.ProNote = p.ProNote
	t.Rederive()
}

// JSONSchema 返回计划 payload 的 JSON Schema，用于结构化输出请求
// JSONSchema returns the schema attached to the structured generation
// request (response_format json_schema).
func JSONSchema() map[string]any {
	checklistItem := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{"type": "string"},
			"done": map[string]any{"type": "boolean"},
		},
		"required": []string{"text"},
	}
	materialItem := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text":         map[string]any{"type": "string"},
			"done":         map[string]any{"type": "boolean"},
			"cost":         map[string]any{"type": "string"},
			"purchaseLink": map[string]any{"type": "string"},
		},
		"required": []string{"text"},
	}
	toolItem := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text":  map[string]any{"type": "string"},
			"owned": map[string]any{"type": "boolean"},
		},
		"required": []string{"text"},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"guide":                  map[string]any{"type": "array", "items": checklistItem, "minItems": 1},
			"materials":              map[string]any{"type": "array", "items": materialItem},
			"tools":                  map[string]any{"type": "array", "items": toolItem},
			"safetyNotes":            map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"costRange":              map[string]any{"type": "string"},
			"timeEstimate":           map[string]any{"type": "string"},
			"professionalHiringNote": map[string]any{"type": "string"},
		},
		"required": []string{"guide"},
	}
}
