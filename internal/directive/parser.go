package directive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"renoplan/internal/task"
)

// Parse 从原始回复中提取指令并分离展示文本。纯函数、永不 panic：
// 无法解析的输入原样返回，格式错误的标记按普通文本保留。
// Parse extracts directives from a raw assistant reply and separates the
// displayable prose. It is pure and total: it never panics, malformed
// marker-like substrings are left in the display text verbatim, and a
// fully unparseable input yields {DisplayText: raw, Directives: nil}.
//
// Fail-closed rule: a directive whose payload does not decode into the
// expected shape is dropped entirely — a partially parsed mutation is
// never emitted.
func Parse(raw string) Result {
	var (
		display    strings.Builder
		directives []Directive
		sawGen     bool
		sawUpdate  bool
	)

	i := 0
	for i < len(raw) {
		idx := strings.IndexByte(raw[i:], '[')
		if idx < 0 {
			display.WriteString(raw[i:])
			break
		}
		display.WriteString(raw[i : i+idx])
		i += idx
		rest := raw[i:]

		switch {
		case strings.HasPrefix(rest, MarkerGeneratePlan):
			// 位置性标记：应终止回复；出现在中间也接受，但展示文本
			// 只保留标记之前的部分。
			// Positional marker: should terminate the reply. Honored
			// anywhere, but display keeps only the text up to it.
			if !sawGen {
				directives = append(directives, GeneratePlan{})
				sawGen = true
			}
			i += len(MarkerGeneratePlan)
			// Remaining prose after the terminator is dropped from
			// display; any trailing directives are still collected.
			parseTailDirectives(raw[i:], &directives, &sawUpdate)
			return Result{DisplayText: display.String(), Directives: directives}

		case strings.HasPrefix(rest, markerUpdatePlanPrefix):
			payload, end, ok := scanBracketedJSON(rest, len(markerUpdatePlanPrefix))
			if !ok {
				display.WriteByte(raw[i])
				i++
				continue
			}
			patch, err := decodeUpdatePayload(payload)
			if err != nil || sawUpdate {
				// Malformed payload (or a duplicate): the span stays
				// visible as ordinary prose.
				if err != nil {
					display.WriteString(rest[:end])
					i += end
					continue
				}
				// Well-formed duplicate: strip but do not re-apply.
				i += end
				continue
			}
			directives = append(directives, UpdatePlan{Patch: patch})
			sawUpdate = true
			i += end

		case strings.HasPrefix(rest, markerSuggestTaskPrefix):
			payload, end, ok := scanBracketedJSON(rest, len(markerSuggestTaskPrefix))
			if !ok {
				display.WriteByte(raw[i])
				i++
				continue
			}
			st, err := decodeSuggestPayload(payload)
			if err != nil {
				display.WriteString(rest[:end])
				i += end
				continue
			}
			directives = append(directives, st)
			i += end

		default:
			display.WriteByte(raw[i])
			i++
		}
	}

	return Result{DisplayText: display.String(), Directives: directives}
}

// parseTailDirectives collects directives appearing after a plan-generation
// terminator without contributing to display text.
func parseTailDirectives(tail string, directives *[]Directive, sawUpdate *bool) {
	res := Parse(tail)
	for _, d := range res.Directives {
		switch d := d.(type) {
		case GeneratePlan:
			// already recorded
		case UpdatePlan:
			if !*sawUpdate {
				*directives = append(*directives, d)
				*sawUpdate = true
			}
		case SuggestTask:
			*directives = append(*directives, d)
		}
	}
}

// scanBracketedJSON scans `<prefix>{...}]` starting at offset, returning
// the JSON object text and the end offset of the full marker span. The
// scan is string- and escape-aware so nested braces inside payload
// strings do not terminate it early.
func scanBracketedJSON(s string, offset int) (payload string, end int, ok bool) {
	if offset >= len(s) || s[offset] != '{' {
		return "", 0, false
	}
	depth := 0
	inString := false
	escaped := false
	for i := offset; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				closing := i + 1
				if closing >= len(s) || s[closing] != markerSuffix[0] {
					return "", 0, false
				}
				return s[offset:closing], closing + 1, true
			}
		}
	}
	return "", 0, false
}

// --- payload decoding ---

// money accepts either a JSON string ("$25") or a bare number; models
// are inconsistent about which they emit.
type money string

func (m *money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*m = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = money(s)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*m = money(fmt.Sprintf("%.2f", n))
	return nil
}

type checklistPayload struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

type materialPayload struct {
	Text         string `json:"text"`
	Done         bool   `json:"done"`
	Cost         money  `json:"cost"`
	PurchaseLink string `json:"purchaseLink"`
}

type toolPayload struct {
	Text  string `json:"text"`
	Owned bool   `json:"owned"`
}

type updatePayload struct {
	Guide     *[]checklistPayload `json:"guide"`
	Materials *[]materialPayload  `json:"materials"`
	Tools     *[]toolPayload      `json:"tools"`
}

func decodeUpdatePayload(payload string) (task.UpdatePatch, error) {
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.DisallowUnknownFields()
	var up updatePayload
	if err := dec.Decode(&up); err != nil {
		return task.UpdatePatch{}, fmt.Errorf("decode update payload: %w", err)
	}

	var patch task.UpdatePatch
	if up.Guide != nil {
		patch.HasGuide = true
		for _, e := range *up.Guide {
			if strings.TrimSpace(e.Text) == "" {
				return task.UpdatePatch{}, fmt.Errorf("guide entry with empty text")
			}
			patch.Guide = append(patch.Guide, task.ChecklistEntry{Text: e.Text, Done: e.Done})
		}
	}
	if up.Materials != nil {
		patch.HasMaterials = true
		for _, e := range *up.Materials {
			if strings.TrimSpace(e.Text) == "" {
				return task.UpdatePatch{}, fmt.Errorf("material entry with empty text")
			}
			patch.Materials = append(patch.Materials, task.MaterialEntry{
				Text:         e.Text,
				Done:         e.Done,
				Cost:         string(e.Cost),
				PurchaseLink: e.PurchaseLink,
			})
		}
	}
	if up.Tools != nil {
		patch.HasTools = true
		for _, e := range *up.Tools {
			if strings.TrimSpace(e.Text) == "" {
				return task.UpdatePatch{}, fmt.Errorf("tool entry with empty text")
			}
			patch.Tools = append(patch.Tools, task.ToolEntry{Text: e.Text, Owned: e.Owned})
		}
	}
	return patch, nil
}

func decodeSuggestPayload(payload string) (SuggestTask, error) {
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.DisallowUnknownFields()
	var st SuggestTask
	if err := dec.Decode(&st); err != nil {
		return SuggestTask{}, fmt.Errorf("decode suggest payload: %w", err)
	}
	if strings.TrimSpace(st.Title) == "" {
		return SuggestTask{}, fmt.Errorf("suggest payload missing title")
	}
	return st, nil
}
