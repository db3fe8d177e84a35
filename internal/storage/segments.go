package storage

import (
	"encoding/json"
	"fmt"

	"renoplan/internal/chat"
)

// wireSegment 回合 segment 的持久化形态
// wireSegment is the persisted shape of one turn segment
type wireSegment struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	DataRef  string `json:"data_ref,omitempty"`
}

func segmentsToJSON(segments []chat.Segment) (string, error) {
	if len(segments) == 0 {
		return "[]", nil
	}
	out := make([]wireSegment, 0, len(segments))
	for _, seg := range segments {
		switch s := seg.(type) {
		case chat.TextSegment:
			out = append(out, wireSegment{Type: "text", Text: s.Text})
		case chat.ImageSegment:
			out = append(out, wireSegment{Type: "image", MimeType: s.MimeType, DataRef: s.DataRef})
		default:
			return "", fmt.Errorf("unknown segment type %T", seg)
		}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("marshal segments: %w", err)
	}
	return string(data), nil
}

func segmentsFromJSON(raw string) ([]chat.Segment, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var wire []wireSegment
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, fmt.Errorf("unmarshal segments: %w", err)
	}
	out := make([]chat.Segment, 0, len(wire))
	for _, w := range wire {
		switch w.Type {
		case "text":
			out = append(out, chat.TextSegment{Type: "text", Text: w.Text})
		case "image":
			out = append(out, chat.ImageSegment{Type: "image", MimeType: w.MimeType, DataRef: w.DataRef})
		default:
			return nil, fmt.Errorf("unknown segment type %q", w.Type)
		}
	}
	return out, nil
}
