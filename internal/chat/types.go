package chat

// 对话角色 / Conversation roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Segment represents a part of a multi-modal turn
type Segment interface {
	isSegment()
}

// TextSegment represents text content in a turn
type TextSegment struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (t TextSegment) isSegment() {}

// ImageSegment represents image content in a turn. DataRef is an opaque
// reference (URL or data URL) resolved by the transport layer.
type ImageSegment struct {
	Type     string `json:"type"`
	MimeType string `json:"mime_type"`
	DataRef  string `json:"data_ref"`
}

func (i ImageSegment) isSegment() {}

// Message 一条角色标记的对话消息；segments 按插入顺序排列，消息只追加不改写
// Message is one role-tagged conversation turn. Segments keep insertion
// order; conversations are append-only and never reordered or deduplicated.
type Message struct {
	Role     string    `json:"role"`
	Content  string    `json:"content,omitempty"` // plain-text shortcut when Segments is empty
	Segments []Segment `json:"-"`                 // multi-modal content (takes precedence over Content)
}

// Text 创建纯文本消息 / Text builds a plain text message
func Text(role, content string) Message {
	return Message{Role: role, Content: content}
}

// PlainText flattens a turn down to its text, joining text segments in
// order and skipping image segments.
func (m Message) PlainText() string {
	if len(m.Segments) == 0 {
		return m.Content
	}
	out := ""
	for _, seg := range m.Segments {
		if ts, ok := seg.(TextSegment); ok {
			if out != "" && ts.Text != "" {
				out += "\n"
			}
			out += ts.Text
		}
	}
	return out
}

// Clone returns a copy whose segment slice is independent of the original.
func (m Message) Clone() Message {
	out := m
	if len(m.Segments) > 0 {
		out.Segments = append([]Segment(nil), m.Segments...)
	}
	return out
}

// CloneAll 复制消息切片 / CloneAll copies a message slice
func CloneAll(messages []Message) []Message {
	if len(messages) == 0 {
		return nil
	}
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.Clone())
	}
	return out
}
