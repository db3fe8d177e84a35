package chat

import "testing"

func TestPlainText(t *testing.T) {
	cases := []struct {
		name string
		msg  Message
		want string
	}{
		{"content only", Text(RoleUser, "hello"), "hello"},
		{
			"text segments joined",
			Message{Role: RoleUser, Segments: []Segment{
				TextSegment{Type: "text", Text: "one"},
				TextSegment{Type: "text", Text: "two"},
			}},
			"one\ntwo",
		},
		{
			"image segments skipped",
			Message{Role: RoleUser, Segments: []Segment{
				TextSegment{Type: "text", Text: "look"},
				ImageSegment{Type: "image", MimeType: "image/png", DataRef: "ref"},
			}},
			"look",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.msg.PlainText(); got != tc.want {
				t.Fatalf("PlainText() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCloneIndependence(t *testing.T) {
	orig := Message{Role: RoleUser, Segments: []Segment{TextSegment{Type: "text", Text: "a"}}}
	cloned := orig.Clone()
	cloned.Segments[0] = TextSegment{Type: "text", Text: "b"}
	if orig.Segments[0].(TextSegment).Text != "a" {
		t.Fatal("clone shares the segment slice")
	}
}
