package contextmgr

import (
	"testing"

	"renoplan/internal/chat"
)

func turnFixture(n int) []chat.Message {
	out := make([]chat.Message, 0, n)
	for i := 0; i < n; i++ {
		role := chat.RoleUser
		if i%2 == 1 {
			role = chat.RoleAssistant
		}
		out = append(out, chat.Text(role, "turn content number padding padding padding"))
	}
	return out
}

func TestTruncateTurns_MaxTurns(t *testing.T) {
	turns := turnFixture(10)
	got := TruncateTurns(turns, nil, 0, 4)
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	// 最旧的先丢 / Oldest dropped first: the tail must be intact.
	if got[3].Content != turns[9].Content || &got[0] != &turns[6] {
		t.Fatal("expected the newest 4 turns, oldest-first dropped")
	}
}

func TestTruncateTurns_TokenBudget(t *testing.T) {
	tok := &Tokenizer{fallback: true}
	turns := turnFixture(8)
	perTurn := tok.CountTurn(turns[0])
	got := TruncateTurns(turns, tok, perTurn*3, 0)
	if len(got) > 3 {
		t.Fatalf("budget for 3 turns kept %d", len(got))
	}
	if len(got) == 0 {
		t.Fatal("newest turn must always be retained")
	}
	if got[len(got)-1].Content != turns[7].Content {
		t.Fatal("newest turn missing after truncation")
	}
}

func TestTruncateTurns_NewestAlwaysKept(t *testing.T) {
	tok := &Tokenizer{fallback: true}
	turns := turnFixture(5)
	got := TruncateTurns(turns, tok, 1, 0) // budget below a single turn
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
}

func TestTruncateTurns_TurnAtomic(t *testing.T) {
	tok := &Tokenizer{fallback: true}
	multi := chat.Message{Role: chat.RoleUser, Segments: []chat.Segment{
		chat.TextSegment{Type: "text", Text: "here is a photo"},
		chat.ImageSegment{Type: "image", MimeType: "image/jpeg", DataRef: "ref-1"},
	}}
	turns := append(turnFixture(4), multi)
	got := TruncateTurns(turns, tok, tok.CountTurn(multi)+1, 0)
	last := got[len(got)-1]
	if len(last.Segments) != 2 {
		t.Fatal("truncation must never split a turn's segments")
	}
}

func TestTruncateTurns_NoBudgetNoChange(t *testing.T) {
	turns := turnFixture(6)
	got := TruncateTurns(turns, nil, 0, 0)
	if len(got) != 6 {
		t.Fatalf("disabled truncation changed length: %d", len(got))
	}
}
