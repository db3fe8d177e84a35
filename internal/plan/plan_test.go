package plan

import (
	"testing"

	"renoplan/internal/task"
)

func TestDecode_ValidPayload(t *testing.T) {
	raw := `{
		"guide":[{"text":"Clear the room"},{"text":"Sand boards","done":false}],
		"materials":[{"text":"Varnish","cost":"$30","purchaseLink":"https://www.homedepot.com/p/varnish"}],
		"tools":[{"text":"Orbital sander","owned":false}],
		"safetyNotes":["Wear a dust mask"],
		"costRange":"$80-$150",
		"timeEstimate":"1 weekend",
		"professionalHiringNote":"DIY friendly"
	}`
	p, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(p.Guide) != 2 || len(p.Materials) != 1 || len(p.Tools) != 1 {
		t.Fatalf("unexpected payload: %+v", p)
	}
}

func TestDecode_Rejections(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: "a plan, in prose"},
		{name: "empty guide", raw: `{"guide":[]}`},
		{name: "missing guide", raw: `{"materials":[{"text":"Paint"}]}`},
		{name: "blank step text", raw: `{"guide":[{"text":"  "}]}`},
		{name: "unknown field", raw: `{"guide":[{"text":"x"}],"steps":[]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode(tc.raw); err == nil {
				t.Fatal("expected rejection")
			}
		})
	}
}

func TestApplyToTask_DerivesStatus(t *testing.T) {
	p, err := Decode(`{"guide":[{"text":"a","done":true},{"text":"b"}]}`)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	tk := &task.Task{Status: task.StatusTodo}
	p.ApplyToTask(tk)
	if tk.Status != task.StatusInProgress {
		t.Fatalf("status = %q, want in_progress", tk.Status)
	}
	if len(tk.Guide) != 2 {
		t.Fatalf("guide = %+v", tk.Guide)
	}
}

func TestNormalizeLink(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "recognized bare",
			in:   "https://www.homedepot.com/p/varnish",
			want: "https://www.homedepot.com/p/varnish?ref=renoplan",
		},
		{
			name: "recognized with query",
			in:   "https://amazon.com/dp/B01?th=1",
			want: "https://amazon.com/dp/B01?th=1&ref=renoplan",
		},
		{
			name: "recognized subdomain",
			in:   "https://smile.amazon.com/dp/B01",
			want: "https://smile.amazon.com/dp/B01?ref=renoplan",
		},
		{
			// 参数必须落在 query 内、fragment 之前
			// The parameter belongs in the query, ahead of the fragment.
			name: "recognized with fragment",
			in:   "https://www.homedepot.com/p/varnish#reviews",
			want: "https://www.homedepot.com/p/varnish?ref=renoplan#reviews",
		},
		{
			name: "recognized with query and fragment",
			in:   "https://amazon.com/dp/B01?th=1#specs",
			want: "https://amazon.com/dp/B01?th=1&ref=renoplan#specs",
		},
		{
			name: "unrecognized domain",
			in:   "https://cornershop.example.com/item/3",
			want: "https://cornershop.example.com/item/3",
		},
		{name: "empty", in: "", want: ""},
		{name: "garbage", in: "::not a url::", want: "::not a url::"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeLink(tc.in)
			if got != tc.want {
				t.Fatalf("NormalizeLink(%q) = %q, want %q", tc.in, got, tc.want)
			}
			// 幂等性：二次归一化必须是 no-op
			// Idempotence: normalizing twice equals normalizing once.
			if again := NormalizeLink(got); again != got {
				t.Fatalf("not idempotent: %q then %q", got, again)
			}
		})
	}
}

func TestNormalize_Payload(t *testing.T) {
	p := Payload{
		Guide: []checklistPayload{{Text: "a"}},
		Materials: []materialPayload{
			{Text: "Varnish", PurchaseLink: "https://lowes.com/p/1"},
			{Text: "Rags", PurchaseLink: "https://cornershop.example.com/2"},
			{Text: "Local", PurchaseLink: ""},
		},
	}
	p.Normalize()
	if p.Materials[0].PurchaseLink != "https://lowes.com/p/1?ref=renoplan" {
		t.Fatalf("recognized link not tagged: %q", p.Materials[0].PurchaseLink)
	}
	if p.Materials[1].PurchaseLink != "https://cornershop.example.com/2" {
		t.Fatalf("unrecognized link modified: %q", p.Materials[1].PurchaseLink)
	}
	if p.Materials[2].PurchaseLink != "" {
		t.Fatal("empty link modified")
	}
}
