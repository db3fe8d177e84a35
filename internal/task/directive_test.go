package task

import "testing"

func TestApplyUpdate_MergesOnlyPresentArrays(t *testing.T) {
	tk := &Task{
		Status:    StatusInProgress,
		Guide:     []ChecklistEntry{{Text: "sand", Done: true}, {Text: "varnish"}},
		Materials: []MaterialEntry{{Text: "old varnish"}},
		Tools:     []ToolEntry{{Text: "sander", Owned: true}},
	}

	tk.ApplyUpdate(UpdatePatch{
		Materials:    []MaterialEntry{{Text: "water-based varnish"}},
		HasMaterials: true,
	})

	if len(tk.Guide) != 2 {
		t.Fatalf("guide must be untouched: %+v", tk.Guide)
	}
	if len(tk.Materials) != 1 || tk.Materials[0].Text != "water-based varnish" {
		t.Fatalf("materials = %+v", tk.Materials)
	}
	if len(tk.Tools) != 1 || !tk.Tools[0].Owned {
		t.Fatalf("tools must be untouched: %+v", tk.Tools)
	}
	if tk.Status != StatusInProgress {
		t.Fatalf("status = %q", tk.Status)
	}
}

func TestApplyUpdate_GuideReplacementRederivesStatus(t *testing.T) {
	tk := &Task{
		Status: StatusComplete,
		Guide:  []ChecklistEntry{{Text: "done step", Done: true}},
	}

	tk.ApplyUpdate(UpdatePatch{
		Guide:    []ChecklistEntry{{Text: "done step", Done: true}, {Text: "new step"}},
		HasGuide: true,
	})

	if tk.Status != StatusInProgress {
		t.Fatalf("status = %q", tk.Status)
	}
}

func TestApplyUpdate_EmptyPatchIsNoOp(t *testing.T) {
	tk := &Task{
		Status: StatusTodo,
		Guide:  []ChecklistEntry{{Text: "a"}},
	}
	patch := UpdatePatch{}
	if !patch.Empty() {
		t.Fatal("patch should be empty")
	}
	tk.ApplyUpdate(patch)
	if len(tk.Guide) != 1 || tk.Status != StatusTodo {
		t.Fatalf("task changed by empty patch: %+v", tk)
	}
}
