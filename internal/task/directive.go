package task

// UpdatePatch 部分计划更新：仅合并 payload 中出现的数组
// UpdatePatch is a partial plan update. Only the arrays present in the
// payload are merged; absent arrays leave the task untouched.
type UpdatePatch struct {
	Guide     []ChecklistEntry
	Materials []MaterialEntry
	Tools     []ToolEntry

	HasGuide     bool
	HasMaterials bool
	HasTools     bool
}

// Empty reports whether the patch specifies nothing to merge.
func (p UpdatePatch) Empty() bool {
	return !p.HasGuide && !p.HasMaterials && !p.HasTools
}

// ApplyUpdate merges the patch into the task and re-derives status.
// Unspecified arrays are left untouched.
func (t *Task) ApplyUpdate(patch UpdatePatch) {
	if t == nil {
		return
	}
	if patch.HasGuide {
		t.Guide = append([]ChecklistEntry(nil), patch.Guide...)
	}
	if patch.HasMaterials {
		t.Materials = append([]MaterialEntry(nil), patch.Materials...)
	}
	if patch.HasTools {
		t.Tools = append([]ToolEntry(nil), patch.Tools...)
	}
	t.Rederive()
}
