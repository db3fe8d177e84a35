package task

// DeriveStatus 由清单完成度推导任务状态；空清单不做推导，保持 current
// DeriveStatus maps guide completion onto a lifecycle status. An empty
// guide means no plan yet, so the current status is kept as-is. The
// function is pure and idempotent: applying it twice with the same guide
// yields the same status.
func DeriveStatus(guide []ChecklistEntry, current Status) Status {
	total := len(guide)
	if total == 0 {
		if !ValidStatus(current) {
			return StatusTodo
		}
		return current
	}
	completed := 0
	for _, entry := range guide {
		if entry.Done {
			completed++
		}
	}
	switch {
	case completed == 0:
		return StatusTodo
	case completed == total:
		return StatusComplete
	default:
		return StatusInProgress
	}
}

// ToggleSignal 状态边沿信号，用于外部 UI 触发拍照提示
// ToggleSignal reports the two observable edges of a guide toggle. The
// photo-capture prompt driven by these edges is UI behavior, not part of
// the state machine.
type ToggleSignal struct {
	// FirstStep 首次在全新 guide 上勾掉第一项（Todo → 非 Todo）
	// FirstStep: first toggle away from an untouched, freshly generated guide.
	FirstStep bool
	// Completed 首次进入全部完成 / Completed: first transition into Complete.
	Completed bool
}

// ToggleGuideItem flips the done flag of one guide entry, re-derives the
// task status and reports edge signals. Out-of-range indexes are a no-op.
func (t *Task) ToggleGuideItem(index int, done bool) ToggleSignal {
	var sig ToggleSignal
	if t == nil || index < 0 || index >= len(t.Guide) {
		return sig
	}
	if t.Guide[index].Done == done {
		return sig
	}
	before := t.Status
	t.Guide[index].Done = done
	after := DeriveStatus(t.Guide, before)
	if before == StatusTodo && after != StatusTodo && !t.OpenedOnce {
		sig.FirstStep = true
	}
	if before != StatusComplete && after == StatusComplete {
		sig.Completed = true
	}
	t.Status = after
	return sig
}

// ToggleMaterial flips a material's done flag. Never affects status.
func (t *Task) ToggleMaterial(index int, done bool) {
	if t == nil || index < 0 || index >= len(t.Materials) {
		return
	}
	t.Materials[index].Done = done
}

// ToggleTool flips a tool's owned flag. Never affects status.
func (t *Task) ToggleTool(index int, owned bool) {
	if t == nil || index < 0 || index >= len(t.Tools) {
		return
	}
	t.Tools[index].Owned = owned
}

// Rederive 重新按 guide 推导状态（任何 guide 变更后调用）
// Rederive re-applies the derivation rule after any guide mutation.
func (t *Task) Rederive() {
	if t == nil {
		return
	}
	t.Status = DeriveStatus(t.Guide, t.Status)
}
