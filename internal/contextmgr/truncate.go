package contextmgr

import "renoplan/internal/chat"

// TruncateTurns 显式截断策略：最旧的回合先丢，整回合为单位，绝不拆分
// 一个回合的 segments；最新一个回合总是保留。
// TruncateTurns is the explicit truncation policy: oldest turns are
// dropped first, whole turns at a time — one turn's segments are never
// split — and the newest turn is always retained. A non-positive budget
// disables that dimension.
func TruncateTurns(turns []chat.Message, tok *Tokenizer, tokenBudget, maxTurns int) []chat.Message {
	if len(turns) == 0 {
		return turns
	}
	start := 0
	if maxTurns > 0 && len(turns) > maxTurns {
		start = len(turns) - maxTurns
	}
	if tokenBudget > 0 && tok != nil {
		total := 0
		// 从最新往回累计，预算内的回合保留
		// Accumulate from the newest turn backwards, keeping what fits.
		cut := len(turns) - 1
		for i := len(turns) - 1; i >= start; i-- {
			total += tok.CountTurn(turns[i])
			if total > tokenBudget && i < len(turns)-1 {
				break
			}
			cut = i
		}
		if cut > start {
			start = cut
		}
	}
	if start == 0 {
		return turns
	}
	return turns[start:]
}
