package model

// SkipSet is the durable knowledge used to prune a job's work set: pairs
// already satisfied and codes retired for every player.
type SkipSet struct {
	Redeemed     map[Pair]struct{}
	BlockedCodes map[string]BlockReason
}

// NewSkipSet returns an empty SkipSet with initialized maps.
func NewSkipSet() *SkipSet {
	return &SkipSet{
		Redeemed:     make(map[Pair]struct{}),
		BlockedCodes: make(map[string]BlockReason),
	}
}

// IsRedeemed reports whether the pair is already permanently satisfied.
func (s *SkipSet) IsRedeemed(playerID, code string) bool {
	_, ok := s.Redeemed[Pair{PlayerID: playerID, Code: code}]
	return ok
}

// IsBlocked reports whether the code is globally blocked, and why.
func (s *SkipSet) IsBlocked(code string) (BlockReason, bool) {
	reason, ok := s.BlockedCodes[code]
	return reason, ok
}
