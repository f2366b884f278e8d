package bidder

import "sort"

// Rank orders candidates best first: by interest in confidence mode, by
// predicted return in profit mode. Equal keys keep their input order.
func Rank(cands []Candidate, mode Mode) []Candidate {
	out := make([]Candidate, len(cands))
	copy(out, cands)
	key := func(c Candidate) float64 { return c.Auction.Interest }
	if mode == ModeProfit {
		key = func(c Candidate) float64 { return c.Score }
	}
	sort.SliceStable(out, func(i, j int) bool {
		return key(out[i]) > key(out[j])
	})
	return out
}
