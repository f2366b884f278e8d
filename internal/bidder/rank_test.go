package bidder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRank_ConfidenceModeByInterest(t *testing.T) {
	in := []Candidate{
		{Auction: Auction{ID: "low", Interest: 18}, Score: 0.99},
		{Auction: Auction{ID: "high", Interest: 32}, Score: 0.91},
		{Auction: Auction{ID: "mid", Interest: 25}, Score: 0.95},
	}

	got := Rank(in, ModeConfidence)

	assert.Equal(t, []string{"high", "mid", "low"}, ids(got))
	assert.Equal(t, "low", in[0].Auction.ID, "input must not be reordered")
}

func TestRank_ProfitModeByScore(t *testing.T) {
	in := []Candidate{
		{Auction: Auction{ID: "a", Interest: 40}, Score: 0.02},
		{Auction: Auction{ID: "b", Interest: 10}, Score: 0.11},
		{Auction: Auction{ID: "c", Interest: 20}, Score: -0.05},
	}

	got := Rank(in, ModeProfit)

	assert.Equal(t, []string{"b", "a", "c"}, ids(got))
}

func TestRank_TiesKeepInputOrder(t *testing.T) {
	in := []Candidate{
		{Auction: Auction{ID: "first", Interest: 20}},
		{Auction: Auction{ID: "top", Interest: 30}},
		{Auction: Auction{ID: "second", Interest: 20}},
		{Auction: Auction{ID: "third", Interest: 20}},
	}

	got := Rank(in, ModeConfidence)

	assert.Equal(t, []string{"top", "first", "second", "third"}, ids(got))
	for i := 0; i < 10; i++ {
		assert.Equal(t, ids(got), ids(Rank(in, ModeConfidence)))
	}
}

func TestRank_Empty(t *testing.T) {
	assert.Empty(t, Rank(nil, ModeProfit))
}
