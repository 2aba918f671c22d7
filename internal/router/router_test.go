package router

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cogito/internal/complexity"
)

func TestClassify_SimpleRequestGoesToS1(t *testing.T) {
	r := New(0.4, 0.05)

	c := r.Classify("fix a typo", nil)

	assert.Less(t, c.Score, 0.4)
	assert.Equal(t, 1, c.System)
	assert.GreaterOrEqual(t, c.Confidence, 0.5)
	assert.Equal(t, 0.4, c.Threshold)
}

func TestClassify_ComplexRequestGoesToS2(t *testing.T) {
	r := New(0.4, 0.05)

	c := r.Classify("security audit: migrate the production database, deploy to kubernetes, and fix the authentication vulnerability", nil)

	assert.Greater(t, c.Score, 0.6)
	assert.Equal(t, 2, c.System)
}

func TestClassify_Confidence(t *testing.T) {
	r := New(0.4, 0.05)

	t.Run("far from threshold", func(t *testing.T) {
		c := r.Classify("fix a typo", nil)
		assert.InDelta(t, 0.5+(0.4-c.Score), c.Confidence, 1e-9)
	})

	t.Run("bounded at one", func(t *testing.T) {
		r2 := New(0.2, 0.05)
		c := r2.Classify("security audit: migrate the production database, deploy to kubernetes, and fix the authentication vulnerability", nil)
		assert.LessOrEqual(t, c.Confidence, 1.0)
	})
}

func TestClassify_Deterministic(t *testing.T) {
	r := New(0.4, 0.05)
	ctx := &complexity.Context{SessionDepth: 2, RecentDomains: []string{"backend"}}

	first := r.Classify("refactor the api handler then add tests", ctx)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, r.Classify("refactor the api handler then add tests", ctx))
	}
}

func TestRoute_RecordsHistory(t *testing.T) {
	r := New(0.4, 0.05)

	res := r.Route("fix a typo", nil)
	assert.Equal(t, 1, res.HistorySize)
	assert.False(t, res.RoutedAt.IsZero())

	res = r.Route("another request", nil)
	assert.Equal(t, 2, res.HistorySize)
}

func TestRoute_TruncatesStoredRequest(t *testing.T) {
	r := New(0.4, 0.05)

	long := ""
	for i := 0; i < 50; i++ {
		long += "0123456789"
	}
	r.Route(long, nil)

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Len(t, r.history[0].request, historyRequestLimit)
}

func TestAdapt_AdaptiveThresholdScenario(t *testing.T) {
	r := New(0.4, 0.05)

	// Five S1 successes raise the threshold.
	var last AdaptResult
	for i := 0; i < 5; i++ {
		last = r.Adapt(Feedback{System: 1, Success: true})
	}
	assert.Equal(t, "raised", last.Direction)
	assert.InDelta(t, 0.45, r.Threshold(), 1e-9)

	// One S1 failure lowers it.
	res := r.Adapt(Feedback{System: 1, Success: false})
	assert.Equal(t, "lowered", res.Direction)
	assert.InDelta(t, 0.40, r.Threshold(), 1e-9)

	// S2 outcomes never move the threshold.
	res = r.Adapt(Feedback{System: 2, Success: true})
	assert.Equal(t, "unchanged", res.Direction)
	res = r.Adapt(Feedback{System: 2, Success: false})
	assert.Equal(t, "unchanged", res.Direction)
	assert.InDelta(t, 0.40, r.Threshold(), 1e-9)
}

func TestAdapt_FailureResetsStreak(t *testing.T) {
	r := New(0.4, 0.05)

	for i := 0; i < 4; i++ {
		r.Adapt(Feedback{System: 1, Success: true})
	}
	r.Adapt(Feedback{System: 1, Success: false})

	// Four more successes must not raise: the streak restarted.
	var last AdaptResult
	for i := 0; i < 4; i++ {
		last = r.Adapt(Feedback{System: 1, Success: true})
	}
	assert.Equal(t, "unchanged", last.Direction)
	assert.Equal(t, 4, last.Streak)
}

func TestAdapt_ThresholdBounds(t *testing.T) {
	t.Run("saturates at lower bound", func(t *testing.T) {
		r := New(0.2, 0.05)
		for i := 0; i < 20; i++ {
			r.Adapt(Feedback{System: 1, Success: false})
			assert.GreaterOrEqual(t, r.Threshold(), MinThreshold)
		}
		assert.InDelta(t, MinThreshold, r.Threshold(), 1e-9)
	})

	t.Run("saturates at upper bound", func(t *testing.T) {
		r := New(0.7, 0.05)
		for i := 0; i < 100; i++ {
			r.Adapt(Feedback{System: 1, Success: true})
			assert.LessOrEqual(t, r.Threshold(), MaxThreshold)
		}
		assert.InDelta(t, MaxThreshold, r.Threshold(), 1e-9)
	})

	t.Run("bounds hold for arbitrary feedback sequences", func(t *testing.T) {
		r := New(0.4, 0.2)
		seq := []bool{true, false, true, true, true, true, true, false, false, true}
		for round := 0; round < 10; round++ {
			for _, ok := range seq {
				r.Adapt(Feedback{System: 1, Success: ok})
				th := r.Threshold()
				require.GreaterOrEqual(t, th, MinThreshold)
				require.LessOrEqual(t, th, MaxThreshold)
			}
		}
	})
}

func TestAdapt_ConfiguredStepClamped(t *testing.T) {
	r := New(0.4, 0.5) // out of range, clamps to 0.2
	r.Adapt(Feedback{System: 1, Success: false})
	assert.InDelta(t, 0.2, r.Threshold(), 1e-9)
}

func TestSnapshotRestore(t *testing.T) {
	r := New(0.4, 0.05)
	r.Adapt(Feedback{System: 1, Success: true})
	r.Adapt(Feedback{System: 1, Success: true})

	s := r.Snapshot()
	assert.Equal(t, 2, s.Streak)

	r2 := New(0.4, 0.05)
	r2.Restore(s)
	assert.Equal(t, r.Threshold(), r2.Threshold())

	// Restored streak continues counting toward a raise.
	for i := 0; i < 3; i++ {
		res := r2.Adapt(Feedback{System: 1, Success: true})
		if i == 2 {
			assert.Equal(t, "raised", res.Direction)
		}
	}
}

func TestStats(t *testing.T) {
	r := New(0.4, 0.05)

	r.Route("fix a typo", nil)
	r.Route("rename this", nil)
	r.Route("security audit: migrate the production database, deploy to kubernetes, and fix the authentication vulnerability", nil)

	r.Adapt(Feedback{System: 1, Success: true})
	r.Adapt(Feedback{System: 2, Success: false})

	st := r.Stats()
	assert.Equal(t, 3, st.TotalRouted)
	assert.Equal(t, 2, st.System1Count)
	assert.Equal(t, 1, st.System2Count)
	assert.InDelta(t, 2.0/3.0, st.System1Ratio, 1e-9)
	assert.Greater(t, st.AverageScore, 0.0)
	assert.InDelta(t, 1.0, st.SuccessRateS1, 1e-9)
	assert.InDelta(t, 0.0, st.SuccessRateS2, 1e-9)
}

func TestStats_Trend(t *testing.T) {
	t.Run("needs ten entries", func(t *testing.T) {
		r := New(0.4, 0.05)
		for i := 0; i < 9; i++ {
			r.Route("fix a typo", nil)
		}
		assert.Equal(t, TrendStable, r.Stats().RecentTrend)
	})

	t.Run("shift to s2", func(t *testing.T) {
		r := New(0.4, 0.05)
		for i := 0; i < 16; i++ {
			r.Route(fmt.Sprintf("fix typo number %d", i), nil)
		}
		for i := 0; i < 4; i++ {
			r.Route("security audit: migrate the production database, deploy to kubernetes, and fix the authentication vulnerability", nil)
		}
		assert.Equal(t, TrendShiftingToS2, r.Stats().RecentTrend)
	})

	t.Run("stable mix", func(t *testing.T) {
		r := New(0.4, 0.05)
		for i := 0; i < 20; i++ {
			r.Route("fix a typo", nil)
		}
		assert.Equal(t, TrendStable, r.Stats().RecentTrend)
	})
}
