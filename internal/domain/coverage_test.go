package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	m "mutiny.dev/pkg/mutiny/internal/model"
)

func TestTestCoverage(t *testing.T) {
	tests := []m.TestResult{
		{ID: "t2", Name: "t2", TimeSpent: 20 * time.Millisecond},
		{ID: "t1", Name: "t1", TimeSpent: 10 * time.Millisecond},
	}

	tc := NewTestCoverage(tests, &m.CoverageData{
		Static: m.MutantCoverage{"m1": 2, "m4": 0},
		PerTest: map[string]m.MutantCoverage{
			"t2":    {"m2": 1, "m3": 0},
			"t1":    {"m2": 4, "m1": 1},
			"ghost": {"m3": 7},
		},
	})

	assert.True(t, tc.HasCoverage())
	assert.True(t, tc.HasStaticCoverage("m1"))
	assert.False(t, tc.HasStaticCoverage("m2"))
	assert.False(t, tc.HasStaticCoverage("m4"))

	covering := tc.TestsByMutantID("m2")
	assert.Equal(t, []string{"t1", "t2"}, []string{covering[0].ID, covering[1].ID})
	assert.Empty(t, tc.TestsByMutantID("m3"), "zero hits and unknown tests do not count")

	hits, ok := tc.HitsByMutantID("m2")
	assert.True(t, ok)
	assert.Equal(t, 5, hits)

	hits, ok = tc.HitsByMutantID("m1")
	assert.True(t, ok)
	assert.Equal(t, 3, hits)

	_, ok = tc.HitsByMutantID("m5")
	assert.False(t, ok)

	assert.Len(t, tc.TestsByID(), 2)
	assert.Equal(t, tests, tc.Tests())
	assert.Equal(t, 30*time.Millisecond, NetTime(tc.Tests()))
}

func TestTestCoverage_Off(t *testing.T) {
	tc := NewTestCoverage([]m.TestResult{{ID: "t1"}}, nil)

	assert.False(t, tc.HasCoverage())
	assert.False(t, tc.HasStaticCoverage("m1"))
	assert.Empty(t, tc.TestsByMutantID("m1"))

	_, ok := tc.HitsByMutantID("m1")
	assert.False(t, ok)
}
