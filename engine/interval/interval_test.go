package interval

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hhmm string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", "2026-03-02 "+hhmm)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func TestNew_InvalidInterval(t *testing.T) {
	_, err := New(at("10:00"), at("10:00"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInterval))

	_, err = New(at("11:00"), at("10:00"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInterval))
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"disjoint", MustNew(at("09:00"), at("10:00")), MustNew(at("11:00"), at("12:00")), false},
		{"touching endpoints", MustNew(at("09:00"), at("10:00")), MustNew(at("10:00"), at("11:00")), false},
		{"partial overlap", MustNew(at("09:00"), at("10:30")), MustNew(at("10:00"), at("11:00")), true},
		{"contained", MustNew(at("09:00"), at("12:00")), MustNew(at("10:00"), at("11:00")), true},
		{"identical", MustNew(at("09:00"), at("10:00")), MustNew(at("09:00"), at("10:00")), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			// Symmetry must hold for every pair.
			assert.Equal(t, tt.a.Overlaps(tt.b), tt.b.Overlaps(tt.a))
		})
	}
}

func TestMerge(t *testing.T) {
	merged := Merge([]Interval{
		MustNew(at("13:00"), at("14:00")),
		MustNew(at("09:00"), at("10:00")),
		MustNew(at("09:30"), at("11:00")),
		MustNew(at("11:00"), at("12:00")), // touches previous run
	})
	require.Len(t, merged, 2)
	assert.Equal(t, at("09:00"), merged[0].Start)
	assert.Equal(t, at("12:00"), merged[0].End)
	assert.Equal(t, at("13:00"), merged[1].Start)
}

func TestMerge_Empty(t *testing.T) {
	assert.Nil(t, Merge(nil))
}

func TestSubtract(t *testing.T) {
	base := MustNew(at("09:00"), at("17:00"))

	t.Run("no busy returns base", func(t *testing.T) {
		free := Subtract(base, nil)
		require.Len(t, free, 1)
		assert.Equal(t, base, free[0])
	})

	t.Run("busy equals base returns empty", func(t *testing.T) {
		free := Subtract(base, []Interval{base})
		assert.Empty(t, free)
	})

	t.Run("middle busy splits base", func(t *testing.T) {
		free := Subtract(base, []Interval{MustNew(at("12:00"), at("13:00"))})
		require.Len(t, free, 2)
		assert.Equal(t, MustNew(at("09:00"), at("12:00")), free[0])
		assert.Equal(t, MustNew(at("13:00"), at("17:00")), free[1])
	})

	t.Run("overlapping busy ranges are unioned first", func(t *testing.T) {
		free := Subtract(base, []Interval{
			MustNew(at("10:00"), at("11:30")),
			MustNew(at("11:00"), at("12:00")),
		})
		require.Len(t, free, 2)
		assert.Equal(t, at("10:00"), free[0].End)
		assert.Equal(t, at("12:00"), free[1].Start)
	})

	t.Run("busy extending past base edges is clipped", func(t *testing.T) {
		free := Subtract(base, []Interval{MustNew(at("08:00"), at("09:30"))})
		require.Len(t, free, 1)
		assert.Equal(t, MustNew(at("09:30"), at("17:00")), free[0])
	})
}

func TestGapAndDuration(t *testing.T) {
	a := MustNew(at("09:00"), at("10:00"))
	b := MustNew(at("10:10"), at("11:00"))
	assert.Equal(t, 10*time.Minute, a.Gap(b))
	assert.Equal(t, 10*time.Minute, b.Gap(a))
	assert.Equal(t, 60, a.Minutes())
	assert.Equal(t, time.Hour, a.Duration())
}
