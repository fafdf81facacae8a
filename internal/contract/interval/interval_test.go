package interval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func d(y int, m time.Month, day int) time.Time { return Date(y, m, day) }

func dp(y int, m time.Month, day int) *time.Time {
	t := Date(y, m, day)
	return &t
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Range
		want bool
	}{
		{"disjoint", New(d(2024, 1, 1), dp(2024, 1, 31)), New(d(2024, 2, 1), dp(2024, 2, 28)), false},
		{"shared boundary day", New(d(2024, 1, 1), dp(2024, 1, 31)), New(d(2024, 1, 31), nil), true},
		{"open overlaps later", New(d(2024, 1, 1), nil), New(d(2030, 1, 1), dp(2030, 12, 31)), true},
		{"open does not reach back", New(d(2024, 1, 1), nil), New(d(2023, 1, 1), dp(2023, 12, 31)), false},
		{"both open", New(d(2020, 1, 1), nil), New(d(2024, 1, 1), nil), true},
		{"contained", New(d(2024, 1, 1), dp(2024, 12, 31)), New(d(2024, 3, 1), dp(2024, 3, 31)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a), "overlap must be symmetric")
		})
	}
}

func TestCovers(t *testing.T) {
	r := New(d(2024, 1, 1), dp(2024, 6, 30))
	assert.True(t, r.Covers(d(2024, 1, 1)))
	assert.True(t, r.Covers(d(2024, 6, 30)))
	assert.False(t, r.Covers(d(2024, 7, 1)))
	assert.False(t, r.Covers(d(2023, 12, 31)))

	open := New(d(2024, 1, 1), nil)
	assert.True(t, open.Covers(d(2099, 1, 1)))
}

func TestTouches(t *testing.T) {
	a := New(d(2023, 6, 1), dp(2023, 12, 31))
	b := New(d(2024, 1, 1), nil)
	assert.True(t, a.Touches(b))
	assert.True(t, b.Touches(a))

	gap := New(d(2024, 1, 2), nil)
	assert.False(t, a.Touches(gap))
}

func TestExtend(t *testing.T) {
	t.Run("earlier finite contract keeps open period open", func(t *testing.T) {
		got := New(d(2024, 1, 1), nil).Extend(d(2023, 6, 1), dp(2023, 12, 31))
		assert.Equal(t, "2023-06-01", got.Start.Format(dateLayout))
		assert.Nil(t, got.End)
	})

	t.Run("open contract opens finite period", func(t *testing.T) {
		got := New(d(2024, 1, 1), dp(2024, 12, 31)).Extend(d(2024, 6, 1), nil)
		assert.Equal(t, "2024-01-01", got.Start.Format(dateLayout))
		assert.True(t, got.IsOpen())
	})

	t.Run("later end wins", func(t *testing.T) {
		got := New(d(2024, 1, 1), dp(2024, 12, 31)).Extend(d(2024, 6, 1), dp(2025, 6, 30))
		assert.Equal(t, "[2024-01-01, 2025-06-30]", got.String())
	})

	t.Run("contained range is a no-op", func(t *testing.T) {
		base := New(d(2024, 1, 1), dp(2024, 12, 31))
		assert.True(t, base.Equal(base.Extend(d(2024, 3, 1), dp(2024, 4, 30))))
	})

	t.Run("result does not alias input", func(t *testing.T) {
		end := d(2024, 12, 31)
		base := Range{Start: d(2024, 1, 1), End: &end}
		got := base.Extend(d(2024, 2, 1), nil)
		assert.Nil(t, got.End)
		assert.Equal(t, d(2024, 12, 31), end)
	})
}

func TestValidAndDays(t *testing.T) {
	assert.False(t, New(d(2024, 2, 1), dp(2024, 1, 31)).Valid())
	assert.True(t, New(d(2024, 2, 1), dp(2024, 2, 1)).Valid())
	assert.Equal(t, "2024-02-29", PrevDay(d(2024, 3, 1)).Format(dateLayout))
	assert.Equal(t, "2025-01-01", NextDay(d(2024, 12, 31)).Format(dateLayout))
	assert.Equal(t, "open", Format(nil))
}
