package bubble

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadTime_MonotonicAndClamped(t *testing.T) {
	timing := DefaultTiming
	prev := time.Duration(0)
	for n := 0; n <= 400; n++ {
		d := ReadTime(strings.Repeat("x", n), timing)
		assert.GreaterOrEqual(t, d, prev, "length %d", n)
		assert.GreaterOrEqual(t, d, timing.Min, "length %d", n)
		assert.LessOrEqual(t, d, timing.Max, "length %d", n)
		prev = d
	}
	assert.Equal(t, timing.Min, ReadTime("", timing))
	assert.Equal(t, timing.Max, ReadTime(strings.Repeat("x", 1000), timing))
}

func TestReadTime_CountsRunes(t *testing.T) {
	timing := Timing{PerChar: time.Second, Max: time.Hour}
	assert.Equal(t, 3*time.Second, ReadTime("äöü", timing))
}

func TestReadTime_InvertedBounds(t *testing.T) {
	timing := Timing{Min: 2 * time.Second, Max: time.Second, PerChar: time.Second}
	assert.Equal(t, 2*time.Second, ReadTime("long text here", timing))
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestScheduler() (*Scheduler, *clock) {
	c := &clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := New(func(o *Options) {
		o.Timing = Timing{Min: time.Second, Max: 5 * time.Second, PerChar: 100 * time.Millisecond, HoverLinger: 300 * time.Millisecond}
		o.Now = c.Now
	})
	return s, c
}

func TestScheduler_ShowReplacesAndExpires(t *testing.T) {
	s, c := newTestScheduler()

	b := s.Show("naval", "hello", "#3399ff")
	assert.Equal(t, c.now.Add(time.Second), b.ExpiresAt)

	b2 := s.Show("naval", strings.Repeat("y", 20), "#3399ff")
	require.Len(t, s.Active(), 1)
	got, ok := s.Get("naval")
	require.True(t, ok)
	assert.Equal(t, b2.Text, got.Text)

	assert.Empty(t, s.Tick(c.now.Add(time.Second)))
	assert.Equal(t, []string{"naval"}, s.Tick(c.now.Add(2*time.Second+time.Millisecond)))
	assert.Empty(t, s.Active())
}

func TestScheduler_HoverSuppressesExpiry(t *testing.T) {
	s, c := newTestScheduler()
	s.Show("a", "hi", "#fff")
	require.True(t, s.SetHovered("a"))

	assert.Empty(t, s.Tick(c.now.Add(time.Minute)))

	c.now = c.now.Add(time.Minute)
	require.True(t, s.ClearHovered("a", -1))
	assert.Empty(t, s.Tick(c.now.Add(100*time.Millisecond)), "lingers after hover ends")
	assert.Equal(t, []string{"a"}, s.Tick(c.now.Add(400*time.Millisecond)))
}

func TestScheduler_HoverUnknownBubble(t *testing.T) {
	s, _ := newTestScheduler()
	assert.False(t, s.SetHovered("ghost"))
	assert.False(t, s.ClearHovered("ghost", 0))
}

func TestScheduler_RemoveAndClear(t *testing.T) {
	s, _ := newTestScheduler()
	s.Show("a", "1", "")
	s.Show("b", "2", "")
	s.Show("c", "3", "")
	s.SetHovered("a")

	s.Remove("a")
	s.Clear("b", "zzz")
	active := s.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "c", active[0].ParticipantID)
}
