package slots

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    Clock
		label   string
		wantErr bool
	}{
		{in: "00:00", want: 0, label: "12:00 AM"},
		{in: "09:05", want: 545, label: "9:05 AM"},
		{in: "12:30", want: 750, label: "12:30 PM"},
		{in: "23:59", want: 1439, label: "11:59 PM"},
		{in: "24:00", wantErr: true},
		{in: "9am", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
			assert.Equal(t, tt.label, got.Label())
		})
	}
}

func TestParseEndClock(t *testing.T) {
	end, err := ParseEndClock("24:00")
	require.NoError(t, err)
	assert.Equal(t, EndOfDay, end)
	assert.Equal(t, "24:00", end.String())

	end, err = ParseEndClock("17:30")
	require.NoError(t, err)
	assert.Equal(t, MustParseClock("17:30"), end)

	_, err = ParseEndClock("24:30")
	assert.Error(t, err)

	iv, err := window("22:00", "24:00").Interval()
	require.NoError(t, err)
	assert.Equal(t, Interval{Start: MustParseClock("22:00"), End: EndOfDay}, iv)

	_, err = window("24:00", "24:00").Interval()
	assert.ErrorIs(t, err, ErrConfiguration, "24:00 is only an end time")
}

func TestClockOn(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	date := time.Date(2026, 3, 2, 18, 45, 0, 0, loc)

	got := MustParseClock("09:30").On(date)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 30, 0, 0, loc), got)
}

func TestOverlaps(t *testing.T) {
	iv := func(a, b string) Interval { return Interval{Start: MustParseClock(a), End: MustParseClock(b)} }

	assert.True(t, Overlaps(iv("09:00", "10:00"), iv("09:30", "10:30")))
	assert.True(t, Overlaps(iv("09:00", "12:00"), iv("10:00", "11:00")))
	assert.False(t, Overlaps(iv("09:00", "10:00"), iv("10:00", "11:00")))
	assert.False(t, Overlaps(iv("11:00", "12:00"), iv("10:00", "11:00")))

	assert.True(t, iv("10:00", "11:00").Within(iv("10:00", "11:00")))
	assert.False(t, iv("09:45", "11:00").Within(iv("10:00", "11:00")))
}

func TestDefaultWeek(t *testing.T) {
	w := DefaultWeek()

	for d := time.Monday; d <= time.Friday; d++ {
		assert.True(t, w[d].Enabled, d.String())
		assert.Equal(t, "09:00", w[d].StartTime)
		assert.Equal(t, "17:00", w[d].EndTime)
	}
	assert.False(t, w[time.Saturday].Enabled)
	assert.False(t, w[time.Sunday].Enabled)
	assert.NoError(t, w.Validate())
}

func TestParseWeek(t *testing.T) {
	t.Run("empty map uses defaults", func(t *testing.T) {
		w, err := ParseWeek(nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultWeek(), w)
	})

	t.Run("configured days override, missing days default", func(t *testing.T) {
		w, err := ParseWeek(map[string]DayWindow{
			"Saturday": {Enabled: true, StartTime: "10:00", EndTime: "14:00"},
			"monday":   {Enabled: false, StartTime: "09:00", EndTime: "17:00"},
		})
		require.NoError(t, err)

		assert.True(t, w[time.Saturday].Enabled)
		assert.Equal(t, "10:00", w[time.Saturday].StartTime)
		assert.False(t, w[time.Monday].Enabled)
		assert.True(t, w[time.Tuesday].Enabled)
		assert.False(t, w[time.Sunday].Enabled)

		saturday := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
		assert.True(t, w.Enabled(saturday))
		assert.Equal(t, "14:00", w.For(saturday).EndTime)
	})

	t.Run("unknown weekday", func(t *testing.T) {
		_, err := ParseWeek(map[string]DayWindow{"Funday": {Enabled: true}})
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("duplicate weekday", func(t *testing.T) {
		_, err := ParseWeek(map[string]DayWindow{
			"Monday": {Enabled: true, StartTime: "09:00", EndTime: "17:00"},
			"mon":    {Enabled: true, StartTime: "09:00", EndTime: "17:00"},
		})
		assert.ErrorIs(t, err, ErrConfiguration)
	})
}

func TestWeekValidate(t *testing.T) {
	w := DefaultWeek()
	w[time.Sunday] = DayWindow{Enabled: false, StartTime: "bogus", EndTime: ""}
	assert.NoError(t, w.Validate(), "disabled days are not validated")

	w[time.Wednesday] = DayWindow{Enabled: true, StartTime: "17:00", EndTime: "09:00"}
	err := w.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Wednesday")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestWeekMapRoundTrip(t *testing.T) {
	w := DefaultWeek()
	w[time.Saturday] = DayWindow{Enabled: true, StartTime: "08:00", EndTime: "12:00"}

	m := w.Map()
	assert.Len(t, m, 7)
	assert.Equal(t, w[time.Saturday], m["Saturday"])

	back, err := ParseWeek(m)
	require.NoError(t, err)
	assert.Equal(t, w, back)
}
