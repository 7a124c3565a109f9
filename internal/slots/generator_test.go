package slots

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Monday.
var testDate = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func window(start, end string) DayWindow {
	return DayWindow{Enabled: true, StartTime: start, EndTime: end}
}

func times(slots []TimeSlot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.Time
	}
	return out
}

func TestGenerateSlots_DisabledDay(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
	}{
		{"valid policy", Policy{DurationMinutes: 30}},
		{"zero duration", Policy{}},
		{"negative buffer", Policy{DurationMinutes: 30, BufferBeforeMinutes: -5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots, err := GenerateSlots(Input{
				Window: DayWindow{Enabled: false, StartTime: "09:00", EndTime: "17:00"},
				Policy: tt.policy,
				Bookings: []ExistingBooking{
					{Date: testDate, StartTime: "10:00", EndTime: "11:00"},
				},
				Date: testDate,
			})
			require.NoError(t, err)
			assert.Empty(t, slots)
			assert.NotNil(t, slots)
		})
	}
}

func TestGenerateSlots_FullWindowNoBookings(t *testing.T) {
	slots, err := GenerateSlots(Input{
		Window: window("09:00", "17:00"),
		Policy: Policy{DurationMinutes: 30},
		Date:   testDate,
	})
	require.NoError(t, err)
	require.Len(t, slots, 16)

	assert.Equal(t, "09:00", slots[0].Time)
	assert.Equal(t, "9:00 AM", slots[0].Label)
	assert.Equal(t, "16:30", slots[15].Time)
	assert.Equal(t, "4:30 PM", slots[15].Label)
	for _, s := range slots {
		assert.True(t, s.Available, "slot %s", s.Time)
		assert.Empty(t, s.Reason)
	}
}

func TestGenerateSlots_WindowEndingAtMidnight(t *testing.T) {
	got, err := GenerateSlots(Input{
		Window:   window("22:00", "24:00"),
		Policy:   Policy{DurationMinutes: 30},
		Bookings: []ExistingBooking{{Date: testDate, StartTime: "23:30", EndTime: "24:00"}},
		Date:     testDate,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"22:00", "22:30", "23:00", "23:30"}, times(got))
	assert.True(t, got[2].Available)
	assert.Equal(t, "11:00 PM", got[2].Label)
	assert.Equal(t, ReasonBooked, got[3].Reason)
}

func TestGenerateSlots_DurationExceedsWindow(t *testing.T) {
	slots, err := GenerateSlots(Input{
		Window: window("09:00", "09:15"),
		Policy: Policy{DurationMinutes: 30},
		Date:   testDate,
	})
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestGenerateSlots_BufferedBookingBlocksNeighbours(t *testing.T) {
	slots, err := GenerateSlots(Input{
		Window: window("09:00", "12:00"),
		Policy: Policy{DurationMinutes: 60, BufferBeforeMinutes: 15, BufferAfterMinutes: 15},
		Bookings: []ExistingBooking{
			{Date: testDate, StartTime: "10:00", EndTime: "11:00"},
		},
		Date: testDate,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"09:00", "10:00", "11:00"}, times(slots))

	// booking occupies 09:45-11:15 once buffered
	for _, s := range slots {
		assert.False(t, s.Available, "slot %s", s.Time)
		assert.Equal(t, ReasonBooked, s.Reason, "slot %s", s.Time)
	}
}

func TestGenerateSlots_Buffers(t *testing.T) {
	tests := []struct {
		name      string
		window    DayWindow
		policy    Policy
		bookings  []ExistingBooking
		available map[string]bool
		reasons   map[string]string
	}{
		{
			name:   "buffers push edge slots outside the window",
			window: window("09:00", "12:00"),
			policy: Policy{DurationMinutes: 60, BufferBeforeMinutes: 15, BufferAfterMinutes: 15},
			available: map[string]bool{
				"09:00": false, "10:00": true, "11:00": false,
			},
			reasons: map[string]string{
				"09:00": ReasonOutsideWindow, "11:00": ReasonOutsideWindow,
			},
		},
		{
			name:   "adjacent booking without buffers leaves neighbours free",
			window: window("09:00", "12:00"),
			policy: Policy{DurationMinutes: 60},
			bookings: []ExistingBooking{
				{Date: testDate, StartTime: "10:00", EndTime: "11:00"},
			},
			available: map[string]bool{
				"09:00": true, "10:00": false, "11:00": true,
			},
			reasons: map[string]string{"10:00": ReasonBooked},
		},
		{
			name:   "after-buffer applies to candidates and bookings",
			window: window("09:00", "12:00"),
			policy: Policy{DurationMinutes: 30, BufferAfterMinutes: 10},
			bookings: []ExistingBooking{
				{Date: testDate, StartTime: "10:00", EndTime: "10:30"},
			},
			available: map[string]bool{
				"09:00": true, "09:30": false, "10:00": false, "10:30": false,
				"11:00": true, "11:30": false,
			},
			reasons: map[string]string{
				"09:30": ReasonBooked, "10:00": ReasonBooked, "10:30": ReasonBooked,
				"11:30": ReasonOutsideWindow,
			},
		},
		{
			name:   "booking covering the window blocks everything",
			window: window("09:00", "11:00"),
			policy: Policy{DurationMinutes: 30},
			bookings: []ExistingBooking{
				{Date: testDate, StartTime: "08:00", EndTime: "12:00"},
			},
			available: map[string]bool{
				"09:00": false, "09:30": false, "10:00": false, "10:30": false,
			},
		},
		{
			name:   "bookings on other dates are ignored",
			window: window("09:00", "10:00"),
			policy: Policy{DurationMinutes: 30},
			bookings: []ExistingBooking{
				{Date: testDate.AddDate(0, 0, 1), StartTime: "09:00", EndTime: "10:00"},
				{Date: testDate.AddDate(0, 0, -7), StartTime: "09:00", EndTime: "10:00"},
			},
			available: map[string]bool{"09:00": true, "09:30": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots, err := GenerateSlots(Input{
				Window:   tt.window,
				Policy:   tt.policy,
				Bookings: tt.bookings,
				Date:     testDate,
			})
			require.NoError(t, err)
			require.Len(t, slots, len(tt.available))

			for _, s := range slots {
				want, ok := tt.available[s.Time]
				require.True(t, ok, "unexpected slot %s", s.Time)
				assert.Equal(t, want, s.Available, "slot %s", s.Time)
				if reason, ok := tt.reasons[s.Time]; ok {
					assert.Equal(t, reason, s.Reason, "slot %s", s.Time)
				}
			}
		})
	}
}

func TestGenerateSlots_Idempotent(t *testing.T) {
	in := Input{
		Window: window("08:00", "18:00"),
		Policy: Policy{DurationMinutes: 45, BufferBeforeMinutes: 5, BufferAfterMinutes: 10},
		Bookings: []ExistingBooking{
			{Date: testDate, StartTime: "11:00", EndTime: "12:15"},
			{Date: testDate, StartTime: "15:30", EndTime: "16:00"},
		},
		Date:                      testDate,
		MinimumAdvanceNoticeHours: 1,
		Now:                       testDate.Add(9 * time.Hour),
	}

	first, err := GenerateSlots(in)
	require.NoError(t, err)
	second, err := GenerateSlots(in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGenerateSlots_Ordering(t *testing.T) {
	slots, err := GenerateSlots(Input{
		Window: window("07:15", "19:40"),
		Policy: Policy{DurationMinutes: 25, BufferBeforeMinutes: 5},
		Bookings: []ExistingBooking{
			{Date: testDate, StartTime: "12:00", EndTime: "13:00"},
		},
		Date: testDate,
	})
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	for i := 1; i < len(slots); i++ {
		assert.Less(t, slots[i-1].Time, slots[i].Time)
	}
}

func TestGenerateSlots_AdvanceNotice(t *testing.T) {
	in := Input{
		Window:                    window("09:00", "12:00"),
		Policy:                    Policy{DurationMinutes: 60},
		Date:                      testDate,
		MinimumAdvanceNoticeHours: 2,
		Now:                       testDate.Add(8*time.Hour + 30*time.Minute),
	}

	slots, err := GenerateSlots(in)
	require.NoError(t, err)
	require.Equal(t, []string{"09:00", "10:00", "11:00"}, times(slots))

	assert.False(t, slots[0].Available)
	assert.Equal(t, ReasonTooSoon, slots[0].Reason)
	assert.False(t, slots[1].Available)
	assert.Equal(t, ReasonTooSoon, slots[1].Reason)
	assert.True(t, slots[2].Available)

	t.Run("zero notice ignores the clock", func(t *testing.T) {
		in.MinimumAdvanceNoticeHours = 0
		in.Now = testDate.Add(23 * time.Hour)
		slots, err := GenerateSlots(in)
		require.NoError(t, err)
		assert.Len(t, AvailableOnly(slots), 3)
	})

	t.Run("booked reason wins over notice", func(t *testing.T) {
		in.MinimumAdvanceNoticeHours = 2
		in.Now = testDate.Add(8 * time.Hour)
		in.Bookings = []ExistingBooking{{Date: testDate, StartTime: "09:00", EndTime: "10:00"}}
		slots, err := GenerateSlots(in)
		require.NoError(t, err)
		assert.Equal(t, ReasonBooked, slots[0].Reason)
	})
}

func TestGenerateSlots_MalformedWindow(t *testing.T) {
	tests := []struct {
		name   string
		window DayWindow
		field  string
	}{
		{"end before start", window("17:00", "09:00"), "end_time"},
		{"end equals start", window("09:00", "09:00"), "end_time"},
		{"bad start", window("nine", "17:00"), "start_time"},
		{"bad end", window("09:00", "25:00"), "end_time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots, err := GenerateSlots(Input{
				Window: tt.window,
				Policy: Policy{DurationMinutes: 30},
				Date:   testDate,
			})
			require.Error(t, err)
			assert.Nil(t, slots)

			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestGenerateSlots_MalformedBooking(t *testing.T) {
	_, err := GenerateSlots(Input{
		Window: window("09:00", "17:00"),
		Policy: Policy{DurationMinutes: 30},
		Bookings: []ExistingBooking{
			{Date: testDate, StartTime: "11:00", EndTime: "10:00"},
		},
		Date: testDate,
	})
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = GenerateSlots(Input{
		Window: window("09:00", "17:00"),
		Policy: Policy{DurationMinutes: 30},
		Bookings: []ExistingBooking{
			{Date: testDate, StartTime: "10", EndTime: "11:00"},
		},
		Date: testDate,
	})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestGenerateSlots_InvalidPolicy(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		field  string
	}{
		{"zero duration", Policy{DurationMinutes: 0}, "duration_minutes"},
		{"negative duration", Policy{DurationMinutes: -30}, "duration_minutes"},
		{"negative buffer before", Policy{DurationMinutes: 30, BufferBeforeMinutes: -1}, "buffer_before_minutes"},
		{"negative buffer after", Policy{DurationMinutes: 30, BufferAfterMinutes: -1}, "buffer_after_minutes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GenerateSlots(Input{
				Window: window("09:00", "17:00"),
				Policy: tt.policy,
				Date:   testDate,
			})
			var policyErr *InvalidPolicyError
			require.True(t, errors.As(err, &policyErr))
			assert.Equal(t, tt.field, policyErr.Field)
			assert.ErrorIs(t, err, ErrInvalidPolicy)
		})
	}
}

func TestGenerator_UsesClockAndNotice(t *testing.T) {
	now := testDate.Add(10 * time.Hour)
	g := NewGenerator(func() time.Time { return now }, 1)

	slots, err := g.Generate(window("09:00", "13:00"), Policy{DurationMinutes: 60}, nil, testDate)
	require.NoError(t, err)
	require.Len(t, slots, 4)

	// cutoff is 11:00; a slot starting exactly at the cutoff is bookable
	assert.Equal(t, []bool{false, false, true, true}, []bool{
		slots[0].Available, slots[1].Available, slots[2].Available, slots[3].Available,
	})
	assert.Equal(t, now, g.Now())

	s, ok := Find(slots, "11:00")
	require.True(t, ok)
	assert.True(t, s.Available)
	_, ok = Find(slots, "11:30")
	assert.False(t, ok)
}
