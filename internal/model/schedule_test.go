package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScheduleSettings_Buffer(t *testing.T) {
	zero, ten := 0, 10
	tests := []struct {
		name   string
		buffer *int
		want   int
	}{
		{"unset falls back to default", nil, DefaultBufferMinutes},
		{"explicit zero is kept", &zero, 0},
		{"configured", &ten, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &ScheduleSettings{BufferTimeMinutes: tt.buffer}
			assert.Equal(t, tt.want, s.Buffer())

			p := s.Policy(45)
			assert.Equal(t, 45, p.DurationMinutes)
			assert.Equal(t, tt.want, p.BufferBeforeMinutes)
			assert.Equal(t, tt.want, p.BufferAfterMinutes)
		})
	}
}
