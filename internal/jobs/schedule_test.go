package jobs

import (
	"testing"
	"time"

	"github.com/alceccentric/mltd-borderbot/models"
	"github.com/stretchr/testify/assert"
)

func jst(h, m, s int) time.Time {
	return time.Date(2024, 5, 20, h, m, s, 0, models.Japan())
}

func TestHalfHourSchedule_Next(t *testing.T) {
	schedule := NewHalfHourSchedule(DefaultOffset, DefaultMinimumWait)

	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"mid slot", jst(12, 10, 0), jst(12, 30, 5)},
		{"second half", jst(12, 45, 30), jst(13, 0, 5)},
		{"right after firing", jst(12, 30, 5), jst(13, 0, 5)},
		{"just before boundary", jst(12, 29, 58), jst(12, 30, 8)},
		{"between boundary and offset", jst(12, 30, 2), jst(12, 30, 12)},
		{"midnight", jst(23, 59, 0), time.Date(2024, 5, 21, 0, 0, 5, 0, models.Japan())},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, tc.want.Equal(schedule.Next(tc.now)), "got %s", schedule.Next(tc.now))
		})
	}
}

func TestHalfHourSchedule_OffsetInMinutes(t *testing.T) {
	schedule := NewHalfHourSchedule(time.Minute+5*time.Second, 0)
	assert.True(t, jst(12, 31, 5).Equal(schedule.Next(jst(12, 30, 0))))
	assert.True(t, jst(13, 1, 5).Equal(schedule.Next(jst(12, 31, 5))))
}

func TestHalfHourSchedule_OffsetWrapsCadence(t *testing.T) {
	schedule := NewHalfHourSchedule(35*time.Minute, 0)
	assert.Equal(t, 5*time.Minute, schedule.Offset)
}

func TestHalfHourSchedule_ConsecutiveFiresAreACadenceApart(t *testing.T) {
	schedule := NewHalfHourSchedule(DefaultOffset, DefaultMinimumWait)
	fire := schedule.Next(jst(3, 17, 42))
	for i := 0; i < 100; i++ {
		// A tick takes a few seconds before the next one is computed.
		next := schedule.Next(fire.Add(3 * time.Second))
		assert.Equal(t, Cadence, next.Sub(fire))
		fire = next
	}
}
