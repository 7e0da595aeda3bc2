package jobs

import (
	"time"

	"github.com/robfig/cron/v3"
)

const (
	Cadence            = 30 * time.Minute
	DefaultOffset      = 5 * time.Second
	DefaultMinimumWait = 10 * time.Second
	DefaultRetryDelay  = 30 * time.Second
)

// HalfHourSchedule fires Offset after every wall-clock half hour, but never
// sooner than MinimumWait after the reference time so a restart right before a
// boundary does not fire immediately.
type HalfHourSchedule struct {
	Offset      time.Duration
	MinimumWait time.Duration
}

var _ cron.Schedule = HalfHourSchedule{}

func NewHalfHourSchedule(offset, minimumWait time.Duration) HalfHourSchedule {
	if offset < 0 {
		offset = DefaultOffset
	}
	if minimumWait < 0 {
		minimumWait = 0
	}
	return HalfHourSchedule{Offset: offset % Cadence, MinimumWait: minimumWait}
}

func (s HalfHourSchedule) Next(t time.Time) time.Time {
	// Japan is a whole-hour offset from UTC, so UTC truncation lands on local half hours.
	next := t.Truncate(Cadence).Add(s.Offset)
	for !next.After(t) {
		next = next.Add(Cadence)
	}
	if floor := t.Add(s.MinimumWait); next.Before(floor) {
		return floor
	}
	return next
}
