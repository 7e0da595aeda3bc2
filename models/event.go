package models

import (
	"fmt"
	"slices"
	"time"
)

const (
	// Layout of the timestamps served by the ranking API (naive Japan time).
	APITimeLayout = "2006-01-02T15:04:05"
	// Layout used when rendering timestamps for humans.
	DisplayTimeLayout = "2006-01-02 15:04"
)

// The event type enum represents the type of an event in the ranking API.
type EventType int

const (
	_ EventType = iota
	ShowTime
	MilliColle1
	Theater
	Tour
	Anniversary
	Working
	AprilFool
	GameCorner
	MilliColle2
	TwinStage1
	Tune
	TwinStage2
	Tale
	TalkParty
)

// Only these event types publish event point borders.
var EventTypesWithBorder = []EventType{Theater, Tour}

func (t EventType) HasBorder() bool {
	return slices.Contains(EventTypesWithBorder, t)
}

var japan = loadJapan()

func loadJapan() *time.Location {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		return time.FixedZone("JST", 9*60*60)
	}
	return loc
}

// Japan returns the time zone every event schedule is expressed in.
func Japan() *time.Location {
	return japan
}

// ParseJapanTime parses a naive API timestamp as Japan time.
func ParseJapanTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(APITimeLayout, s, japan)
	if err == nil {
		return t, nil
	}
	// Some mirrors serve RFC3339 with an explicit offset.
	if t, rerr := time.Parse(time.RFC3339, s); rerr == nil {
		return t.In(japan), nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
}

// EventRecord is an immutable view of one event from the event directory.
// IsActive is evaluated once at construction time.
type EventRecord struct {
	ID        int
	Name      string
	Type      EventType
	Starts    time.Time
	Ends      time.Time
	IsActive  bool
	HasBorder bool
}

func NewEventRecord(id int, name, beginAt, endAt string, eventType EventType, now time.Time) (EventRecord, error) {
	starts, err := ParseJapanTime(beginAt)
	if err != nil {
		return EventRecord{}, fmt.Errorf("event %d begin_at: %w", id, err)
	}
	ends, err := ParseJapanTime(endAt)
	if err != nil {
		return EventRecord{}, fmt.Errorf("event %d end_at: %w", id, err)
	}
	return EventRecord{
		ID:        id,
		Name:      name,
		Type:      eventType,
		Starts:    starts,
		Ends:      ends,
		IsActive:  starts.Before(now) && now.Before(ends),
		HasBorder: eventType.HasBorder(),
	}, nil
}

func (e EventRecord) String() string {
	active := "Inactive"
	if e.IsActive {
		active = "Ongoing"
	}
	border := "Doesn't have borders"
	if e.HasBorder {
		border = "Has borders"
	}
	return fmt.Sprintf("Event #%d: %s\nstarts %s\nends %s\n%s\n%s",
		e.ID, e.Name, e.Starts.Format(APITimeLayout), e.Ends.Format(APITimeLayout), active, border)
}
