package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// BorderRow is one line of the per-event border history archive.
type BorderRow struct {
	EventId      int       `csv:"event_id"`
	Rank         int       `csv:"rank"`
	Score        int       `csv:"score"`
	AggregatedAt time.Time `csv:"aggregated_at"`
}

// Channel describes a destination registered for border broadcasts.
type Channel struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Server string `json:"server"`
}

var errEmptyChannelID = errors.New("channel id is empty")

// UnmarshalJSON reads the object form as well as the older [id, name, server]
// tuple and a bare id. Ids may be strings or numbers.
func (c *Channel) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errEmptyChannelID
	}
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '{':
		type plain Channel
		var ch plain
		if err := json.Unmarshal(data, &ch); err != nil {
			return err
		}
		*c = Channel(ch)
	case '[':
		var fields []json.RawMessage
		if err := json.Unmarshal(data, &fields); err != nil {
			return err
		}
		if len(fields) == 0 {
			return errEmptyChannelID
		}
		id, err := channelID(fields[0])
		if err != nil {
			return err
		}
		ch := Channel{ID: id}
		for i, dst := range []*string{&ch.Name, &ch.Server} {
			if len(fields) <= i+1 {
				break
			}
			if err := json.Unmarshal(fields[i+1], dst); err != nil {
				return fmt.Errorf("channel %s field %d: %w", id, i+1, err)
			}
		}
		*c = ch
	default:
		id, err := channelID(data)
		if err != nil {
			return err
		}
		*c = Channel{ID: id}
	}

	if c.ID == "" {
		return errEmptyChannelID
	}
	return nil
}

func channelID(raw json.RawMessage) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("channel id: %w", err)
	}
	switch id := v.(type) {
	case string:
		return id, nil
	case json.Number:
		return id.String(), nil
	default:
		return "", fmt.Errorf("channel id: unexpected %s", raw)
	}
}
