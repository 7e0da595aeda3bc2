package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBorder() BorderDocument {
	return BorderDocument{
		Datetime: time.Date(2024, 5, 20, 12, 0, 0, 0, Japan()),
		Borders:  map[int]int{100: 123456, 2500: 45678, 1: 9999999},
		Metadata: BorderMetadata{
			Name:   "プラチナスターシアター",
			ID:     321,
			Starts: time.Date(2024, 5, 15, 15, 0, 0, 0, Japan()),
			Ends:   time.Date(2024, 5, 22, 20, 59, 59, 0, Japan()),
		},
	}
}

func TestSerializeDeserialize_RoundTrip(t *testing.T) {
	doc := sampleBorder()

	stored := Serialize(doc)
	assert.Equal(t, "2024-05-15T15:00:00", stored.Metadata.Starts)
	assert.Equal(t, "2024-05-22T20:59:59", stored.Metadata.Ends)

	got, err := Deserialize(stored)
	require.NoError(t, err)
	assert.True(t, doc.Datetime.Equal(got.Datetime))
	assert.True(t, doc.Metadata.Starts.Equal(got.Metadata.Starts))
	assert.True(t, doc.Metadata.Ends.Equal(got.Metadata.Ends))
	assert.Equal(t, doc.Metadata.Name, got.Metadata.Name)
	assert.Equal(t, doc.Metadata.ID, got.Metadata.ID)
	assert.Equal(t, doc.Borders, got.Borders)
}

func TestSerialize_SurvivesJSON(t *testing.T) {
	data, err := json.Marshal(Serialize(sampleBorder()))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"100":123456`)

	var stored StoredBorder
	require.NoError(t, json.Unmarshal(data, &stored))
	got, err := Deserialize(stored)
	require.NoError(t, err)
	assert.Equal(t, sampleBorder().Borders, got.Borders)
}

func TestSerialize_DoesNotAliasBorders(t *testing.T) {
	doc := sampleBorder()
	stored := Serialize(doc)
	stored.Borders[100] = 0
	assert.Equal(t, 123456, doc.Borders[100])
}

func TestDeserialize_RejectsMalformed(t *testing.T) {
	stored := Serialize(sampleBorder())
	stored.Metadata.Ends = "yesterday"
	_, err := Deserialize(stored)
	assert.ErrorIs(t, err, ErrInvalidBorder)

	stored = Serialize(sampleBorder())
	stored.Borders = map[int]int{}
	_, err = Deserialize(stored)
	assert.ErrorIs(t, err, ErrInvalidBorder)
}

func TestValidate(t *testing.T) {
	doc := sampleBorder()
	assert.NoError(t, doc.Validate())

	doc.Borders = map[int]int{0: 10}
	assert.ErrorIs(t, doc.Validate(), ErrInvalidBorder)

	doc.Borders = map[int]int{1: -1}
	assert.ErrorIs(t, doc.Validate(), ErrInvalidBorder)
}

func TestRanksAndRows(t *testing.T) {
	doc := sampleBorder()
	assert.Equal(t, []int{1, 100, 2500}, doc.Ranks())
	assert.Equal(t, 9999999, doc.MaxScore())

	rows := doc.Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, BorderRow{EventId: 321, Rank: 1, Score: 9999999, AggregatedAt: doc.Datetime}, rows[0])
	assert.Equal(t, 2500, rows[2].Rank)
}

func TestNewEventRecord(t *testing.T) {
	now := time.Date(2024, 5, 20, 0, 0, 0, 0, Japan())

	ev, err := NewEventRecord(321, "Theater", "2024-05-15T15:00:00", "2024-05-22T20:59:59", Theater, now)
	require.NoError(t, err)
	assert.True(t, ev.IsActive)
	assert.True(t, ev.HasBorder)
	assert.Equal(t, Japan(), ev.Starts.Location())

	ev, err = NewEventRecord(322, "Working", "2024-05-23T15:00:00", "2024-05-30T20:59:59", Working, now)
	require.NoError(t, err)
	assert.False(t, ev.IsActive)
	assert.False(t, ev.HasBorder)

	_, err = NewEventRecord(1, "bad", "soon", "2024-05-30T20:59:59", Tour, now)
	assert.Error(t, err)
}
