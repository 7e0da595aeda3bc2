package models

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

var ErrInvalidBorder = errors.New("invalid border document")

type BorderMetadata struct {
	Name   string
	ID     int
	Starts time.Time
	Ends   time.Time
}

// BorderDocument is one scored snapshot of the event point leaderboard.
// Borders maps rank to cumulative event points.
type BorderDocument struct {
	Datetime time.Time
	Borders  map[int]int
	Metadata BorderMetadata
}

// Validate rejects documents that downstream formatting cannot render.
func (b BorderDocument) Validate() error {
	if b.Datetime.IsZero() {
		return fmt.Errorf("%w: missing datetime", ErrInvalidBorder)
	}
	if len(b.Borders) == 0 {
		return fmt.Errorf("%w: no borders", ErrInvalidBorder)
	}
	for rank, score := range b.Borders {
		if rank <= 0 {
			return fmt.Errorf("%w: rank %d is not positive", ErrInvalidBorder, rank)
		}
		if score < 0 {
			return fmt.Errorf("%w: rank %d has negative score %d", ErrInvalidBorder, rank, score)
		}
	}
	return nil
}

// Ranks returns the ranks present in the snapshot in ascending order.
func (b BorderDocument) Ranks() []int {
	ranks := make([]int, 0, len(b.Borders))
	for rank := range b.Borders {
		ranks = append(ranks, rank)
	}
	slices.Sort(ranks)
	return ranks
}

// MaxScore returns the largest score in the snapshot.
func (b BorderDocument) MaxScore() int {
	max := 0
	for _, score := range b.Borders {
		if score > max {
			max = score
		}
	}
	return max
}

// Rows flattens the snapshot into CSV history rows ordered by rank.
func (b BorderDocument) Rows() []BorderRow {
	rows := make([]BorderRow, 0, len(b.Borders))
	for _, rank := range b.Ranks() {
		rows = append(rows, BorderRow{
			EventId:      b.Metadata.ID,
			Rank:         rank,
			Score:        b.Borders[rank],
			AggregatedAt: b.Datetime,
		})
	}
	return rows
}

type StoredMetadata struct {
	Name   string `json:"name"`
	ID     int    `json:"id"`
	Starts string `json:"starts"`
	Ends   string `json:"ends"`
}

// StoredBorder is the durable form of a BorderDocument with every timestamp
// rendered as an API-layout string.
type StoredBorder struct {
	Datetime string         `json:"datetime"`
	Borders  map[int]int    `json:"borders"`
	Metadata StoredMetadata `json:"metadata"`
}

func Serialize(b BorderDocument) StoredBorder {
	borders := make(map[int]int, len(b.Borders))
	for rank, score := range b.Borders {
		borders[rank] = score
	}
	return StoredBorder{
		Datetime: b.Datetime.In(japan).Format(APITimeLayout),
		Borders:  borders,
		Metadata: StoredMetadata{
			Name:   b.Metadata.Name,
			ID:     b.Metadata.ID,
			Starts: b.Metadata.Starts.In(japan).Format(APITimeLayout),
			Ends:   b.Metadata.Ends.In(japan).Format(APITimeLayout),
		},
	}
}

func Deserialize(s StoredBorder) (BorderDocument, error) {
	datetime, err := ParseJapanTime(s.Datetime)
	if err != nil {
		return BorderDocument{}, fmt.Errorf("%w: datetime: %v", ErrInvalidBorder, err)
	}
	starts, err := ParseJapanTime(s.Metadata.Starts)
	if err != nil {
		return BorderDocument{}, fmt.Errorf("%w: metadata.starts: %v", ErrInvalidBorder, err)
	}
	ends, err := ParseJapanTime(s.Metadata.Ends)
	if err != nil {
		return BorderDocument{}, fmt.Errorf("%w: metadata.ends: %v", ErrInvalidBorder, err)
	}
	borders := make(map[int]int, len(s.Borders))
	for rank, score := range s.Borders {
		borders[rank] = score
	}
	doc := BorderDocument{
		Datetime: datetime,
		Borders:  borders,
		Metadata: BorderMetadata{
			Name:   s.Metadata.Name,
			ID:     s.Metadata.ID,
			Starts: starts,
			Ends:   ends,
		},
	}
	if err := doc.Validate(); err != nil {
		return BorderDocument{}, err
	}
	return doc, nil
}
