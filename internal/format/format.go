// Package format renders border snapshots as fixed-width chat reports.
package format

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alceccentric/mltd-borderbot/models"
	"github.com/dustin/go-humanize"
)

const (
	Credits = "データー提供： @imas_ml_td"
	Fence   = "```"
)

// Format renders current as a code block. When previous is non-nil each rank
// gets a signed "(+delta)" against the same rank in previous; ranks missing from
// previous get no delta. After the event has ended previous is ignored.
func Format(current models.BorderDocument, previous *models.BorderDocument) string {
	jst := models.Japan()
	remaining := current.Metadata.Ends.Sub(current.Datetime)

	timeLeft := fmt.Sprintf("%s～%s, ",
		current.Metadata.Starts.In(jst).Format(models.DisplayTimeLayout),
		current.Metadata.Ends.In(jst).Format(models.DisplayTimeLayout))
	if remaining >= 0 {
		days := int(remaining / (24 * time.Hour))
		hours := int(remaining % (24 * time.Hour) / time.Hour)
		timeLeft += fmt.Sprintf("あと %d 日 %d 時間", days, hours)
	} else {
		timeLeft += "イベントが終わりました"
		previous = nil
	}

	lines := []string{
		Fence,
		current.Metadata.Name,
		timeLeft,
		Credits,
		"",
		current.Datetime.In(jst).Format(models.DisplayTimeLayout),
	}
	lines = append(lines, body(current, previous)...)
	lines = append(lines, Fence)
	return strings.Join(lines, "\n")
}

func body(current models.BorderDocument, previous *models.BorderDocument) []string {
	ranks := current.Ranks()
	if len(ranks) == 0 {
		return nil
	}
	// One column width for every line, taken from the widest rank and score.
	rankWidth := len(strconv.Itoa(ranks[len(ranks)-1]))
	scoreWidth := len(humanize.Comma(int64(current.MaxScore())))

	lines := make([]string, 0, len(ranks))
	for _, rank := range ranks {
		score := current.Borders[rank]
		label := strconv.Itoa(rank)
		width := rankWidth - len(label) + scoreWidth
		line := fmt.Sprintf("%s位：  %*s", label, width, humanize.Comma(int64(score)))
		if previous != nil {
			if before, ok := previous.Borders[rank]; ok {
				line += fmt.Sprintf(" (%s)", signedComma(score-before))
			}
		}
		lines = append(lines, line)
	}
	return lines
}

// signedComma keeps the sign of corrected, decreasing scores visible.
func signedComma(delta int) string {
	if delta < 0 {
		return humanize.Comma(int64(delta))
	}
	return "+" + humanize.Comma(int64(delta))
}
