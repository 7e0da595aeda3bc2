package models

// Payloads of the ranking API. Only the fields the bot reads are decoded.

type EventSchedule struct {
	BeginAt string `json:"begin_at"`
	EndAt   string `json:"end_at"`
}

type Event struct {
	Id       int           `json:"event_id"`
	Name     string        `json:"event_name"`
	Type     int           `json:"event_type"`
	Schedule EventSchedule `json:"schedule"`
}

type EventsResponse struct {
	Status bool    `json:"status"`
	Data   []Event `json:"data"`
}

type EventPointLog struct {
	Datetime string      `json:"datetime"`
	Borders  map[int]int `json:"borders"`
}

type RankingResponse struct {
	Status bool `json:"status"`
	Data   struct {
		Logs []EventPointLog `json:"logs"`
	} `json:"data"`
}
