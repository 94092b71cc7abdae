package dto

import "time"

// EventOutput is one lifecycle event of an allocation run
type EventOutput struct {
	Type      string      `json:"type"`
	RunID     string      `json:"run_id"`
	Version   int         `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}
