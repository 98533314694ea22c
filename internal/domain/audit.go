package domain

import "time"

// ModelOutput is the raw reply the language model gave for one message.
type ModelOutput struct {
	ID        string
	MessageID string
	Model     string
	Prompt    string
	Reply     string
	CreatedAt time.Time
}
