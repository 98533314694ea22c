package domain

import "time"

// Part is one node of a message payload tree. Data holds the provider's
// base64url-encoded content and is empty when the part has no inline body.
type Part struct {
	MimeType string
	Charset  string
	Data     string
	Parts    []Part
}

// Message is a mail message as fetched from the provider.
type Message struct {
	ID string

	// InternalDate is the receipt time in epoch milliseconds.
	InternalDate int64

	Payload Part
}

// ReceivedAt returns the receipt time, or the zero time when the provider did
// not report one.
func (m Message) ReceivedAt() time.Time {
	if m.InternalDate <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(m.InternalDate)
}
