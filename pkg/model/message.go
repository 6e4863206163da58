package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const MessageMaxBodyLength = 512

var ErrMessageBodyTooLong = fmt.Errorf("message body exceeds %d characters", MessageMaxBodyLength)
var ErrMessageBodyEmpty = errors.New("message body cannot be empty")

// Message is one stored chat line. PrivateTo is empty for public room
// traffic and holds the recipient username for private-pair traffic.
type Message struct {
	ID        int64     `json:"id"`
	Sender    string    `json:"sender"`
	Body      string    `json:"body"`
	PrivateTo string    `json:"private_to,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (m *Message) Validate() error {
	if strings.TrimSpace(m.Body) == "" {
		return ErrMessageBodyEmpty
	} else if utf8.RuneCountInString(m.Body) > MessageMaxBodyLength {
		return ErrMessageBodyTooLong
	}

	return nil
}

// MessageFilters narrows a history fetch. Results are newest-last: the
// store keeps the most recent Limit rows and returns them oldest-first.
type MessageFilters struct {
	PublicOnly bool     // only messages with no private recipient
	Between    []string // exactly two usernames: private traffic between them
	Limit      int      // 0 means the store default
}
