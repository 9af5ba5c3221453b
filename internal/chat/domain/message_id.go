package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageIDGenerator produce message ids
type MessageIDGenerator interface {
	NewMessageID(senderID, recipientID string, at time.Time) string
}

// UniqueIDs random uuid ids
type UniqueIDs struct{}

// NewMessageID a new uuid
func (UniqueIDs) NewMessageID(_, _ string, _ time.Time) string {
	return uuid.NewString()
}

// CompatIDs "{recipient}_{sender}_{date}" ids. The date has second resolution,
// two messages between the same pair in one second share an id.
type CompatIDs struct {
	Location *time.Location
}

// NewMessageID the readable id
func (g CompatIDs) NewMessageID(senderID, recipientID string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%s", recipientID, senderID, FormatDate(at, g.Location))
}
