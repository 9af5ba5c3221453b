package domain

import "strings"

// ConversationIDPrefix prefix of every conversation id
const ConversationIDPrefix = "conversation_"

// ConversationSummary one entry of a user's conversations list. Each participant
// holds an independent copy.
type ConversationSummary struct {
	ID             string        `json:"id" bson:"id"`
	CounterpartyID string        `json:"other_user_email" bson:"other_user_email"`
	DisplayName    string        `json:"name" bson:"name"`
	LatestMessage  LatestMessage `json:"latest_message" bson:"latest_message"`
}

// LatestMessage snapshot of the newest message kept on a summary
type LatestMessage struct {
	Date   string `json:"date" bson:"date"`
	Text   string `json:"message" bson:"message"`
	IsRead bool   `json:"is_read" bson:"is_read"`
}

// ConversationID id of the conversation opened by firstMessageID
func ConversationID(firstMessageID string) string {
	return ConversationIDPrefix + firstMessageID
}

// ChatAppUser profile written on first login
type ChatAppUser struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// SafeEmail canonical id of the user
func (u ChatAppUser) SafeEmail() string {
	return Canonicalize(u.Email)
}

// FullName directory display name
func (u ChatAppUser) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// ProfilePictureFileName blob file name of the profile picture
func (u ChatAppUser) ProfilePictureFileName() string {
	return ProfilePictureFileName(u.SafeEmail())
}

// ProfilePictureFileName blob file name of safeEmail's profile picture
func ProfilePictureFileName(safeEmail string) string {
	return safeEmail + "_profile_picture.png"
}

// DirectoryEntry one entry of the /users search directory
type DirectoryEntry struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}
