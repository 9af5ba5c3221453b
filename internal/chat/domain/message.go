package domain

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Kind message kind, stored as the record "type"
type Kind string

const (
	KindText           Kind = "text"
	KindAttributedText Kind = "attributed_text"
	KindPhoto          Kind = "photo"
	KindVideo          Kind = "video"
	KindLocation       Kind = "location"
	KindEmoji          Kind = "emoji"
	KindAudio          Kind = "audio"
	KindContact        Kind = "contact"
	KindLinkPreview    Kind = "link_preview"
	KindCustom         Kind = "custom"
)

// DateLayout medium date + long time, en_US
const DateLayout = "Jan 2, 2006 at 3:04:05 PM MST"

// Payload typed message content, one variant per kind family
type Payload interface {
	Kind() Kind
	// Content wire encoding stored in MessageRecord.Content
	Content() string
}

// TextPayload plain text
type TextPayload struct {
	Body string
}

// Kind text
func (p TextPayload) Kind() Kind { return KindText }

// Content the text
func (p TextPayload) Content() string { return p.Body }

// MediaPayload photo or video stored as a blob url
type MediaPayload struct {
	MediaKind Kind
	URL       string
}

// Kind photo or video
func (p MediaPayload) Kind() Kind { return p.MediaKind }

// Content the url
func (p MediaPayload) Content() string { return p.URL }

// LocationPayload a geo point
type LocationPayload struct {
	Longitude float64
	Latitude  float64
}

// Kind location
func (p LocationPayload) Kind() Kind { return KindLocation }

// Content "<lon>,<lat>"
func (p LocationPayload) Content() string {
	return strconv.FormatFloat(p.Longitude, 'f', -1, 64) + "," + strconv.FormatFloat(p.Latitude, 'f', -1, 64)
}

// OpaquePayload any other kind, content kept as raw text
type OpaquePayload struct {
	MediaKind Kind
	Body      string
}

// Kind the carried kind
func (p OpaquePayload) Kind() Kind { return p.MediaKind }

// Content the raw text
func (p OpaquePayload) Content() string { return p.Body }

// DecodePayload turn a stored kind/content pair into its typed payload
func DecodePayload(kind Kind, content string) (Payload, error) {
	switch kind {
	case KindText:
		return TextPayload{Body: content}, nil
	case KindPhoto, KindVideo:
		if _, err := url.Parse(content); err != nil {
			return nil, fmt.Errorf("decode %s url: %w", kind, err)
		}
		return MediaPayload{MediaKind: kind, URL: content}, nil
	case KindLocation:
		return decodeLocation(content)
	default:
		return OpaquePayload{MediaKind: kind, Body: content}, nil
	}
}

func decodeLocation(content string) (Payload, error) {
	parts := strings.Split(content, ",")
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: %q", ErrMalformedLocation, content)
	}
	lon, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return nil, fmt.Errorf("%w: longitude %q", ErrMalformedLocation, parts[0])
	}
	lat, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return nil, fmt.Errorf("%w: latitude %q", ErrMalformedLocation, parts[1])
	}
	return LocationPayload{Longitude: lon, Latitude: lat}, nil
}

// Sender author of a message
type Sender struct {
	ID          string
	DisplayName string
}

// Message a decoded message
type Message struct {
	ID      string
	Sender  Sender
	SentAt  time.Time
	Payload Payload
}

// MessageRecord persisted form of a message, immutable once appended
type MessageRecord struct {
	ID          string `json:"id" bson:"id"`
	Type        Kind   `json:"type" bson:"type"`
	Content     string `json:"content" bson:"content"`
	Date        string `json:"date" bson:"date"`
	SenderEmail string `json:"sender_email" bson:"sender_email"`
	IsRead      bool   `json:"is_read" bson:"is_read"`
	Name        string `json:"name" bson:"name"`
}

// FormatDate format t with DateLayout in loc
func FormatDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DateLayout)
}

// ParseDate parse a DateLayout string in loc
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(DateLayout, s, loc)
}

// Record persisted form of m, is_read always starts false
func (m Message) Record(loc *time.Location) MessageRecord {
	return MessageRecord{
		ID:          m.ID,
		Type:        m.Payload.Kind(),
		Content:     m.Payload.Content(),
		Date:        FormatDate(m.SentAt, loc),
		SenderEmail: m.Sender.ID,
		IsRead:      false,
		Name:        m.Sender.DisplayName,
	}
}

// DecodeMessage rebuild a Message from its record
func DecodeMessage(r MessageRecord, loc *time.Location) (Message, error) {
	payload, err := DecodePayload(r.Type, r.Content)
	if err != nil {
		return Message{}, err
	}
	sentAt, err := ParseDate(r.Date, loc)
	if err != nil {
		return Message{}, fmt.Errorf("decode message %s date: %w", r.ID, err)
	}
	return Message{
		ID:      r.ID,
		Sender:  Sender{ID: r.SenderEmail, DisplayName: r.Name},
		SentAt:  sentAt,
		Payload: payload,
	}, nil
}
