package domain

import "time"

type GroupID string

type Group struct {
	ID   GroupID
	Name string
}

type MessageKind string

const (
	MessageUser MessageKind = "user"
	MessageAnon MessageKind = "anon"
)

// Message is one persisted chat line, direct or group.
type Message struct {
	Kind   MessageKind
	Sender string
	Body   string
	SentAt time.Time
}
