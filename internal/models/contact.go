package models

import (
	"time"
)

// ContactType classifies how a contact can be reached. An "app" contact is
// another subject linked in-app and reachable by push; the others carry a
// raw address for their channel.
type ContactType string

const (
	ContactApp      ContactType = "app"
	ContactEmail    ContactType = "email"
	ContactSMS      ContactType = "sms"
	ContactTelegram ContactType = "telegram"
)

// Valid reports whether t is one of the known contact types.
func (t ContactType) Valid() bool {
	switch t {
	case ContactApp, ContactEmail, ContactSMS, ContactTelegram:
		return true
	}
	return false
}

// Contact is one escalation target registered for a subject.
type Contact struct {
	ID              string      `json:"id"`
	SubjectID       string      `json:"subject_id"`
	Type            ContactType `json:"type"`
	Name            string      `json:"name,omitempty"`
	LinkedSubjectID string      `json:"linked_subject_id,omitempty"`
	Address         string      `json:"address,omitempty"`
	PhoneNumber     string      `json:"phone_number,omitempty"`
	ChatID          int64       `json:"chat_id,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}
