package notify

import (
	"time"

	"github.com/google/go-github/v57/github"
)

// Message is the outbound notification unit handed to a Deliverer.
type Message struct {
	Title       string
	Description string
	URL         string
	Author      *Author
	Fields      []Field
	Color       int
	// Content carries the mention tokens rendered above the embed.
	Content string
	// SuppressNotifications silences the push notification on the chat side.
	SuppressNotifications bool
	Footer                string
	Timestamp             time.Time
}

// Author identifies the GitHub actor that triggered the event.
type Author struct {
	Name    string
	URL     string
	IconURL string
}

// Field is a named value rendered inside the message embed.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Notification pairs a message with the dedup key used to decide edit vs send.
type Notification struct {
	Key     string
	Message Message
}

func authorOf(user *github.User) *Author {
	if user == nil {
		return nil
	}
	return &Author{
		Name:    user.GetLogin(),
		URL:     user.GetHTMLURL(),
		IconURL: user.GetAvatarURL(),
	}
}

func inline(name, value string) Field {
	return Field{Name: name, Value: value, Inline: true}
}

func block(name, value string) Field {
	return Field{Name: name, Value: value}
}
