// internal/models/template.go
package models

import "fmt"

// Channel is a delivery medium.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
	ChannelInApp Channel = "in_app"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelPush, ChannelInApp:
		return true
	}
	return false
}

func ParseChannel(s string) (Channel, error) {
	c := Channel(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown channel %q", s)
	}
	return c, nil
}

// CommunicationTemplate is immutable once registered in the template store.
type CommunicationTemplate struct {
	ID        string   `json:"id" yaml:"id"`
	Name      string   `json:"name" yaml:"name"`
	Subject   string   `json:"subject" yaml:"subject"`
	Content   string   `json:"content" yaml:"content"`
	Variables []string `json:"variables,omitempty" yaml:"variables,omitempty"`
	Type      Channel  `json:"type" yaml:"type"`
	Category  string   `json:"category,omitempty" yaml:"category,omitempty"`
}

// RenderedContent is a template after placeholder substitution.
type RenderedContent struct {
	Subject string `json:"subject"`
	Content string `json:"content"`
}

type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"data"`
}

// Message is what a transport delivers.
type Message struct {
	Subject     string       `json:"subject"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
}
