package core

import (
	"bytes"
	htmltmpl "html/template"
	"net/mail"
	texttmpl "text/template"
)

type (
	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Bcc     []mail.Address
		Subject string
		BodyStr string // simple text/plain, non-templated content

		// Categories tag the message for the mail provider's stats (e.g. "notification", "groups").
		Categories []string

		// templated contents
		Template     *texttmpl.Template
		HTMLTemplate *htmltmpl.Template // optional text/html alternative
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

func (m *EmailMessage) Render() error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	}

	var buff bytes.Buffer
	if m.Template != nil {
		if err := m.Template.Execute(&buff, m.TemplateData); err != nil {
			return err
		}
		m.TextContent = buff.String()
	}
	if m.HTMLTemplate != nil {
		buff.Reset()
		if err := m.HTMLTemplate.Execute(&buff, m.TemplateData); err != nil {
			return err
		}
		m.HTMLContent = buff.String()
	}
	return nil
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return m.TextContent != "" || m.HTMLContent != "" }
