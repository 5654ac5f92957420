package whatsapp

import (
	"errors"
	"fmt"
	"strings"
)

// sendEnvelope is the Cloud API /messages request body.
type sendEnvelope struct {
	MessagingProduct string              `json:"messaging_product"`
	RecipientType    string              `json:"recipient_type,omitempty"`
	To               string              `json:"to"`
	Type             string              `json:"type"`
	Text             *textContent        `json:"text,omitempty"`
	Template         *templateContent    `json:"template,omitempty"`
	Interactive      *interactiveContent `json:"interactive,omitempty"`
}

type textContent struct {
	Body string `json:"body"`
}

type templateContent struct {
	Name       string              `json:"name"`
	Language   templateLanguage    `json:"language"`
	Components []TemplateComponent `json:"components,omitempty"`
}

type templateLanguage struct {
	Code string `json:"code"`
}

// TemplateComponent is one structured block of a named template.
type TemplateComponent struct {
	Type       string              `json:"type"`
	Parameters []TemplateParameter `json:"parameters,omitempty"`
}

// TemplateParameter fills a placeholder inside a template component.
type TemplateParameter struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type interactiveContent struct {
	Type   string             `json:"type"`
	Header *interactiveHeader `json:"header,omitempty"`
	Body   interactiveText    `json:"body"`
	Footer *interactiveText   `json:"footer,omitempty"`
	Action interactiveAction  `json:"action"`
}

type interactiveHeader struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type interactiveText struct {
	Text string `json:"text"`
}

type interactiveAction struct {
	Button   string              `json:"button,omitempty"`
	Sections []interactiveSect   `json:"sections,omitempty"`
	Buttons  []interactiveButton `json:"buttons,omitempty"`
}

type interactiveSect struct {
	Title string           `json:"title,omitempty"`
	Rows  []interactiveRow `json:"rows"`
}

type interactiveRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type interactiveButton struct {
	Type  string           `json:"type"`
	Reply interactiveReply `json:"reply"`
}

type interactiveReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// List describes an interactive list message.
type List struct {
	Header   string
	Body     string
	Footer   string
	Button   string
	Sections []Section
}

// Section groups list rows under an optional title.
type Section struct {
	Title string
	Rows  []Row
}

// Row is one selectable list entry.
type Row struct {
	ID          string
	Title       string
	Description string
}

func (l List) validate() error {
	if strings.TrimSpace(l.Body) == "" {
		return errors.New("whatsapp: list body required")
	}
	if strings.TrimSpace(l.Button) == "" {
		return errors.New("whatsapp: list button label required")
	}
	if len(l.Sections) == 0 {
		return errors.New("whatsapp: list needs at least one section")
	}
	for _, s := range l.Sections {
		if len(s.Rows) == 0 {
			return errors.New("whatsapp: list section needs at least one row")
		}
		for _, r := range s.Rows {
			if strings.TrimSpace(r.ID) == "" || strings.TrimSpace(r.Title) == "" {
				return errors.New("whatsapp: list rows need id and title")
			}
		}
	}
	return nil
}

func (l List) interactive() *interactiveContent {
	content := &interactiveContent{
		Type: "list",
		Body: interactiveText{Text: l.Body},
	}
	if l.Header != "" {
		content.Header = &interactiveHeader{Type: "text", Text: l.Header}
	}
	if l.Footer != "" {
		content.Footer = &interactiveText{Text: l.Footer}
	}
	content.Action.Button = l.Button
	for _, s := range l.Sections {
		sect := interactiveSect{Title: s.Title}
		for _, r := range s.Rows {
			sect.Rows = append(sect.Rows, interactiveRow{ID: r.ID, Title: r.Title, Description: r.Description})
		}
		content.Action.Sections = append(content.Action.Sections, sect)
	}
	return content
}

// Buttons describes an interactive reply-button message.
type Buttons struct {
	Body    string
	Footer  string
	Buttons []Button
}

// Button is one tappable reply button.
type Button struct {
	ID    string
	Title string
}

func (b Buttons) validate() error {
	if strings.TrimSpace(b.Body) == "" {
		return errors.New("whatsapp: buttons body required")
	}
	if len(b.Buttons) == 0 {
		return errors.New("whatsapp: at least one button required")
	}
	if len(b.Buttons) > MaxReplyButtons {
		return fmt.Errorf("whatsapp: at most %d buttons allowed, got %d", MaxReplyButtons, len(b.Buttons))
	}
	for _, btn := range b.Buttons {
		if strings.TrimSpace(btn.ID) == "" || strings.TrimSpace(btn.Title) == "" {
			return errors.New("whatsapp: buttons need id and title")
		}
	}
	return nil
}

func (b Buttons) interactive() *interactiveContent {
	content := &interactiveContent{
		Type: "button",
		Body: interactiveText{Text: b.Body},
	}
	if b.Footer != "" {
		content.Footer = &interactiveText{Text: b.Footer}
	}
	for _, btn := range b.Buttons {
		content.Action.Buttons = append(content.Action.Buttons, interactiveButton{
			Type:  "reply",
			Reply: interactiveReply{ID: btn.ID, Title: btn.Title},
		})
	}
	return content
}

// SendResponse is the Cloud API acknowledgement of a send request.
type SendResponse struct {
	MessagingProduct string `json:"messaging_product"`
	Contacts         []struct {
		Input string `json:"input"`
		WaID  string `json:"wa_id"`
	} `json:"contacts"`
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}
