package wabot

import (
	"fmt"

	"github.com/sdiouf/wabot/pkg/clients/whatsapp"
)

// Interactive markup limits enforced by the Cloud API.
const (
	maxButtons        = 3
	maxButtonTitle    = 20
	maxListRows       = 10
	maxRowTitle       = 24
	maxRowDescription = 72
	maxSectionTitle   = 24
	maxListButton     = 20
)

// ValidationError reports a markup construction that violates a Cloud API
// limit. It is returned synchronously by the builders, before any request is
// made.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationf(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// ReplyMarkup is an opaque, pre-validated interactive action consumed by the
// send layer. Build one with NewButtons, NewList or NewLocationRequest.
type ReplyMarkup struct {
	kind   string
	action whatsapp.InteractiveAction
}

// Kind returns the interactive message type this markup produces.
func (m *ReplyMarkup) Kind() string { return m.kind }

// Action returns the wire-level action block.
func (m *ReplyMarkup) Action() whatsapp.InteractiveAction { return m.action }

// Button is one reply button in a button set.
type Button struct {
	ID    string
	Title string
}

// NewButtons builds a validated button set: 1 to 3 buttons, titles of at most
// 20 characters, ids and titles unique within the set.
func NewButtons(buttons ...Button) (*ReplyMarkup, error) {
	if len(buttons) < 1 || len(buttons) > maxButtons {
		return nil, validationf("button set must contain between 1 and %d buttons, got %d", maxButtons, len(buttons))
	}

	seenIDs := make(map[string]struct{}, len(buttons))
	seenTitles := make(map[string]struct{}, len(buttons))
	wire := make([]whatsapp.InteractiveButton, 0, len(buttons))

	for _, b := range buttons {
		if b.ID == "" {
			return nil, validationf("button id must not be empty")
		}
		if len(b.Title) == 0 || len(b.Title) > maxButtonTitle {
			return nil, validationf("button title %q must be between 1 and %d characters", b.Title, maxButtonTitle)
		}
		if _, dup := seenIDs[b.ID]; dup {
			return nil, validationf("button id %q is duplicated; ids must be unique within the set", b.ID)
		}
		if _, dup := seenTitles[b.Title]; dup {
			return nil, validationf("button title %q is duplicated; titles must be unique within the set", b.Title)
		}
		seenIDs[b.ID] = struct{}{}
		seenTitles[b.Title] = struct{}{}

		wire = append(wire, whatsapp.InteractiveButton{
			Type:  "reply",
			Reply: &whatsapp.ButtonReply{ID: b.ID, Title: b.Title},
		})
	}

	return &ReplyMarkup{
		kind:   "button",
		action: whatsapp.InteractiveAction{Buttons: wire},
	}, nil
}

// Row is one selectable row in a list section.
type Row struct {
	ID          string
	Title       string
	Description string
}

// Section is a named group of rows in a list.
type Section struct {
	Title string
	Rows  []Row
}

// NewList builds a validated list: at most 10 rows across all sections, row
// titles of at most 24 characters, row descriptions of at most 72 characters,
// section titles of at most 24 characters and a trigger label of at most 20
// characters.
func NewList(buttonLabel string, sections ...Section) (*ReplyMarkup, error) {
	if len(buttonLabel) == 0 || len(buttonLabel) > maxListButton {
		return nil, validationf("list button label %q must be between 1 and %d characters", buttonLabel, maxListButton)
	}

	total := 0
	wire := make([]whatsapp.ListSection, 0, len(sections))
	for _, s := range sections {
		if len(s.Title) > maxSectionTitle {
			return nil, validationf("section title %q exceeds %d characters", s.Title, maxSectionTitle)
		}
		rows := make([]whatsapp.ListRow, 0, len(s.Rows))
		for _, r := range s.Rows {
			if r.ID == "" {
				return nil, validationf("list row id must not be empty")
			}
			if len(r.Title) == 0 || len(r.Title) > maxRowTitle {
				return nil, validationf("list row title %q must be between 1 and %d characters", r.Title, maxRowTitle)
			}
			if len(r.Description) > maxRowDescription {
				return nil, validationf("list row description for %q exceeds %d characters", r.ID, maxRowDescription)
			}
			rows = append(rows, whatsapp.ListRow{ID: r.ID, Title: r.Title, Description: r.Description})
		}
		total += len(rows)
		wire = append(wire, whatsapp.ListSection{Title: s.Title, Rows: rows})
	}

	if total < 1 || total > maxListRows {
		return nil, validationf("list must contain between 1 and %d rows across all sections, got %d", maxListRows, total)
	}

	return &ReplyMarkup{
		kind:   "list",
		action: whatsapp.InteractiveAction{Button: buttonLabel, Sections: wire},
	}, nil
}

// NewLocationRequest builds the fixed markup asking the user to share their
// location.
func NewLocationRequest() *ReplyMarkup {
	return &ReplyMarkup{
		kind:   "location_request_message",
		action: whatsapp.InteractiveAction{Name: "send_location"},
	}
}
