package messaging

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrTemplateNotFound = errors.New("message template not found")
	ErrServiceNotFound  = errors.New("catalog service not found")
)

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// CategoryReminder marks the template used for appointment reminders when
// none is named explicitly.
const CategoryReminder = "reminder"

// DefaultReminder is sent when no reminder template exists.
const DefaultReminder = "Olá {{patient}}, lembramos da sua consulta com {{clinician}} em {{date}} às {{time}}."

// Template maps to the message_template table.
type Template struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Body      string    `db:"body" json:"body"`
	Category  *string   `db:"category" json:"category,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CatalogItem maps to the service_catalog table: a service the clinic
// offers, with its list price.
type CatalogItem struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	Name            string          `db:"name" json:"name"`
	Category        *string         `db:"category" json:"category,omitempty"`
	Price           decimal.Decimal `db:"price" json:"price"`
	DurationMinutes int             `db:"duration_minutes" json:"duration_minutes"`
	Active          bool            `db:"active" json:"active"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// LogEntry maps to the message_log table. Status sent only means the link
// was handed to the dispatcher.
type LogEntry struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	RecipientID *uuid.UUID `db:"recipient_id" json:"recipient_id,omitempty"`
	Phone       string     `db:"phone" json:"phone"`
	Body        string     `db:"body" json:"body"`
	Link        string     `db:"link" json:"link"`
	Status      string     `db:"status" json:"status"`
	TemplateID  *uuid.UUID `db:"template_id" json:"template_id,omitempty"`
	Error       *string    `db:"error" json:"error,omitempty"`
	SentAt      time.Time  `db:"sent_at" json:"sent_at"`
}

type LogFilter struct {
	RecipientID *uuid.UUID
	Status      string
}

// SendRequest addresses one message. Body or TemplateID supplies the text;
// Phone falls back to the recipient's account phone.
type SendRequest struct {
	RecipientID *uuid.UUID        `json:"recipient_id,omitempty"`
	Phone       string            `json:"phone,omitempty"`
	TemplateID  *uuid.UUID        `json:"template_id,omitempty"`
	Body        string            `json:"body,omitempty"`
	Vars        map[string]string `json:"vars,omitempty"`
}

type Recipient struct {
	ID    *uuid.UUID        `json:"id,omitempty"`
	Phone string            `json:"phone,omitempty"`
	Vars  map[string]string `json:"vars,omitempty"`
}

type BulkRequest struct {
	TemplateID *uuid.UUID  `json:"template_id,omitempty"`
	Body       string      `json:"body,omitempty"`
	Recipients []Recipient `json:"recipients"`
}

type BulkFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BulkResult counts dispatcher outcomes. Skipped recipients never reached
// the dispatcher, e.g. for lack of a phone.
type BulkResult struct {
	Sent     int           `json:"sent"`
	Failed   int           `json:"failed"`
	Skipped  []BulkFailure `json:"skipped,omitempty"`
	Messages []*LogEntry   `json:"messages"`
}
