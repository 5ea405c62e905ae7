package messaging

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/luskaa234/integrarneurpp-sub000/internal/domain/scheduling"
	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/db"
	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/events"
	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/notification"
)

// Directory resolves account ids to the name and phone a message uses.
type Directory interface {
	Contact(ctx context.Context, id uuid.UUID) (name, phone string, err error)
	DisplayName(ctx context.Context, id uuid.UUID) string
}

// Agenda lists the active appointments of a day.
type Agenda interface {
	ForDate(ctx context.Context, date string) ([]*scheduling.Appointment, error)
}

type Config struct {
	CountryCode string
	BulkDelay   time.Duration
}

type Service struct {
	templates  TemplateRepository
	catalog    CatalogRepository
	logs       LogRepository
	dispatcher notification.Dispatcher
	directory  Directory
	agenda     Agenda
	events     events.Publisher
	cfg        Config
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewService(templates TemplateRepository, catalog CatalogRepository, logs LogRepository,
	dispatcher notification.Dispatcher, directory Directory, agenda Agenda, pub events.Publisher, cfg Config) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{
		templates:  templates,
		catalog:    catalog,
		logs:       logs,
		dispatcher: dispatcher,
		directory:  directory,
		agenda:     agenda,
		events:     pub,
		cfg:        cfg,
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// -- Templates --

func validateTemplate(t *Template) error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(t.Body) == "" {
		return fmt.Errorf("body is required")
	}
	if t.Category != nil {
		c := strings.ToLower(strings.TrimSpace(*t.Category))
		t.Category = &c
	}
	return nil
}

func (s *Service) CreateTemplate(ctx context.Context, t *Template) error {
	if err := validateTemplate(t); err != nil {
		return err
	}
	return s.templates.Create(ctx, t)
}

func (s *Service) GetTemplate(ctx context.Context, id uuid.UUID) (*Template, error) {
	return s.templates.GetByID(ctx, id)
}

func (s *Service) UpdateTemplate(ctx context.Context, t *Template) error {
	if err := validateTemplate(t); err != nil {
		return err
	}
	return s.templates.Update(ctx, t)
}

func (s *Service) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	return s.templates.Delete(ctx, id)
}

func (s *Service) ListTemplates(ctx context.Context) ([]*Template, error) {
	return s.templates.List(ctx)
}

// Preview renders template id with vars without sending anything.
func (s *Service) Preview(ctx context.Context, id uuid.UUID, vars map[string]string) (string, []string, error) {
	t, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return "", nil, err
	}
	return notification.Render(t.Body, vars), notification.Placeholders(t.Body), nil
}

// -- Service catalog --

func validateCatalogItem(it *CatalogItem) error {
	it.Name = strings.TrimSpace(it.Name)
	if it.Name == "" {
		return fmt.Errorf("name is required")
	}
	if it.Price.IsNegative() {
		return fmt.Errorf("price must not be negative")
	}
	if it.DurationMinutes <= 0 {
		return fmt.Errorf("duration_minutes must be positive")
	}
	it.Price = it.Price.Round(2)
	return nil
}

func (s *Service) CreateCatalogItem(ctx context.Context, it *CatalogItem) error {
	if err := validateCatalogItem(it); err != nil {
		return err
	}
	return s.catalog.Create(ctx, it)
}

func (s *Service) GetCatalogItem(ctx context.Context, id uuid.UUID) (*CatalogItem, error) {
	return s.catalog.GetByID(ctx, id)
}

func (s *Service) UpdateCatalogItem(ctx context.Context, it *CatalogItem) error {
	if err := validateCatalogItem(it); err != nil {
		return err
	}
	return s.catalog.Update(ctx, it)
}

func (s *Service) DeleteCatalogItem(ctx context.Context, id uuid.UUID) error {
	return s.catalog.Delete(ctx, id)
}

func (s *Service) ListCatalog(ctx context.Context, activeOnly bool) ([]*CatalogItem, error) {
	return s.catalog.List(ctx, activeOnly)
}

// -- Sending --

func (s *Service) publish(ctx context.Context, e *LogEntry) {
	ev, err := events.New(events.TableMessages, events.Created, e.ID.String(), e, e.SentAt)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("message event")
		return
	}
	ev.Clinic = db.ClinicFromContext(ctx)
	events.Emit(ctx, s.events, ev)
}

// body resolves the text a request sends: the template when one is named,
// the literal body otherwise.
func (s *Service) body(ctx context.Context, templateID *uuid.UUID, literal string) (string, error) {
	if templateID != nil {
		t, err := s.templates.GetByID(ctx, *templateID)
		if err != nil {
			return "", err
		}
		return t.Body, nil
	}
	if strings.TrimSpace(literal) == "" {
		return "", fmt.Errorf("body or template_id is required")
	}
	return literal, nil
}

// Send composes one message, hands it to the dispatcher and records the
// outcome. A dispatcher failure still returns the failed entry together
// with the error.
func (s *Service) Send(ctx context.Context, req SendRequest) (*LogEntry, error) {
	body, err := s.body(ctx, req.TemplateID, req.Body)
	if err != nil {
		return nil, err
	}
	return s.send(ctx, req, body)
}

func (s *Service) send(ctx context.Context, req SendRequest, body string) (*LogEntry, error) {
	vars := make(map[string]string, len(req.Vars)+1)
	for k, v := range req.Vars {
		vars[k] = v
	}
	phone := req.Phone
	if req.RecipientID != nil {
		name, accountPhone, err := s.directory.Contact(ctx, *req.RecipientID)
		if err != nil {
			return nil, fmt.Errorf("load recipient: %w", err)
		}
		if phone == "" {
			phone = accountPhone
		}
		if _, ok := vars["patient"]; !ok {
			vars["patient"] = name
		}
	}

	text := notification.Render(body, vars)
	link, err := notification.Link(phone, s.cfg.CountryCode, text)
	if err != nil {
		return nil, err
	}
	digits, _ := notification.NormalizePhone(phone, s.cfg.CountryCode)

	entry := &LogEntry{
		RecipientID: req.RecipientID,
		Phone:       digits,
		Body:        text,
		Link:        link,
		Status:      StatusSent,
		TemplateID:  req.TemplateID,
		SentAt:      s.now().UTC(),
	}
	dispatchErr := s.dispatcher.Dispatch(ctx, notification.Message{Phone: digits, Body: text, Link: link})
	if dispatchErr != nil {
		msg := dispatchErr.Error()
		entry.Status = StatusFailed
		entry.Error = &msg
		zerolog.Ctx(ctx).Warn().Err(dispatchErr).Str("phone", digits).Msg("message dispatch failed")
	} else {
		zerolog.Ctx(ctx).Info().Str("phone", digits).Msg("message sent")
	}

	if err := s.logs.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("record message: %w", err)
	}
	s.publish(ctx, entry)
	if dispatchErr != nil {
		return entry, fmt.Errorf("dispatch message: %w", dispatchErr)
	}
	return entry, nil
}

// BulkSend sends one message per recipient, waiting BulkDelay between
// recipients. Cancelling ctx stops the loop and returns what was sent so
// far with ctx's error.
func (s *Service) BulkSend(ctx context.Context, req BulkRequest) (*BulkResult, error) {
	if len(req.Recipients) == 0 {
		return nil, fmt.Errorf("recipients are required")
	}
	body, err := s.body(ctx, req.TemplateID, req.Body)
	if err != nil {
		return nil, err
	}

	res := &BulkResult{Messages: []*LogEntry{}}
	for i, r := range req.Recipients {
		if i > 0 {
			if err := s.sleep(ctx, s.cfg.BulkDelay); err != nil {
				return res, err
			}
		} else if err := ctx.Err(); err != nil {
			return res, err
		}

		entry, err := s.send(ctx, SendRequest{RecipientID: r.ID, Phone: r.Phone, TemplateID: req.TemplateID, Vars: r.Vars}, body)
		switch {
		case entry == nil:
			res.Skipped = append(res.Skipped, BulkFailure{Index: i, Error: err.Error()})
		case entry.Status == StatusSent:
			res.Sent++
			res.Messages = append(res.Messages, entry)
		default:
			res.Failed++
			res.Messages = append(res.Messages, entry)
		}
	}
	zerolog.Ctx(ctx).Info().Int("sent", res.Sent).Int("failed", res.Failed).Int("skipped", len(res.Skipped)).
		Msg("bulk send finished")
	return res, nil
}

// AppointmentVars are the built-in template variables for an appointment.
func (s *Service) AppointmentVars(ctx context.Context, a *scheduling.Appointment) map[string]string {
	date := a.Date
	if d, err := time.Parse("2006-01-02", a.Date); err == nil {
		date = d.Format("02/01/2006")
	}
	category := ""
	if a.Category != nil {
		category = *a.Category
	}
	return map[string]string{
		"patient":   s.directory.DisplayName(ctx, a.PatientID),
		"clinician": s.directory.DisplayName(ctx, a.ClinicianID),
		"date":      date,
		"time":      a.Time,
		"category":  category,
		"price":     a.Price.StringFixed(2),
	}
}

// reminderTemplate picks the first template filed under CategoryReminder.
func (s *Service) reminderTemplate(ctx context.Context) (*Template, error) {
	all, err := s.templates.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	for _, t := range all {
		if t.Category != nil && *t.Category == CategoryReminder {
			return t, nil
		}
	}
	return nil, nil
}

// SendReminders messages the patient of every active appointment on date.
// templateID picks the text; without it the reminder-category template is
// used, or DefaultReminder when there is none.
func (s *Service) SendReminders(ctx context.Context, date string, templateID *uuid.UUID) (*BulkResult, error) {
	req := BulkRequest{TemplateID: templateID}
	if templateID == nil {
		t, err := s.reminderTemplate(ctx)
		if err != nil {
			return nil, err
		}
		if t != nil {
			req.TemplateID = &t.ID
		} else {
			req.Body = DefaultReminder
		}
	}

	appts, err := s.agenda.ForDate(ctx, date)
	if err != nil {
		return nil, err
	}
	if len(appts) == 0 {
		return &BulkResult{Messages: []*LogEntry{}}, nil
	}
	for _, a := range appts {
		id := a.PatientID
		req.Recipients = append(req.Recipients, Recipient{ID: &id, Vars: s.AppointmentVars(ctx, a)})
	}
	return s.BulkSend(ctx, req)
}

func (s *Service) History(ctx context.Context, f LogFilter, limit, offset int) ([]*LogEntry, int, error) {
	if f.Status != "" && f.Status != StatusSent && f.Status != StatusFailed {
		return nil, 0, fmt.Errorf("invalid status: %s", f.Status)
	}
	return s.logs.List(ctx, f, limit, offset)
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound) || errors.Is(err, ErrServiceNotFound)
}
