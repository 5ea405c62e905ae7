// Package notification composes outbound patient messages as WhatsApp deep
// links and hands them to a Dispatcher. Delivery is never confirmed; a
// dispatched message only means the link was produced and handed over.
package notification

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultCountryCode is prefixed to phones that carry no country code.
const DefaultCountryCode = "55"

var ErrNoPhone = errors.New("recipient has no phone number")

// ---------------------------------------------------------------------------
// Templates
// ---------------------------------------------------------------------------

var placeholder = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// Render replaces {{key}} markers in body with vars. Markers whose key is
// absent from vars are left as they are.
func Render(body string, vars map[string]string) string {
	return placeholder.ReplaceAllStringFunc(body, func(m string) string {
		key := placeholder.FindStringSubmatch(m)[1]
		if v, ok := vars[key]; ok {
			return v
		}
		return m
	})
}

// Placeholders lists the distinct keys referenced by body, in order of first
// appearance.
func Placeholders(body string) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, m := range placeholder.FindAllStringSubmatch(body, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			keys = append(keys, m[1])
		}
	}
	return keys
}

// ---------------------------------------------------------------------------
// Deep links
// ---------------------------------------------------------------------------

// NormalizePhone reduces phone to digits and prefixes countryCode when the
// number looks national: no + or 00 international prefix, and at most 11
// digits once a leading trunk 0 is dropped.
func NormalizePhone(phone, countryCode string) (string, error) {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	international := strings.HasPrefix(strings.TrimSpace(phone), "+") || strings.HasPrefix(digits, "00")
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return "", ErrNoPhone
	}
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	if !international && len(digits) <= 11 {
		digits = countryCode + digits
	}
	return digits, nil
}

// Link builds the wa.me deep link that opens a chat with phone prefilled
// with body.
func Link(phone, countryCode, body string) (string, error) {
	digits, err := NormalizePhone(phone, countryCode)
	if err != nil {
		return "", err
	}
	return "https://wa.me/" + digits + "?text=" + url.QueryEscape(body), nil
}

// ---------------------------------------------------------------------------
// Dispatchers
// ---------------------------------------------------------------------------

// Message is one composed outbound message.
type Message struct {
	Phone string `json:"phone"`
	Body  string `json:"body"`
	Link  string `json:"link"`
}

// Dispatcher hands a composed message to whatever opens or relays the link.
type Dispatcher interface {
	Dispatch(ctx context.Context, m Message) error
}

// LogDispatcher only logs the link; an operator opens it by hand.
type LogDispatcher struct {
	Logger zerolog.Logger
}

func (d LogDispatcher) Dispatch(_ context.Context, m Message) error {
	d.Logger.Info().Str("phone", m.Phone).Str("link", m.Link).Msg("message link ready")
	return nil
}

// MockDispatcher is a test double for Dispatcher.
type MockDispatcher struct {
	mu         sync.Mutex
	calls      []Message
	ShouldFail bool
	FailError  string
}

// Dispatch records the call and optionally returns an error.
func (m *MockDispatcher) Dispatch(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, msg)
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Calls returns a copy of the recorded messages.
func (m *MockDispatcher) Calls() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.calls))
	copy(out, m.calls)
	return out
}
