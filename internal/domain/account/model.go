package account

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound           = errors.New("account not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Account maps to the account table. Clinician and patient profile fields
// are nil for the other roles. TaxID is held in plaintext here; repositories
// only ever see the sealed form.
type Account struct {
	ID            uuid.UUID `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Email         string    `db:"email" json:"email"`
	Phone         *string   `db:"phone" json:"phone,omitempty"`
	Role          string    `db:"role" json:"role"`
	IsActive      bool      `db:"is_active" json:"is_active"`
	LicenseNumber *string   `db:"license_number" json:"license_number,omitempty"`
	Specialty     *string   `db:"specialty" json:"specialty,omitempty"`
	TaxID         *string   `db:"tax_id" json:"tax_id,omitempty"`
	Address       *string   `db:"address" json:"address,omitempty"`
	BirthDate     *string   `db:"birth_date" json:"birth_date,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

func (a Account) RowID() string { return a.ID.String() }

func (a Account) RowUpdatedAt() time.Time { return a.UpdatedAt }

// Profile is the subset of an account its owner may edit.
type Profile struct {
	Name      *string `json:"name"`
	Phone     *string `json:"phone"`
	Address   *string `json:"address"`
	BirthDate *string `json:"birth_date"`
	Specialty *string `json:"specialty"`
}

func (p Profile) applyTo(a *Account) {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Phone != nil {
		a.Phone = p.Phone
	}
	if p.Address != nil {
		a.Address = p.Address
	}
	if p.BirthDate != nil {
		a.BirthDate = p.BirthDate
	}
	if p.Specialty != nil {
		a.Specialty = p.Specialty
	}
}

// CreateRequest is the admin payload for a new account.
type CreateRequest struct {
	Account
	Password string `json:"password"`
}

// ListFilter narrows List. Zero values match everything.
type ListFilter struct {
	Role   string
	Active *bool
}

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
