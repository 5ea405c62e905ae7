package account

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/auth"
	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/db"
	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/events"
	"github.com/luskaa234/integrarneurpp-sub000/internal/platform/phi"
)

type Service struct {
	repo        Repository
	issuer      *auth.Issuer
	revocations *auth.Revocations
	encryptor   phi.FieldEncryptor
	events      events.Publisher
}

func NewService(repo Repository, issuer *auth.Issuer, revocations *auth.Revocations, enc phi.FieldEncryptor, pub events.Publisher) *Service {
	if enc == nil {
		enc = phi.Plain{}
	}
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{repo: repo, issuer: issuer, revocations: revocations, encryptor: enc, events: pub}
}

func (s *Service) validate(a *Account) error {
	a.Name = strings.TrimSpace(a.Name)
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	if a.Name == "" {
		return fmt.Errorf("name is required")
	}
	if a.Email == "" {
		return fmt.Errorf("email is required")
	}
	if _, err := mail.ParseAddress(a.Email); err != nil {
		return fmt.Errorf("invalid email: %s", a.Email)
	}
	if !auth.ValidRole(a.Role) {
		return fmt.Errorf("invalid role: %s", a.Role)
	}
	if a.BirthDate != nil && *a.BirthDate != "" {
		if _, err := time.Parse("2006-01-02", *a.BirthDate); err != nil {
			return fmt.Errorf("birth_date must be YYYY-MM-DD")
		}
	}
	return nil
}

func (s *Service) encryptField(v *string) (*string, error) {
	if v == nil || *v == "" {
		return v, nil
	}
	out, err := s.encryptor.Encrypt(*v)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) decryptField(v *string) (*string, error) {
	if v == nil || *v == "" {
		return v, nil
	}
	out, err := s.encryptor.Decrypt(*v)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// sealed returns a copy of a ready for storage.
func (s *Service) sealed(a *Account) (*Account, error) {
	out := *a
	taxID, err := s.encryptField(a.TaxID)
	if err != nil {
		return nil, fmt.Errorf("encrypt tax_id: %w", err)
	}
	out.TaxID = taxID
	return &out, nil
}

func (s *Service) open(a *Account) (*Account, error) {
	taxID, err := s.decryptField(a.TaxID)
	if err != nil {
		return nil, fmt.Errorf("decrypt tax_id: %w", err)
	}
	a.TaxID = taxID
	return a, nil
}

// store runs write against a sealed copy of a and copies the stored
// timestamps back.
func (s *Service) store(a *Account, write func(*Account) error) error {
	stored, err := s.sealed(a)
	if err != nil {
		return err
	}
	if err := write(stored); err != nil {
		return err
	}
	a.ID, a.Email = stored.ID, stored.Email
	a.CreatedAt, a.UpdatedAt = stored.CreatedAt, stored.UpdatedAt
	return nil
}

func (s *Service) publish(ctx context.Context, action events.Action, a *Account) {
	ev, err := events.New(events.TableAccounts, action, a.ID.String(), a, a.UpdatedAt)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("account event")
		return
	}
	ev.Clinic = db.ClinicFromContext(ctx)
	events.Emit(ctx, s.events, ev)
}

// -- CRUD --

func (s *Service) Create(ctx context.Context, req *CreateRequest) (*Account, error) {
	a := req.Account
	if err := s.validate(&a); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	a.IsActive = true
	if err := s.store(&a, func(stored *Account) error { return s.repo.Create(ctx, stored, hash) }); err != nil {
		return nil, err
	}
	s.publish(ctx, events.Created, &a)
	return &a, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Account, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.open(a)
}

// Update is the admin edit path and the only one that may change a role.
// Activation is left as stored; SetActive owns it.
func (s *Service) Update(ctx context.Context, a *Account) error {
	if err := s.validate(a); err != nil {
		return err
	}
	cur, err := s.repo.GetByID(ctx, a.ID)
	if err != nil {
		return err
	}
	a.IsActive, a.CreatedAt = cur.IsActive, cur.CreatedAt
	if err := s.store(a, func(stored *Account) error { return s.repo.Update(ctx, stored) }); err != nil {
		return err
	}
	s.publish(ctx, events.Updated, a)
	return nil
}

// UpdateProfile lets an account owner edit their own contact details.
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, p Profile) (*Account, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.applyTo(a)
	if err := s.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) (*Account, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	a.IsActive = active
	if err := s.store(a, func(stored *Account) error { return s.repo.Update(ctx, stored) }); err != nil {
		return nil, err
	}
	if !active && s.revocations != nil {
		s.revocations.RevokeAccount(id.String())
	}
	s.publish(ctx, events.Updated, a)
	return a, nil
}

// Delete removes the account for good and ends its sessions.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	a, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.revocations != nil {
		s.revocations.RevokeAccount(id.String())
	}
	s.publish(ctx, events.Deleted, a)
	return nil
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Account, int, error) {
	if f.Role != "" && !auth.ValidRole(f.Role) {
		return nil, 0, fmt.Errorf("invalid role: %s", f.Role)
	}
	items, total, err := s.repo.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for _, a := range items {
		if _, err := s.open(a); err != nil {
			return nil, 0, err
		}
	}
	return items, total, nil
}

// All loads every account for the cache mirror.
func (s *Service) All(ctx context.Context) ([]Account, error) {
	items, _, err := s.List(ctx, ListFilter{}, 0, 0)
	if err != nil {
		return nil, err
	}
	out := make([]Account, 0, len(items))
	for _, a := range items {
		out = append(out, *a)
	}
	return out, nil
}

// DisplayName returns the account's name, or its id when it cannot be read.
func (s *Service) DisplayName(ctx context.Context, id uuid.UUID) string {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return id.String()
	}
	return a.Name
}

// Contact returns the name and phone messages to id are addressed with.
func (s *Service) Contact(ctx context.Context, id uuid.UUID) (string, string, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", "", err
	}
	return a.Name, strVal(a.Phone), nil
}

// -- Sessions --

// Login checks credentials and issues a session. Unknown emails, inactive
// accounts and wrong passwords all fail with ErrInvalidCredentials after a
// full bcrypt comparison.
func (s *Service) Login(ctx context.Context, email, password string) (*auth.Session, *Account, error) {
	a, hash, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, ErrNotFound) {
		auth.BurnCompare(password)
		return nil, nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, err
	}
	if !auth.CheckPassword(hash, password) || !a.IsActive {
		return nil, nil, ErrInvalidCredentials
	}
	sess, err := s.issuer.Issue(a.ID.String(), a.Role, a.Name, db.ClinicFromContext(ctx))
	if err != nil {
		return nil, nil, err
	}
	if _, err := s.open(a); err != nil {
		return nil, nil, err
	}
	return sess, a, nil
}

// ChangePassword replaces the password, ends every other session of the
// account and returns a fresh one for the caller.
func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, current, next string) (*auth.Session, error) {
	hash, err := s.repo.GetPasswordHash(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(hash, current) {
		return nil, ErrInvalidCredentials
	}
	newHash, err := auth.HashPassword(next)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetPassword(ctx, id, newHash); err != nil {
		return nil, err
	}
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	sess, err := s.issuer.Issue(a.ID.String(), a.Role, a.Name, db.ClinicFromContext(ctx))
	if err != nil {
		return nil, err
	}
	if s.revocations != nil {
		s.revocations.RevokeAccountExcept(id.String(), sess.ID)
	}
	return sess, nil
}

// Logout revokes the session the request was made with.
func (s *Service) Logout(ctx context.Context) error {
	sessionID, exp := auth.SessionFromContext(ctx)
	if sessionID == "" {
		return fmt.Errorf("no session to end")
	}
	if s.revocations != nil {
		s.revocations.Revoke(sessionID, exp)
	}
	return nil
}
