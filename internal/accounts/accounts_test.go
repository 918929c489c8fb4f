package accounts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/cxbootcamp/premiers/internal/lib/accesstoken"
	"github.com/cxbootcamp/premiers/internal/models"
	"github.com/cxbootcamp/premiers/internal/storage"
)

type fakeStore struct {
	users  map[string]*models.User
	nextID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]*models.User)}
}

func (s *fakeStore) SaveUser(_ context.Context, email string, passHash []byte) (int64, error) {
	if _, ok := s.users[email]; ok {
		return 0, storage.ErrUserExists
	}
	s.nextID++
	s.users[email] = &models.User{ID: s.nextID, Email: email, PassHash: passHash}
	return s.nextID, nil
}

func (s *fakeStore) ActivateUser(_ context.Context, email string) error {
	u, ok := s.users[email]
	if !ok {
		return storage.ErrUserNotFound
	}
	u.IsActive = true
	return nil
}

func (s *fakeStore) MarkRestoringPassword(_ context.Context, email string) error {
	u, ok := s.users[email]
	if !ok {
		return storage.ErrUserNotFound
	}
	u.IsRestoringPassword = true
	return nil
}

func (s *fakeStore) RestorePassword(_ context.Context, email string, passHash []byte) error {
	u, ok := s.users[email]
	if !ok {
		return storage.ErrUserNotFound
	}
	if !u.IsRestoringPassword {
		return storage.ErrRestoreNotPending
	}
	u.PassHash = passHash
	u.IsRestoringPassword = false
	return nil
}

func (s *fakeStore) UpdatePassword(_ context.Context, userID int64, passHash []byte) error {
	u := s.byID(userID)
	if u == nil {
		return storage.ErrUserNotFound
	}
	u.PassHash = passHash
	return nil
}

func (s *fakeStore) ChangeEmail(_ context.Context, userID int64, email string) error {
	if _, ok := s.users[email]; ok {
		return storage.ErrUserExists
	}
	u := s.byID(userID)
	if u == nil {
		return storage.ErrUserNotFound
	}
	delete(s.users, u.Email)
	u.Email = email
	u.IsActive = false
	s.users[email] = u
	return nil
}

func (s *fakeStore) DeactivateUser(_ context.Context, userID int64) error {
	u := s.byID(userID)
	if u == nil {
		return storage.ErrUserNotFound
	}
	u.IsActive = false
	return nil
}

func (s *fakeStore) UpdateLastLogin(_ context.Context, userID int64, at time.Time) error {
	u := s.byID(userID)
	if u == nil {
		return storage.ErrUserNotFound
	}
	u.LastLogin = &at
	return nil
}

func (s *fakeStore) UserByEmail(_ context.Context, email string) (models.User, error) {
	u, ok := s.users[email]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}
	return *u, nil
}

func (s *fakeStore) UserByID(_ context.Context, id int64) (models.User, error) {
	u := s.byID(id)
	if u == nil {
		return models.User{}, storage.ErrUserNotFound
	}
	return *u, nil
}

func (s *fakeStore) byID(id int64) *models.User {
	for _, u := range s.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

type fakeGuard struct {
	used map[string]bool
}

func (g *fakeGuard) MarkTokenUsed(_ context.Context, token string, _ time.Duration) (bool, error) {
	if g.used == nil {
		g.used = make(map[string]bool)
	}
	if g.used[token] {
		return false, nil
	}
	g.used[token] = true
	return true, nil
}

type fakePublisher struct {
	messages []models.EmailMessage
	err      error
}

func (p *fakePublisher) SendMessage(_ context.Context, msg models.EmailMessage) error {
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(store *fakeStore, pub *fakePublisher) (*Accounts, *accesstoken.Generator) {
	gen := accesstoken.New("token-secret", 72*time.Hour)
	svc := New(newLogger(), store, store, gen, &fakeGuard{}, pub, Config{
		JWTSecret:       "jwt-secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
		UsedTokenRetain: 96 * time.Hour,
		FESiteURL:       "https://premiers.app",
	})
	return svc, gen
}

func TestNormalizeEmailIdempotent(t *testing.T) {
	t.Parallel()

	e := NormalizeEmail(" CAPS@Mail.Com ")
	if e != "caps@mail.com" {
		t.Fatalf("normalize: got %q", e)
	}
	if NormalizeEmail(e) != e {
		t.Fatal("normalization must be idempotent")
	}
}

func TestRegisterNormalizesAndRejectsDuplicate(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	pub := &fakePublisher{}
	svc, _ := newService(store, pub)

	id, err := svc.Register(context.Background(), "CAPS@mail.com", "qwerty123", "activate/user")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if id == 0 {
		t.Fatal("expected user id")
	}

	if _, ok := store.users["caps@mail.com"]; !ok {
		t.Fatal("email must be stored lowercased")
	}

	if _, err := svc.Register(context.Background(), "caps@mail.com", "qwerty123", "activate/user"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	if len(pub.messages) != 1 {
		t.Fatalf("expected 1 activation email, got %d", len(pub.messages))
	}
	msg := pub.messages[0]
	if msg.Template != "activation" || msg.Recipients[0] != "caps@mail.com" {
		t.Fatalf("unexpected activation message: %+v", msg)
	}
	if msg.Context["url"] == "" {
		t.Fatal("activation email must carry a token url")
	}
}

func TestRegisterSurvivesEnqueueFailure(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	pub := &fakePublisher{err: errors.New("broker down")}
	svc, _ := newService(store, pub)

	if _, err := svc.Register(context.Background(), "a@b.com", "pass", "activate"); err != nil {
		t.Fatalf("registration must succeed even when enqueue fails: %v", err)
	}
}

func TestActivateFlow(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc, gen := newService(store, &fakePublisher{})

	if _, err := svc.Register(context.Background(), "a@b.com", "pass", "activate"); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	token := gen.Make(*store.users["a@b.com"])

	pair, err := svc.Activate(context.Background(), token)
	if err != nil {
		t.Fatalf("Activate error: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("activation must issue a token pair")
	}
	if !store.users["a@b.com"].IsActive {
		t.Fatal("user must be active after activation")
	}

	// The identical token must not be consumable twice.
	if _, err := svc.Activate(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected replay rejection, got %v", err)
	}

	// A fresh token for an already active user is a no-op success. Bump
	// last login first so the fresh token differs from the consumed one.
	login := time.Now().Add(time.Minute)
	store.users["a@b.com"].LastLogin = &login
	if _, err := svc.Activate(context.Background(), gen.Make(*store.users["a@b.com"])); err != nil {
		t.Fatalf("re-activation with fresh token must be a no-op: %v", err)
	}
}

func TestActivateRejectsGarbage(t *testing.T) {
	t.Parallel()

	svc, _ := newService(newFakeStore(), &fakePublisher{})

	for _, token := range []string{"", "garbage", "YQ.abc-def"} {
		if _, err := svc.Activate(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestLogin(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc, _ := newService(store, &fakePublisher{})

	hash, _ := bcrypt.GenerateFromPassword([]byte("qwerty123"), bcrypt.DefaultCost)
	store.users["a@b.com"] = &models.User{ID: 1, Email: "a@b.com", PassHash: hash, IsActive: true}

	pair, err := svc.Login(context.Background(), "A@B.com", "qwerty123")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if pair.AccessToken == "" {
		t.Fatal("expected access token")
	}
	if store.users["a@b.com"].LastLogin == nil {
		t.Fatal("login must record last login")
	}

	if _, err := svc.Login(context.Background(), "a@b.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	store.users["a@b.com"].IsActive = false
	if _, err := svc.Login(context.Background(), "a@b.com", "qwerty123"); !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("expected ErrAccountInactive, got %v", err)
	}

	if _, err := svc.Login(context.Background(), "missing@b.com", "x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user must look like bad credentials, got %v", err)
	}
}

func TestResetAndRestore(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	pub := &fakePublisher{}
	svc, gen := newService(store, pub)

	hash, _ := bcrypt.GenerateFromPassword([]byte("old-pass"), bcrypt.DefaultCost)
	store.users["a@b.com"] = &models.User{ID: 1, Email: "a@b.com", PassHash: hash, IsActive: true}

	if err := svc.RequestReset(context.Background(), "a@b.com", "restore"); err != nil {
		t.Fatalf("RequestReset error: %v", err)
	}

	u := store.users["a@b.com"]
	if !u.IsRestoringPassword {
		t.Fatal("reset request must set the restoring flag")
	}
	if bcrypt.CompareHashAndPassword(u.PassHash, []byte("old-pass")) != nil {
		t.Fatal("reset request must not change the password")
	}
	if len(pub.messages) != 1 || pub.messages[0].Template != "reset_password" {
		t.Fatalf("expected reset_password email, got %+v", pub.messages)
	}

	token := gen.Make(*u)
	if err := svc.Restore(context.Background(), token, "new-pass"); err != nil {
		t.Fatalf("Restore error: %v", err)
	}

	u = store.users["a@b.com"]
	if u.IsRestoringPassword {
		t.Fatal("restore must clear the restoring flag")
	}
	if bcrypt.CompareHashAndPassword(u.PassHash, []byte("new-pass")) != nil {
		t.Fatal("restore must set the new password")
	}

	// The old token is bound to the old password hash now.
	if err := svc.Restore(context.Background(), token, "another"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("stale token must be rejected, got %v", err)
	}
}

func TestRestoreRequiresPendingFlag(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc, gen := newService(store, &fakePublisher{})

	store.users["a@b.com"] = &models.User{ID: 1, Email: "a@b.com", PassHash: []byte("h"), IsActive: true}

	token := gen.Make(*store.users["a@b.com"])
	if err := svc.Restore(context.Background(), token, "new-pass"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("restore without pending flag must fail generically, got %v", err)
	}
}

func TestResetUnknownEmail(t *testing.T) {
	t.Parallel()

	svc, _ := newService(newFakeStore(), &fakePublisher{})

	if err := svc.RequestReset(context.Background(), "nobody@b.com", "restore"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	pub := &fakePublisher{}
	svc, _ := newService(store, pub)

	hash, _ := bcrypt.GenerateFromPassword([]byte("old"), bcrypt.DefaultCost)
	store.users["a@b.com"] = &models.User{ID: 1, Email: "a@b.com", PassHash: hash, IsActive: true}

	if err := svc.ChangePassword(context.Background(), 1, "wrong", "new"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	if err := svc.ChangePassword(context.Background(), 1, "old", "new"); err != nil {
		t.Fatalf("ChangePassword error: %v", err)
	}
	if bcrypt.CompareHashAndPassword(store.users["a@b.com"].PassHash, []byte("new")) != nil {
		t.Fatal("password must be replaced")
	}
	if len(pub.messages) != 1 || pub.messages[0].Template != "change_password" {
		t.Fatalf("expected change_password email, got %+v", pub.messages)
	}
}

func TestChangeEmailForcesReactivation(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	pub := &fakePublisher{}
	svc, _ := newService(store, pub)

	store.users["a@b.com"] = &models.User{ID: 1, Email: "a@b.com", PassHash: []byte("h"), IsActive: true}
	store.users["taken@b.com"] = &models.User{ID: 2, Email: "taken@b.com", PassHash: []byte("h")}

	if err := svc.ChangeEmail(context.Background(), 1, "Taken@B.com", "activate"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	if err := svc.ChangeEmail(context.Background(), 1, "New@B.com", "activate"); err != nil {
		t.Fatalf("ChangeEmail error: %v", err)
	}

	u, ok := store.users["new@b.com"]
	if !ok {
		t.Fatal("new address must be stored lowercased")
	}
	if u.IsActive {
		t.Fatal("email change must force the account inactive")
	}
	if len(pub.messages) != 1 || pub.messages[0].Recipients[0] != "new@b.com" {
		t.Fatalf("re-activation email must go to the new address, got %+v", pub.messages)
	}
}

func TestDeactivate(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	pub := &fakePublisher{}
	svc, _ := newService(store, pub)

	store.users["a@b.com"] = &models.User{ID: 1, Email: "a@b.com", PassHash: []byte("h"), IsActive: true}

	if err := svc.Deactivate(context.Background(), 1); err != nil {
		t.Fatalf("Deactivate error: %v", err)
	}
	if store.users["a@b.com"].IsActive {
		t.Fatal("user must be inactive after deactivation")
	}
	if len(pub.messages) != 1 || pub.messages[0].Template != "deactivated_account" {
		t.Fatalf("expected deactivated_account email, got %+v", pub.messages)
	}
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc, _ := newService(store, &fakePublisher{})

	hash, _ := bcrypt.GenerateFromPassword([]byte("pass"), bcrypt.DefaultCost)
	store.users["a@b.com"] = &models.User{ID: 1, Email: "a@b.com", PassHash: hash, IsActive: true}

	pair, err := svc.Login(context.Background(), "a@b.com", "pass")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}

	rotated, err := svc.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if rotated.AccessToken == "" || rotated.RefreshToken == "" {
		t.Fatal("refresh must issue a full pair")
	}

	// An access token is not acceptable as a refresh token.
	if _, err := svc.Refresh(context.Background(), pair.AccessToken); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}
