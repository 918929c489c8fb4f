// Package accounts implements the account lifecycle: sign-up, activation,
// login, password reset/restore, password and email change, deactivation.
// Every transition persists atomically and enqueues its notification email
// after the state change; a lost enqueue is logged, never surfaced.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/cxbootcamp/premiers/internal/lib/accesstoken"
	"github.com/cxbootcamp/premiers/internal/lib/jwt"
	sl "github.com/cxbootcamp/premiers/internal/lib/logger"
	"github.com/cxbootcamp/premiers/internal/models"
	"github.com/cxbootcamp/premiers/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrAccountInactive    = errors.New("account is not active")
	// ErrInvalidToken covers malformed tokens, identity mismatches, state
	// mismatches and replays alike, so callers cannot enumerate accounts.
	ErrInvalidToken = errors.New("invalid or expired token")
)

type UserSaver interface {
	SaveUser(ctx context.Context, email string, passHash []byte) (int64, error)
	ActivateUser(ctx context.Context, email string) error
	MarkRestoringPassword(ctx context.Context, email string) error
	RestorePassword(ctx context.Context, email string, passHash []byte) error
	UpdatePassword(ctx context.Context, userID int64, passHash []byte) error
	ChangeEmail(ctx context.Context, userID int64, email string) error
	DeactivateUser(ctx context.Context, userID int64) error
	UpdateLastLogin(ctx context.Context, userID int64, at time.Time) error
}

type UserProvider interface {
	UserByEmail(ctx context.Context, email string) (models.User, error)
	UserByID(ctx context.Context, id int64) (models.User, error)
}

// TokenGuard remembers consumed account tokens so a mailed link works once.
type TokenGuard interface {
	MarkTokenUsed(ctx context.Context, token string, ttl time.Duration) (bool, error)
}

// Publisher enqueues an email for out-of-band delivery.
type Publisher interface {
	SendMessage(ctx context.Context, msg models.EmailMessage) error
}

type Config struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	UsedTokenRetain time.Duration
	FESiteURL       string
}

type Accounts struct {
	log         *slog.Logger
	usrSaver    UserSaver
	usrProvider UserProvider
	tokens      *accesstoken.Generator
	guard       TokenGuard
	publisher   Publisher
	cfg         Config
}

func New(
	log *slog.Logger,
	userSaver UserSaver,
	userProvider UserProvider,
	tokens *accesstoken.Generator,
	guard TokenGuard,
	publisher Publisher,
	cfg Config,
) *Accounts {
	return &Accounts{
		log:         log,
		usrSaver:    userSaver,
		usrProvider: userProvider,
		tokens:      tokens,
		guard:       guard,
		publisher:   publisher,
		cfg:         cfg,
	}
}

// NormalizeEmail lowercases the address. Normalization is idempotent and
// uniqueness checks run on the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an unverified user and mails an activation link built
// from the FE path the client supplied.
func (a *Accounts) Register(ctx context.Context, email, password, path string) (int64, error) {
	const op = "accounts.Register"

	log := a.log.With(slog.String("op", op))

	email = NormalizeEmail(email)

	passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	id, err := a.usrSaver.SaveUser(ctx, email, passHash)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			log.Warn("user already exists")
			return 0, fmt.Errorf("%s: %w", op, ErrUserExists)
		}

		log.Error("failed to save user", sl.Err(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	user := models.User{ID: id, Email: email, PassHash: passHash}
	a.sendTokenEmail(ctx, user, path, "Welcome to Premiers", "activation")

	log.Info("user registered", slog.Int64("uid", id))

	return id, nil
}

// Activate consumes an activation token and turns the account active.
// Activating an already active account with a still-valid token is a no-op;
// presenting the same token twice is rejected by the single-use guard.
func (a *Accounts) Activate(ctx context.Context, token string) (jwt.Pair, error) {
	const op = "accounts.Activate"

	log := a.log.With(slog.String("op", op))

	user, err := a.verifyToken(ctx, log, token)
	if err != nil {
		return jwt.Pair{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := a.usrSaver.ActivateUser(ctx, user.Email); err != nil {
		log.Error("failed to activate user", sl.Err(err))
		return jwt.Pair{}, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := jwt.NewPair(user.ID, a.cfg.JWTSecret, a.cfg.AccessTokenTTL, a.cfg.RefreshTokenTTL)
	if err != nil {
		log.Error("failed to issue tokens", sl.Err(err))
		return jwt.Pair{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user activated", slog.Int64("uid", user.ID))

	return pair, nil
}

// Login checks credentials against an active account and issues a JWT pair.
func (a *Accounts) Login(ctx context.Context, email, password string) (jwt.Pair, error) {
	const op = "accounts.Login"

	log := a.log.With(slog.String("op", op))

	user, err := a.usrProvider.UserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
			return jwt.Pair{}, ErrInvalidCredentials
		}

		log.Error("failed to get user", sl.Err(err))
		return jwt.Pair{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
		log.Info("invalid credentials")
		return jwt.Pair{}, ErrInvalidCredentials
	}

	if !user.IsActive {
		return jwt.Pair{}, ErrAccountInactive
	}

	pair, err := jwt.NewPair(user.ID, a.cfg.JWTSecret, a.cfg.AccessTokenTTL, a.cfg.RefreshTokenTTL)
	if err != nil {
		log.Error("failed to issue tokens", sl.Err(err))
		return jwt.Pair{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := a.usrSaver.UpdateLastLogin(ctx, user.ID, time.Now()); err != nil {
		log.Error("failed to update last login", sl.Err(err))
	}

	log.Info("user logged in", slog.Int64("uid", user.ID))

	return pair, nil
}

// Refresh rotates a JWT pair from a refresh token.
func (a *Accounts) Refresh(ctx context.Context, refreshToken string) (jwt.Pair, error) {
	const op = "accounts.Refresh"

	log := a.log.With(slog.String("op", op))

	claims, err := jwt.Parse(refreshToken, a.cfg.JWTSecret, jwt.TypeRefresh)
	if err != nil {
		log.Warn("invalid refresh token")
		return jwt.Pair{}, ErrInvalidCredentials
	}

	user, err := a.usrProvider.UserByID(ctx, claims.UserID)
	if err != nil {
		log.Warn("failed to load user for refresh", sl.Err(err))
		return jwt.Pair{}, ErrInvalidCredentials
	}

	if !user.IsActive {
		return jwt.Pair{}, ErrAccountInactive
	}

	pair, err := jwt.NewPair(user.ID, a.cfg.JWTSecret, a.cfg.AccessTokenTTL, a.cfg.RefreshTokenTTL)
	if err != nil {
		log.Error("failed to issue tokens", sl.Err(err))
		return jwt.Pair{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("tokens refreshed", slog.Int64("uid", user.ID))

	return pair, nil
}

// RequestReset flags the account as restoring and mails a reset link. The
// password itself stays untouched until Restore.
func (a *Accounts) RequestReset(ctx context.Context, email, path string) error {
	const op = "accounts.RequestReset"

	log := a.log.With(slog.String("op", op))

	user, err := a.usrProvider.UserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return ErrUserNotFound
		}

		log.Error("failed to get user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.usrSaver.MarkRestoringPassword(ctx, user.Email); err != nil {
		log.Error("failed to mark restoring password", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	a.sendTokenEmail(ctx, user, path, "Reset Password", "reset_password")

	log.Info("password reset requested", slog.Int64("uid", user.ID))

	return nil
}

// Restore finishes a password reset: the restoring flag must be set and the
// token must match the user's pre-reset state. The new hash and the cleared
// flag land in one transaction.
func (a *Accounts) Restore(ctx context.Context, token, newPassword string) error {
	const op = "accounts.Restore"

	log := a.log.With(slog.String("op", op))

	user, err := a.verifyToken(ctx, log, token)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if !user.IsRestoringPassword {
		log.Warn("restore attempted without pending reset", slog.Int64("uid", user.ID))
		return fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.usrSaver.RestorePassword(ctx, user.Email, passHash); err != nil {
		if errors.Is(err, storage.ErrRestoreNotPending) {
			return fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		log.Error("failed to restore password", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("password restored", slog.Int64("uid", user.ID))

	return nil
}

// Profile returns the authenticated user's profile.
func (a *Accounts) Profile(ctx context.Context, userID int64) (models.User, error) {
	const op = "accounts.Profile"

	user, err := a.usrProvider.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// ChangePassword replaces the password after checking the old one.
func (a *Accounts) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	const op = "accounts.ChangePassword"

	log := a.log.With(slog.String("op", op))

	user, err := a.usrProvider.UserByID(ctx, userID)
	if err != nil {
		log.Error("failed to load user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(oldPassword)); err != nil {
		return ErrInvalidCredentials
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.usrSaver.UpdatePassword(ctx, userID, passHash); err != nil {
		log.Error("failed to update password", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	a.enqueue(ctx, models.EmailMessage{
		Subject:    "Password was successfully changed",
		Template:   "change_password",
		Recipients: []string{user.Email},
		Context:    map[string]string{"user_email": user.Email},
	})

	log.Info("password changed", slog.Int64("uid", userID))

	return nil
}

// ChangeEmail swaps the address, forces the account back to inactive and
// mails a re-activation link to the new address.
func (a *Accounts) ChangeEmail(ctx context.Context, userID int64, newEmail, path string) error {
	const op = "accounts.ChangeEmail"

	log := a.log.With(slog.String("op", op))

	newEmail = NormalizeEmail(newEmail)

	if err := a.usrSaver.ChangeEmail(ctx, userID, newEmail); err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			return ErrUserExists
		}

		log.Error("failed to change email", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	user, err := a.usrProvider.UserByID(ctx, userID)
	if err != nil {
		log.Error("failed to reload user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	a.sendTokenEmail(ctx, user, path, "Reset Email", "reset_email")

	log.Info("email changed, re-activation pending", slog.Int64("uid", userID))

	return nil
}

// Deactivate switches the account off. Only an administrator can bring it
// back.
func (a *Accounts) Deactivate(ctx context.Context, userID int64) error {
	const op = "accounts.Deactivate"

	log := a.log.With(slog.String("op", op))

	user, err := a.usrProvider.UserByID(ctx, userID)
	if err != nil {
		log.Error("failed to load user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.usrSaver.DeactivateUser(ctx, userID); err != nil {
		log.Error("failed to deactivate user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	a.enqueue(ctx, models.EmailMessage{
		Subject:    "Your account is deactivated",
		Template:   "deactivated_account",
		Recipients: []string{user.Email},
		Context:    map[string]string{},
	})

	log.Info("user deactivated", slog.Int64("uid", userID))

	return nil
}

// verifyToken resolves and checks an account token, then burns it in the
// single-use guard. Every failure collapses into ErrInvalidToken.
func (a *Accounts) verifyToken(ctx context.Context, log *slog.Logger, token string) (models.User, error) {
	email, err := accesstoken.Email(token)
	if err != nil {
		log.Warn("malformed token")
		return models.User{}, ErrInvalidToken
	}

	user, err := a.usrProvider.UserByEmail(ctx, email)
	if err != nil {
		log.Warn("token for unknown user")
		return models.User{}, ErrInvalidToken
	}

	if !a.tokens.Check(user, token) {
		log.Warn("token check failed", slog.Int64("uid", user.ID))
		return models.User{}, ErrInvalidToken
	}

	fresh, err := a.guard.MarkTokenUsed(ctx, token, a.cfg.UsedTokenRetain)
	if err != nil {
		log.Error("token guard unavailable", sl.Err(err))
		return models.User{}, fmt.Errorf("token guard: %w", err)
	}
	if !fresh {
		log.Warn("token replay rejected", slog.Int64("uid", user.ID))
		return models.User{}, ErrInvalidToken
	}

	return user, nil
}

// sendTokenEmail builds a state-bound token link and enqueues the email.
func (a *Accounts) sendTokenEmail(ctx context.Context, user models.User, path, subject, template string) {
	token := a.tokens.Make(user)
	url := fmt.Sprintf("%s/%s?token=%s", a.cfg.FESiteURL, strings.Trim(path, "/"), token)

	a.enqueue(ctx, models.EmailMessage{
		Subject:    subject,
		Template:   template,
		Recipients: []string{user.Email},
		Context:    map[string]string{"url": url},
	})
}

// enqueue publishes the message and only logs on failure: the state change
// already committed, and delivery loss is an accepted gap.
func (a *Accounts) enqueue(ctx context.Context, msg models.EmailMessage) {
	if err := a.publisher.SendMessage(ctx, msg); err != nil {
		a.log.Error("failed to enqueue email",
			slog.String("template", msg.Template), sl.Err(err))
	}
}
