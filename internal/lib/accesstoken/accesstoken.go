// Package accesstoken implements the state-bound tokens mailed to users for
// account activation and password restore.
//
// A token looks like "<base64url(email)>.<ts>-<mac>". The mac covers the
// user's email, current password hash and last login together with the
// issuance timestamp, so any change to the account's security-relevant state
// invalidates every previously issued token. Tokens are never persisted.
package accesstoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cxbootcamp/premiers/internal/models"
)

// ErrMalformed is returned when a token cannot even be split into its
// identity and hash segments. Callers must collapse it with every other
// verification failure into one generic outcome.
var ErrMalformed = errors.New("malformed token")

type Generator struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

func New(secret string, maxAge time.Duration) *Generator {
	return &Generator{
		secret: []byte(secret),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Make derives a token for the user's current state.
func (g *Generator) Make(u models.User) string {
	ts := g.now().Unix()
	identity := base64.RawURLEncoding.EncodeToString([]byte(u.Email))

	return fmt.Sprintf("%s.%s-%s", identity, strconv.FormatInt(ts, 36), g.mac(u, ts))
}

// Check reports whether the token is valid for the user's current state.
// Malformed input, identity mismatch, expiry and hash mismatch all yield
// false with no distinction.
func (g *Generator) Check(u models.User, token string) bool {
	email, seg, err := split(token)
	if err != nil {
		return false
	}
	if email != u.Email {
		return false
	}

	tsPart, macPart, ok := strings.Cut(seg, "-")
	if !ok {
		return false
	}

	ts, err := strconv.ParseInt(tsPart, 36, 64)
	if err != nil {
		return false
	}

	if g.now().Sub(time.Unix(ts, 0)) > g.maxAge {
		return false
	}

	return hmac.Equal([]byte(macPart), []byte(g.mac(u, ts)))
}

// Email extracts the identity fragment without verifying the token. The
// caller uses it to load the user and must then call Check.
func Email(token string) (string, error) {
	email, _, err := split(token)
	return email, err
}

func (g *Generator) mac(u models.User, ts int64) string {
	var lastLogin int64
	if u.LastLogin != nil {
		lastLogin = u.LastLogin.Unix()
	}

	h := hmac.New(sha256.New, g.secret)
	fmt.Fprintf(h, "%s\x00%x\x00%d\x00%d", u.Email, u.PassHash, lastLogin, ts)

	return hex.EncodeToString(h.Sum(nil))
}

func split(token string) (email, seg string, err error) {
	identity, seg, ok := strings.Cut(token, ".")
	if !ok || identity == "" || seg == "" {
		return "", "", ErrMalformed
	}

	raw, err := base64.RawURLEncoding.DecodeString(identity)
	if err != nil {
		return "", "", ErrMalformed
	}

	return string(raw), seg, nil
}
