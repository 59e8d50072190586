package directory

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,32}$`)

// Record is the persisted part of a user. Password holds a bcrypt hash (see
// HashPassword); an empty Password marks a password-less development account.
type Record struct {
	Username string `json:"username"`
	Score    int    `json:"score"`
	Password string `json:"password,omitempty"`
}

// Public returns the record without its password.
func (r Record) Public() Record {
	r.Password = ""
	return r
}

// Directory looks users up by identity.
type Directory interface {
	FindByIdentity(ctx context.Context, identity string) (Record, error)
}

// Authenticator verifies a username and password pair.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (Record, error)
}

// Store is a read-write user directory.
type Store interface {
	Directory
	Authenticator
	Save(ctx context.Context, rec Record) error
	AddScore(ctx context.Context, identity string, delta int) (int, error)
	List(ctx context.Context) ([]Record, error)
}

// ValidateUsername checks that name is usable as a key in every backend,
// including as a file name.
func ValidateUsername(name string) error {
	if !usernamePattern.MatchString(name) || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidUsername, name)
	}
	return nil
}

// HashPassword returns the bcrypt hash to store in Record.Password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// IsPasswordHash reports whether stored looks like a bcrypt hash.
func IsPasswordHash(stored string) bool {
	_, err := bcrypt.Cost([]byte(stored))
	return err == nil
}

// authenticate is shared by every Store: look the user up, then check the
// password against the stored bcrypt hash. An empty stored password accepts
// any input.
func authenticate(ctx context.Context, d Directory, username, password string) (Record, error) {
	rec, err := d.FindByIdentity(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return Record{}, ErrInvalidCredentials
	}
	if err != nil {
		return Record{}, err
	}
	if rec.Password != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(rec.Password), []byte(password)); err != nil {
			return Record{}, ErrInvalidCredentials
		}
	}
	return rec.Public(), nil
}
