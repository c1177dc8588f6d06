package app

import (
	"context"
	"errors"

	"github.com/calendarapp/calendar/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrIncorrectUsername = errors.New("username must be between 3 and 50 characters")
	ErrIncorrectPassword = errors.New("password must be at least 8 characters")
)

const (
	minUsernameLength = 3
	maxUsernameLength = 50
	minPasswordLength = 8
)

type Principal struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// CreateAccount registers a user with a bcrypt credential hash.
// Username and email collisions report storage.ErrDuplicateUser.
func (a *App) CreateAccount(ctx context.Context, u storage.User, password string) (storage.User, error) {
	if len(u.Username) < minUsernameLength || len(u.Username) > maxUsernameLength {
		return storage.User{}, ErrIncorrectUsername
	}
	if len(password) < minPasswordLength {
		return storage.User{}, ErrIncorrectPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return storage.User{}, err
	}
	u.PasswordHash = string(hash)
	if u.Role == "" {
		u.Role = "user"
	}

	if err := a.Storage.AddUser(ctx, &u); err != nil {
		return storage.User{}, err
	}
	return u, nil
}

// ValidateCredentials reports a single failure for both unknown users and
// wrong passwords so usernames cannot be probed.
func (a *App) ValidateCredentials(ctx context.Context, username string, password string) (Principal, bool, error) {
	u, err := a.Storage.GetUserByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFoundUser) {
		return Principal{}, false, nil
	}
	if err != nil {
		return Principal{}, false, err
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return Principal{}, false, nil
	}
	return Principal{UserID: u.ID, Username: u.Username, Role: u.Role}, true, nil
}
