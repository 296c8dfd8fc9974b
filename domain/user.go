package domain

import (
	"regexp"
	"time"
)

const MinPasswordLength = 8

var usernamePattern = regexp.MustCompile(`^[\w.@+-]{1,150}$`)

type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u User) String() string {
	return u.Username
}

func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrShortPassword
	}
	return nil
}
