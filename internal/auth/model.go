package auth

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	appErrors "github.com/fatali-fataliyev/expense_tracker/customErrors"
)

const (
	MAX_LENGTH_USERNAME = 30
	MAX_PASSWORD_LENGTH = 72
)

// Usernames are stored and matched verbatim, so whitespace is never accepted.
var usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,30}$`)

type User struct {
	ID             string
	UserName       string
	PasswordHashed string
	CreatedAt      time.Time
}

type NewUser struct {
	UserName      string
	PasswordPlain string
}

func (newUser NewUser) ValidateUserFields() error {
	username := newUser.UserName
	if strings.TrimSpace(username) == "" {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: "Username cannot be empty!",
		}
	}
	if len(username) > MAX_LENGTH_USERNAME {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: fmt.Sprintf("Username so long, maximum length is %d", MAX_LENGTH_USERNAME),
		}
	}
	if !usernameRegex.MatchString(username) {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: "Username contains wrong characters, example username: john_doe or mary.smith",
		}
	}
	if newUser.PasswordPlain == "" {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: "Password cannot be empty!",
		}
	}
	if len(newUser.PasswordPlain) > MAX_PASSWORD_LENGTH {
		return appErrors.ErrorResponse{
			Code:    appErrors.ErrInvalidInput,
			Message: fmt.Sprintf("Password so long, maximum length is %d", MAX_PASSWORD_LENGTH),
		}
	}
	return nil
}

type Session struct {
	ID        string
	Token     string
	CreatedAt time.Time
	ExpireAt  time.Time
	UserName  string
}

type UserCredentialsPure struct {
	UserName      string
	PasswordPlain string
}
