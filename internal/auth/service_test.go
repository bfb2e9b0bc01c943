package auth

import (
	"strings"
	"testing"

	appErrors "github.com/fatali-fataliyev/expense_tracker/customErrors"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	plain := "messi10"

	hash, err := HashPassword(plain)
	require.NoError(t, err)
	require.NotEqual(t, plain, hash)

	require.True(t, ComparePasswords(hash, plain))
	require.False(t, ComparePasswords(hash, "messi1"))
	require.False(t, ComparePasswords(hash, "Messi10"))
}

func TestNewSessionToken(t *testing.T) {
	first, err := NewSessionToken()
	require.NoError(t, err)
	require.Len(t, first, 32)

	second, err := NewSessionToken()
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestValidateUserFields(t *testing.T) {
	tests := []struct {
		name        string
		input       NewUser
		expectedMsg string
	}{
		{
			name:        "Fail - Empty Username",
			input:       NewUser{UserName: "  ", PasswordPlain: "123"},
			expectedMsg: "Username cannot be empty!",
		},
		{
			name:        "Fail - Wrong characters",
			input:       NewUser{UserName: "john doe", PasswordPlain: "123"},
			expectedMsg: "Username contains wrong characters",
		},
		{
			name:        "Fail - Long username",
			input:       NewUser{UserName: strings.Repeat("a", 31), PasswordPlain: "123"},
			expectedMsg: "Username so long",
		},
		{
			name:        "Fail - Empty password",
			input:       NewUser{UserName: "john", PasswordPlain: ""},
			expectedMsg: "Password cannot be empty!",
		},
		{
			name:        "Fail - Long password",
			input:       NewUser{UserName: "john", PasswordPlain: strings.Repeat("p", 73)},
			expectedMsg: "Password so long",
		},
		{
			name:        "Fail - Surrounding spaces",
			input:       NewUser{UserName: " john_doe ", PasswordPlain: "secure123"},
			expectedMsg: "Username contains wrong characters",
		},
		{
			name:        "Fail - Trailing tab",
			input:       NewUser{UserName: "john\t", PasswordPlain: "secure123"},
			expectedMsg: "Username contains wrong characters",
		},
		{
			name:  "Success - Mixed case kept as is",
			input: NewUser{UserName: "John_Doe", PasswordPlain: "secure123"},
		},
		{
			name:  "Success - Dots and dashes",
			input: NewUser{UserName: "mary.smith-2", PasswordPlain: "secure123"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.ValidateUserFields()
			if tt.expectedMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Equal(t, appErrors.ErrInvalidInput, appErrors.CodeOf(err))
			require.Contains(t, appErrors.MessageOf(err), tt.expectedMsg)
		})
	}
}
