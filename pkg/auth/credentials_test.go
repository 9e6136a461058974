package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{name: "plain address", email: "ada@example.com"},
		{name: "subdomain", email: "grace@mail.example.org"},
		{name: "empty", email: "", wantErr: true},
		{name: "missing at", email: "ada.example.com", wantErr: true},
		{name: "missing domain dot", email: "ada@localhost", wantErr: true},
		{name: "display name form", email: "Ada <ada@example.com>", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmail(%q) error = %v, wantErr %v", tt.email, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("ValidateEmail(%q) error does not wrap ErrInvalidCredentials", tt.email)
			}
		})
	}
}

func TestValidatePasswordFormat(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "minimum length", password: "123456"},
		{name: "too short", password: "12345", wantErr: true},
		{name: "maximum length", password: strings.Repeat("a", 128)},
		{name: "too long", password: strings.Repeat("a", 129), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePasswordFormat(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePasswordFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{name: "simple", username: "ada"},
		{name: "with dot and underscore", username: "ada.l_2"},
		{name: "empty", username: "", wantErr: true},
		{name: "space", username: "ada l", wantErr: true},
		{name: "too long", username: strings.Repeat("x", 31), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUsername(%q) error = %v, wantErr %v", tt.username, err, tt.wantErr)
			}
		})
	}
}
