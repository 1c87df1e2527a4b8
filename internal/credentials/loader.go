package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"google.golang.org/api/option"
	sheetsv4 "google.golang.org/api/sheets/v4"
)

// Error taxonomy for credential loading. AuthRejected surfaces later, when
// the remote service declines the key on first use; the sheets package maps
// that case.
var (
	// ErrCredentialNotFound indicates the key file does not exist.
	ErrCredentialNotFound = errors.New("credential file not found")

	// ErrCredentialInvalid indicates the key file exists but cannot be used.
	ErrCredentialInvalid = errors.New("credential file invalid")
)

// serviceAccountKey is the subset of the Google service-account key format
// checked before dialing. The full format is the provider's contract.
type serviceAccountKey struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	PrivateKey  string `json:"private_key"`
	ClientEmail string `json:"client_email"`
}

// Handle wraps an authenticated Sheets service. Raw key material never
// leaves this package; callers only see the handle.
type Handle struct {
	srv *sheetsv4.Service
}

// Service returns the underlying Sheets service.
func (h *Handle) Service() *sheetsv4.Service {
	return h.srv
}

// Load reads the service-account key at path, validates it and returns an
// authenticated Sheets handle. The handle is created once at process start
// and held for the process lifetime. No retries happen at this layer.
func Load(ctx context.Context, path string) (*Handle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrCredentialNotFound, path)
		}
		return nil, fmt.Errorf("reading credential file %q: %w", path, err)
	}

	var key serviceAccountKey
	if err := json.Unmarshal(raw, &key); err != nil {
		return nil, fmt.Errorf("%w: not valid JSON: %v", ErrCredentialInvalid, err)
	}
	if key.Type != "service_account" {
		return nil, fmt.Errorf("%w: type is %q, want service_account", ErrCredentialInvalid, key.Type)
	}
	if key.PrivateKey == "" || key.ClientEmail == "" {
		return nil, fmt.Errorf("%w: missing private_key or client_email", ErrCredentialInvalid)
	}

	srv, err := sheetsv4.NewService(ctx,
		option.WithCredentialsFile(path),
		option.WithScopes(sheetsv4.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentialInvalid, err)
	}

	return &Handle{srv: srv}, nil
}
