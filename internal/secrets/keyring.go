package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/zalando/go-keyring"
)

// KeyringService groups this application's entries in the OS keychain.
const KeyringService = "job-tracker"

// ErrPasswordNotFound is returned when no IMAP password is stored for an account.
var ErrPasswordNotFound = errors.New("IMAP password not found in keychain")

// IMAPKeyringAccount is the keychain account name for a user's IMAP login.
func IMAPKeyringAccount(userID uuid.UUID, username string) string {
	return fmt.Sprintf("%s/%s", userID, strings.ToLower(strings.TrimSpace(username)))
}

// GetIMAPPassword reads an IMAP password from the keychain.
func GetIMAPPassword(account string) (string, error) {
	if strings.TrimSpace(account) == "" {
		return "", errors.New("keyring account name is empty")
	}
	pw, err := keyring.Get(KeyringService, account)
	if errors.Is(err, keyring.ErrNotFound) || (err == nil && strings.TrimSpace(pw) == "") {
		return "", ErrPasswordNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read keychain: %w", err)
	}
	return pw, nil
}

// SetIMAPPassword stores an IMAP password in the keychain.
func SetIMAPPassword(account, password string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password is empty")
	}
	return keyring.Set(KeyringService, account, password)
}

// DeleteIMAPPassword removes an IMAP password. Missing entries are not an error.
func DeleteIMAPPassword(account string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if err := keyring.Delete(KeyringService, account); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}
