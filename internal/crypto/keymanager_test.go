package crypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfmystrix/mystrix-console/internal/platform/mystrix"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	creds := mystrix.Credentials{ApiKey: "key-123", ApiSecret: "secret-456"}

	blob, err := EncryptCredentials(creds, "hunter2")
	require.NoError(t, err)

	got, err := DecryptCredentials(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, creds, got)
}

func TestDecryptRejectsWrongPassword(t *testing.T) {
	blob, err := EncryptCredentials(mystrix.Credentials{ApiKey: "k", ApiSecret: "s"}, "right")
	require.NoError(t, err)

	_, err = DecryptCredentials(blob, "wrong")
	assert.Error(t, err)
}

func TestEncryptRequiresPasswordAndCreds(t *testing.T) {
	_, err := EncryptCredentials(mystrix.Credentials{ApiKey: "k", ApiSecret: "s"}, "")
	assert.Error(t, err)

	_, err = EncryptCredentials(mystrix.Credentials{}, "pw")
	assert.Error(t, err)
}

func TestLoadCredentialsPrefersPlaintext(t *testing.T) {
	got, err := LoadCredentials(CredsConfig{ApiKey: "k", ApiSecret: "s"})
	require.NoError(t, err)
	assert.Equal(t, mystrix.Credentials{ApiKey: "k", ApiSecret: "s"}, got)
}

func TestLoadCredentialsFromEncryptedFile(t *testing.T) {
	creds := mystrix.Credentials{ApiKey: "file-key", ApiSecret: "file-secret"}
	blob, err := EncryptCredentials(creds, "pw")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "creds.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, err := LoadCredentials(CredsConfig{EncryptedCredsPath: path, Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, creds, got)
}

func TestLoadCredentialsNoSource(t *testing.T) {
	_, err := LoadCredentials(CredsConfig{})
	assert.Error(t, err)
}
