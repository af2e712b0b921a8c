package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Ahmedmecatronique/AquaWing/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestDevelopmentVerifier(t *testing.T) {
	v, err := DevelopmentVerifier(map[string]string{"admin": "admin123"})
	require.NoError(t, err)

	id, err := v.Verify("admin", "admin123")
	require.NoError(t, err)
	assert.Equal(t, domain.Identity("admin"), id)

	id, err = v.Verify("  admin ", "admin123")
	require.NoError(t, err)
	assert.Equal(t, domain.Identity("admin"), id)

	_, err = v.Verify("admin", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = v.Verify("nobody", "admin123")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestLoadUsersFile(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"pilot":"`+string(hash)+`"}`), 0o600))

	v, err := LoadUsersFile(path)
	require.NoError(t, err)

	id, err := v.Verify("pilot", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, domain.Identity("pilot"), id)
}

func TestLoadUsersFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadUsersFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`not json`), 0o600))
	_, err = LoadUsersFile(bad)
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{}`), 0o600))
	_, err = LoadUsersFile(empty)
	assert.Error(t, err)

	plaintext := filepath.Join(dir, "plain.json")
	require.NoError(t, os.WriteFile(plaintext, []byte(`{"admin":"admin123"}`), 0o600))
	_, err = LoadUsersFile(plaintext)
	assert.Error(t, err)
}
