package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateServerRejectsOutOfRangeWindow(t *testing.T) {
	c := DefaultServerConfig()
	c.RepoDir = t.TempDir()
	c.Window = 0
	errs := ValidateServer(c)
	assert.NotEmpty(t, errs)
}

func TestValidateServerAcceptsDefaults(t *testing.T) {
	c := DefaultServerConfig()
	c.RepoDir = t.TempDir()
	errs := ValidateServer(c)
	assert.Empty(t, errs)
}

func TestValidateLossRateBounds(t *testing.T) {
	assert.NoError(t, ValidateLossRate(0))
	assert.NoError(t, ValidateLossRate(1))
	assert.Error(t, ValidateLossRate(-0.1))
	assert.Error(t, ValidateLossRate(1.1))
}

func TestLoadServerConfigFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.ini")
	contents := "[server]\nwindow = 8\nloss_rate = 0.2\ntimeout_ms = 250\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write ini: %v", err)
	}

	got, err := LoadServerConfigFile(path, DefaultServerConfig())
	assert.NoError(t, err)
	assert.Equal(t, 8, got.Window)
	assert.Equal(t, 0.2, got.LossRate)
	assert.Equal(t, 250, got.TimeoutMS)
}

func TestParseDropRate(t *testing.T) {
	r, err := ParseDropRate("0.25")
	assert.NoError(t, err)
	assert.Equal(t, 0.25, r)

	_, err = ParseDropRate("not-a-number")
	assert.Error(t, err)
}
