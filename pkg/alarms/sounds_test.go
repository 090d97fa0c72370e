package alarms

import (
	"os"
	"path/filepath"
	"testing"

	"fyne.io/fyne/v2/test"
	"github.com/borgmon/wakeup/pkg/models"
	"github.com/borgmon/wakeup/pkg/sounds"
	"github.com/borgmon/wakeup/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSoundLibrary(t *testing.T) {
	cfg := store.NewConfigStore(test.NewTempApp(t).Preferences())
	path := filepath.Join(t.TempDir(), "bell.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0o600))

	lib := NewSoundLibrary(sounds.NewRegistry(), cfg, nil)
	require.NoError(t, lib.Add(path, "Bell"))
	assert.Equal(t, []models.CustomSound{{ID: path, Title: "Bell"}}, cfg.Load().CustomSounds)

	// A fresh registry picks the sound up from the config.
	reloaded := sounds.NewRegistry()
	NewSoundLibrary(reloaded, cfg, nil)
	s, ok := reloaded.ByID(path)
	require.True(t, ok)
	assert.Equal(t, sounds.File, s.Kind)

	lib.Remove(path)
	assert.Empty(t, cfg.Load().CustomSounds)

	err := lib.Add(filepath.Join(t.TempDir(), "missing.wav"), "Missing")
	assert.Equal(t, models.ErrNotFound, models.ErrorCode(err))

	err = lib.Add(path, "")
	assert.Equal(t, models.ErrInvalid, models.ErrorCode(err))
}
