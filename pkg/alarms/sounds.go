package alarms

import (
	"os"

	"github.com/borgmon/wakeup/pkg/models"
	"github.com/borgmon/wakeup/pkg/sounds"
	"go.uber.org/zap"
)

type ConfigStore interface {
	Load() *models.Config
	Save(config *models.Config)
}

// SoundLibrary keeps the custom sounds of the registry and the persisted
// configuration in step
type SoundLibrary struct {
	registry *sounds.Registry
	config   ConfigStore
	logger   *zap.Logger
}

// NewSoundLibrary loads the persisted custom sounds into registry
func NewSoundLibrary(registry *sounds.Registry, config ConfigStore, logger *zap.Logger) *SoundLibrary {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry.Load(config.Load().CustomSounds)
	return &SoundLibrary{registry: registry, config: config, logger: logger}
}

func (l *SoundLibrary) All() []sounds.Sound {
	return l.registry.All()
}

// Add registers a sound file. The file must exist when it is added; a file
// removed later falls back to the default sound at ring time.
func (l *SoundLibrary) Add(path, title string) error {
	info, err := os.Stat(path)
	if err != nil {
		return models.Errorf(models.ErrNotFound, "sound file %s: %v", path, err)
	}
	if info.IsDir() {
		return models.Errorf(models.ErrInvalid, "sound file %s is a directory", path)
	}
	if err := l.registry.Register(path, title); err != nil {
		return err
	}
	l.persist()
	l.logger.Info("Custom sound added", zap.String("path", path), zap.String("title", title))
	return nil
}

// Remove unregisters a custom sound. Alarms still naming it ring with the
// default sound.
func (l *SoundLibrary) Remove(id string) {
	l.registry.Unregister(id)
	l.persist()
	l.logger.Info("Custom sound removed", zap.String("id", id))
}

func (l *SoundLibrary) persist() {
	cfg := l.config.Load()
	cfg.CustomSounds = l.registry.Custom()
	l.config.Save(cfg)
}
