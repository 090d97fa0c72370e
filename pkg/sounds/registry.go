// Package sounds names the sounds an alarm can ring with: the builtin tones,
// user-registered files and the "none" sentinel.
package sounds

import (
	"sort"
	"strings"
	"sync"

	"github.com/borgmon/wakeup/pkg/models"
)

// ErrNoSound is returned when the sound id asks for silence
var ErrNoSound = models.Errorf(models.ErrNotFound, "no sound")

type Kind int

const (
	Builtin Kind = iota
	File
)

// Sound is a playable sound. For File sounds the id is the file path.
type Sound struct {
	ID    string
	Title string
	Kind  Kind
	Tone  Tone // Builtin only
}

var builtin = []Sound{
	{ID: "china", Title: "China", Kind: Builtin, Tone: chinaTone},
	{ID: "american", Title: "American", Kind: Builtin, Tone: americanTone},
	{ID: "iphone_apex", Title: "iPhone Apex", Kind: Builtin, Tone: apexTone},
}

// NormalizeID trims the id and maps "default" and blank to the default sound
func NormalizeID(id string) string {
	trimmed := strings.TrimSpace(id)
	switch strings.ToLower(trimmed) {
	case "", "default":
		return models.DefaultSound
	case models.NoSound:
		return models.NoSound
	}
	return trimmed
}

// Registry holds the builtin sounds plus custom ones registered at runtime
type Registry struct {
	mu     sync.RWMutex
	custom map[string]string
}

func NewRegistry() *Registry {
	return &Registry{custom: make(map[string]string)}
}

// All lists builtin sounds first, then custom sounds by title
func (r *Registry) All() []Sound {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]Sound, 0, len(builtin)+len(r.custom))
	all = append(all, builtin...)

	custom := make([]Sound, 0, len(r.custom))
	for id, title := range r.custom {
		custom = append(custom, Sound{ID: id, Title: title, Kind: File})
	}
	sort.Slice(custom, func(i, j int) bool {
		return strings.ToLower(custom[i].Title) < strings.ToLower(custom[j].Title)
	})
	return append(all, custom...)
}

// ByID looks a sound up. "none" and unknown ids report false.
func (r *Registry) ByID(id string) (Sound, bool) {
	norm := NormalizeID(id)
	if norm == models.NoSound {
		return Sound{}, false
	}
	for _, s := range builtin {
		if s.ID == norm {
			return s, true
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if title, ok := r.custom[norm]; ok {
		return Sound{ID: norm, Title: title, Kind: File}, true
	}
	return Sound{}, false
}

// Resolve returns the sound to ring with. "none" yields ErrNoSound; unknown
// ids fall back to the default sound.
func (r *Registry) Resolve(id string) (Sound, error) {
	if NormalizeID(id) == models.NoSound {
		return Sound{}, ErrNoSound
	}
	if s, ok := r.ByID(id); ok {
		return s, nil
	}
	s, _ := r.ByID(models.DefaultSound)
	return s, nil
}

// Register adds or retitles a custom sound
func (r *Registry) Register(id, title string) error {
	cs := models.CustomSound{ID: strings.TrimSpace(id), Title: strings.TrimSpace(title)}
	if !cs.Validate() {
		return models.Errorf(models.ErrInvalid, "custom sound needs an id and a title")
	}
	if r.isBuiltin(cs.ID) || NormalizeID(cs.ID) == models.NoSound {
		return models.Errorf(models.ErrInvalid, "sound id %q is reserved", cs.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.custom[cs.ID] = cs.Title
	return nil
}

// Unregister removes a custom sound
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.custom, strings.TrimSpace(id))
}

// Load replaces the custom sounds, skipping invalid entries
func (r *Registry) Load(custom []models.CustomSound) {
	r.mu.Lock()
	r.custom = make(map[string]string, len(custom))
	r.mu.Unlock()

	for _, cs := range custom {
		_ = r.Register(cs.ID, cs.Title)
	}
}

// Custom returns the custom sounds in display order, for persistence
func (r *Registry) Custom() []models.CustomSound {
	var out []models.CustomSound
	for _, s := range r.All() {
		if s.Kind == File {
			out = append(out, models.CustomSound{ID: s.ID, Title: s.Title})
		}
	}
	if out == nil {
		out = []models.CustomSound{}
	}
	return out
}

func (r *Registry) isBuiltin(id string) bool {
	norm := NormalizeID(id)
	for _, s := range builtin {
		if s.ID == norm {
			return true
		}
	}
	return false
}
