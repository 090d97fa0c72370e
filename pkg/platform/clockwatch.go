package platform

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultLocaltimePath is where the system timezone is configured
const DefaultLocaltimePath = "/etc/localtime"

// Zone is the process view of the local timezone. The standard library caches
// time.Local at start-up, so a timezone change is applied here instead.
type Zone struct {
	loc atomic.Pointer[time.Location]
}

func NewZone(loc *time.Location) *Zone {
	z := &Zone{}
	if loc == nil {
		loc = time.Local
	}
	z.loc.Store(loc)
	return z
}

func (z *Zone) Location() *time.Location {
	return z.loc.Load()
}

func (z *Zone) Set(loc *time.Location) {
	z.loc.Store(loc)
}

// Now returns the current time in the zone
func (z *Zone) Now() time.Time {
	return time.Now().In(z.Location())
}

// ClockWatcher watches the timezone file and reports changes. The parent
// directory is watched because the file is usually replaced, not written.
type ClockWatcher struct {
	path     string
	zone     *Zone
	logger   *zap.Logger
	onChange func(*time.Location)

	cancel context.CancelFunc
}

func NewClockWatcher(path string, zone *Zone, logger *zap.Logger, onChange func(*time.Location)) *ClockWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClockWatcher{
		path:     path,
		zone:     zone,
		logger:   logger,
		onChange: onChange,
		cancel:   func() {},
	}
}

func (w *ClockWatcher) Run(ctx context.Context) error {
	if os.Getenv("TZ") != "" {
		w.logger.Info("TZ is set, timezone watch disabled")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return err
	}

	ctx, w.cancel = context.WithCancel(ctx)
	go w.loop(ctx, watcher)
	return nil
}

func (w *ClockWatcher) Interrupt() error {
	w.cancel()
	return nil
}

func (w *ClockWatcher) loop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()
	name := filepath.Base(w.path)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Timezone watch error", zap.Error(err))
		}
	}
}

// reload re-reads the timezone file and reports it when the zone changed
func (w *ClockWatcher) reload() {
	loc, err := LoadZoneFile(w.path)
	if err != nil {
		// Replacement may be half done; the next event retries.
		w.logger.Debug("Timezone file not readable yet", zap.Error(err))
		return
	}
	prev := w.zone.Location()
	now := time.Now()
	_, prevOff := now.In(prev).Zone()
	_, newOff := now.In(loc).Zone()
	if prev.String() == loc.String() && prevOff == newOff {
		return
	}

	w.zone.Set(loc)
	w.logger.Info("Timezone changed", zap.String("from", prev.String()), zap.String("to", loc.String()))
	if w.onChange != nil {
		w.onChange(loc)
	}
}

// LoadZoneFile parses a TZif file. The zone is named after the zoneinfo path
// the file links to, or "Local" when it is not a link.
func LoadZoneFile(path string) (*time.Location, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	name := "Local"
	if target, err := filepath.EvalSymlinks(path); err == nil {
		if i := strings.Index(target, "zoneinfo/"); i >= 0 {
			name = target[i+len("zoneinfo/"):]
		}
	}
	return time.LoadLocationFromTZData(name, data)
}
