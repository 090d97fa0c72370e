// Package audio plays alarm sounds in a loop through oto.
package audio

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/borgmon/wakeup/pkg/sounds"
	"github.com/ebitengine/oto/v3"
	"go.uber.org/zap"
)

const (
	SampleRate   = 44100
	ChannelCount = 2

	errPollInterval = 100 * time.Millisecond
)

// Player is a prepared, looping sound
type Player interface {
	Play()
	Pause()
	IsPlaying() bool
	// SetVolume sets the gain in [0, 1].
	SetVolume(v float64)
	Volume() float64
	Close() error
}

// Engine prepares players. ready may be called before Prepare returns
// (builtin sounds) or later from another goroutine (file sounds). onError
// reports playback failures after a successful prepare.
type Engine interface {
	Prepare(s sounds.Sound, onError func(error), ready func(Player, error))
}

// Global audio context singleton
var (
	globalAudioCtx     *oto.Context
	globalAudioCtxErr  error
	globalAudioCtxOnce sync.Once
)

func audioContext(logger *zap.Logger) (*oto.Context, error) {
	globalAudioCtxOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   SampleRate,
			ChannelCount: ChannelCount,
			Format:       oto.FormatSignedInt16LE,
		}

		ctx, readyChan, err := oto.NewContext(op)
		if err != nil {
			globalAudioCtxErr = fmt.Errorf("init audio context: %w", err)
			return
		}

		// Wait for the hardware audio devices to be ready
		<-readyChan

		globalAudioCtx = ctx
		logger.Info("Audio context initialized")
	})
	return globalAudioCtx, globalAudioCtxErr
}

// OtoEngine is the Engine backed by the system audio device
type OtoEngine struct {
	logger   *zap.Logger
	readFile func(string) ([]byte, error)
}

var _ Engine = (*OtoEngine)(nil)

func NewOtoEngine(logger *zap.Logger) *OtoEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OtoEngine{logger: logger, readFile: os.ReadFile}
}

func (e *OtoEngine) Prepare(s sounds.Sound, onError func(error), ready func(Player, error)) {
	if s.Kind == sounds.Builtin {
		ready(e.open(sounds.Synthesize(s.Tone, SampleRate), s.ID, onError))
		return
	}

	go func() {
		pcm, err := e.loadFile(s.ID)
		if err != nil {
			ready(nil, err)
			return
		}
		ready(e.open(pcm, s.ID, onError))
	}()
}

func (e *OtoEngine) loadFile(path string) ([]byte, error) {
	data, err := e.readFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sound %s: %w", path, err)
	}
	format, pcm, err := ParseWAV(data)
	if err != nil {
		return nil, fmt.Errorf("parse sound %s: %w", path, err)
	}
	return Convert(format, pcm, SampleRate), nil
}

func (e *OtoEngine) open(pcm []byte, id string, onError func(error)) (Player, error) {
	if len(pcm) == 0 {
		return nil, fmt.Errorf("sound %s has no samples", id)
	}
	ctx, err := audioContext(e.logger)
	if err != nil {
		return nil, err
	}

	p := &otoPlayer{
		player:  ctx.NewPlayer(NewLoopReader(pcm)),
		onError: onError,
		done:    make(chan struct{}),
		logger:  e.logger.With(zap.String("sound", id)),
	}
	go p.monitor()
	return p, nil
}

// otoPlayer loops one sound until closed
type otoPlayer struct {
	player  *oto.Player
	onError func(error)
	logger  *zap.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func (p *otoPlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.player.Play()
	}
}

func (p *otoPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.player.Pause()
	}
}

func (p *otoPlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed && p.player.IsPlaying()
}

func (p *otoPlayer) SetVolume(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.player.SetVolume(clamp01(v))
	}
}

func (p *otoPlayer) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0
	}
	return p.player.Volume()
}

func (p *otoPlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)
	p.player.Pause()
	if err := p.player.Close(); err != nil {
		p.logger.Warn("Failed to close audio player", zap.Error(err))
		return err
	}
	p.logger.Debug("Audio player closed")
	return nil
}

// monitor reports the first playback error
func (p *otoPlayer) monitor() {
	ticker := time.NewTicker(errPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.mu.Lock()
			err := p.player.Err()
			p.mu.Unlock()
			if err != nil {
				p.logger.Warn("Audio playback failed", zap.Error(err))
				if p.onError != nil {
					p.onError(err)
				}
				return
			}
		}
	}
}

// LoopReader repeats its data forever
type LoopReader struct {
	data []byte
	pos  int
}

func NewLoopReader(data []byte) *LoopReader {
	return &LoopReader{data: data}
}

func (r *LoopReader) Read(b []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := 0
	for n < len(b) {
		c := copy(b[n:], r.data[r.pos:])
		n += c
		r.pos = (r.pos + c) % len(r.data)
	}
	return n, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
