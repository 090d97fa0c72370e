package ringing

import (
	"fmt"
	"time"

	"github.com/borgmon/wakeup/pkg/audio"
	"github.com/borgmon/wakeup/pkg/models"
	"github.com/borgmon/wakeup/pkg/platform"
	"github.com/borgmon/wakeup/pkg/sounds"
)

// events is a shared, ordered record of port calls
type events struct {
	log []string
}

func (e *events) add(format string, args ...any) {
	e.log = append(e.log, fmt.Sprintf(format, args...))
}

func (e *events) index(entry string) int {
	for i, l := range e.log {
		if l == entry {
			return i
		}
	}
	return -1
}

type fakeLock struct {
	ev   *events
	tag  string
	n    int
	held bool
}

func (l *fakeLock) Release() {
	if l.held {
		l.held = false
		l.ev.add("wakelock.release %d", l.n)
	}
}

func (l *fakeLock) Held() bool { return l.held }

type fakePower struct {
	ev          *events
	interactive bool
	locked      bool
	locks       []*fakeLock
}

func (p *fakePower) AcquireWakeLock(tag string, timeout time.Duration) platform.WakeLock {
	l := &fakeLock{ev: p.ev, tag: tag, n: len(p.locks) + 1, held: true}
	p.locks = append(p.locks, l)
	p.ev.add("wakelock.acquire %d", l.n)
	return l
}

func (p *fakePower) PulseScreen(time.Duration) { p.ev.add("screen.pulse") }
func (p *fakePower) IsInteractive() bool { return p.interactive }
func (p *fakePower) IsLocked() bool { return p.locked }

type fakeNotifier struct {
	ev     *events
	posted []Notification
	err    error
}

func (n *fakeNotifier) Post(note Notification) error {
	n.posted = append(n.posted, note)
	n.ev.add("notify.post %d", note.Params.AlarmID)
	return n.err
}

func (n *fakeNotifier) Remove(sessionID string) {
	for _, p := range n.posted {
		if p.SessionID == sessionID {
			n.ev.add("notify.remove %d", p.Params.AlarmID)
		}
	}
}

type fakePresenter struct {
	ev        *events
	err       error
	presented []string
}

func (p *fakePresenter) Present(sessionID string, params models.RingParams) error {
	if p.err != nil {
		return p.err
	}
	p.presented = append(p.presented, sessionID)
	p.ev.add("present %d", params.AlarmID)
	return nil
}

func (p *fakePresenter) Close(sessionID string) { p.ev.add("present.close") }

type fakePlayer struct {
	ev      *events
	name    string
	playing bool
	volume  float64
	volumes []float64
	closed  bool
}

func (p *fakePlayer) Play() { p.playing = true }
func (p *fakePlayer) Pause() { p.playing = false }
func (p *fakePlayer) IsPlaying() bool { return p.playing }
func (p *fakePlayer) Volume() float64 { return p.volume }

func (p *fakePlayer) SetVolume(v float64) {
	p.volume = v
	p.volumes = append(p.volumes, v)
}

func (p *fakePlayer) Close() error {
	if !p.closed {
		p.closed = true
		p.playing = false
		p.ev.add("player.close %s", p.name)
	}
	return nil
}

type prepareCall struct {
	sound   sounds.Sound
	onError func(error)
	ready   func(audio.Player, error)
}

// fakeEngine completes prepares synchronously unless async is set
type fakeEngine struct {
	ev      *events
	async   bool
	failAll bool
	calls   []prepareCall
	players []*fakePlayer
}

func (e *fakeEngine) Prepare(s sounds.Sound, onError func(error), ready func(audio.Player, error)) {
	e.calls = append(e.calls, prepareCall{s, onError, ready})
	if !e.async {
		e.complete(len(e.calls) - 1)
	}
}

func (e *fakeEngine) complete(i int) {
	c := e.calls[i]
	if e.failAll {
		c.ready(nil, fmt.Errorf("decode failed"))
		return
	}
	p := &fakePlayer{ev: e.ev, name: fmt.Sprintf("%s#%d", c.sound.ID, i+1)}
	e.players = append(e.players, p)
	c.ready(p, nil)
}

func (e *fakeEngine) last() *fakePlayer {
	if len(e.players) == 0 {
		return nil
	}
	return e.players[len(e.players)-1]
}

type fakeVibrator struct {
	ev      *events
	pulses  []time.Duration
	cancels int
}

func (v *fakeVibrator) HasVibrator() bool { return true }
func (v *fakeVibrator) Vibrate(d time.Duration) { v.pulses = append(v.pulses, d) }

func (v *fakeVibrator) Cancel() {
	v.cancels++
	v.ev.add("vibrate.cancel")
}
