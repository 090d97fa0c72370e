package sounds

import (
	"encoding/binary"
	"math"
	"time"
)

// Note is one segment of a builtin tone. A zero frequency is a rest.
type Note struct {
	Freq  float64
	Dur   time.Duration
	Decay bool // bell-like exponential decay instead of a flat beep
}

// Tone is one loop iteration of a builtin sound
type Tone []Note

const (
	amplitude = 0.5
	edge      = 5 * time.Millisecond // attack and release ramp
)

var (
	// Four quick beeps and a pause, like a bedside digital clock.
	americanTone = Tone{
		{Freq: 2000, Dur: 100 * time.Millisecond}, {Dur: 80 * time.Millisecond},
		{Freq: 2000, Dur: 100 * time.Millisecond}, {Dur: 80 * time.Millisecond},
		{Freq: 2000, Dur: 100 * time.Millisecond}, {Dur: 80 * time.Millisecond},
		{Freq: 2000, Dur: 100 * time.Millisecond}, {Dur: 600 * time.Millisecond},
	}

	// Pentatonic phrase G A C D E, then back down.
	chinaTone = Tone{
		{Freq: 392.00, Dur: 220 * time.Millisecond, Decay: true},
		{Freq: 440.00, Dur: 220 * time.Millisecond, Decay: true},
		{Freq: 523.25, Dur: 220 * time.Millisecond, Decay: true},
		{Freq: 587.33, Dur: 220 * time.Millisecond, Decay: true},
		{Freq: 659.25, Dur: 440 * time.Millisecond, Decay: true},
		{Freq: 587.33, Dur: 220 * time.Millisecond, Decay: true},
		{Freq: 523.25, Dur: 440 * time.Millisecond, Decay: true},
		{Dur: 400 * time.Millisecond},
	}

	// Rising marimba-like arpeggio.
	apexTone = Tone{
		{Freq: 880.00, Dur: 140 * time.Millisecond, Decay: true},
		{Freq: 1108.73, Dur: 140 * time.Millisecond, Decay: true},
		{Freq: 1318.51, Dur: 140 * time.Millisecond, Decay: true},
		{Freq: 1760.00, Dur: 280 * time.Millisecond, Decay: true},
		{Freq: 1318.51, Dur: 140 * time.Millisecond, Decay: true},
		{Freq: 1760.00, Dur: 280 * time.Millisecond, Decay: true},
		{Dur: 500 * time.Millisecond},
	}
)

// Duration is the length of one loop iteration
func (t Tone) Duration() time.Duration {
	var d time.Duration
	for _, n := range t {
		d += n.Dur
	}
	return d
}

// Synthesize renders the tone as interleaved stereo signed 16-bit little
// endian PCM at sampleRate.
func Synthesize(t Tone, sampleRate int) []byte {
	var out []byte
	edgeFrames := framesFor(edge, sampleRate)

	for _, n := range t {
		frames := framesFor(n.Dur, sampleRate)
		buf := make([]byte, frames*4)
		if n.Freq > 0 {
			for i := 0; i < frames; i++ {
				env := 1.0
				if i < edgeFrames {
					env = float64(i) / float64(edgeFrames)
				} else if frames-i < edgeFrames {
					env = float64(frames-i) / float64(edgeFrames)
				}
				if n.Decay {
					env *= math.Exp(-4 * float64(i) / float64(frames))
				}
				v := amplitude * env * math.Sin(2*math.Pi*n.Freq*float64(i)/float64(sampleRate))
				s := uint16(int16(v * math.MaxInt16))
				binary.LittleEndian.PutUint16(buf[i*4:], s)
				binary.LittleEndian.PutUint16(buf[i*4+2:], s)
			}
		}
		out = append(out, buf...)
	}
	return out
}

func framesFor(d time.Duration, sampleRate int) int {
	return int(d * time.Duration(sampleRate) / time.Second)
}
