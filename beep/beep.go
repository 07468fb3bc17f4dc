// Package beep plays short tones when recording starts, stops or fails.
package beep

import (
	"math"
	"sync"
	"sync/atomic"
)

type Cue int

const (
	Start Cue = iota
	Stop
	Error
)

const sampleRate = 44100

var (
	disabled atomic.Bool
	toneOnce sync.Once
	tones    [3][]int16
)

// Disable silences every later cue. Test mode and CI call it.
func Disable() { disabled.Store(true) }

// Play starts the cue in the background and returns at once.
func Play(c Cue) {
	if disabled.Load() || c < Start || c > Error {
		return
	}
	toneOnce.Do(initTones)
	go playSamples(tones[c])
}

func initTones() {
	// start: high and short; stop: lower; error: low double beep
	tones[Start] = tick(1200, 0.2, 0.5, 60)
	tones[Stop] = tick(900, 0.2, 0.5, 40)
	tones[Error] = doubleBeep(350, 0.08, 0.05, 0.6, 30)
}

// tick renders an exponentially decaying sine as interleaved stereo.
func tick(freq, duration, volume, decay float64) []int16 {
	n := int(sampleRate * duration)
	samples := make([]int16, n*2)
	for i := range n {
		t := float64(i) / sampleRate
		s := int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * math.Exp(-t*decay))
		samples[i*2] = s
		samples[i*2+1] = s
	}
	return samples
}

func doubleBeep(freq, beepDur, gapDur, volume, decay float64) []int16 {
	b := tick(freq, beepDur, volume, decay)
	gap := make([]int16, int(sampleRate*gapDur)*2)
	out := make([]int16, 0, len(b)*2+len(gap))
	out = append(out, b...)
	out = append(out, gap...)
	return append(out, b...)
}
