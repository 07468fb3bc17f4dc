package beep

import "testing"

func TestTickLengthAndDecay(t *testing.T) {
	s := tick(1000, 0.1, 0.5, 40)
	if len(s) != 2*sampleRate/10 {
		t.Fatalf("len = %d", len(s))
	}
	for i := 0; i < len(s); i += 2 {
		if s[i] != s[i+1] {
			t.Fatalf("channels differ at frame %d", i/2)
		}
	}
	peak := func(part []int16) int16 {
		var m int16
		for _, v := range part {
			if v > m {
				m = v
			}
		}
		return m
	}
	if head, tail := peak(s[:len(s)/4]), peak(s[3*len(s)/4:]); tail >= head {
		t.Errorf("no decay: head peak %d, tail peak %d", head, tail)
	}
}

func TestDoubleBeepHasSilentGap(t *testing.T) {
	b := tick(350, 0.08, 0.6, 30)
	d := doubleBeep(350, 0.08, 0.05, 0.6, 30)
	gap := int(sampleRate*0.05) * 2
	if len(d) != 2*len(b)+gap {
		t.Fatalf("len = %d, want %d", len(d), 2*len(b)+gap)
	}
	for _, v := range d[len(b) : len(b)+gap] {
		if v != 0 {
			t.Fatal("gap is not silent")
		}
	}
}

func TestPlayDisabled(t *testing.T) {
	Disable()
	Play(Start)
	Play(Cue(42))
}
