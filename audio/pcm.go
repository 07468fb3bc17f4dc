package audio

// DataCallback receives interleaved 16-bit samples from a platform device.
type DataCallback func(samples []int16)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

// pcmBackend is the platform microphone layer: pulse on linux, malgo elsewhere.
type pcmBackend interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig, cb DataCallback) (pcmCapture, error)
	Close()
}

type pcmCapture interface {
	Start() error
	Stop()
	Close()
}

// applyGain scales samples in place, clipping to the int16 range.
func applyGain(samples []int16, gain int32) {
	if gain <= 1 {
		return
	}
	for i, s := range samples {
		amplified := int32(s) * gain
		if amplified > 32767 {
			amplified = 32767
		} else if amplified < -32768 {
			amplified = -32768
		}
		samples[i] = int16(amplified)
	}
}
