package recorder

type EventKind int

const (
	// StartRequested clears any previous error.
	StartRequested EventKind = iota
	RecordingStarted
	RecordingStopped
	ProcessingStarted
	// TranscriptUpdated carries the whole transcript accumulated so far.
	TranscriptUpdated
	Failed
	ProcessingFinished
)

func (k EventKind) String() string {
	switch k {
	case StartRequested:
		return "start_requested"
	case RecordingStarted:
		return "recording_started"
	case RecordingStopped:
		return "recording_stopped"
	case ProcessingStarted:
		return "processing_started"
	case TranscriptUpdated:
		return "transcript"
	case Failed:
		return "failed"
	case ProcessingFinished:
		return "processing_finished"
	}
	return "unknown"
}

type Event struct {
	Kind EventKind
	Text string
	Err  error
}

// Sink receives controller events. Publish is called from the controller
// loop and from the transcription goroutine, never from both at once.
type Sink interface {
	Publish(Event)
}

type SinkFunc func(Event)

func (f SinkFunc) Publish(e Event) { f(e) }
