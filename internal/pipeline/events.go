package pipeline

// EventType identifies an entry in a run's event stream.
type EventType string

const (
	EventProgress EventType = "progress"
	EventSuccess  EventType = "success"
	EventFailure  EventType = "failure"
)

// Event is one entry in a run's ordered event stream. Progress events carry
// Percent; the terminal event is either a success with sizes and a message or
// a failure with a message and the underlying error.
type Event struct {
	Type           EventType
	Percent        float64
	Message        string
	OriginalSize   int64
	CompressedSize int64
	Err            error
}

// progressReporter maps pipeline phases onto a monotonic 0-100 scale. Values
// below the last reported one are dropped.
type progressReporter struct {
	emit func(Event)
	last float64
}

func (r *progressReporter) report(percent float64) {
	if percent < r.last {
		return
	}
	r.last = percent
	r.emit(Event{Type: EventProgress, Percent: percent})
}

// Phase windows: per-page raster+encode fills 0-40, page embedding 70-90,
// serialization ends at 95 and finalizing at 100. The 40-70 gap covers
// closing the source and initializing the output document, which report no
// incremental progress.
func pageProgress(done, total int) float64 {
	return float64(done) / float64(total) * 40
}

func embedProgress(done, total int) float64 {
	return 70 + float64(done)/float64(total)*20
}

const (
	serializedProgress = 95
	finishedProgress   = 100
)
