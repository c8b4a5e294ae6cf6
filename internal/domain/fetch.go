package domain

// FetchOutcome classifies the terminal state of one slot's fetch.
type FetchOutcome int

const (
	// FetchOK means a payload of valid size was acquired.
	FetchOK FetchOutcome = iota
	// FetchTooSmall means every attempt returned an undersized payload.
	FetchTooSmall
	// FetchTransportError means every attempt failed at the transport level.
	FetchTransportError
)

func (o FetchOutcome) String() string {
	switch o {
	case FetchOK:
		return "ok"
	case FetchTooSmall:
		return "too-small"
	case FetchTransportError:
		return "transport-error"
	default:
		return "unknown"
	}
}

// FetchResult is the terminal result of fetching one minute's compressed
// payload. Payload is nil unless Outcome is FetchOK. Attempts counts every
// try including the successful one.
type FetchResult struct {
	Slot     MinuteSlot
	Payload  []byte
	Outcome  FetchOutcome
	Attempts int
}
