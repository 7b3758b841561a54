package runtime

// StreamSink is the side channel for partial output in stream-enabled
// sessions. Writes happen while the turn is still open; the final reply
// is assembled and committed only after the turn completes, so a sink
// must never block the interpreter for long.
type StreamSink interface {
	Write(sessionID string, chunk string)
}

// StreamFunc adapts a function to StreamSink.
type StreamFunc func(sessionID, chunk string)

func (f StreamFunc) Write(sessionID, chunk string) { f(sessionID, chunk) }
