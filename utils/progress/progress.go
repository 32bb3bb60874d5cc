// Package progress carries status updates from long-running wizard steps to
// whichever front end is watching them.
package progress

// Type represents different kinds of progress updates
type Type int

const (
	TypeStep Type = iota
	TypeBatchStarted
	TypeBatchDone
	TypeBatchFailed
	TypeComplete
	TypeError
)

func (t Type) String() string {
	switch t {
	case TypeStep:
		return "step"
	case TypeBatchStarted:
		return "batch_started"
	case TypeBatchDone:
		return "batch_done"
	case TypeBatchFailed:
		return "batch_failed"
	case TypeComplete:
		return "complete"
	case TypeError:
		return "error"
	}
	return "unknown"
}

// Update is one progress event. Batch fields are zero for non-batch events.
type Update struct {
	Type    Type   `json:"-"`
	Kind    string `json:"type"`
	Message string `json:"message"`
	Batch   int    `json:"batch,omitempty"`
	Batches int    `json:"batches,omitempty"`
	Items   int    `json:"items,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Writer receives progress updates. Implementations must be safe for
// concurrent use since batches report from their own goroutines.
type Writer interface {
	WriteProgress(update Update) error
}

// Discard drops every update
var Discard Writer = discard{}

type discard struct{}

func (discard) WriteProgress(Update) error { return nil }

// channelWriter implements Writer by sending updates to a channel
type channelWriter struct {
	ch chan<- Update
}

// NewChannelWriter returns a Writer that forwards updates to ch
func NewChannelWriter(ch chan<- Update) Writer {
	return &channelWriter{ch: ch}
}

func (w *channelWriter) WriteProgress(update Update) error {
	update.Kind = update.Type.String()
	w.ch <- update
	return nil
}

// FuncWriter adapts a function to the Writer interface
type FuncWriter func(Update) error

func (f FuncWriter) WriteProgress(update Update) error {
	update.Kind = update.Type.String()
	return f(update)
}
