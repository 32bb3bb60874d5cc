package progress

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChannelWriterSetsKind(t *testing.T) {
	ch := make(chan Update, 1)
	w := NewChannelWriter(ch)

	assert.NoError(t, w.WriteProgress(Update{Type: TypeBatchDone, Batch: 2, Batches: 3}))
	got := <-ch
	assert.Equal(t, "batch_done", got.Kind)
	assert.Equal(t, 2, got.Batch)
}

func TestFuncWriter(t *testing.T) {
	var kinds []string
	w := FuncWriter(func(u Update) error {
		kinds = append(kinds, u.Kind)
		return nil
	})
	w.WriteProgress(Update{Type: TypeBatchStarted})
	w.WriteProgress(Update{Type: TypeComplete})
	assert.Equal(t, []string{"batch_started", "complete"}, kinds)
	assert.Equal(t, "unknown", Type(99).String())
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinner(t *testing.T) {
	out := &syncBuffer{}
	updates := make(chan Update, 4)

	s := NewSpinner()
	s.SetOutput(out)
	s.SetProgressWriter(NewChannelWriter(updates))

	s.Start("Generating summary types")
	time.Sleep(150 * time.Millisecond)
	s.Stop()
	s.Stop()

	assert.True(t, strings.HasSuffix(out.String(), "Generating summary types... Done!     \n"))
	first := <-updates
	assert.Equal(t, "Generating summary types", first.Message)
}

func TestSpinnerDisabled(t *testing.T) {
	out := &syncBuffer{}
	s := NewSpinner()
	s.SetOutput(out)
	s.Disable()
	s.Start("quiet")
	s.Stop()
	assert.Empty(t, out.String())
}
