package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Spinner animates a status line while a gateway call is in flight
type Spinner struct {
	chars    []string
	index    int
	message  string
	out      io.Writer
	stop     chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	stopped  bool
	disabled bool
	progress Writer
}

// NewSpinner creates a spinner writing to stdout
func NewSpinner() *Spinner {
	return &Spinner{
		chars:   []string{"|", "/", "-", "\\"},
		out:     os.Stdout,
		stop:    make(chan struct{}),
		stopped: true,
	}
}

// SetOutput redirects the spinner animation
func (s *Spinner) SetOutput(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = w
}

func (s *Spinner) SetProgressWriter(w Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = w
}

// Disable prevents the spinner from animating; progress updates still flow
func (s *Spinner) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disabled = true
}

// SetMessage replaces the message of a running spinner
func (s *Spinner) SetMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

func (s *Spinner) Start(message string) {
	s.mu.Lock()
	if !s.stopped {
		s.mu.Unlock()
		return
	}
	s.stop = make(chan struct{})
	s.stopped = false
	s.message = message
	progress := s.progress
	s.mu.Unlock()

	if progress != nil {
		progress.WriteProgress(Update{Type: TypeStep, Message: message})
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				s.mu.Lock()
				msg := fmt.Sprintf("%s... Done!", s.message)
				if !s.disabled {
					fmt.Fprintf(s.out, "\r%s     \n", msg)
				}
				s.mu.Unlock()
				return
			case <-ticker.C:
				s.mu.Lock()
				if !s.disabled {
					fmt.Fprintf(s.out, "\r%s... %s", s.message, s.chars[s.index])
					s.index = (s.index + 1) % len(s.chars)
				}
				s.mu.Unlock()
			}
		}
	}()
}

func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.stopped {
		close(s.stop)
		s.stopped = true
	}
	s.mu.Unlock()
	s.wg.Wait()
}
