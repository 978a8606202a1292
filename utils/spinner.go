package utils

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const spinnerFrames = `⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏`

// Spinner draws a progress indicator on the current terminal line until it is stopped.
type Spinner struct {
	mu         sync.Mutex
	writer     io.Writer
	delay      time.Duration
	message    string
	lastOutput string
	hideCursor bool
	// StopMsg is printed once the indicator is removed.
	StopMsg string

	once sync.Once
	stop chan struct{}
	done chan struct{}
}

// NewSpinner instantiates a new progress indicator writing to stderr.
func NewSpinner(msg string, d time.Duration, hideCursor bool) *Spinner {
	return &Spinner{
		writer:     os.Stderr,
		delay:      d,
		message:    msg,
		hideCursor: hideCursor,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// SetMessage replaces the text shown in front of the indicator.
func (s *Spinner) SetMessage(msg string) {
	s.mu.Lock()
	s.message = msg
	s.mu.Unlock()
}

// Start starts the progress indicator.
func (s *Spinner) Start() {
	if s.hideCursor && runtime.GOOS != "windows" {
		fmt.Fprint(s.writer, "\033[?25l")
	}

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.delay)
		defer ticker.Stop()

		frames := []rune(spinnerFrames)
		for i := 0; ; i++ {
			s.mu.Lock()
			s.clear()
			output := fmt.Sprintf("\r%s%s %c%s", s.message, SuccessColor, frames[i%len(frames)], DefaultColor)
			fmt.Fprint(s.writer, output)
			s.lastOutput = output
			s.mu.Unlock()

			select {
			case <-s.stop:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop removes the progress indicator. It waits for the drawing goroutine and may be called more than once.
func (s *Spinner) Stop() {
	s.once.Do(func() {
		close(s.stop)
		<-s.done

		s.mu.Lock()
		defer s.mu.Unlock()

		s.clear()
		s.RestoreCursor()
		if len(s.StopMsg) > 0 {
			fmt.Fprint(s.writer, s.StopMsg)
		}
	})
}

// RestoreCursor restores back the cursor visibility.
func (s *Spinner) RestoreCursor() {
	if s.hideCursor && runtime.GOOS != "windows" {
		fmt.Fprint(s.writer, "\033[?25h")
	}
}

// clear deletes the last line. Caller must hold the lock.
func (s *Spinner) clear() {
	if s.lastOutput == "" {
		return
	}
	n := utf8.RuneCountInString(s.lastOutput)
	if runtime.GOOS == "windows" {
		fmt.Fprint(s.writer, "\r"+strings.Repeat(" ", n)+"\r")
	} else {
		fmt.Fprint(s.writer, "\r\033[K")
	}
	s.lastOutput = ""
}
