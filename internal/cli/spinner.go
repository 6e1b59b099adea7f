package cli

import (
	"io"
	"time"

	"github.com/briandowns/spinner"
)

// Spinner shows progress while a blocking call runs. It is silent when
// disabled, which is the case for json and yaml output.
type Spinner struct {
	s *spinner.Spinner
}

// NewSpinner creates a spinner writing to w with the given message.
func NewSpinner(w io.Writer, message string, enabled bool) *Spinner {
	if !enabled {
		return &Spinner{}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " " + message
	return &Spinner{s: s}
}

// Start starts the animation.
func (s *Spinner) Start() {
	if s.s != nil {
		s.s.Start()
	}
}

// Stop stops the animation and clears the line.
func (s *Spinner) Stop() {
	if s.s != nil {
		s.s.Stop()
	}
}
