// Package sink provides the serialized console output shared by all
// connection handlers of a process.
package sink

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Sink serializes line writes to an underlying writer. Each call emits one
// complete line with a single Write, under a mutex held only for that write,
// so lines from concurrent handlers never interleave.
type Sink struct {
	mu sync.Mutex
	w  io.Writer
}

// New returns a Sink writing to w.
func New(w io.Writer) *Sink {
	return &Sink{w: w}
}

// Stdout returns a Sink writing to the process's standard output.
func Stdout() *Sink {
	return New(os.Stdout)
}

// Write emits text as one line. A trailing newline is added unless text
// already ends with one.
//
// Parameters:
//   - text: The line to emit
//
// Returns:
//   - An error from the underlying writer
func (s *Sink) Write(text string) error {
	line := text
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := io.WriteString(s.w, line)
	return err
}

// Printf formats according to format and emits the result as one line.
func (s *Sink) Printf(format string, args ...any) error {
	return s.Write(fmt.Sprintf(format, args...))
}
