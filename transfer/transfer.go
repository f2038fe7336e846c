// Package transfer guarantees full-buffer sends and receives over a stream
// connection despite partial reads and writes.
package transfer

import (
	"errors"
	"fmt"
	"io"
	"syscall"
)

// maxEmptyReads bounds how many consecutive (0, nil) reads RecvFull accepts
// before giving up with io.ErrNoProgress.
const maxEmptyReads = 100

var (
	// ErrSendFailed is reported when the underlying writer fails or stops
	// making progress before the whole buffer is transmitted.
	ErrSendFailed = errors.New("send failed")

	// ErrConnectionClosed is reported when the peer shuts the connection down
	// in an orderly way before the requested number of bytes arrived.
	ErrConnectionClosed = errors.New("connection closed by peer")

	// ErrRecvFailed is reported on a genuine I/O error while receiving.
	ErrRecvFailed = errors.New("receive failed")
)

// Error describes a failed transfer. It wraps one of ErrSendFailed,
// ErrConnectionClosed or ErrRecvFailed together with the underlying cause.
type Error struct {
	Op   string // "send" or "recv"
	Done int    // bytes transferred before the failure
	Want int    // bytes requested
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v after %d/%d bytes", e.Op, e.Kind, e.Done, e.Want)
	}

	if code := e.Code(); code != 0 {
		return fmt.Sprintf("%s: %v after %d/%d bytes (code %d): %v", e.Op, e.Kind, e.Done, e.Want, code, e.Err)
	}

	return fmt.Sprintf("%s: %v after %d/%d bytes: %v", e.Op, e.Kind, e.Done, e.Want, e.Err)
}

// Unwrap exposes both the failure kind and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Err}
}

// Code returns the platform error code of the cause, or 0 if there is none.
func (e *Error) Code() int {
	var errno syscall.Errno
	if errors.As(e.Err, &errno) {
		return int(errno)
	}

	return 0
}

// SendAll writes every byte of buf to w, issuing as many writes as needed.
// A write that reports zero bytes without an error is treated as a broken
// connection rather than retried.
//
// Parameters:
//   - w: The destination stream
//   - buf: The bytes to send
//
// Returns:
//   - nil once all bytes were written, or an *Error wrapping ErrSendFailed
func SendAll(w io.Writer, buf []byte) error {
	sent := 0
	for sent < len(buf) {
		n, err := w.Write(buf[sent:])
		if n > 0 {
			sent += n
		}

		if err != nil {
			return &Error{Op: "send", Done: sent, Want: len(buf), Kind: ErrSendFailed, Err: err}
		}

		if n <= 0 {
			return &Error{Op: "send", Done: sent, Want: len(buf), Kind: ErrSendFailed, Err: io.ErrShortWrite}
		}
	}

	return nil
}

// RecvAll reads exactly n bytes from r.
//
// Parameters:
//   - r: The source stream
//   - n: Number of bytes to read
//
// Returns:
//   - A slice of exactly n bytes
//   - An *Error wrapping ErrConnectionClosed or ErrRecvFailed on failure
func RecvAll(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := RecvFull(r, buf); err != nil {
		return nil, err
	}

	return buf, nil
}

// RecvFull fills buf completely from r. io.EOF from the reader means the peer
// shut down before len(buf) bytes arrived and is reported as ErrConnectionClosed,
// even if some bytes were already received.
//
// Parameters:
//   - r: The source stream
//   - buf: Destination buffer; its length is the number of bytes to read
//
// Returns:
//   - nil when buf is full, or an *Error describing the failure
func RecvFull(r io.Reader, buf []byte) error {
	got := 0
	empty := 0
	for got < len(buf) {
		n, err := r.Read(buf[got:])
		if n > 0 {
			got += n
			empty = 0
		}

		if err != nil {
			if got == len(buf) {
				return nil
			}

			if errors.Is(err, io.EOF) {
				return &Error{Op: "recv", Done: got, Want: len(buf), Kind: ErrConnectionClosed}
			}

			return &Error{Op: "recv", Done: got, Want: len(buf), Kind: ErrRecvFailed, Err: err}
		}

		if n == 0 {
			empty++
			if empty >= maxEmptyReads {
				return &Error{Op: "recv", Done: got, Want: len(buf), Kind: ErrRecvFailed, Err: io.ErrNoProgress}
			}
		}
	}

	return nil
}
