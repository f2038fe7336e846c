// Package utils holds small byte and string helpers shared by the handlers
// and their tests.
package utils

// JoinBytes concatenates the given byte slices into one new slice. The echo
// handlers use it to build marker+payload replies so each reply goes out in
// a single send.
//
// Parameters:
//   - s: One or more byte slices to concatenate
//
// Returns:
//   - A new byte slice containing all input slices in order
func JoinBytes(s ...[]byte) []byte {
	n := 0
	for _, v := range s {
		n += len(v)
	}

	b, i := make([]byte, n), 0
	for _, v := range s {
		i += copy(b[i:], v)
	}

	return b
}
