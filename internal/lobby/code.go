// internal/lobby/code.go
package lobby

import "github.com/valyala/fastrand"

// Lobby codes are short, human-typeable tokens. 36^6 ≈ 2.2 billion codes,
// so collision handling is retry-on-collision rather than anything clever.
const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6
)

// newCode returns a fixed-length uppercase alphanumeric lobby code. Callers
// must check the store for collisions and redraw.
func newCode() string {
	buf := make([]byte, codeLength)
	for i := range buf {
		buf[i] = codeAlphabet[fastrand.Uint32n(uint32(len(codeAlphabet)))]
	}
	return string(buf)
}
