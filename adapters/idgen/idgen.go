// Package idgen provides ID generation implementations.
package idgen

import (
	"crypto/rand"
	"math/big"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/schemagate/schemagate/ports"
)

const (
	objectIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	objectIDLength   = 10
)

// Random generates UUIDs for request correlation and short alphanumeric ids
// for objects.
type Random struct{}

// New generates a new UUID v4.
func (Random) New() string {
	return uuid.New().String()
}

// ObjectID generates a 10-character alphanumeric object id. The permission
// key grammar recognizes exactly this shape.
func (Random) ObjectID() string {
	b := make([]byte, objectIDLength)
	max := big.NewInt(int64(len(objectIDAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the platform source is broken.
			panic(err)
		}
		b[i] = objectIDAlphabet[n.Int64()]
	}
	return string(b)
}

// Ensure interface compliance.
var _ ports.IDGenerator = Random{}

// Sequential generates deterministic IDs (for testing).
type Sequential struct {
	prefix  string
	counter uint64
}

// NewSequential creates a sequential ID generator.
func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

// New generates the next sequential ID.
func (s *Sequential) New() string {
	n := atomic.AddUint64(&s.counter, 1)
	return s.prefix + uitoa(n)
}

// ObjectID generates a deterministic 10-character id, zero padded.
func (s *Sequential) ObjectID() string {
	n := atomic.AddUint64(&s.counter, 1)
	digits := uitoa(n)
	for len(digits) < objectIDLength {
		digits = "0" + digits
	}
	return digits[len(digits)-objectIDLength:]
}

// Reset resets the counter (for testing).
func (s *Sequential) Reset() {
	atomic.StoreUint64(&s.counter, 0)
}

func uitoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// Ensure interface compliance.
var _ ports.IDGenerator = (*Sequential)(nil)
