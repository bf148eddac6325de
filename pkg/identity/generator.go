// Package identity derives the content hash that identifies a registered lot.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DigestLength is the length of a hex-encoded digest.
const DigestLength = sha256.Size * 2

// Resolution is the timestamp granularity folded into the digest.
const Resolution = time.Microsecond

// Generator stamps lots with a content hash. It folds a per-producer
// registration counter into every digest so two registrations with equal
// inputs inside the same timestamp tick still hash differently. Counters
// live in process memory; the random instance id keeps two processes (or a
// restarted one) that reach the same counter value from colliding.
type Generator struct {
	instance string

	mu       sync.Mutex
	counters map[string]uint64
}

func NewGenerator() *Generator {
	return &Generator{instance: uuid.NewString(), counters: make(map[string]uint64)}
}

// Generate returns the hex sha256 digest for a new registration and
// advances the producer's counter.
func (g *Generator) Generate(producerID, produceType string, quantity float64, timestamp time.Time) string {
	g.mu.Lock()
	g.counters[producerID]++
	seq := g.counters[producerID]
	g.mu.Unlock()

	return Digest(g.instance, producerID, produceType, quantity, timestamp, seq)
}

// Digest is the deterministic core of Generate.
func Digest(instance, producerID, produceType string, quantity float64, timestamp time.Time, seq uint64) string {
	var b strings.Builder
	b.WriteString(instance)
	b.WriteByte('|')
	b.WriteString(producerID)
	b.WriteByte('|')
	b.WriteString(produceType)
	b.WriteByte('|')
	b.WriteString(strconv.FormatFloat(quantity, 'f', -1, 64))
	b.WriteByte('|')
	b.WriteString(Normalize(timestamp).Format(time.RFC3339Nano))
	b.WriteByte('|')
	b.WriteString(strconv.FormatUint(seq, 10))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Normalize truncates to Resolution in UTC. Callers store the normalized
// value so the persisted timestamp matches the hashed one.
func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(Resolution)
}
