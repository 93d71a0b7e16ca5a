// Package id provides centralized ID generation for the client core.
//
// IDs are ULIDs with type-specific prefixes (sub_*, req_*, conn_*), which
// keeps logs readable and makes misuse across types a compile error. ULIDs
// are lexicographically sortable, so subscription and request IDs order by
// creation time for free.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// SubscriptionID identifies a realtime subscription registration
type SubscriptionID string

// RequestID identifies an API request through the gateway
type RequestID string

// ConnectionID identifies one websocket client of the gateway
type ConnectionID string

const (
	SubscriptionPrefix = "sub"
	RequestPrefix      = "req"
	ConnectionPrefix   = "conn"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator with cryptographically secure entropy
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Useful for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewSubscription generates a new subscription ID
func NewSubscription() SubscriptionID {
	return SubscriptionID(Default().GenerateWithPrefix(SubscriptionPrefix))
}

// NewRequest generates a new request ID
func NewRequest() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

// NewConnection generates a new connection ID
func NewConnection() ConnectionID {
	return ConnectionID(Default().GenerateWithPrefix(ConnectionPrefix))
}
