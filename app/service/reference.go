package service

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// referenceGenerator produces PREFIX-ULID references. The monotonic entropy source keeps
// references unique and ordered even within the same millisecond.
type referenceGenerator struct {
	mu      sync.Mutex
	prefix  string
	entropy *ulid.MonotonicEntropy
}

func newReferenceGenerator(prefix string) *referenceGenerator {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = "KAM"
	}
	return &referenceGenerator{
		prefix:  prefix,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

func (g *referenceGenerator) Next(now time.Time) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(now), g.entropy)
	if err != nil {
		return "", err
	}
	return g.prefix + "-" + id.String(), nil
}
