// Package idgen provides the identifier generators used to tag wake-handles
// and recordings.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/rs/xid"
)

// Generator produces unique identifiers.
type Generator interface {
	// Generate returns an identifier that has not been returned before by the
	// same generator.
	Generate() string
}

// NewSequential returns a generator whose first emitted ID is "1". IDs are
// deterministic, which keeps test output and recordings reproducible.
func NewSequential() Generator {
	return &sequentialGenerator{}
}

// NewParallel returns a generator backed by xid. IDs are globally unique
// across generators and processes but not deterministic.
func NewParallel() Generator {
	return parallelGenerator{}
}

type sequentialGenerator struct {
	next uint64
}

func (g *sequentialGenerator) Generate() string {
	idNumber := atomic.AddUint64(&g.next, 1)

	return strconv.FormatUint(idNumber, 10)
}

type parallelGenerator struct{}

func (parallelGenerator) Generate() string {
	return xid.New().String()
}
