// Package id generates IDs for sessions, frames and trace tasks.
package id

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
)

// IDGenerator can generate IDs.
type IDGenerator interface {
	Generate() string
}

var (
	generatorLock sync.Mutex
	generator     IDGenerator
)

// NewIDGenerator returns a sequential ID generator. Sequential IDs are
// deterministic as long as a single goroutine generates them.
func NewIDGenerator() IDGenerator {
	return &sequentialIDGenerator{}
}

// UseParallelIDGenerator switches the package generator to xid-based IDs,
// which stay unique when both domains generate IDs at the same time. It must
// be called before the first Generate.
func UseParallelIDGenerator() {
	generatorLock.Lock()
	defer generatorLock.Unlock()

	if generator != nil {
		panic("cannot change id generator type after using it")
	}

	generator = parallelIDGenerator{}
}

// Generate returns a new ID from the package generator.
func Generate() string {
	generatorLock.Lock()
	if generator == nil {
		generator = NewIDGenerator()
	}
	g := generator
	generatorLock.Unlock()

	return g.Generate()
}

type sequentialIDGenerator struct {
	nextID uint64
}

func (g *sequentialIDGenerator) Generate() string {
	idNumber := atomic.AddUint64(&g.nextID, 1)

	return strconv.FormatUint(idNumber, 10)
}

type parallelIDGenerator struct{}

func (parallelIDGenerator) Generate() string {
	return xid.New().String()
}
