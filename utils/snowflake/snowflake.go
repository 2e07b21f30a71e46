package snowflake

import (
	"errors"
	"sync"
	"time"
)

const (
	// Epoch is the custom epoch (January 1, 2024 00:00:00 UTC)
	Epoch int64 = 1704067200000 // milliseconds

	nodeIDBits   uint8 = 10
	sequenceBits uint8 = 12

	maxNodeID   int64 = (1 << nodeIDBits) - 1
	maxSequence int64 = (1 << sequenceBits) - 1

	nodeIDShift    = sequenceBits
	timestampShift = sequenceBits + nodeIDBits
)

var (
	ErrInvalidNodeID       = errors.New("node ID exceeds maximum value")
	ErrClockMovedBackwards = errors.New("clock moved backwards")
)

// Generator produces unique, time-ordered record IDs.
// The store owns a single Generator; it replaces the collection-length
// counters the legacy system derived IDs from, which collide under
// concurrent writers.
type Generator struct {
	mu sync.Mutex

	nodeID        int64
	sequence      int64
	lastTimestamp int64
}

// NewGenerator creates a generator for the given node ID (0..1023).
func NewGenerator(nodeID int64) (*Generator, error) {
	if nodeID < 0 || nodeID > maxNodeID {
		return nil, ErrInvalidNodeID
	}
	return &Generator{
		nodeID:        nodeID,
		lastTimestamp: -1,
	}, nil
}

// NextID returns the next unique ID.
// IDs are strictly increasing for a single generator.
func (g *Generator) NextID() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UnixMilli()

	if now < g.lastTimestamp {
		return 0, ErrClockMovedBackwards
	}

	if now == g.lastTimestamp {
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			// Sequence exhausted within this millisecond, wait for the next one
			for now <= g.lastTimestamp {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		g.sequence = 0
	}

	g.lastTimestamp = now

	return (now-Epoch)<<timestampShift | g.nodeID<<nodeIDShift | g.sequence, nil
}
