// Package clock provides wall-clock-to-slot conversion for the
// orchestrator's SlotTick events (SPEC_FULL.md §4.G), the sole time
// source §6.3 allows: every other component receives slots as values,
// never reads the wall clock itself.
package clock

import (
	"time"

	"github.com/ethcore/beaconcore/params"
	"github.com/ethcore/beaconcore/primitives"
)

// SlotClock converts wall-clock time to consensus slots under a given
// SpecConfig's SECONDS_PER_SLOT, with an injectable time source so
// tests never depend on the real wall clock.
type SlotClock struct {
	genesisTime uint64
	cfg         *params.SpecConfig
	timeFunc    func() time.Time
}

// New creates a SlotClock anchored at genesisTime using the real wall clock.
func New(genesisTime uint64, cfg *params.SpecConfig) *SlotClock {
	return &SlotClock{genesisTime: genesisTime, cfg: cfg, timeFunc: time.Now}
}

// NewWithTimeFunc creates a SlotClock with a custom time source, for
// deterministic tests of orchestrator slot-tick behavior.
func NewWithTimeFunc(genesisTime uint64, cfg *params.SpecConfig, timeFunc func() time.Time) *SlotClock {
	return &SlotClock{genesisTime: genesisTime, cfg: cfg, timeFunc: timeFunc}
}

// secondsSinceGenesis returns seconds elapsed since genesis, 0 if before.
func (c *SlotClock) secondsSinceGenesis() uint64 {
	now := uint64(c.timeFunc().Unix())
	if now < c.genesisTime {
		return 0
	}
	return now - c.genesisTime
}

// CurrentSlot returns the current slot (0 before genesis).
func (c *SlotClock) CurrentSlot() primitives.Slot {
	return primitives.Slot(c.secondsSinceGenesis() / c.cfg.SecondsPerSlot)
}

// CurrentEpoch returns the epoch containing CurrentSlot().
func (c *SlotClock) CurrentEpoch() primitives.Epoch {
	return primitives.Epoch(uint64(c.CurrentSlot()) / c.cfg.SlotsPerEpoch)
}

// SlotStartTime returns the Unix timestamp when slot begins.
func (c *SlotClock) SlotStartTime(slot primitives.Slot) uint64 {
	return c.genesisTime + uint64(slot)*c.cfg.SecondsPerSlot
}

// IsBeforeGenesis reports whether wall-clock time precedes genesisTime.
func (c *SlotClock) IsBeforeGenesis() bool {
	return uint64(c.timeFunc().Unix()) < c.genesisTime
}

// UntilNextSlot returns the time.Duration remaining until the next slot
// boundary, for a caller driving an orchestrator SlotTick loop with a
// timer instead of busy-polling.
func (c *SlotClock) UntilNextSlot() time.Duration {
	next := c.SlotStartTime(c.CurrentSlot() + 1)
	now := uint64(c.timeFunc().Unix())
	if next <= now {
		return 0
	}
	return time.Duration(next-now) * time.Second
}
