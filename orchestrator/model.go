// Package orchestrator implements component G of SPEC_FULL.md §4.G:
// the glue between the chain store (§4.F), the state-transition
// function (§4.E), and proto-array fork choice (§4.D). It owns no
// consensus logic of its own — every decision is delegated to those
// three packages — and exposes the result only through the explicit
// per-event channels spec.md §9 calls for in place of an event-bus
// subscribe/publish.
package orchestrator

import "github.com/ethcore/beaconcore/containers"
import "github.com/ethcore/beaconcore/primitives"

// EventSink carries one buffered channel per event kind in place of an
// event bus. The Orchestrator produces HeadUpdate and Finalized;
// SlotTick is fed by whoever drives the slot clock (cmd/gean's slot
// loop). Any number of consumers may read from each channel.
type EventSink struct {
	// HeadUpdate fires once per OnBlock call whose resulting head
	// differs from the previous one.
	HeadUpdate chan primitives.Bytes32
	// Finalized fires whenever store commit advances the FINALIZED
	// checkpoint.
	Finalized chan containers.Checkpoint
	// SlotTick fires once per wall-clock slot boundary for a caller
	// driving the orchestrator from a clock.SlotClock.
	SlotTick chan primitives.Slot
}

const eventBufferSize = 64

// NewEventSink allocates a sink whose channels each buffer
// eventBufferSize events. OnBlock's sends block once a channel's buffer
// is full, so a consumer that falls more than eventBufferSize events
// behind stalls OnBlock.
func NewEventSink() *EventSink {
	return &EventSink{
		HeadUpdate: make(chan primitives.Bytes32, eventBufferSize),
		Finalized:  make(chan containers.Checkpoint, eventBufferSize),
		SlotTick:   make(chan primitives.Slot, eventBufferSize),
	}
}
