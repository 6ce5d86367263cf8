package format

import (
	"fmt"
	"strings"
)

// Traits are the role flags of a cluster.
type Traits uint8

const (
	TraitStart Traits = 1 << iota // first cluster of a chain
	TraitEnd                      // last cluster of a chain
	TraitUsed                     // owned by a stream
	TraitFree                     // in the free pool

	traitMask = TraitStart | TraitEnd | TraitUsed | TraitFree
)

// Valid reports whether t is a defined combination: either exactly Free, or
// Used with any of Start/End.
func (t Traits) Valid() bool {
	if t&^traitMask != 0 {
		return false
	}
	if t == TraitFree {
		return true
	}
	return t&TraitUsed != 0 && t&TraitFree == 0
}

// Has reports whether every flag of f is set.
func (t Traits) Has(f Traits) bool { return t&f == f }

func (t Traits) String() string {
	if t == 0 {
		return "none"
	}
	var parts []string
	for _, f := range []struct {
		bit  Traits
		name string
	}{{TraitStart, "Start"}, {TraitEnd, "End"}, {TraitUsed, "Used"}, {TraitFree, "Free"}} {
		if t&f.bit != 0 {
			parts = append(parts, f.name)
		}
	}
	if rest := t &^ traitMask; rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%02X", uint8(rest)))
	}
	return strings.Join(parts, "|")
}

// Envelope is the metadata preceding every cluster payload.
type Envelope struct {
	Traits Traits
	Prev   int32
	Next   int32
}

// FreeEnvelope is written into clusters returned to the free pool.
var FreeEnvelope = Envelope{Traits: TraitFree, Prev: NilCluster, Next: NilCluster}

// ParseEnvelope decodes a cluster envelope from b.
func ParseEnvelope(b []byte) (Envelope, error) {
	if len(b) < EnvelopeSize {
		return Envelope{}, fmt.Errorf("envelope: %w", ErrTruncated)
	}
	return Envelope{
		Traits: Traits(b[EnvelopeTraitsOffset]),
		Prev:   ReadI32(b, EnvelopePrevOffset),
		Next:   ReadI32(b, EnvelopeNextOffset),
	}, nil
}

// Put encodes e into the first EnvelopeSize bytes of b.
func (e Envelope) Put(b []byte) {
	b[EnvelopeTraitsOffset] = byte(e.Traits)
	PutI32(b, EnvelopePrevOffset, e.Prev)
	PutI32(b, EnvelopeNextOffset, e.Next)
}

// Check reports a structural problem with e for a medium of totalClusters
// clusters, or nil.
func (e Envelope) Check(totalClusters uint32) error {
	if !e.Traits.Valid() {
		return fmt.Errorf("undefined traits 0x%02X", uint8(e.Traits))
	}
	if !LinkInRange(e.Next, totalClusters) {
		return fmt.Errorf("next link %d outside [0, %d)", e.Next, totalClusters)
	}
	if !LinkInRange(e.Prev, totalClusters) {
		return fmt.Errorf("prev link %d outside [0, %d)", e.Prev, totalClusters)
	}
	return nil
}
