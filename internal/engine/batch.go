/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package engine builds shuffled, revealable batches of slots and flips coins.
//
// Every function is pure: inputs are never mutated, and all randomness comes
// from the Source passed in.
package engine

import (
	"errors"
	"strconv"
)

var (
	ErrInvalidCount     = errors.New("player count must be a positive integer")
	ErrInvalidGroupSize = errors.New("players per team must be at least 2")
)

// MinGroupSize is the smallest squad size BuildSquadBatch accepts.
const MinGroupSize = 2

const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

type Mode string

const (
	ModeOrder Mode = "order"
	ModeSquad Mode = "squad"
)

// Slot is one revealable card.
type Slot struct {
	ID       int    `json:"id"`
	Label    string `json:"label"`
	Revealed bool   `json:"revealed"`
}

// Batch is the ordered result of one randomization run.
type Batch struct {
	Mode     Mode   `json:"mode"`
	PerGroup int    `json:"per_group,omitempty"`
	Slots    []Slot `json:"slots"`
}

// Empty reports whether the batch holds no slots.
func (b Batch) Empty() bool {
	return len(b.Slots) == 0
}

// Hidden returns the number of slots not yet revealed.
func (b Batch) Hidden() int {
	n := 0
	for _, s := range b.Slots {
		if !s.Revealed {
			n++
		}
	}
	return n
}

// Complete reports whether every slot of a populated batch is revealed.
func (b Batch) Complete() bool {
	return !b.Empty() && b.Hidden() == 0
}

// Labels returns the slot labels in position order.
func (b Batch) Labels() []string {
	out := make([]string, len(b.Slots))
	for i, s := range b.Slots {
		out[i] = s.Label
	}
	return out
}

func (b Batch) clone() Batch {
	c := b
	c.Slots = make([]Slot, len(b.Slots))
	copy(c.Slots, b.Slots)
	return c
}

// GroupTag names the squad with the given zero-based index: A through Z,
// then the one-based group number once the alphabet runs out.
func GroupTag(index int) string {
	if index >= 0 && index < len(letters) {
		return letters[index : index+1]
	}
	return strconv.Itoa(index + 1)
}

// BuildOrderBatch creates count slots labelled 1..count, with ids starting at
// base in label order, and shuffles their positions.
func BuildOrderBatch(src Source, base, count int) (Batch, error) {
	if count < 1 {
		return Batch{}, ErrInvalidCount
	}

	slots := make([]Slot, count)
	for i := range slots {
		slots[i] = Slot{
			ID:    base + i,
			Label: strconv.Itoa(i + 1),
		}
	}

	shuffle(src, slots)

	return Batch{Mode: ModeOrder, Slots: slots}, nil
}

// BuildSquadBatch tags total participants into squads of perGroup by index,
// shuffles the whole tag sequence, then deals it into slots with ids starting
// at base.
func BuildSquadBatch(src Source, base, total, perGroup int) (Batch, error) {
	if total < 1 {
		return Batch{}, ErrInvalidCount
	}
	if perGroup < MinGroupSize {
		return Batch{}, ErrInvalidGroupSize
	}

	tags := make([]string, total)
	for i := range tags {
		tags[i] = GroupTag(i / perGroup)
	}

	shuffle(src, tags)

	slots := make([]Slot, total)
	for i, tag := range tags {
		slots[i] = Slot{ID: base + i, Label: tag}
	}

	return Batch{Mode: ModeSquad, PerGroup: perGroup, Slots: slots}, nil
}

// Mark reveals a single slot. Unknown or already revealed ids leave the batch
// unchanged.
func Mark(b Batch, id int) Batch {
	for i, s := range b.Slots {
		if s.ID != id {
			continue
		}
		if s.Revealed {
			return b
		}
		out := b.clone()
		out.Slots[i].Revealed = true
		return out
	}
	return b
}

// Settle reveals the last hidden slot once it is the only one left, since its
// value is no longer a secret.
func Settle(b Batch) Batch {
	if b.Hidden() != 1 {
		return b
	}
	out := b.clone()
	for i := range out.Slots {
		out.Slots[i].Revealed = true
	}
	return out
}

// Reveal marks the slot and applies the terminal auto-reveal rule.
func Reveal(b Batch, id int) Batch {
	return Settle(Mark(b, id))
}

// RevealAll reveals every slot.
func RevealAll(b Batch) Batch {
	out := b.clone()
	for i := range out.Slots {
		out.Slots[i].Revealed = true
	}
	return out
}
