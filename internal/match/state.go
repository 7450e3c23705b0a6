/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package match holds the state a single match-day session threads through
// every action: the current view, batch and toss, plus a generation counter
// that lets deferred effects detect they have gone stale.
package match

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Seednode/twelfthman/internal/engine"
)

var (
	ErrNotNumeric   = errors.New("not a number")
	ErrTooMany      = errors.New("too many players")
	ErrTeamTooLarge = errors.New("too many players per team")
	ErrUnknownView  = errors.New("unknown view")
)

type View string

const (
	ViewHome       View = "home"
	ViewToss       View = "toss"
	ViewOrderSetup View = "order-setup"
	ViewSquadSetup View = "squad-setup"
	ViewCards      View = "cards"
)

// ParseView accepts the views a user can navigate to directly. The cards view
// is only reachable by beginning a batch.
func ParseView(s string) (View, error) {
	switch v := View(s); v {
	case ViewHome, ViewToss, ViewOrderSetup, ViewSquadSetup:
		return v, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownView, s)
}

// Limits bounds what the shell lets a user ask for.
type Limits struct {
	MaxPlayers  int `json:"max_players"`
	MaxPerGroup int `json:"max_per_team"`
}

func DefaultLimits() Limits {
	return Limits{MaxPlayers: 99, MaxPerGroup: 11}
}

// State is immutable by convention: every transition returns a new value.
type State struct {
	View       View
	Batch      engine.Batch
	Outcome    engine.Outcome
	Flipping   bool
	Generation uint64
	NextID     int
	Limits     Limits
}

func New(limits Limits) State {
	return State{View: ViewHome, Limits: limits}
}

func (s State) bump() State {
	s.Generation++
	return s
}

// Open navigates to v, discarding any batch or toss result and invalidating
// pending deferred effects.
func (s State) Open(v View) State {
	s = s.bump()
	s.View = v
	s.Batch = engine.Batch{}
	s.Outcome = ""
	s.Flipping = false
	return s
}

func parseCount(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotNumeric, raw)
	}
	return n, nil
}

func (s State) checkPlayers(count int) error {
	if count < 1 {
		return fmt.Errorf("%w: %d", engine.ErrInvalidCount, count)
	}
	if s.Limits.MaxPlayers > 0 && count > s.Limits.MaxPlayers {
		return fmt.Errorf("%w: %d (max %d)", ErrTooMany, count, s.Limits.MaxPlayers)
	}
	return nil
}

func (s State) begin(b engine.Batch) State {
	s = s.bump()
	s.View = ViewCards
	s.Batch = b
	s.Outcome = ""
	s.Flipping = false
	s.NextID += len(b.Slots)
	return s
}

// BeginOrder parses rawCount and deals a batting order. On error the
// returned state is s, unchanged.
func (s State) BeginOrder(src engine.Source, rawCount string) (State, error) {
	count, err := parseCount(rawCount)
	if err != nil {
		return s, err
	}
	if err := s.checkPlayers(count); err != nil {
		return s, err
	}

	b, err := engine.BuildOrderBatch(src, s.NextID, count)
	if err != nil {
		return s, err
	}
	return s.begin(b), nil
}

// BeginSquad parses rawCount and rawPerGroup and deals team tags. On error
// the returned state is s, unchanged.
func (s State) BeginSquad(src engine.Source, rawCount, rawPerGroup string) (State, error) {
	count, err := parseCount(rawCount)
	if err != nil {
		return s, err
	}
	if err := s.checkPlayers(count); err != nil {
		return s, err
	}

	per, err := parseCount(rawPerGroup)
	if err != nil {
		return s, err
	}
	if per < engine.MinGroupSize {
		return s, fmt.Errorf("%w: %d", engine.ErrInvalidGroupSize, per)
	}
	if s.Limits.MaxPerGroup > 0 && per > s.Limits.MaxPerGroup {
		return s, fmt.Errorf("%w: %d (max %d)", ErrTeamTooLarge, per, s.Limits.MaxPerGroup)
	}

	b, err := engine.BuildSquadBatch(src, s.NextID, count, per)
	if err != nil {
		return s, err
	}
	return s.begin(b), nil
}

// Reveal flips one card. The terminal auto-reveal is left to Settle so the
// caller can delay it; settle reports whether one is now due.
func (s State) Reveal(id int) (next State, settle bool) {
	if s.View != ViewCards {
		return s, false
	}
	s.Batch = engine.Mark(s.Batch, id)
	return s, s.Batch.Hidden() == 1
}

// Settle applies the terminal auto-reveal scheduled at generation gen. It is
// ignored once the batch it was scheduled for has been replaced.
func (s State) Settle(gen uint64) (State, bool) {
	if gen != s.Generation || s.View != ViewCards || s.Batch.Hidden() != 1 {
		return s, false
	}
	s.Batch = engine.Settle(s.Batch)
	return s, true
}

func (s State) RevealAll() State {
	if s.View != ViewCards {
		return s
	}
	s.Batch = engine.RevealAll(s.Batch)
	return s
}

// StartToss puts the coin in the air. A toss already in progress is left
// alone.
func (s State) StartToss() (State, bool) {
	if s.View != ViewToss || s.Flipping {
		return s, false
	}
	s = s.bump()
	s.Outcome = ""
	s.Flipping = true
	return s, true
}

// LandToss records the outcome of the toss started at generation gen.
func (s State) LandToss(gen uint64, o engine.Outcome) (State, bool) {
	if gen != s.Generation || !s.Flipping {
		return s, false
	}
	s.Outcome = o
	s.Flipping = false
	return s, true
}
