/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package engine

type Outcome string

const (
	Heads Outcome = "HEADS"
	Tails Outcome = "TAILS"
)

// Short returns the single letter shown on the coin face.
func (o Outcome) Short() string {
	switch o {
	case Heads:
		return "H"
	case Tails:
		return "T"
	default:
		return ""
	}
}

// Flip tosses a fair coin.
func Flip(src Source) Outcome {
	if src.IntN(2) == 0 {
		return Heads
	}
	return Tails
}
