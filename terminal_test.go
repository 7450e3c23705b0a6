/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/twelfthman/internal/engine"
	"github.com/Seednode/twelfthman/internal/match"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd := newCmd(&Config{})
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestTossCommand(t *testing.T) {
	out, err := run(t, "toss")
	require.NoError(t, err)

	assert.Regexp(t, `HEADS|TAILS`, out)
}

func TestOrderCommand(t *testing.T) {
	out, err := run(t, "order", "7")
	require.NoError(t, err)

	assert.Contains(t, out, "BATTING ORDER")
	for i := 1; i <= 7; i++ {
		assert.Contains(t, out, strconv.Itoa(i))
	}
	assert.NotContains(t, out, "?")
}

func TestOrderCommandRejectsInput(t *testing.T) {
	_, err := run(t, "order", "none")
	assert.ErrorIs(t, err, match.ErrNotNumeric)

	_, err = run(t, "order", "0")
	assert.ErrorIs(t, err, engine.ErrInvalidCount)
}

func TestSquadsCommand(t *testing.T) {
	out, err := run(t, "squads", "9", "--per-team", "3")
	require.NoError(t, err)

	assert.Contains(t, out, "3 PER TEAM")
	for _, tag := range []string{"A", "B", "C"} {
		assert.Contains(t, out, tag)
	}
}

func TestSquadsCommandEnv(t *testing.T) {
	t.Setenv("TWELFTHMAN_PER_TEAM", "4")

	out, err := run(t, "squads", "8")
	require.NoError(t, err)
	assert.Contains(t, out, "4 PER TEAM")
}

func TestSquadsCommandRejectsTeamSize(t *testing.T) {
	_, err := run(t, "squads", "9", "--per-team", "1")
	assert.ErrorIs(t, err, engine.ErrInvalidGroupSize)
}

func TestRenderBatchHidesLabels(t *testing.T) {
	b, err := engine.BuildOrderBatch(engine.NewSeededSource(1), 0, 8)
	require.NoError(t, err)

	out := renderBatch("HIDDEN", b)
	assert.Contains(t, out, "?")
	assert.NotContains(t, out, "8")
}

func TestOrderCommandHonoursLimits(t *testing.T) {
	_, err := run(t, "order", "120")
	assert.ErrorIs(t, err, match.ErrTooMany)

	t.Setenv("TWELFTHMAN_MAX_PLAYERS", "200")

	out, err := run(t, "order", "120")
	require.NoError(t, err)
	assert.Contains(t, out, "120")
}

func TestSquadsCommandHonoursLimitFlag(t *testing.T) {
	_, err := run(t, "squads", "30", "--per-team", "15")
	assert.ErrorIs(t, err, match.ErrTeamTooLarge)

	out, err := run(t, "squads", "30", "--per-team", "15", "--max-per-team", "15")
	require.NoError(t, err)
	assert.Contains(t, out, "15 PER TEAM")
}

func TestTerminalRejectsBadLimits(t *testing.T) {
	_, err := run(t, "order", "5", "--max-players", "0")
	assert.Error(t, err)
}
