/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Seednode/twelfthman/internal/engine"
	"github.com/Seednode/twelfthman/internal/match"
)

const cardsPerRow = 6

var (
	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Bold(true).
			Width(5).
			Align(lipgloss.Center)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Bold(true).
			MarginBottom(1)

	coinStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			Padding(0, 2).
			Bold(true)
)

// renderBatch lays the cards out in rows, in dealt order.
func renderBatch(title string, b engine.Batch) string {
	var rows []string

	for start := 0; start < len(b.Slots); start += cardsPerRow {
		end := min(start+cardsPerRow, len(b.Slots))

		cards := make([]string, 0, end-start)
		for _, s := range b.Slots[start:end] {
			label := "?"
			if s.Revealed {
				label = s.Label
			}
			cards = append(cards, cardStyle.Render(label))
		}

		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	}

	return lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), strings.Join(rows, "\n"))
}

// dealTerminal runs one begin action against a fresh state and prints the
// whole batch face up, since there is nobody to tap the cards.
func dealTerminal(cfg *Config, w io.Writer, title string, begin func(match.State) (match.State, error)) error {
	if err := cfg.validateLimits(); err != nil {
		return err
	}

	s, err := begin(match.New(cfg.limits()))
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, renderBatch(title, s.RevealAll().Batch))
	return err
}

func newTossCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toss",
		Short: "Flip a coin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o := engine.Flip(engine.NewSource())
			_, err := fmt.Fprintln(cmd.OutOrStdout(), coinStyle.Render(o.Short()+"  "+string(o)))
			return err
		},
	}
}

func newOrderCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "order PLAYERS",
		Short: "Deal a random batting order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dealTerminal(cfg, cmd.OutOrStdout(), "BATTING ORDER", func(s match.State) (match.State, error) {
				return s.BeginOrder(engine.NewSource(), args[0])
			})
		},
	}
}

func newSquadsCmd(cfg *Config, v *viper.Viper) *cobra.Command {
	var perTeam int

	cmd := &cobra.Command{
		Use:   "squads PLAYERS",
		Short: "Deal players into random teams",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := fmt.Sprintf("TEAM MATCHING (%d PER TEAM)", perTeam)
			return dealTerminal(cfg, cmd.OutOrStdout(), title, func(s match.State) (match.State, error) {
				return s.BeginSquad(engine.NewSource(), args[0], strconv.Itoa(perTeam))
			})
		},
	}

	cmd.Flags().IntVarP(&perTeam, "per-team", "t", 2, "players per team (env: TWELFTHMAN_PER_TEAM)")

	bindEnv(v, cmd.Flags())

	return cmd
}
