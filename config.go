/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Seednode/twelfthman/internal/engine"
	"github.com/Seednode/twelfthman/internal/match"
)

type Config struct {
	bind           string
	maxPerTeam     int
	maxPlayers     int
	port           int
	prefix         string
	profile        bool
	revealDelay    time.Duration
	sessionTimeout time.Duration
	tlsCert        string
	tlsKey         string
	tossDelay      time.Duration
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if err := c.validateLimits(); err != nil {
		return err
	}
	if c.revealDelay < 0 || c.tossDelay < 0 {
		return errors.New("--reveal-delay and --toss-delay must not be negative")
	}
	return nil
}

// validateLimits checks only what the terminal subcommands use.
func (c *Config) validateLimits() error {
	if c.maxPlayers < 1 {
		return fmt.Errorf("invalid max players (must be at least 1): %d", c.maxPlayers)
	}
	if c.maxPerTeam < engine.MinGroupSize {
		return fmt.Errorf("invalid max players per team (must be at least %d): %d", engine.MinGroupSize, c.maxPerTeam)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func (c *Config) limits() match.Limits {
	return match.Limits{
		MaxPlayers:  c.maxPlayers,
		MaxPerGroup: c.maxPerTeam,
	}
}

// bindEnv lets every flag in fs be set from TWELFTHMAN_<FLAG>, unless it was
// given on the command line.
func bindEnv(v *viper.Viper, fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("TWELFTHMAN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "twelfthman",
		Short:         "Match-day cricket toolkit: coin toss, batting order and squad picker.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	normalize := func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(normalize)

	// limits apply to the terminal subcommands as well as the server
	pfs := cmd.PersistentFlags()
	pfs.SetNormalizeFunc(normalize)

	limits := match.DefaultLimits()

	pfs.IntVar(&cfg.maxPerTeam, "max-per-team", limits.MaxPerGroup, "largest squad size offered (env: TWELFTHMAN_MAX_PER_TEAM)")
	pfs.IntVar(&cfg.maxPlayers, "max-players", limits.MaxPlayers, "largest player count accepted (env: TWELFTHMAN_MAX_PLAYERS)")

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: TWELFTHMAN_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: TWELFTHMAN_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: TWELFTHMAN_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: TWELFTHMAN_PROFILE)")
	fs.DurationVar(&cfg.revealDelay, "reveal-delay", 600*time.Millisecond, "pause before the last card turns itself over (env: TWELFTHMAN_REVEAL_DELAY)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle sessions are ended (env: TWELFTHMAN_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: TWELFTHMAN_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: TWELFTHMAN_TLS_KEY)")
	fs.DurationVar(&cfg.tossDelay, "toss-delay", 3*time.Second, "how long the coin spins before landing (env: TWELFTHMAN_TOSS_DELAY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: TWELFTHMAN_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: TWELFTHMAN_VERSION)")

	bindEnv(v, pfs)
	bindEnv(v, fs)

	cmd.AddCommand(newTossCmd(), newOrderCmd(cfg), newSquadsCmd(cfg, v))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("twelfthman v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
