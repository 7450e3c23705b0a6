/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"cert without key", func(c *Config) { c.tlsCert = "cert.pem" }, false},
		{"cert and key", func(c *Config) { c.tlsCert, c.tlsKey = "cert.pem", "key.pem" }, true},
		{"port zero", func(c *Config) { c.port = 0 }, false},
		{"port too high", func(c *Config) { c.port = 70000 }, false},
		{"no players", func(c *Config) { c.maxPlayers = 0 }, false},
		{"teams of one", func(c *Config) { c.maxPerTeam = 1 }, false},
		{"negative delay", func(c *Config) { c.tossDelay = -time.Second }, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(cfg)

			if tc.ok {
				assert.NoError(t, cfg.validate())
			} else {
				assert.Error(t, cfg.validate())
			}
		})
	}
}

func TestConfigScheme(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, "http", cfg.scheme())

	cfg.tlsCert, cfg.tlsKey = "cert.pem", "key.pem"
	assert.Equal(t, "https", cfg.scheme())
}

func TestFlagDefaults(t *testing.T) {
	cfg := &Config{}
	cmd := newCmd(cfg)
	require.NoError(t, cmd.ParseFlags(nil))

	assert.Equal(t, 8080, cfg.port)
	assert.Equal(t, 99, cfg.maxPlayers)
	assert.Equal(t, 11, cfg.maxPerTeam)
	assert.Equal(t, 600*time.Millisecond, cfg.revealDelay)
	assert.Equal(t, 3*time.Second, cfg.tossDelay)
	assert.NoError(t, cfg.validate())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TWELFTHMAN_PORT", "9090")
	t.Setenv("TWELFTHMAN_REVEAL_DELAY", "1s")
	t.Setenv("TWELFTHMAN_MAX_PLAYERS", "30")

	cfg := &Config{}
	cmd := newCmd(cfg)
	require.NoError(t, cmd.ParseFlags(nil))

	assert.Equal(t, 9090, cfg.port)
	assert.Equal(t, time.Second, cfg.revealDelay)
	assert.Equal(t, 30, cfg.maxPlayers)
}

func TestFlagsBeatEnv(t *testing.T) {
	t.Setenv("TWELFTHMAN_PORT", "9090")

	cfg := &Config{}
	cmd := newCmd(cfg)
	require.NoError(t, cmd.ParseFlags([]string{"--port", "7070", "--toss_delay", "500ms"}))

	assert.Equal(t, 7070, cfg.port)
	assert.Equal(t, 500*time.Millisecond, cfg.tossDelay)
}

func TestLimits(t *testing.T) {
	cfg := testConfig()
	cfg.maxPlayers, cfg.maxPerTeam = 22, 6

	l := cfg.limits()
	assert.Equal(t, 22, l.MaxPlayers)
	assert.Equal(t, 6, l.MaxPerGroup)
}
