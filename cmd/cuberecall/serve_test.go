// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeCommand_Flags(t *testing.T) {
	cmd := NewServeCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	expectedFlags := []string{
		"--listen-addr",
		"--metrics-addr",
		"--database-url",
		"--secret-key",
		"--mod-api-key",
		"--admin-token",
		"--max-accounts-per-machine",
		"--session-ttl",
		"--launch-token-ttl",
		"--log-format",
		"--skip-migrations",
	}

	for _, flag := range expectedFlags {
		assert.Contains(t, output, flag, "Help missing %q flag", flag)
	}
}

func TestServeCommand_DefaultValues(t *testing.T) {
	cmd := NewServeCmd()

	listenAddr, err := cmd.Flags().GetString("listen-addr")
	require.NoError(t, err)
	assert.Equal(t, ":8000", listenAddr)

	metricsAddr, err := cmd.Flags().GetString("metrics-addr")
	require.NoError(t, err)
	assert.Equal(t, ":9090", metricsAddr)

	maxAccounts, err := cmd.Flags().GetInt("max-accounts-per-machine")
	require.NoError(t, err)
	assert.Equal(t, 2, maxAccounts)

	sessionTTL, err := cmd.Flags().GetDuration("session-ttl")
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, sessionTTL)

	launchTTL, err := cmd.Flags().GetDuration("launch-token-ttl")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, launchTTL)

	logFormat, err := cmd.Flags().GetString("log-format")
	require.NoError(t, err)
	assert.Equal(t, "json", logFormat)
}

func TestServeCommand_RejectsInvalidConfig(t *testing.T) {
	// No secret key anywhere means Load fails validation before any
	// network or database work happens.
	configFile = ""
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cmd := NewServeCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secret_key")
}

func TestServeCommand_Properties(t *testing.T) {
	cmd := NewServeCmd()

	assert.Equal(t, "serve", cmd.Use)
	assert.Contains(t, cmd.Short, "credential server")
	assert.Contains(t, cmd.Long, "mod", "Long description should mention the game server mod")
}
