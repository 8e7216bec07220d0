package main

import (
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ModelArena/pkg/config"
)

func parseArgs(t *testing.T, args ...string) CommandLine {
	t.Helper()
	var cli CommandLine
	parser, err := kong.New(&cli)
	require.NoError(t, err)
	_, err = parser.Parse(args)
	require.NoError(t, err)
	return cli
}

func TestCommandLineDefaults(t *testing.T) {
	cli := parseArgs(t)
	assert.Equal(t, "config/config.yaml", cli.Config)
	assert.False(t, cli.Check)
}

func TestCommandLineOverrides(t *testing.T) {
	cfg, err := config.Parse([]byte("environment: test\n"))
	require.NoError(t, err)

	cli := parseArgs(t, "-c", "other.yaml", "--backend", "memory", "-p", "8080", "-l", "debug")
	require.NoError(t, cli.apply(cfg))
	assert.Equal(t, "other.yaml", cli.Config)
	assert.Equal(t, "memory", cfg.Persistence.Backend)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestCommandLineRejectsUnknownBackend(t *testing.T) {
	cfg, err := config.Parse([]byte("environment: test\n"))
	require.NoError(t, err)

	cli := parseArgs(t, "--backend", "mongo")
	assert.Error(t, cli.apply(cfg))
}
