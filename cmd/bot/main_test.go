package main

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/lanxat/internal/config"
)

func TestRootCmd_Flags(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{
		config.KeyTelegramToken, config.KeyDSN, config.KeyEngine, config.KeyDebounceWindow,
		config.KeyGRPCAddr, config.KeyMetricsAddr, config.KeyInviteKey,
	} {
		require.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
	require.NotNil(t, cmd.Flags().Lookup("config"))
}

func TestRootCmd_RequiresBotSettings(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--engine", "libretranslate"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing telegram token")
	require.Contains(t, err.Error(), "missing database DSN")
}

func TestRootCmd_RejectsBadEngine(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--engine", "babelfish", "--telegram-token", "t", "--dsn", "d", "--secret", "s"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	require.Error(t, cmd.Execute())
}
