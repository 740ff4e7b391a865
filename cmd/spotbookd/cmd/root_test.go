package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRootCmdHasServeSubcommand(t *testing.T) {
	root := NewRootCmd()
	require.Equal(t, "spotbookd", root.Use)

	found := false
	for _, c := range root.Commands() {
		if c.Use == "serve" {
			found = true
		}
	}
	require.True(t, found)
}

func TestPortAddrFormatsWithColon(t *testing.T) {
	require.Equal(t, ":9090", portAddr(9090))
}

func TestLogLevelFallsBackToInfoOnInvalid(t *testing.T) {
	require.Equal(t, "info", logLevel("not-a-level").String())
}
