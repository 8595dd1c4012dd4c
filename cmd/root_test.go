package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"report", "claim", "list", "pools", "ingest", "export", "status", "serve"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "milestone-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
}

func TestReportCommand_Flags(t *testing.T) {
	for _, name := range []string{"subject", "category", "total", "recipient"} {
		require.NotNil(t, reportCmd.Flags().Lookup(name), "report command should have --%s flag", name)
	}
	assert.Equal(t, "individual", reportCmd.Flags().Lookup("category").DefValue)
}

func TestClaimCommand_Flags(t *testing.T) {
	require.NotNil(t, claimCmd.Flags().Lookup("recipient"))
	require.NotNil(t, claimCmd.Flags().Lookup("retry-failed"))
}

func TestPoolsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range poolsCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"create", "list", "show", "deposit", "withdraw", "yield"} {
		assert.True(t, names[name], "expected pools subcommand %q not found", name)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestExportCommand_Flags(t *testing.T) {
	flag := exportCmd.Flags().Lookup("out")
	require.NotNil(t, flag)
	assert.Equal(t, "achievements.xlsx", flag.DefValue)
}
