package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/negproof/negproof/internal/negative"
)

func TestRootCommand(t *testing.T) {
	assert.NotNil(t, rootCmd)
	assert.Equal(t, "negproof", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCommandHelp(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)

	rootCmd.SetArgs([]string{"--help"})
	err := rootCmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "Available Commands:")
	assert.Contains(t, output, "Usage:")
}

func TestRootCommandSubcommands(t *testing.T) {
	subcommands := rootCmd.Commands()
	commandNames := make([]string, len(subcommands))
	for i, subcmd := range subcommands {
		commandNames[i] = subcmd.Name()
	}

	expectedCommands := []string{"render", "export", "analyze", "serve", "version"}
	for _, expected := range expectedCommands {
		assert.Contains(t, commandNames, expected, "Expected subcommand '%s' not found", expected)
	}
}

func TestRootCommandInvalidFlag(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)

	rootCmd.SetArgs([]string{"--invalid-flag"})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, buf.String(), "unknown flag")
}

func TestRootCommandConfiguration(t *testing.T) {
	assert.True(t, rootCmd.HasSubCommands())
	require.NotNil(t, rootCmd.PersistentFlags())
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("verbose"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("no-gpu"))
}

func TestApplyOverrides(t *testing.T) {
	ws := negative.DefaultWorkspaceConfig()

	out, err := applyOverrides(ws, map[string]string{
		"density":    "0.3",
		"saturation": "1.25",
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.3, out.Exposure.Density, 1e-9)
	assert.InDelta(t, 1.25, out.Lab.Saturation, 1e-9)

	_, err = applyOverrides(ws, map[string]string{"not_a_setting": "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown setting")
}
