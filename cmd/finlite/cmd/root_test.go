package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Help(t *testing.T) {
	cmd := NewRootCmd()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "finlite")
	assert.Contains(t, out.String(), "serve")
	assert.Contains(t, out.String(), "index")
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	cmd := NewRootCmd()

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["index"])
	assert.True(t, names["version"])
}

func TestIndexCmd_RequiresArg(t *testing.T) {
	cmd := NewRootCmd()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"index"})

	assert.Error(t, cmd.Execute())
}
