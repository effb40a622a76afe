package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moyoez/syncclipboard-go/tool"
	"github.com/moyoez/syncclipboard-go/types"
)

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"run", "serve", "sync", "get", "set", "send-file", "history", "scan", "qr"} {
		assert.Contains(t, names, want)
	}

	require.NoError(t, root.ParseFlags([]string{"--port", "6000", "--name", "desk"}))
	assert.Equal(t, 6000, overrides.Port)
	assert.Equal(t, "desk", overrides.DeviceName)
	overrides = tool.Overrides{}
}

func TestBuildSelfDevice(t *testing.T) {
	cfg := tool.DefaultConfig()
	cfg.General.DeviceName = "desk"

	scanner := buildSelfDevice(cfg, 0)
	assert.False(t, scanner.Listening())
	assert.Equal(t, cfg.General.DeviceID, scanner.ID)
	assert.Equal(t, types.DefaultCapabilities, scanner.Capabilities)

	server := buildSelfDevice(cfg, 5033)
	assert.True(t, server.Listening())
	assert.Equal(t, uint16(5033), server.Port)
	assert.NotZero(t, server.InstanceID)
}
