package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adsbsynth/internal/app"
	"adsbsynth/internal/detection"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd(&flags{})
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

// TestShowVersion tests the --version flag
func TestShowVersion(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version: dev")
}

func TestSnapshot(t *testing.T) {
	out, err := execute(t, "snapshot", "--seed", "11", "--normal", "2", "--anomalous", "2", "-t", "30")
	require.NoError(t, err)

	var snap app.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))

	assert.Equal(t, 30.0, snap.Time)
	assert.Equal(t, int64(11), snap.Seed)
	assert.Len(t, snap.Truth, 4)
	require.Contains(t, snap.Detections, "radar1")
	assert.Len(t, snap.Detections["radar1"], 4)

	again, err := execute(t, "snapshot", "--seed", "11", "--normal", "2", "--anomalous", "2", "-t", "30")
	require.NoError(t, err)
	var snap2 app.Snapshot
	require.NoError(t, json.Unmarshal([]byte(again), &snap2))
	assert.Equal(t, snap.Truth, snap2.Truth)
}

func TestSnapshot_Errors(t *testing.T) {
	_, err := execute(t, "snapshot", "--radar", "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, detection.ErrUnknownRadar)

	_, err = execute(t, "snapshot", "--doppler-model", "magic")
	require.Error(t, err)
	assert.ErrorIs(t, err, detection.ErrInvalidConfig)

	_, err = execute(t, "snapshot", "--config", "/nonexistent/config.json")
	assert.Error(t, err)
}

func TestLoadConfig_Flags(t *testing.T) {
	t.Setenv("PORT", "6000")

	var f flags
	cmd := newRootCmd(&f)
	require.NoError(t, cmd.ParseFlags([]string{
		"--port", "7000",
		"--no-beast",
		"--log-dir", "/tmp/sbs",
		"--interval", "250",
		"--seed", "9",
		"--verify",
	}))

	cfg, err := loadConfig(cmd, &f)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.HTTP.Port, "flags win over the environment")
	assert.False(t, cfg.Beast.Enabled)
	assert.True(t, cfg.SBS.Enabled)
	assert.Equal(t, "/tmp/sbs", cfg.SBS.LogDir)
	assert.Equal(t, 250, cfg.Feed.IntervalMS)
	assert.Equal(t, int64(9), cfg.Aircraft.Seed)
	assert.True(t, cfg.Feed.Verify)
	assert.Equal(t, app.DefaultConfig().HTTP.Host, cfg.HTTP.Host, "unset flags leave config alone")
}

func TestLoadConfig_EnvironmentWithoutFlags(t *testing.T) {
	t.Setenv("PORT", "6000")

	var f flags
	cmd := newRootCmd(&f)
	require.NoError(t, cmd.ParseFlags(nil))

	cfg, err := loadConfig(cmd, &f)
	require.NoError(t, err)
	assert.Equal(t, 6000, cfg.HTTP.Port)
	assert.True(t, cfg.Beast.Enabled)
}
