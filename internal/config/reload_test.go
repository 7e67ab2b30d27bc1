// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gateYAML(dir string, threshold string) string {
	return "dataDir: " + dir + "\nstore:\n  backend: memory\ngate:\n  threshold: " + threshold + "\n"
}

func newTestHolder(t *testing.T, threshold string) (*Holder, string) {
	t.Helper()
	dir := t.TempDir()
	path := writeFile(t, dir, "cinegate.yaml", gateYAML(dir, threshold))
	loader := NewLoader(path, "test")
	cfg, err := loader.Load()
	require.NoError(t, err)
	return NewHolder(cfg, loader), path
}

func TestHolderReloadAppliesAndNotifies(t *testing.T) {
	h, path := newTestHolder(t, "3")
	require.Equal(t, 3, h.Get().Gate.Threshold)

	ch := make(chan AppConfig, 1)
	h.RegisterListener(ch)

	require.NoError(t, os.WriteFile(path, []byte(gateYAML(h.Get().DataDir, "1")), 0o600))
	require.NoError(t, h.Reload(context.Background()))

	assert.Equal(t, 1, h.Get().Gate.Threshold)
	select {
	case got := <-ch:
		assert.Equal(t, 1, got.GatePolicy().Threshold)
	default:
		t.Fatal("listener was not notified")
	}
}

func TestHolderReloadKeepsOldConfigOnError(t *testing.T) {
	h, path := newTestHolder(t, "3")

	require.NoError(t, os.WriteFile(path, []byte(gateYAML(h.Get().DataDir, "-4")), 0o600))
	require.Error(t, h.Reload(context.Background()))
	assert.Equal(t, 3, h.Get().Gate.Threshold)
}

func TestHolderListenerNeverBlocks(t *testing.T) {
	h, _ := newTestHolder(t, "3")
	full := make(chan AppConfig)
	h.RegisterListener(full)

	done := make(chan struct{})
	go func() {
		_ = h.Reload(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Reload blocked on a full listener")
	}
}

func TestHolderWatcherReloadsOnWrite(t *testing.T) {
	h, path := newTestHolder(t, "3")
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		h.Wait()
	}()

	require.NoError(t, h.StartWatcher(ctx))
	require.NoError(t, os.WriteFile(path, []byte(gateYAML(h.Get().DataDir, "2")), 0o600))

	require.Eventually(t, func() bool {
		return h.Get().Gate.Threshold == 2
	}, 5*time.Second, 50*time.Millisecond)
}

func TestHolderWatcherDisabledWithoutFile(t *testing.T) {
	t.Setenv("CINEGATE_DATA_DIR", t.TempDir())
	loader := NewLoader("", "")
	cfg, err := loader.Load()
	require.NoError(t, err)

	h := NewHolder(cfg, loader)
	require.NoError(t, h.StartWatcher(context.Background()))
	h.Wait()
}
