// SPDX-License-Identifier: MIT
package validate

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatorAccumulates(t *testing.T) {
	v := New()
	v.NotEmpty("title", "  ")
	v.Range("threshold", 42, 0, 20)
	v.OneOf("backend", "mongo", []string{"memory", "sqlite", "badger"})
	v.MinDuration("tick", 0, time.Millisecond)
	v.MinLength("password", "abc", 8)

	require.False(t, v.IsValid())
	err := v.Err()
	require.Error(t, err)

	var ve ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{"title", "threshold", "backend", "tick", "password"}, ve.Fields())
	assert.Contains(t, err.Error(), "validation failed for title")
	assert.Contains(t, err.Error(), "; ")
}

func TestValidatorValidInput(t *testing.T) {
	v := New()
	v.NotEmpty("title", "Inception")
	v.Positive("threshold", 3)
	v.OneOf("mode", "per_ad", []string{"per_ad", "threshold"})
	v.URL("assist", "https://wa.me/+250788484589", []string{"https"})
	v.ListenAddr("listen", ":8080")

	assert.True(t, v.IsValid())
	assert.NoError(t, v.Err())
}

func TestValidatorURL(t *testing.T) {
	cases := map[string]string{
		"empty":   "",
		"no host": "https:///path",
		"scheme":  "ftp://example.com/file",
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			v := New()
			v.URL("url", value, []string{"http", "https"})
			assert.False(t, v.IsValid())
		})
	}
}

func TestValidatorListenAddr(t *testing.T) {
	v := New()
	v.ListenAddr("listen", "localhost")
	v.ListenAddr("listen", "127.0.0.1:")
	assert.Len(t, v.Errors(), 2)
}

func TestValidatorDirectoryCreates(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data", "nested")

	v := New()
	v.Directory("dataDir", dir, false)
	require.True(t, v.IsValid(), v.Err())
	assert.DirExists(t, dir)

	v = New()
	v.Directory("dataDir", filepath.Join(t.TempDir(), "missing"), true)
	assert.False(t, v.IsValid())

	v = New()
	v.Directory("dataDir", "../escape", false)
	assert.False(t, v.IsValid())
}

func TestValidatorCustom(t *testing.T) {
	v := New()
	v.Custom("secret", "short", func(value any) error {
		if len(value.(string)) < 16 {
			return errors.New("too short")
		}
		return nil
	})
	require.Len(t, v.Errors(), 1)
	assert.Equal(t, "too short", v.Errors()[0].Message)
}
