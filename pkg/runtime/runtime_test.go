package runtime

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pennon-io/pennon/pkg/logger"
	"github.com/pennon-io/pennon/pkg/model"
)

const runtimeConfig = `{
  "flags": {
    "welcomeBanner": {
      "state": "ENABLED",
      "variants": { "on": true, "off": false },
      "defaultVariant": "on"
    }
  }
}`

func TestFromConfig_EvaluatesFromWatchedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flags.json")
	require.NoError(t, os.WriteFile(path, []byte(runtimeConfig), 0o600))

	rt, err := FromConfig(logger.NewLogger(nil), Config{URI: path})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Start(ctx) }()

	require.Eventually(t, func() bool {
		result := rt.Resolver.ResolveBooleanValue(context.Background(), "welcomeBanner", nil)
		return result.Reason == model.StaticReason && result.Value == true
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runtime did not stop on context cancellation")
	}
}

func TestFromConfig_StrictValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flags.json")
	badConfig := `{"flags": {"odd": {"state": "SOMETIMES", "variants": {"on": true}}}}`
	require.NoError(t, os.WriteFile(path, []byte(badConfig), 0o600))

	rt, err := FromConfig(logger.NewLogger(nil), Config{URI: path, StrictValidation: true})
	require.NoError(t, err)

	err = rt.Start(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema validation")
}

func TestStart_WithoutSyncSources(t *testing.T) {
	rt, err := FromConfig(logger.NewLogger(nil), Config{})
	require.NoError(t, err)

	err = rt.Start(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no sync sources")
}
