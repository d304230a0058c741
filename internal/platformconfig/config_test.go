package platformconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesDocumentedValues(t *testing.T) {
	c := Default()
	assert.Equal(t, 0.85, c.AutoThreshold)
	assert.Equal(t, 0.50, c.PromptThreshold)
	assert.Equal(t, 1000, c.BatchSize)
	assert.Equal(t, 18, c.MonthsToSync)
	assert.Equal(t, 3, c.BatchWindowMonths)
	assert.Equal(t, 3, c.MaxJobAttempts)
}

func TestLoadFromEnvOverridesDefaults(t *testing.T) {
	t.Setenv("AUTO_THRESHOLD", "0.9")
	t.Setenv("BATCH_SIZE", "50")

	c := Default()
	require.NoError(t, c.LoadFromEnv())
	assert.Equal(t, 0.9, c.AutoThreshold)
	assert.Equal(t, 50, c.BatchSize)
}

func TestLoadFromEnvRejectsNonNumericValue(t *testing.T) {
	t.Setenv("AUTO_THRESHOLD", "not-a-number")
	c := Default()
	assert.Error(t, c.LoadFromEnv())
}

func TestLoadFromFileAppliesJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"auto_threshold": 0.95, "batch_size": 200}`), 0o600))

	c := Default()
	require.NoError(t, c.LoadFromFile(path))
	assert.Equal(t, 0.95, c.AutoThreshold)
	assert.Equal(t, 200, c.BatchSize)
}

func TestLoadFromFileAppliesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("auto_threshold: 0.92\nmonths_to_sync: 12\n"), 0o600))

	c := Default()
	require.NoError(t, c.LoadFromFile(path))
	assert.Equal(t, 0.92, c.AutoThreshold)
	assert.Equal(t, 12, c.MonthsToSync)
}

func TestLoadFromFileRejectsUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("auto_threshold = 0.9"), 0o600))

	c := Default()
	assert.Error(t, c.LoadFromFile(path))
}

func TestValidateRejectsPromptThresholdAboveAuto(t *testing.T) {
	c := Default()
	c.PromptThreshold = c.AutoThreshold + 0.1
	assert.Error(t, c.Validate())
}

func TestValidateRejectsNonPositiveBatchSize(t *testing.T) {
	c := Default()
	c.BatchSize = 0
	assert.Error(t, c.Validate())
}

func TestNewAppliesOptionsAfterEnvAndFile(t *testing.T) {
	c, err := New(WithAutoThreshold(0.99), WithBatchSize(42))
	require.NoError(t, err)
	assert.Equal(t, 0.99, c.AutoThreshold)
	assert.Equal(t, 42, c.BatchSize)
}

func TestNewLoadsConfigFileFromEnvVar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"batch_size": 777}`), 0o600))
	t.Setenv("CLAIMS_CONFIG_FILE", path)

	c, err := New()
	require.NoError(t, err)
	assert.Equal(t, 777, c.BatchSize)
}
