package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func defaultYAML(t *testing.T) []byte {
	t.Helper()
	data, err := yaml.Marshal(Default())
	require.NoError(t, err)
	return data
}

func TestParseRoundTrip(t *testing.T) {
	cfg, err := Parse(defaultYAML(t))
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Meta, cfg.Meta)
	assert.Equal(t, def.DataProvider, cfg.DataProvider)
	assert.Equal(t, def.Weights, cfg.Weights)
	assert.Equal(t, def.EventWeights, cfg.EventWeights)
	assert.Equal(t, def.Universe.Exchanges, cfg.Universe.Exchanges)
	assert.Equal(t, def.Output, cfg.Output)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	data := append(defaultYAML(t), []byte("wieghts_extra: 5\n")...)

	_, err := Parse(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode rules")
}

func TestParseRejectsInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("weights: [not: a: mapping"))
	require.Error(t, err)
}

func TestParseValidatesAfterDecode(t *testing.T) {
	cfg := Default()
	cfg.Weights.ProfitTrend = 50 // sum 105
	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)

	_, err = Parse(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must sum to 90")
}

func TestLoadReturnsRawBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	data := defaultYAML(t)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, raw, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Weights, cfg.Weights)
	assert.Equal(t, data, raw)
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read rules file")
}

func TestShippedRulesFileLoads(t *testing.T) {
	cfg, _, err := Load("../../config/rules.yaml")
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Meta, cfg.Meta)
	assert.Equal(t, def.Weights, cfg.Weights)
	assert.Equal(t, def.Filters, cfg.Filters)
	assert.Equal(t, def.Decay, cfg.Decay)
	assert.Equal(t, def.Cache, cfg.Cache)
	assert.Equal(t, def.Schedules, cfg.Schedules)
	assert.Empty(t, Warn(cfg))
}

func TestHashDeterministic(t *testing.T) {
	h1, err := Hash(Default())
	require.NoError(t, err)
	h2, err := Hash(Default())
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestHashChangesWithConfig(t *testing.T) {
	base, err := Hash(Default())
	require.NoError(t, err)

	cfg := Default()
	cfg.Output.TopN = 10
	changed, err := Hash(cfg)
	require.NoError(t, err)

	assert.NotEqual(t, base, changed)
}

func TestSaveRefusesInvalidRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")

	cfg := Default()
	cfg.Weights.Risk = -5
	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)

	_, err = Save(path, data)
	require.Error(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "invalid rules must never land on disk")
}

func TestSaveWritesValidRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	data := defaultYAML(t)

	cfg, err := Save(path, data)
	require.NoError(t, err)
	assert.Equal(t, Default().Weights, cfg.Weights)

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, onDisk)
}
