package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/webfont-splitter/internal/config"
	"github.com/jonathan/webfont-splitter/internal/encoder"
)

func TestNewRunOptions_QualityZero(t *testing.T) {
	cfg := config.Defaults()
	cfg.Quality = config.Int(0)

	opts, err := NewRunOptions(cfg, nil)
	require.NoError(t, err)
	w, ok := opts.Compressor.(encoder.WOFF2)
	require.True(t, ok)
	assert.Equal(t, 0, w.Quality)
	assert.Equal(t, "native|woff2:q0:w22", opts.EngineKey)

	cfg.Quality = nil
	opts, err = NewRunOptions(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "native|woff2:q11:w22", opts.EngineKey)
}

func TestNewRunOptions_FamilyFilters(t *testing.T) {
	cfg := config.Defaults()
	cfg.IncludeFamilies = []string{"Go"}
	cfg.ExcludeFamilies = []string{"Go Mono"}
	cfg.CSSAppend = true

	opts, err := NewRunOptions(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Go"}, opts.IncludeFamilies)
	assert.Equal(t, []string{"Go Mono"}, opts.ExcludeFamilies)
	assert.True(t, opts.CSSAppend)
}
