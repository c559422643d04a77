package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/webfont-splitter/internal/compress"
	"github.com/jonathan/webfont-splitter/internal/config"
)

func TestModeValue(t *testing.T) {
	m := modeValue(config.ModeBasic)
	assert.Equal(t, "basic", m.String())
	assert.Equal(t, "mode", m.Type())

	require.NoError(t, m.Set(" Static "))
	assert.Equal(t, config.ModeStatic, m.String())

	err := m.Set("dynamic")
	require.Error(t, err)
	assert.Equal(t, config.ModeStatic, m.String(), "a rejected value leaves the flag unchanged")
}

func TestCompressionValue(t *testing.T) {
	c := compressionValue(compress.Zstd)
	assert.Equal(t, "zstd", c.String())

	require.NoError(t, c.Set("LZ4"))
	assert.Equal(t, compress.LZ4, compress.Tag(c))

	require.NoError(t, c.Set("none"))
	assert.Equal(t, compress.None, compress.Tag(c))

	assert.Error(t, c.Set("gzip"))
}
