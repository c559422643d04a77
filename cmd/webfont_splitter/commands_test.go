package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/jonathan/webfont-splitter/internal/encoder"
	"github.com/jonathan/webfont-splitter/internal/refdata"
	"github.com/jonathan/webfont-splitter/internal/types"
)

func TestInspectCommand(t *testing.T) {
	_, font, _ := writeFixtures(t)

	stdout, _, err := execute(t, "inspect", font)
	require.NoError(t, err)
	assert.Contains(t, stdout, "FONT REPERTOIRE")
	assert.Contains(t, stdout, "Family:   Go")
}

func TestInspectCommand_WOFF2(t *testing.T) {
	dir := t.TempDir()
	woff2, err := encoder.Encode(context.Background(), encoder.NewWOFF2(), goregular.TTF)
	require.NoError(t, err)
	path := filepath.Join(dir, "go.woff2")
	require.NoError(t, os.WriteFile(path, woff2, 0644))

	stdout, _, err := execute(t, "inspect", "--json", path)
	require.NoError(t, err)

	var reps []types.FontRepertoire
	require.NoError(t, json.Unmarshal([]byte(stdout), &reps))
	require.Len(t, reps, 1)
	assert.Equal(t, "Go", reps[0].Family)
	assert.True(t, reps[0].Coverage.Contains('A'))
}

func TestInspectCommand_MissingFile(t *testing.T) {
	_, _, err := execute(t, "inspect", filepath.Join(t.TempDir(), "missing.ttf"))
	assert.ErrorContains(t, err, "failed to read")
}

func TestPlanCommand_JSON(t *testing.T) {
	_, font, refData := writeFixtures(t)

	stdout, _, err := execute(t, "plan", "--json", "--reference-data", refData, font)
	require.NoError(t, err)

	var plans []struct {
		Font    types.FontRepertoire `json:"font"`
		Buckets []types.SubsetBucket `json:"buckets"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &plans))
	require.Len(t, plans, 1)
	require.NotEmpty(t, plans[0].Buckets)
	assert.Equal(t, "ascii", plans[0].Buckets[0].Name)
	assert.Equal(t, "latin1", plans[0].Buckets[1].Name)
}

func TestPlanCommand_InvalidPreload(t *testing.T) {
	_, font, refData := writeFixtures(t)

	_, _, err := execute(t, "plan", "--reference-data", refData, "--preload", "U+ZZ", font)
	assert.ErrorContains(t, err, "invalid --preload")
}

func TestRunCommand_JSON(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	dir, font, refData := writeFixtures(t)
	storeDir := filepath.Join(dir, "store")
	cssOut := filepath.Join(dir, "out", "fonts.css")

	stdout, _, err := execute(t, "run", "--json",
		"--reference-data", refData,
		"--store", storeDir,
		"--base-uri", "/webfonts/",
		"--css-out", cssOut,
		"--workers", "2",
		font)
	require.NoError(t, err)

	var summary types.RunSummary
	require.NoError(t, json.Unmarshal([]byte(stdout), &summary))
	assert.Equal(t, "basic", summary.Mode)
	require.Len(t, summary.Fonts, 1)
	assert.Equal(t, summary.Subsets, summary.Written)
	assert.Greater(t, summary.Subsets, 1)
	assert.Empty(t, summary.Diagnostics)

	css, err := os.ReadFile(cssOut)
	require.NoError(t, err)
	assert.Contains(t, string(css), "@font-face")
	assert.Contains(t, string(css), "/webfonts/")

	// A second run finds every subset in the store.
	stdout, _, err = execute(t, "run", "--json",
		"--reference-data", refData,
		"--store", storeDir,
		"--css-out", cssOut,
		font)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(stdout), &summary))
	assert.Equal(t, 0, summary.Written)
	assert.Equal(t, summary.Subsets, summary.CacheHits)
}

func TestRunCommand_ExcludeFamilyAndAppend(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	dir, font, refData := writeFixtures(t)
	cssOut := filepath.Join(dir, "fonts.css")
	require.NoError(t, os.WriteFile(cssOut, []byte("/* keep */\n"), 0644))

	stdout, _, err := execute(t, "run", "--json",
		"--reference-data", refData,
		"--store", filepath.Join(dir, "store"),
		"--css-out", cssOut,
		"--append",
		"--exclude-family", "go",
		font)
	require.NoError(t, err)

	var summary types.RunSummary
	require.NoError(t, json.Unmarshal([]byte(stdout), &summary))
	assert.Empty(t, summary.Fonts)
	assert.Len(t, summary.Skipped, 1)

	css, err := os.ReadFile(cssOut)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(css), "/* keep */\n"))
}

func TestRunCommand_QualityZero(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	resetFlags(rootCmd)
	require.NoError(t, runCommand.ParseFlags([]string{"--quality", "0"}))

	cfg, err := resolveConfig(runCommand, []string{"font.ttf"})
	require.NoError(t, err)
	require.NotNil(t, cfg.Quality)
	assert.Equal(t, 0, *cfg.Quality)
}

func TestRunCommand_NoFonts(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, _, err := execute(t, "run", "--store", t.TempDir())
	assert.ErrorContains(t, err, "no fonts given")
}

func TestRunCommand_InvalidMode(t *testing.T) {
	_, _, err := execute(t, "run", "--mode", "dynamic", "font.ttf")
	assert.ErrorContains(t, err, "invalid argument")
}

func TestRunCommand_FailuresNeedAllowFlag(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	dir, font, refData := writeFixtures(t)
	missing := filepath.Join(dir, "missing.ttf")

	args := []string{"run", "--json",
		"--reference-data", refData,
		"--store", filepath.Join(dir, "store"),
		"--css-out", filepath.Join(dir, "fonts.css"),
		font, missing}

	_, _, err := execute(t, args...)
	assert.ErrorContains(t, err, "1 failure(s)")

	stdout, _, err := execute(t, append(args, "--allow-failures")...)
	require.NoError(t, err)

	var summary types.RunSummary
	require.NoError(t, json.Unmarshal([]byte(stdout), &summary))
	assert.Len(t, summary.Diagnostics, 1)
}

func TestRunCommand_ConfigFile(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	dir, font, refData := writeFixtures(t)
	cfgPath := filepath.Join(dir, "splitter.yaml")
	cfg := "fonts:\n  - " + font + "\nreference_data: " + refData + "\nstore_dir: " + filepath.Join(dir, "store") + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0644))

	cssOut := filepath.Join(dir, "fonts.css")
	_, stderr, err := execute(t, "run", "--config", cfgPath, "--css-out", cssOut)
	require.NoError(t, err)
	assert.Contains(t, stderr, "[start]")
	assert.FileExists(t, cssOut)
}

func TestRefdataPackCommand(t *testing.T) {
	dir, _, refData := writeFixtures(t)
	out := filepath.Join(dir, "subsets.pkg")

	stdout, _, err := execute(t, "refdata", "pack", "--compression", "lz4", refData, out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "2 buckets")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, refdata.IsPackage(data))

	ds, err := refdata.Load(context.Background(), out, nil)
	require.NoError(t, err)
	require.Len(t, ds.Buckets, 2)
	assert.Equal(t, "ascii", ds.Buckets[0].Name)
	assert.True(t, ds.Buckets[1].Codepoints.Contains(0xE9))
}

func TestFallbackCommand_List(t *testing.T) {
	stdout, _, err := execute(t, "fallback")
	require.NoError(t, err)
	assert.Contains(t, stdout, "sources:")
}

func TestServeCommand_PublicHostNeedsToken(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SPLITTER_API_TOKEN", "")

	_, _, err := execute(t, "serve", "--host", "0.0.0.0", "--store", t.TempDir())
	assert.ErrorContains(t, err, "without an API token")
}
