package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_ValidJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		// JSONC comments are allowed
		"fonts": ["fonts/Brand-Regular.ttf", "fallback"],
		"store_dir": "public/webfonts",
		"base_uri": "https://cdn.example.com/webfonts/",
		"residual_chunk_size": 150,
		"strict_fonts": true,
		"verbose": true,
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, []string{"fonts/Brand-Regular.ttf", "fallback"}, cfg.Fonts)
	assert.Equal(t, "public/webfonts", cfg.StoreDir)
	assert.Equal(t, "https://cdn.example.com/webfonts/", cfg.BaseURI)
	assert.Equal(t, 150, cfg.ResidualChunkSize)
	assert.True(t, cfg.StrictFonts)
	assert.True(t, cfg.Verbose)
}

func TestLoadConfig_ValidYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
fonts:
  - Brand-Regular.ttf
mode: static
webroot: site
ignore_selectors:
  - ".no-webfont"
quality: 9
subsetter: hb-subset
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ModeStatic, cfg.Mode)
	assert.Equal(t, "site", cfg.Webroot)
	assert.Equal(t, []string{".no-webfont"}, cfg.IgnoreSelectors)
	require.NotNil(t, cfg.Quality)
	assert.Equal(t, 9, *cfg.Quality)
	assert.Equal(t, SubsetterHB, cfg.Subsetter)
}

func TestLoadConfig_QualityZeroIsKept(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "config.yaml", "quality: 0\n"))
	require.NoError(t, err)
	require.NotNil(t, cfg.Quality)
	require.NoError(t, cfg.Validate())

	merged := cfg.MergeWithDefaults(Defaults())
	assert.Equal(t, 0, *merged.Quality)

	unset := (&Config{}).MergeWithDefaults(Defaults())
	assert.Equal(t, 11, *unset.Quality)
}

func TestLoadConfig_FamilyFiltersAndAppend(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "config.json", `{
  // Only the brand families
  "include_families": ["Brand Sans", "Brand Serif"],
  "exclude_families": ["Brand Serif"],
  "css_append": true
}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"Brand Sans", "Brand Serif"}, cfg.IncludeFamilies)
	assert.Equal(t, []string{"Brand Serif"}, cfg.ExcludeFamilies)
	assert.True(t, cfg.CSSAppend)

	_, err = LoadConfig(writeConfig(t, "bad.json", `{"include_families": [""]}`))
	assert.ErrorContains(t, err, "does not match schema")
}

func TestLoadConfig_EmptyYAML(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "config.yml", ""))
	require.NoError(t, err)
	assert.Empty(t, cfg.Fonts)
}

func TestLoadConfig_SchemaViolation(t *testing.T) {
	tests := map[string]string{
		"unknown key": `{"job_url": "https://example.com"}`,
		"bad mode":    `{"mode": "dynamic"}`,
		"bad quality": `{"quality": 12}`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfig(t, "config.json", content))
			assert.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), "does not match schema")
		})
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "config.json", `{ invalid json }`))
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "config.yaml", "fonts: [unterminated"))
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config YAML")
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.json")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "config path is empty")
}

func TestValidate_Defaults(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 200, cfg.ResidualChunkSize)
	assert.Equal(t, 11, *cfg.Quality)
	assert.Equal(t, 22, cfg.Window)
	assert.Positive(t, cfg.Workers)
}

func TestValidate_FieldErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"negative chunk", Config{ResidualChunkSize: -1}, "'residual_chunk_size' failed gte=0"},
		{"quality", Config{Quality: Int(12)}, "'quality' failed lte=11"},
		{"window", Config{Window: 30}, "'window'"},
		{"mode", Config{Mode: "dynamic"}, "'mode' failed oneof"},
		{"subsetter", Config{Subsetter: "fonttools"}, "'subsetter'"},
		{"empty font", Config{Fonts: []string{""}}, "fonts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_CrossField(t *testing.T) {
	err := (&Config{Mode: ModeStatic}).Validate()
	assert.ErrorContains(t, err, "'webroot' is required")

	err = (&Config{Webroot: filepath.Join(t.TempDir(), "missing")}).Validate()
	assert.ErrorContains(t, err, "webroot not found")

	file := writeConfig(t, "index.html", "<p>hi</p>")
	err = (&Config{Webroot: file}).Validate()
	assert.ErrorContains(t, err, "not a directory")

	err = (&Config{Preload: "U+ZZZ"}).Validate()
	assert.ErrorContains(t, err, "'preload'")

	assert.NoError(t, (&Config{Mode: ModeStatic, Webroot: t.TempDir()}).Validate())
}

func TestPreloadSet(t *testing.T) {
	set, err := (&Config{}).PreloadSet()
	require.NoError(t, err)
	assert.Nil(t, set)

	set, err = (&Config{Preload: "U+41-43"}).PreloadSet()
	require.NoError(t, err)
	assert.Equal(t, 3, set.Len())
}

func TestMergeWithDefaults(t *testing.T) {
	partial := Config{
		StoreDir: "out",
		Quality:  Int(5),
		Fonts:    []string{"a.ttf"},
	}

	merged := partial.MergeWithDefaults(Defaults())

	// Custom values should be preserved
	assert.Equal(t, "out", merged.StoreDir)
	assert.Equal(t, 5, *merged.Quality)
	assert.Equal(t, []string{"a.ttf"}, merged.Fonts)

	// Default values should fill in empty fields
	assert.Equal(t, "/webfonts/", merged.BaseURI)
	assert.Equal(t, ModeBasic, merged.Mode)
	assert.Equal(t, 200, merged.ResidualChunkSize)
	assert.Equal(t, SubsetterNative, merged.Subsetter)
}

func TestMergeWithDefaults_EmptyDefaults(t *testing.T) {
	cfg := Config{StoreDir: "out", Workers: 3}

	merged := cfg.MergeWithDefaults(Config{})

	assert.Equal(t, "out", merged.StoreDir)
	assert.Equal(t, 3, merged.Workers)
	assert.Empty(t, merged.BaseURI)
}
