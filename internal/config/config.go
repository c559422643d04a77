// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/jonathan/webfont-splitter/internal/charset"
	"github.com/jonathan/webfont-splitter/internal/schemas"
	embedded "github.com/jonathan/webfont-splitter/schemas"
)

// Modes
const (
	ModeBasic  = "basic"
	ModeStatic = "static"
)

// Engines
const (
	SubsetterNative   = "native"
	SubsetterHB       = "hb-subset"
	CompressorNative  = "woff2"
	CompressorWoff2CC = "woff2_compress"
)

// Config represents the CLI configuration that can be loaded from a JSON or
// YAML file. All fields are optional; missing values use defaults or come
// from CLI flags.
type Config struct {
	// Inputs
	Fonts         []string `json:"fonts,omitempty" yaml:"fonts,omitempty" validate:"dive,required"`
	Mode          string   `json:"mode,omitempty" yaml:"mode,omitempty" validate:"omitempty,oneof=basic static"`
	Webroot       string   `json:"webroot,omitempty" yaml:"webroot,omitempty"`
	ReferenceData string   `json:"reference_data,omitempty" yaml:"reference_data,omitempty"`
	FallbackDir   string   `json:"fallback_dir,omitempty" yaml:"fallback_dir,omitempty"`

	// Family filters, compared case-insensitively; exclusion wins
	IncludeFamilies []string `json:"include_families,omitempty" yaml:"include_families,omitempty" validate:"dive,required"`
	ExcludeFamilies []string `json:"exclude_families,omitempty" yaml:"exclude_families,omitempty" validate:"dive,required"`

	// Outputs
	StoreDir  string `json:"store_dir,omitempty" yaml:"store_dir,omitempty"`
	BaseURI   string `json:"base_uri,omitempty" yaml:"base_uri,omitempty"`
	CSSOut    string `json:"css_out,omitempty" yaml:"css_out,omitempty"`
	CSSAppend bool   `json:"css_append,omitempty" yaml:"css_append,omitempty"` // append to css_out instead of replacing it
	CacheDir  string `json:"cache_dir,omitempty" yaml:"cache_dir,omitempty"`

	// Planning
	ResidualChunkSize int    `json:"residual_chunk_size,omitempty" yaml:"residual_chunk_size,omitempty" validate:"gte=0"`
	MinBucketSize     int    `json:"min_bucket_size,omitempty" yaml:"min_bucket_size,omitempty" validate:"gte=0"`
	Preload           string `json:"preload,omitempty" yaml:"preload,omitempty"`

	// Engines
	Quality    *int   `json:"quality,omitempty" yaml:"quality,omitempty" validate:"omitempty,gte=0,lte=11"` // Brotli quality, nil selects the default
	Window     int    `json:"window,omitempty" yaml:"window,omitempty" validate:"omitempty,gte=10,lte=24"`
	Subsetter  string `json:"subsetter,omitempty" yaml:"subsetter,omitempty" validate:"omitempty,oneof=native hb-subset"`
	Compressor string `json:"compressor,omitempty" yaml:"compressor,omitempty" validate:"omitempty,oneof=woff2 woff2_compress"`

	// Behavior
	Workers         int      `json:"workers,omitempty" yaml:"workers,omitempty" validate:"gte=0"`
	StrictFonts     bool     `json:"strict_fonts,omitempty" yaml:"strict_fonts,omitempty"` // drop a font entirely when one bucket fails
	FailFast        bool     `json:"fail_fast,omitempty" yaml:"fail_fast,omitempty"`
	IgnoreSelectors []string `json:"ignore_selectors,omitempty" yaml:"ignore_selectors,omitempty" validate:"dive,required"`
	DatabaseURL     string   `json:"database_url,omitempty" yaml:"database_url,omitempty"` // PostgreSQL catalogue mirror
	Verbose         bool     `json:"verbose,omitempty" yaml:"verbose,omitempty"`
}

// Defaults returns the configuration used when nothing else is set
func Defaults() Config {
	return Config{
		Mode:              ModeBasic,
		ReferenceData:     "bundled",
		StoreDir:          "webfonts",
		BaseURI:           "/webfonts/",
		CSSOut:            "webfonts.css",
		ResidualChunkSize: 200,
		Quality:           Int(11),
		Window:            22,
		Subsetter:         SubsetterNative,
		Compressor:        CompressorNative,
		Workers:           runtime.NumCPU(),
	}
}

// LoadConfig loads configuration from a JSON (comments allowed) or YAML file.
// The document is checked against the config schema before decoding.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	doc, err := toJSON(path, data)
	if err != nil {
		return nil, err
	}

	if err := schemas.Validate(embedded.Config, doc); err != nil {
		return nil, fmt.Errorf("config file %s does not match schema: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(doc, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return &cfg, nil
}

func toJSON(path string, data []byte) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
		if v == nil {
			v = map[string]any{}
		}
		doc, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
		return doc, nil
	default:
		doc := jsonc.ToJSON(data)
		if !json.Valid(doc) {
			return nil, fmt.Errorf("failed to parse config JSON: invalid document")
		}
		return doc, nil
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields since those are handled
// by CLI flag validation after merging.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			ve := verrs[0]
			return fmt.Errorf("config error: '%s' failed %s validation", ve.Field(), describeTag(ve))
		}
		return fmt.Errorf("config error: %w", err)
	}

	if c.Mode == ModeStatic && c.Webroot == "" {
		return fmt.Errorf("config error: 'webroot' is required in static mode")
	}
	if c.Webroot != "" {
		info, err := os.Stat(c.Webroot)
		if err != nil {
			return fmt.Errorf("config error: webroot not found: %s", c.Webroot)
		}
		if !info.IsDir() {
			return fmt.Errorf("config error: webroot is not a directory: %s", c.Webroot)
		}
	}
	if c.Preload != "" {
		if _, err := charset.Parse(c.Preload); err != nil {
			return fmt.Errorf("config error: 'preload' is not a valid unicode-range: %w", err)
		}
	}
	return nil
}

func describeTag(ve validator.FieldError) string {
	if ve.Param() != "" {
		return ve.Tag() + "=" + ve.Param()
	}
	return ve.Tag()
}

// PreloadSet parses the preload unicode-range, nil when none is configured
func (c *Config) PreloadSet() (*charset.Set, error) {
	if c.Preload == "" {
		return nil, nil
	}
	return charset.Parse(c.Preload)
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	fillString(&result.Mode, defaults.Mode)
	fillString(&result.Webroot, defaults.Webroot)
	fillString(&result.ReferenceData, defaults.ReferenceData)
	fillString(&result.FallbackDir, defaults.FallbackDir)
	fillString(&result.StoreDir, defaults.StoreDir)
	fillString(&result.BaseURI, defaults.BaseURI)
	fillString(&result.CSSOut, defaults.CSSOut)
	fillString(&result.CacheDir, defaults.CacheDir)
	fillString(&result.Preload, defaults.Preload)
	fillString(&result.Subsetter, defaults.Subsetter)
	fillString(&result.Compressor, defaults.Compressor)
	fillString(&result.DatabaseURL, defaults.DatabaseURL)

	// Int fields: use default if zero
	fillInt(&result.ResidualChunkSize, defaults.ResidualChunkSize)
	fillInt(&result.MinBucketSize, defaults.MinBucketSize)
	fillInt(&result.Window, defaults.Window)
	fillInt(&result.Workers, defaults.Workers)

	if result.Quality == nil {
		result.Quality = defaults.Quality
	}

	if len(result.Fonts) == 0 {
		result.Fonts = defaults.Fonts
	}
	if len(result.IgnoreSelectors) == 0 {
		result.IgnoreSelectors = defaults.IgnoreSelectors
	}
	if len(result.IncludeFamilies) == 0 {
		result.IncludeFamilies = defaults.IncludeFamilies
	}
	if len(result.ExcludeFamilies) == 0 {
		result.ExcludeFamilies = defaults.ExcludeFamilies
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

func fillString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func fillInt(dst *int, def int) {
	if *dst == 0 {
		*dst = def
	}
}

// Int returns a pointer to v, for optional numeric fields where zero is a
// real setting.
func Int(v int) *int {
	return &v
}
