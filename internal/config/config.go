package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/camdist/internal/core/observability/log"
)

var (
	ErrUnknownFormat   = errors.New("unknown config format")
	ErrInvalidInterval = errors.New("tick interval must be positive")
	ErrInvalidWindow   = errors.New("report window must not be negative")
	ErrInvalidMeasurer = errors.New("invalid measurer")
)

// Config is the on-disk description of a scene and its process.
type Config struct {
	Log       log.Config       `json:"log" yaml:"log"`
	Scene     SceneConfig      `json:"scene" yaml:"scene"`
	Reporting ReportingConfig  `json:"reporting" yaml:"reporting"`
	Measurers []MeasurerConfig `json:"measurers" yaml:"measurers"`
}

type SceneConfig struct {
	Name         string        `json:"name" yaml:"name"`
	Camera       string        `json:"camera" yaml:"camera"`
	CameraPos    [3]float64    `json:"camera_position" yaml:"camera_position"`
	TickInterval time.Duration `json:"tick_interval" yaml:"tick_interval"`
	PruneEvery   uint64        `json:"prune_every" yaml:"prune_every"`
}

type ReportingConfig struct {
	// Window limits repeated reports of the same failure. Zero hands every
	// failure to the reporters; the log reporter's logger still samples, so
	// set log.disable_sampling to keep every line.
	Window    time.Duration `json:"window" yaml:"window"`
	SentryDSN string        `json:"sentry_dsn" yaml:"sentry_dsn"`
	Env       string        `json:"environment" yaml:"environment"`
}

// MeasurerConfig declares one stock measurer to place in the scene.
type MeasurerConfig struct {
	Kind     string     `json:"kind" yaml:"kind"`
	Position [3]float64 `json:"position" yaml:"position"`
	// Distances is interpreted per kind: LOD thresholds, [min, max] for
	// audio, [max] for cull and [range] for billboard.
	Distances []float64 `json:"distances" yaml:"distances"`
	Weak      bool      `json:"weak" yaml:"weak"`
}

// jsonDuration reads either a duration string ("16ms") or integer
// nanoseconds, matching what yaml.v3 accepts for time.Duration.
type jsonDuration time.Duration

func (d *jsonDuration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", val, err)
		}
		*d = jsonDuration(parsed)
	case float64:
		*d = jsonDuration(time.Duration(val))
	case nil:
	default:
		return fmt.Errorf("invalid duration %s", data)
	}
	return nil
}

func (c *SceneConfig) UnmarshalJSON(data []byte) error {
	type plain SceneConfig
	aux := struct {
		*plain
		TickInterval *jsonDuration `json:"tick_interval"`
	}{plain: (*plain)(c), TickInterval: (*jsonDuration)(&c.TickInterval)}
	return json.Unmarshal(data, &aux)
}

func (c *ReportingConfig) UnmarshalJSON(data []byte) error {
	type plain ReportingConfig
	aux := struct {
		*plain
		Window *jsonDuration `json:"window"`
	}{plain: (*plain)(c), Window: (*jsonDuration)(&c.Window)}
	return json.Unmarshal(data, &aux)
}

const (
	KindLOD       = "lod"
	KindAudio     = "audio"
	KindCull      = "cull"
	KindBillboard = "billboard"
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log: log.Config{Level: "info", Encoding: "json"},
		Scene: SceneConfig{
			Name:         "default",
			Camera:       "main",
			TickInterval: time.Second / 60,
			PruneEvery:   600,
		},
		Reporting: ReportingConfig{
			Window: 5 * time.Second,
		},
	}
}

// LoadJSON loads config from JSON reader on top of Default.
func LoadJSON(r io.Reader) (*Config, error) {
	c := Default()
	dec := json.NewDecoder(r)
	if err := dec.Decode(c); err != nil {
		return nil, fmt.Errorf("decode json config: %w", err)
	}
	return c, nil
}

// LoadYAML loads config from YAML reader on top of Default.
func LoadYAML(r io.Reader) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode yaml config: %w", err)
	}
	return c, nil
}

// LoadFile picks the decoder from the file extension and validates the result.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer func() { _ = f.Close() }()

	var c *Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		c, err = LoadYAML(f)
	case ".json":
		c, err = LoadJSON(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
	if err != nil {
		return nil, err
	}
	if err = c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Scene.TickInterval <= 0 {
		errs = append(errs, ErrInvalidInterval)
	}
	if c.Reporting.Window < 0 {
		errs = append(errs, ErrInvalidWindow)
	}
	for i, m := range c.Measurers {
		if err := m.validate(); err != nil {
			errs = append(errs, fmt.Errorf("measurers[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (m MeasurerConfig) validate() error {
	want := 0
	switch m.Kind {
	case KindLOD:
		if len(m.Distances) == 0 {
			return fmt.Errorf("%w: lod needs at least one distance", ErrInvalidMeasurer)
		}
		return nil
	case KindAudio:
		want = 2
	case KindCull, KindBillboard:
		want = 1
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidMeasurer, m.Kind)
	}
	if len(m.Distances) != want {
		return fmt.Errorf("%w: %s needs %d distances, got %d", ErrInvalidMeasurer, m.Kind, want, len(m.Distances))
	}
	return nil
}
