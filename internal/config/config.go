package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/charmbracelet/vlist/internal/anchor"
	"github.com/tidwall/sjson"
)

const (
	appName              = "vlist"
	defaultDataDirectory = ".vlist"
	defaultLogLevel      = "info"

	defaultEstimate       = 3
	defaultOverscanTop    = 6
	defaultOverscanBottom = 3
	defaultFrameMillis    = 16
)

// OverscanOptions is the extra extent rendered above and below the viewport.
type OverscanOptions struct {
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// TailOptions keeps the last items rendered once the viewport reaches them.
type TailOptions struct {
	Count         int `json:"count,omitempty"`
	MaxWindowSize int `json:"max_window_size,omitempty"`
}

// FollowOptions configures follow-bottom behaviour.
type FollowOptions struct {
	Enabled           *bool   `json:"enabled,omitempty"`
	Threshold         float64 `json:"threshold,omitempty"`
	DetachThreshold   float64 `json:"detach_threshold,omitempty"`
	ReattachThreshold float64 `json:"reattach_threshold,omitempty"`
}

// BoundsOptions clamps measured heights.
type BoundsOptions struct {
	Min float64  `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// ListOptions holds the list tuning knobs.
type ListOptions struct {
	// Estimate is the height assumed for items that were never measured.
	Estimate    float64          `json:"estimate,omitempty"`
	Overscan    *OverscanOptions `json:"overscan,omitempty"`
	Tail        TailOptions      `json:"tail,omitempty"`
	Follow      FollowOptions    `json:"follow,omitempty"`
	Bounds      BoundsOptions    `json:"bounds,omitempty"`
	ZeroHeights bool             `json:"zero_heights,omitempty"`
	FrameMillis int              `json:"frame_millis,omitempty"`
}

type Options struct {
	Debug         bool   `json:"debug,omitempty"`
	LogLevel      string `json:"log_level,omitempty"`
	DataDirectory string `json:"data_directory,omitempty"` // Relative to the cwd
}

// Config holds the configuration for vlist.
type Config struct {
	List    *ListOptions `json:"list,omitempty"`
	Options *Options     `json:"options,omitempty"`

	// Internal
	workingDir    string `json:"-"`
	dataConfigDir string `json:"-"`
}

func (c *Config) WorkingDir() string {
	return c.workingDir
}

// FollowConfig converts the follow options for the anchor protocol.
func (c *Config) FollowConfig() anchor.FollowConfig {
	f := c.List.Follow
	return anchor.FollowConfig{
		Enabled:           f.Enabled != nil && *f.Enabled,
		Threshold:         f.Threshold,
		DetachThreshold:   f.DetachThreshold,
		ReattachThreshold: f.ReattachThreshold,
	}
}

// MaxHeight returns the upper height bound, +Inf when unset.
func (c *Config) MaxHeight() float64 {
	if c.List.Bounds.Max == nil {
		return math.Inf(1)
	}
	return *c.List.Bounds.Max
}

func (c *Config) setDefaults(workingDir string) {
	c.workingDir = workingDir
	if c.Options == nil {
		c.Options = &Options{}
	}
	if c.Options.DataDirectory == "" {
		c.Options.DataDirectory = defaultDataDirectory
	}
	if c.Options.LogLevel == "" {
		c.Options.LogLevel = defaultLogLevel
	}
	if c.List == nil {
		c.List = &ListOptions{}
	}
	l := c.List
	if l.Estimate <= 0 {
		l.Estimate = defaultEstimate
	}
	if l.Overscan == nil {
		l.Overscan = &OverscanOptions{Top: defaultOverscanTop, Bottom: defaultOverscanBottom}
	}
	if l.FrameMillis <= 0 {
		l.FrameMillis = defaultFrameMillis
	}
	if l.Follow.Enabled == nil {
		enabled := true
		l.Follow.Enabled = &enabled
	}
	// Row based defaults: a terminal list moves in whole lines.
	if l.Follow.Threshold <= 0 {
		l.Follow.Threshold = 1
	}
	if l.Follow.DetachThreshold <= 0 {
		l.Follow.DetachThreshold = 1
	}
	if l.Follow.ReattachThreshold <= 0 {
		l.Follow.ReattachThreshold = 3
	}
	if l.Follow.ReattachThreshold < l.Follow.DetachThreshold {
		l.Follow.ReattachThreshold = l.Follow.DetachThreshold
	}
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	l := c.List
	if l.Bounds.Min < 0 {
		return fmt.Errorf("list.bounds.min must not be negative, got %v", l.Bounds.Min)
	}
	if l.Bounds.Max != nil && *l.Bounds.Max < l.Bounds.Min {
		return fmt.Errorf("list.bounds.max %v is below list.bounds.min %v", *l.Bounds.Max, l.Bounds.Min)
	}
	if l.Tail.Count < 0 || l.Tail.MaxWindowSize < 0 {
		return fmt.Errorf("list.tail values must not be negative")
	}
	if l.Tail.MaxWindowSize > 0 && l.Tail.MaxWindowSize < l.Tail.Count {
		return fmt.Errorf("list.tail.max_window_size %d is smaller than list.tail.count %d", l.Tail.MaxWindowSize, l.Tail.Count)
	}
	return nil
}

func (c *Config) SetConfigField(key string, value any) error {
	// read the data
	data, err := os.ReadFile(c.dataConfigDir)
	if err != nil {
		if os.IsNotExist(err) {
			data = []byte("{}")
		} else {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	newValue, err := sjson.Set(string(data), key, value)
	if err != nil {
		return fmt.Errorf("failed to set config field %s: %w", key, err)
	}
	if err := os.MkdirAll(filepath.Dir(c.dataConfigDir), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(c.dataConfigDir, []byte(newValue), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
