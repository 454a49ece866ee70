package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateQuality(); err != nil {
		return err
	}
	if err := c.validateStitching(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.MinCorrelation >= 1 {
		return fmt.Errorf("sync.min_correlation must be below 1, got %v", c.Sync.MinCorrelation)
	}
	if c.Sync.VisualFallbackBelow > 100 {
		return fmt.Errorf("sync.visual_fallback_below must be at most 100, got %v", c.Sync.VisualFallbackBelow)
	}
	if c.Sync.WindowSeconds < c.Sync.MaxOffsetSeconds {
		return errors.New("sync.window_seconds must cover sync.max_offset_seconds")
	}
	return nil
}

func (c *Config) validateQuality() error {
	if c.Quality.FrameSamples > 120 {
		return fmt.Errorf("quality.frame_samples must be at most 120, got %d", c.Quality.FrameSamples)
	}
	return nil
}

func (c *Config) validateStitching() error {
	if c.Stitching.MinSegmentSeconds < 0.5 {
		return fmt.Errorf("stitching.min_segment_seconds must be at least 0.5, got %v", c.Stitching.MinSegmentSeconds)
	}
	return nil
}
