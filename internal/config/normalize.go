package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeOutput()
	c.normalizeSync()
	c.normalizeQuality()
	c.normalizeStitching()
	c.normalizeWorkflow()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeOutput() {
	if c.Output.Width <= 0 {
		c.Output.Width = defaultOutputWidth
	}
	if c.Output.Height <= 0 {
		c.Output.Height = defaultOutputHeight
	}
	if c.Output.FrameRate <= 0 {
		c.Output.FrameRate = defaultOutputFrameRate
	}
	c.Output.VideoCodec = strings.TrimSpace(c.Output.VideoCodec)
	if c.Output.VideoCodec == "" {
		c.Output.VideoCodec = defaultOutputVideoCodec
	}
	c.Output.VideoBitrate = strings.TrimSpace(c.Output.VideoBitrate)
	if c.Output.VideoBitrate == "" {
		c.Output.VideoBitrate = defaultOutputVideoBitrate
	}
	c.Output.AudioCodec = strings.TrimSpace(c.Output.AudioCodec)
	if c.Output.AudioCodec == "" {
		c.Output.AudioCodec = defaultOutputAudioCodec
	}
	c.Output.AudioBitrate = strings.TrimSpace(c.Output.AudioBitrate)
	if c.Output.AudioBitrate == "" {
		c.Output.AudioBitrate = defaultOutputAudioBitrate
	}
	c.Output.Container = strings.ToLower(strings.TrimSpace(c.Output.Container))
	if c.Output.Container == "" {
		c.Output.Container = defaultOutputContainer
	}
}

func (c *Config) normalizeSync() {
	if c.Sync.MaxOffsetSeconds <= 0 {
		c.Sync.MaxOffsetSeconds = defaultSyncMaxOffsetSeconds
	}
	if c.Sync.WindowSeconds <= 0 {
		c.Sync.WindowSeconds = defaultSyncWindowSeconds
	}
	if c.Sync.CoarseStepMillis <= 0 {
		c.Sync.CoarseStepMillis = defaultSyncCoarseStepMillis
	}
	if c.Sync.SampleRate <= 0 {
		c.Sync.SampleRate = defaultSyncSampleRate
	}
	if c.Sync.MinCorrelation <= 0 {
		c.Sync.MinCorrelation = defaultSyncMinCorrelation
	}
	if c.Sync.VisualFallbackBelow <= 0 {
		c.Sync.VisualFallbackBelow = defaultSyncVisualBelow
	}
	if c.Sync.MaxCandidatesPerPair <= 0 {
		c.Sync.MaxCandidatesPerPair = defaultSyncCandidatesPerPair
	}
}

func (c *Config) normalizeQuality() {
	if c.Quality.FrameSamples <= 0 {
		c.Quality.FrameSamples = defaultQualityFrameSamples
	}
	if c.Quality.SampleIntervalSeconds <= 0 {
		c.Quality.SampleIntervalSeconds = defaultQualitySampleInterval
	}
}

func (c *Config) normalizeStitching() {
	if c.Stitching.MinSegmentSeconds <= 0 {
		c.Stitching.MinSegmentSeconds = defaultStitchingMinSegmentSeconds
	}
	if c.Stitching.AngleSampleSeconds <= 0 {
		c.Stitching.AngleSampleSeconds = defaultStitchingAngleSampleSeconds
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.SchedulerTickSeconds <= 0 {
		c.Workflow.SchedulerTickSeconds = defaultSchedulerTickSeconds
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
