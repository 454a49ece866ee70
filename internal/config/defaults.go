package config

const (
	defaultDataDir    = "~/.local/share/montage"
	defaultStagingDir = "~/.local/share/montage/staging"
	defaultOutputDir  = "~/.local/share/montage/output"
	defaultLogDir     = "~/.local/share/montage/logs"

	defaultOutputWidth        = 1920
	defaultOutputHeight       = 1080
	defaultOutputFrameRate    = 30
	defaultOutputVideoCodec   = "libx264"
	defaultOutputVideoBitrate = "8M"
	defaultOutputAudioCodec   = "aac"
	defaultOutputAudioBitrate = "192k"
	defaultOutputContainer    = "mp4"

	defaultSyncMaxOffsetSeconds  = 10.0
	defaultSyncWindowSeconds     = 30.0
	defaultSyncCoarseStepMillis  = 100
	defaultSyncSampleRate        = 8000
	defaultSyncMinCorrelation    = 0.1
	defaultSyncVisualBelow       = 50.0
	defaultSyncCandidatesPerPair = 3

	defaultQualityFrameSamples   = 24
	defaultQualitySampleInterval = 2.5

	defaultStitchingMinSegmentSeconds  = 2.0
	defaultStitchingAngleSampleSeconds = 5.0

	defaultSchedulerTickSeconds = 1
	defaultErrorRetryInterval   = 10

	defaultNotifyRequestTimeout = 10

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			StagingDir: defaultStagingDir,
			OutputDir:  defaultOutputDir,
			LogDir:     defaultLogDir,
		},
		Output: Output{
			Width:        defaultOutputWidth,
			Height:       defaultOutputHeight,
			FrameRate:    defaultOutputFrameRate,
			VideoCodec:   defaultOutputVideoCodec,
			VideoBitrate: defaultOutputVideoBitrate,
			AudioCodec:   defaultOutputAudioCodec,
			AudioBitrate: defaultOutputAudioBitrate,
			Container:    defaultOutputContainer,
		},
		Sync: Sync{
			MaxOffsetSeconds:     defaultSyncMaxOffsetSeconds,
			WindowSeconds:        defaultSyncWindowSeconds,
			CoarseStepMillis:     defaultSyncCoarseStepMillis,
			SampleRate:           defaultSyncSampleRate,
			MinCorrelation:       defaultSyncMinCorrelation,
			VisualFallbackBelow:  defaultSyncVisualBelow,
			MaxCandidatesPerPair: defaultSyncCandidatesPerPair,
		},
		Quality: Quality{
			FrameSamples:          defaultQualityFrameSamples,
			SampleIntervalSeconds: defaultQualitySampleInterval,
			Stability:             true,
			Lighting:              true,
			Framing:               true,
			Clarity:               true,
		},
		Stitching: Stitching{
			MinSegmentSeconds:  defaultStitchingMinSegmentSeconds,
			AngleSampleSeconds: defaultStitchingAngleSampleSeconds,
		},
		Workflow: Workflow{
			SchedulerTickSeconds: defaultSchedulerTickSeconds,
			ErrorRetryInterval:   defaultErrorRetryInterval,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Completion:     true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
