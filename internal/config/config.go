package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "choreo.cfg.json"

// MemoryConfig holds in-memory/JSON frame log settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds settings for the in-memory sqlite recorder
type SQLiteConfig struct {
	DumpInterval time.Duration
	OutputDir    string
}

// StorageConfig selects and configures the frame recorder
type StorageConfig struct {
	Type   string
	Memory MemoryConfig
	SQLite SQLiteConfig
}

// ExportConfig holds video export settings
type ExportConfig struct {
	FPS       int
	Width     int
	Height    int
	Format    string
	OutputDir string
}

// TimingConfig holds authored movement lengths in milliseconds
type TimingConfig struct {
	RunMs          float64
	CurvedRunMs    float64
	PassMs         float64
	OneTouchPassMs float64
	DribbleMs      float64
	GhostMs        float64
}

// PlaybackConfig holds live playback settings
type PlaybackConfig struct {
	Speed        float64
	TickInterval time.Duration
}

// PitchConfig is the pitch size in world units
type PitchConfig struct {
	Length float64
	Width  float64
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// StreamConfig holds the websocket frame stream settings
type StreamConfig struct {
	URL    string
	Secret string
}

// UploadConfig holds the clip board server settings
type UploadConfig struct {
	URL    string
	APIKey string
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// SetDefaults registers every default. Load calls it; commands that run
// without a config file call it directly.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./choreologs")

	viper.SetDefault("export.fps", 30)
	viper.SetDefault("export.width", 1280)
	viper.SetDefault("export.height", 832)
	viper.SetDefault("export.format", "gif")
	viper.SetDefault("export.outputDir", "./exports")

	viper.SetDefault("pitch.length", 105.0)
	viper.SetDefault("pitch.width", 68.0)

	viper.SetDefault("playback.speed", 1.0)
	viper.SetDefault("playback.tickInterval", "16ms")

	viper.SetDefault("timing.runMs", 1200.0)
	viper.SetDefault("timing.curvedRunMs", 1400.0)
	viper.SetDefault("timing.passMs", 900.0)
	viper.SetDefault("timing.oneTouchPassMs", 450.0)
	viper.SetDefault("timing.dribbleMs", 1500.0)
	viper.SetDefault("timing.ghostMs", 1000.0)

	viper.SetDefault("storage.type", "none")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpInterval", "1m")
	viper.SetDefault("storage.sqlite.outputDir", "./recordings")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "choreo")

	viper.SetDefault("stream.url", "ws://localhost:5000/api/stream")
	viper.SetDefault("stream.secret", "")

	viper.SetDefault("upload.url", "")
	viper.SetDefault("upload.apiKey", "")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "choreo-metrics")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "choreo")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetStorageConfig returns the frame recorder settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
			OutputDir:    viper.GetString("storage.sqlite.outputDir"),
		},
	}
}

// GetExportConfig returns the video export settings.
func GetExportConfig() ExportConfig {
	return ExportConfig{
		FPS:       viper.GetInt("export.fps"),
		Width:     viper.GetInt("export.width"),
		Height:    viper.GetInt("export.height"),
		Format:    viper.GetString("export.format"),
		OutputDir: viper.GetString("export.outputDir"),
	}
}

// GetTimingConfig returns the movement lengths.
func GetTimingConfig() TimingConfig {
	return TimingConfig{
		RunMs:          viper.GetFloat64("timing.runMs"),
		CurvedRunMs:    viper.GetFloat64("timing.curvedRunMs"),
		PassMs:         viper.GetFloat64("timing.passMs"),
		OneTouchPassMs: viper.GetFloat64("timing.oneTouchPassMs"),
		DribbleMs:      viper.GetFloat64("timing.dribbleMs"),
		GhostMs:        viper.GetFloat64("timing.ghostMs"),
	}
}

// GetPlaybackConfig returns the live playback settings.
func GetPlaybackConfig() PlaybackConfig {
	return PlaybackConfig{
		Speed:        viper.GetFloat64("playback.speed"),
		TickInterval: viper.GetDuration("playback.tickInterval"),
	}
}

// GetPitchConfig returns the pitch size.
func GetPitchConfig() PitchConfig {
	return PitchConfig{
		Length: viper.GetFloat64("pitch.length"),
		Width:  viper.GetFloat64("pitch.width"),
	}
}

// GetStreamConfig returns the websocket stream settings.
func GetStreamConfig() StreamConfig {
	return StreamConfig{
		URL:    viper.GetString("stream.url"),
		Secret: viper.GetString("stream.secret"),
	}
}

// GetUploadConfig returns the clip upload settings.
func GetUploadConfig() UploadConfig {
	return UploadConfig{
		URL:    viper.GetString("upload.url"),
		APIKey: viper.GetString("upload.apiKey"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}
