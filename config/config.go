package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/chaos-io/packshot/pipeline"
)

type Config struct {
	Server     ServerConfig    `mapstructure:"server"`
	Upload     UploadConfig    `mapstructure:"upload"`
	Rembg      RembgConfig     `mapstructure:"rembg"`
	Processing pipeline.Config `mapstructure:"processing"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type UploadConfig struct {
	MaxSize      int64         `mapstructure:"max_size"`
	UploadDir    string        `mapstructure:"upload_dir"`
	AllowedTypes []string      `mapstructure:"allowed_types"`
	SweepEvery   string        `mapstructure:"sweep_every"` // cron 表达式
	MaxAge       time.Duration `mapstructure:"max_age"`
}

type RembgConfig struct {
	// Endpoint 为空表示模型未配置，流水线回退纯漫水分割
	Endpoint string `mapstructure:"endpoint"`
}

// Load 从 YAML 文件加载配置
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// New 使用默认配置路径加载配置，失败时返回默认配置
func New() *Config {
	cfg, err := Load("config.yaml")
	if err != nil {
		return getDefaultConfig()
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)

	v.SetDefault("upload.max_size", 20*1024*1024)
	v.SetDefault("upload.upload_dir", "./uploads")
	v.SetDefault("upload.allowed_types", []string{
		"image/jpeg", "image/jpg", "image/png", "image/bmp", "image/tiff", "image/webp",
	})
	v.SetDefault("upload.sweep_every", "@hourly")
	v.SetDefault("upload.max_age", time.Hour)

	v.SetDefault("rembg.endpoint", "")

	def := pipeline.Default()
	v.SetDefault("processing.target_width", def.TargetWidth)
	v.SetDefault("processing.target_height", def.TargetHeight)
	v.SetDefault("processing.background_color", def.BackgroundColor)
	v.SetDefault("processing.product_size_ratio", def.ProductSizeRatio)
	v.SetDefault("processing.min_margin", def.MinMargin)
	v.SetDefault("processing.white_threshold", def.WhiteThreshold)
	v.SetDefault("processing.black_threshold", def.BlackThreshold)
	v.SetDefault("processing.auto_upscale", def.AutoUpscale)
	v.SetDefault("processing.upscale_threshold", def.UpscaleThreshold)
	v.SetDefault("processing.ai_background_removal", def.AIBackgroundRemoval)
	v.SetDefault("processing.flatten_png_first", def.FlattenPNGFirst)
	v.SetDefault("processing.output_format", string(def.OutputFormat))
	v.SetDefault("processing.quality", def.Quality)
	v.SetDefault("processing.min_quality", def.MinQuality)
	v.SetDefault("processing.target_max_kb", def.TargetMaxKB)
}

// Save 把配置整体写回 YAML 文件（POST /api/config 持久化用）
func Save(cfg *Config, configPath string) error {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.Set("server", map[string]any{
		"port":          cfg.Server.Port,
		"mode":          cfg.Server.Mode,
		"read_timeout":  cfg.Server.ReadTimeout.String(),
		"write_timeout": cfg.Server.WriteTimeout.String(),
	})
	v.Set("upload", map[string]any{
		"max_size":      cfg.Upload.MaxSize,
		"upload_dir":    cfg.Upload.UploadDir,
		"allowed_types": cfg.Upload.AllowedTypes,
		"sweep_every":   cfg.Upload.SweepEvery,
		"max_age":       cfg.Upload.MaxAge.String(),
	})
	v.Set("rembg", map[string]any{"endpoint": cfg.Rembg.Endpoint})
	v.Set("processing", map[string]any{
		"target_width":          cfg.Processing.TargetWidth,
		"target_height":         cfg.Processing.TargetHeight,
		"background_color":      cfg.Processing.BackgroundColor,
		"product_size_ratio":    cfg.Processing.ProductSizeRatio,
		"min_margin":            cfg.Processing.MinMargin,
		"white_threshold":       cfg.Processing.WhiteThreshold,
		"black_threshold":       cfg.Processing.BlackThreshold,
		"auto_upscale":          cfg.Processing.AutoUpscale,
		"upscale_threshold":     cfg.Processing.UpscaleThreshold,
		"ai_background_removal": cfg.Processing.AIBackgroundRemoval,
		"flatten_png_first":     cfg.Processing.FlattenPNGFirst,
		"output_format":         string(cfg.Processing.OutputFormat),
		"quality":               cfg.Processing.Quality,
		"min_quality":           cfg.Processing.MinQuality,
		"target_max_kb":         cfg.Processing.TargetMaxKB,
	})

	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         ":8080",
			Mode:         "debug",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Upload: UploadConfig{
			MaxSize:   20 * 1024 * 1024,
			UploadDir: "./uploads",
			AllowedTypes: []string{
				"image/jpeg", "image/jpg", "image/png", "image/bmp", "image/tiff", "image/webp",
			},
			SweepEvery: "@hourly",
			MaxAge:     time.Hour,
		},
		Processing: pipeline.Default(),
	}
}
