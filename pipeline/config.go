package pipeline

import "fmt"

// Format 输出格式
type Format string

const (
	FormatJPEG Format = "jpeg" // 有损，质量可调
	FormatWEBP Format = "webp" // 有损，质量可调
	FormatPNG  Format = "png"  // 无损
)

// Config 单次请求的处理参数，流水线内部不修改
type Config struct {
	TargetWidth  int    `json:"target_width" mapstructure:"target_width"`
	TargetHeight int    `json:"target_height" mapstructure:"target_height"`
	// BackgroundColor 画布底色，同时也是背景重着色目标，例如 "#F3F3F3"
	BackgroundColor  string  `json:"background_color" mapstructure:"background_color"`
	ProductSizeRatio float64 `json:"product_size_ratio" mapstructure:"product_size_ratio"`
	// MinMargin 产品四周最小留白（像素），0 为不限制；优先级高于 ProductSizeRatio
	MinMargin int `json:"min_margin" mapstructure:"min_margin"`

	WhiteThreshold int `json:"white_threshold" mapstructure:"white_threshold"`
	BlackThreshold int `json:"black_threshold" mapstructure:"black_threshold"`

	AutoUpscale      bool `json:"auto_upscale" mapstructure:"auto_upscale"`
	UpscaleThreshold int  `json:"upscale_threshold" mapstructure:"upscale_threshold"`

	AIBackgroundRemoval bool `json:"ai_background_removal" mapstructure:"ai_background_removal"`
	// FlattenPNGFirst 分割前先把原生透明压平到白底；开启会破坏基于 alpha 的 AI 修正
	FlattenPNGFirst bool `json:"flatten_png_first" mapstructure:"flatten_png_first"`

	OutputFormat Format `json:"output_format" mapstructure:"output_format"`
	// Quality 起始编码质量，TargetMaxKB 为 0 时只编码一次
	Quality     int `json:"quality" mapstructure:"quality"`
	MinQuality  int `json:"min_quality" mapstructure:"min_quality"`
	TargetMaxKB int `json:"target_max_kb" mapstructure:"target_max_kb"`
}

// Default 默认配置，对应 1000x1000 浅灰底的电商主图
func Default() Config {
	return Config{
		TargetWidth:      1000,
		TargetHeight:     1000,
		BackgroundColor:  "#F3F3F3",
		ProductSizeRatio: 0.75,
		WhiteThreshold:   240,
		BlackThreshold:   30,
		UpscaleThreshold: 800,
		OutputFormat:     FormatJPEG,
		Quality:          95,
		MinQuality:       55,
	}
}

// Overrides 请求级覆盖项，nil 字段保持基础配置不变
type Overrides struct {
	TargetWidth         *int     `json:"target_width"`
	TargetHeight        *int     `json:"target_height"`
	BackgroundColor     *string  `json:"background_color"`
	ProductSizeRatio    *float64 `json:"product_size_ratio"`
	MinMargin           *int     `json:"min_margin"`
	WhiteThreshold      *int     `json:"white_threshold"`
	BlackThreshold      *int     `json:"black_threshold"`
	AutoUpscale         *bool    `json:"auto_upscale"`
	UpscaleThreshold    *int     `json:"upscale_threshold"`
	AIBackgroundRemoval *bool    `json:"ai_background_removal"`
	FlattenPNGFirst     *bool    `json:"flatten_png_first"`
	OutputFormat        *Format  `json:"output_format"`
	Quality             *int     `json:"quality"`
	MinQuality          *int     `json:"min_quality"`
	TargetMaxKB         *int     `json:"target_max_kb"`
}

// Merge 把覆盖项应用到基础配置上，返回新值，不改动输入
func Merge(base Config, o Overrides) Config {
	if o.TargetWidth != nil {
		base.TargetWidth = *o.TargetWidth
	}
	if o.TargetHeight != nil {
		base.TargetHeight = *o.TargetHeight
	}
	if o.BackgroundColor != nil {
		base.BackgroundColor = *o.BackgroundColor
	}
	if o.ProductSizeRatio != nil {
		base.ProductSizeRatio = *o.ProductSizeRatio
	}
	if o.MinMargin != nil {
		base.MinMargin = *o.MinMargin
	}
	if o.WhiteThreshold != nil {
		base.WhiteThreshold = *o.WhiteThreshold
	}
	if o.BlackThreshold != nil {
		base.BlackThreshold = *o.BlackThreshold
	}
	if o.AutoUpscale != nil {
		base.AutoUpscale = *o.AutoUpscale
	}
	if o.UpscaleThreshold != nil {
		base.UpscaleThreshold = *o.UpscaleThreshold
	}
	if o.AIBackgroundRemoval != nil {
		base.AIBackgroundRemoval = *o.AIBackgroundRemoval
	}
	if o.FlattenPNGFirst != nil {
		base.FlattenPNGFirst = *o.FlattenPNGFirst
	}
	if o.OutputFormat != nil {
		base.OutputFormat = *o.OutputFormat
	}
	if o.Quality != nil {
		base.Quality = *o.Quality
	}
	if o.MinQuality != nil {
		base.MinQuality = *o.MinQuality
	}
	if o.TargetMaxKB != nil {
		base.TargetMaxKB = *o.TargetMaxKB
	}
	return base
}

// ValidationError 指明非法的配置字段
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config field %q: %s", e.Field, e.Reason)
}

// Validate 进入流水线前的参数校验
func (c Config) Validate() error {
	if c.TargetWidth <= 0 {
		return &ValidationError{Field: "target_width", Reason: "must be positive"}
	}
	if c.TargetHeight <= 0 {
		return &ValidationError{Field: "target_height", Reason: "must be positive"}
	}
	if _, err := ParseHexColor(c.BackgroundColor); err != nil {
		return &ValidationError{Field: "background_color", Reason: err.Error()}
	}
	if c.ProductSizeRatio <= 0 || c.ProductSizeRatio > 1 {
		return &ValidationError{Field: "product_size_ratio", Reason: "must be in (0,1]"}
	}
	if c.MinMargin < 0 {
		return &ValidationError{Field: "min_margin", Reason: "must not be negative"}
	}
	if 2*c.MinMargin >= c.TargetWidth || 2*c.MinMargin >= c.TargetHeight {
		return &ValidationError{Field: "min_margin", Reason: "leaves no room for the product"}
	}
	if c.WhiteThreshold < 0 || c.WhiteThreshold > 255 {
		return &ValidationError{Field: "white_threshold", Reason: "must be in [0,255]"}
	}
	if c.BlackThreshold < 0 || c.BlackThreshold > 255 {
		return &ValidationError{Field: "black_threshold", Reason: "must be in [0,255]"}
	}
	if c.AutoUpscale && c.UpscaleThreshold <= 0 {
		return &ValidationError{Field: "upscale_threshold", Reason: "must be positive when auto_upscale is on"}
	}
	switch c.OutputFormat {
	case FormatJPEG, FormatWEBP, FormatPNG:
	default:
		return &ValidationError{Field: "output_format", Reason: fmt.Sprintf("unknown format %q", c.OutputFormat)}
	}
	if c.Quality < 1 || c.Quality > 100 {
		return &ValidationError{Field: "quality", Reason: "must be in [1,100]"}
	}
	if c.MinQuality < 1 || c.MinQuality > c.Quality {
		return &ValidationError{Field: "min_quality", Reason: "must be in [1,quality]"}
	}
	if c.TargetMaxKB < 0 {
		return &ValidationError{Field: "target_max_kb", Reason: "must not be negative"}
	}
	return nil
}
