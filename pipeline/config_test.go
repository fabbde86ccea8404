package pipeline

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestDefault_IsValid(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Default().Validate())
}

func TestMerge(t *testing.T) {
	t.Parallel()

	base := Default()
	merged := Merge(base, Overrides{
		TargetWidth:     ptr(500),
		OutputFormat:    ptr(FormatWEBP),
		AutoUpscale:     ptr(true),
		BackgroundColor: ptr("#FFFFFF"),
	})

	assert.Equal(t, 500, merged.TargetWidth)
	assert.Equal(t, FormatWEBP, merged.OutputFormat)
	assert.True(t, merged.AutoUpscale)
	assert.Equal(t, "#FFFFFF", merged.BackgroundColor)
	// 未覆盖的字段保持不变
	assert.Equal(t, base.TargetHeight, merged.TargetHeight)
	assert.Equal(t, base.Quality, merged.Quality)
	// 输入不被改动
	assert.Equal(t, Default(), base)
}

func TestMerge_EmptyOverridesIsIdentity(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Default(), Merge(Default(), Overrides{}))
}

// 请求体里的覆盖项经 JSON 解出后合并
func TestOverrides_FromJSON(t *testing.T) {
	t.Parallel()

	var o Overrides
	require.NoError(t, json.Unmarshal([]byte(`{"target_width":800,"quality":70,"flatten_png_first":true}`), &o))

	merged := Merge(Default(), o)
	assert.Equal(t, 800, merged.TargetWidth)
	assert.Equal(t, 70, merged.Quality)
	assert.True(t, merged.FlattenPNGFirst)
	assert.Equal(t, 1000, merged.TargetHeight)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"目标宽度为零", func(c *Config) { c.TargetWidth = 0 }, "target_width"},
		{"目标高度为负", func(c *Config) { c.TargetHeight = -1 }, "target_height"},
		{"非法背景色", func(c *Config) { c.BackgroundColor = "red" }, "background_color"},
		{"比例超出上限", func(c *Config) { c.ProductSizeRatio = 1.5 }, "product_size_ratio"},
		{"比例为零", func(c *Config) { c.ProductSizeRatio = 0 }, "product_size_ratio"},
		{"负留白", func(c *Config) { c.MinMargin = -5 }, "min_margin"},
		{"留白占满画布", func(c *Config) { c.MinMargin = 500 }, "min_margin"},
		{"白底阈值越界", func(c *Config) { c.WhiteThreshold = 300 }, "white_threshold"},
		{"放大阈值缺失", func(c *Config) { c.AutoUpscale = true; c.UpscaleThreshold = 0 }, "upscale_threshold"},
		{"未知格式", func(c *Config) { c.OutputFormat = "bmp" }, "output_format"},
		{"质量越界", func(c *Config) { c.Quality = 0 }, "quality"},
		{"下限高于起始质量", func(c *Config) { c.MinQuality = 99 }, "min_quality"},
		{"负的大小预算", func(c *Config) { c.TargetMaxKB = -1 }, "target_max_kb"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}
}
