package pipeline

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHexColor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    color.NRGBA
		wantErr bool
	}{
		{
			name:  "带井号",
			input: "#F3F3F3",
			want:  color.NRGBA{R: 0xF3, G: 0xF3, B: 0xF3, A: 255},
		},
		{
			name:  "不带井号",
			input: "ff8000",
			want:  color.NRGBA{R: 0xFF, G: 0x80, B: 0x00, A: 255},
		},
		{
			name:  "前后空白",
			input: "  #000000  ",
			want:  color.NRGBA{A: 255},
		},
		{
			name:    "空字符串",
			input:   "",
			wantErr: true,
		},
		{
			name:    "短格式不支持",
			input:   "#FFF",
			wantErr: true,
		},
		{
			name:    "非法字符",
			input:   "#GGGGGG",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseHexColor(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLum8(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint8(0), lum8(0, 0, 0))
	assert.Equal(t, uint8(255), lum8(255, 255, 255))
	assert.Equal(t, uint8(243), lum8(243, 243, 243))
	// 绿色权重最高
	assert.Greater(t, lum8(0, 255, 0), lum8(255, 0, 0))
}

func TestFlattenOnWhite(t *testing.T) {
	t.Parallel()

	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	setPix(img, 0, 0, color.NRGBA{A: 0})
	setPix(img, 1, 0, color.NRGBA{R: 100, G: 100, B: 100, A: 255})

	out := flattenOnWhite(img)
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, out.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{R: 100, G: 100, B: 100, A: 255}, out.NRGBAAt(1, 0))
	assert.False(t, hasUsefulAlpha(out))
}
