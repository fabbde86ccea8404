package pipeline

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func maskWithProduct(w, h int, rects ...image.Rectangle) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, w, h))
	for i := range mask.Pix {
		mask.Pix[i] = maskBackground
	}
	for _, r := range rects {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				mask.Pix[y*mask.Stride+x] = maskProduct
			}
		}
	}
	return mask
}

func TestProductBounds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mask    *image.Gray
		padding int
		want    image.Rectangle
		found   bool
	}{
		{
			name:    "居中产品带留边",
			mask:    maskWithProduct(100, 100, image.Rect(30, 40, 60, 70)),
			padding: 10,
			want:    image.Rect(20, 30, 70, 80),
			found:   true,
		},
		{
			name:    "贴边产品留边收紧",
			mask:    maskWithProduct(100, 100, image.Rect(0, 0, 30, 30)),
			padding: 10,
			want:    image.Rect(0, 0, 40, 40),
			found:   true,
		},
		{
			name:    "多个区域取并集",
			mask:    maskWithProduct(100, 100, image.Rect(10, 10, 20, 20), image.Rect(70, 60, 90, 80)),
			padding: 0,
			want:    image.Rect(10, 10, 90, 80),
			found:   true,
		},
		{
			name:    "零留边",
			mask:    maskWithProduct(50, 50, image.Rect(5, 5, 10, 10)),
			padding: 0,
			want:    image.Rect(5, 5, 10, 10),
			found:   true,
		},
		{
			name:    "空掩膜",
			mask:    maskWithProduct(50, 50),
			padding: 10,
			found:   false,
		},
		{
			name:    "单像素视为噪声",
			mask:    maskWithProduct(50, 50, image.Rect(20, 20, 21, 21)),
			padding: 10,
			found:   false,
		},
		{
			name:    "单行退化",
			mask:    maskWithProduct(50, 50, image.Rect(10, 20, 40, 21)),
			padding: 10,
			found:   false,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, found := ProductBounds(tt.mask, tt.padding)
			require.Equal(t, tt.found, found)
			if found {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

// 外接框必须包住所有产品像素且不越界
func TestProductBounds_ContainsAllProductPixels(t *testing.T) {
	t.Parallel()

	mask := maskWithProduct(80, 60, image.Rect(3, 5, 77, 55))
	box, found := ProductBounds(mask, bboxPadding)
	require.True(t, found)

	assert.True(t, image.Rect(3, 5, 77, 55).In(box))
	assert.True(t, box.In(image.Rect(0, 0, 80, 60)))
}
