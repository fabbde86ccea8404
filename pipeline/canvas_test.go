package pipeline

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var red = color.NRGBA{R: 200, G: 20, B: 20, A: 255}

// 在指定行上扫描第一个和最后一个非背景列，-1 表示整行都是背景
func scanRow(img *image.NRGBA, y int, bg color.NRGBA) (first, last int) {
	first, last = -1, -1
	w := img.Bounds().Dx()
	for x := 0; x < w; x++ {
		c := img.NRGBAAt(x, y)
		if absDiff(int(c.R), int(bg.R)) > 8 || absDiff(int(c.G), int(bg.G)) > 8 || absDiff(int(c.B), int(bg.B)) > 8 {
			if first < 0 {
				first = x
			}
			last = x
		}
	}
	return first, last
}

func TestComposeCanvas_RatioAndCentering(t *testing.T) {
	t.Parallel()

	cfg := Default() // 1000x1000, #F3F3F3, ratio 0.75
	product := newFlat(200, 100, red)

	canvas, err := ComposeCanvas(product, cfg)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 1000, 1000), canvas.Bounds())

	// 200x100 按长边缩到 750x375，居中
	assert.Equal(t, nearWhite, canvas.NRGBAAt(2, 2), "canvas corner must be the background color")
	center := canvas.NRGBAAt(500, 500)
	assert.InDelta(t, int(red.R), int(center.R), 2, "product center")
	assert.InDelta(t, int(red.G), int(center.G), 2, "product center")

	first, last := scanRow(canvas, 500, nearWhite)
	assert.InDelta(t, 125, first, 2)
	assert.InDelta(t, 874, last, 2)

	firstCol, lastCol := scanColumn(canvas, 500, nearWhite)
	assert.InDelta(t, 312, firstCol, 2)
	assert.InDelta(t, 687, lastCol, 2)
}

// MinMargin 比尺寸比例更严格时优先生效
func TestComposeCanvas_MinMarginWins(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.MinMargin = 400
	product := newFlat(200, 100, red)

	canvas, err := ComposeCanvas(product, cfg)
	require.NoError(t, err)

	first, last := scanRow(canvas, 500, nearWhite)
	assert.GreaterOrEqual(t, first, 400)
	assert.Less(t, last, 600)
	assert.InDelta(t, int(red.R), int(canvas.NRGBAAt(500, 500).R), 2)
}

func TestComposeCanvas_BadBackgroundColor(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.BackgroundColor = "not-a-color"
	_, err := ComposeCanvas(newFlat(10, 10, red), cfg)
	assert.Error(t, err)
}

func TestComposeCanvas_EmptyProduct(t *testing.T) {
	t.Parallel()

	_, err := ComposeCanvas(image.NewNRGBA(image.Rectangle{}), Default())
	assert.Error(t, err)
}

// 回退路径：整幅覆盖裁剪，不抠图也不重着色
func TestComposeFallback_CoverCrop(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.TargetWidth = 100
	cfg.TargetHeight = 100
	src := newFlat(200, 100, color.NRGBA{R: 20, G: 60, B: 200, A: 255})

	canvas, err := composeFallback(src, cfg)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 100, 100), canvas.Bounds())

	// 纯色输入缩放裁剪后仍是纯色，背景色不应出现
	for _, p := range []image.Point{{0, 0}, {50, 50}, {99, 99}} {
		c := canvas.NRGBAAt(p.X, p.Y)
		assert.InDelta(t, 20, int(c.R), 3, "pixel %v", p)
		assert.InDelta(t, 60, int(c.G), 3, "pixel %v", p)
		assert.InDelta(t, 200, int(c.B), 3, "pixel %v", p)
	}
}

func scanColumn(img *image.NRGBA, x int, bg color.NRGBA) (first, last int) {
	first, last = -1, -1
	h := img.Bounds().Dy()
	for y := 0; y < h; y++ {
		c := img.NRGBAAt(x, y)
		if absDiff(int(c.R), int(bg.R)) > 8 || absDiff(int(c.G), int(bg.G)) > 8 || absDiff(int(c.B), int(bg.B)) > 8 {
			if first < 0 {
				first = y
			}
			last = y
		}
	}
	return first, last
}
