package pipeline

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/nfnt/resize"
)

// ComposeCanvas 把裁剪后的产品缩放到画布上：等比缩放至不超过
// ratio × 目标边长，居中放置，底色为配置的背景色。
// MinMargin > 0 时留白约束优先于尺寸比例，可能进一步缩小产品
func ComposeCanvas(product image.Image, cfg Config) (*image.NRGBA, error) {
	bg, err := ParseHexColor(cfg.BackgroundColor)
	if err != nil {
		return nil, fmt.Errorf("parse background color: %w", err)
	}

	pb := product.Bounds()
	pw, ph := pb.Dx(), pb.Dy()
	if pw <= 0 || ph <= 0 {
		return nil, fmt.Errorf("empty product image %dx%d", pw, ph)
	}

	tw, th := cfg.TargetWidth, cfg.TargetHeight
	scale := math.Min(
		cfg.ProductSizeRatio*float64(tw)/float64(pw),
		cfg.ProductSizeRatio*float64(th)/float64(ph),
	)
	if m := cfg.MinMargin; m > 0 {
		scale = math.Min(scale, math.Min(
			float64(tw-2*m)/float64(pw),
			float64(th-2*m)/float64(ph),
		))
	}

	nw := max(1, int(float64(pw)*scale))
	nh := max(1, int(float64(ph)*scale))
	scaled := resize.Resize(uint(nw), uint(nh), product, resize.Lanczos3)

	canvas := newFilledCanvas(tw, th, bg)
	ox := (tw - nw) / 2
	oy := (th - nh) / 2
	draw.Draw(canvas, image.Rect(ox, oy, ox+nw, oy+nh), scaled, scaled.Bounds().Min, draw.Over)
	return canvas, nil
}

// composeFallback 找不到产品时的回退：整幅原图按目标宽高比覆盖裁剪后居中，
// 不抠图也不重着色
func composeFallback(src image.Image, cfg Config) (*image.NRGBA, error) {
	bg, err := ParseHexColor(cfg.BackgroundColor)
	if err != nil {
		return nil, fmt.Errorf("parse background color: %w", err)
	}

	sb := src.Bounds()
	sw, sh := sb.Dx(), sb.Dy()
	tw, th := cfg.TargetWidth, cfg.TargetHeight

	imgRatio := float64(sw) / float64(sh)
	targetRatio := float64(tw) / float64(th)

	var nw, nh int
	if imgRatio > targetRatio {
		// 偏宽，左右裁
		nh = th
		nw = max(tw, int(float64(th)*imgRatio))
	} else {
		// 偏高，上下裁
		nw = tw
		nh = max(th, int(float64(tw)/imgRatio))
	}
	scaled := resize.Resize(uint(nw), uint(nh), src, resize.Lanczos3)

	canvas := newFilledCanvas(tw, th, bg)
	offset := image.Pt((nw-tw)/2, (nh-th)/2)
	draw.Draw(canvas, canvas.Bounds(), scaled, scaled.Bounds().Min.Add(offset), draw.Over)
	return canvas, nil
}

func newFilledCanvas(w, h int, bg color.NRGBA) *image.NRGBA {
	canvas := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(canvas.Pix); i += 4 {
		canvas.Pix[i] = bg.R
		canvas.Pix[i+1] = bg.G
		canvas.Pix[i+2] = bg.B
		canvas.Pix[i+3] = 255
	}
	return canvas
}
