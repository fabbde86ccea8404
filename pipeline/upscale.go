package pipeline

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
)

const (
	// maxUpscalePasses 分步放大的上限，避免无限翻倍
	maxUpscalePasses = 2
	// lowResPixels 总像素低于此也视为低清图
	lowResPixels = 500_000
)

// needsUpscale 短边低于阈值、或总像素太少
func needsUpscale(img image.Image, cfg Config) bool {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < cfg.UpscaleThreshold || h < cfg.UpscaleThreshold {
		return true
	}
	return w*h < lowResPixels
}

// autoUpscale 小图的多步放大：每步 2 倍 Lanczos，步间做锐化和轻微
// 对比/饱和增强，避免单步放大的涂抹感。返回是否发生了放大
func autoUpscale(img image.Image, cfg Config) (image.Image, bool) {
	if !cfg.AutoUpscale || !needsUpscale(img, cfg) {
		return img, false
	}

	out := img
	for pass := 0; pass < maxUpscalePasses && needsUpscale(out, cfg); pass++ {
		b := out.Bounds()
		enlarged := resize.Resize(uint(b.Dx()*2), uint(b.Dy()*2), out, resize.Lanczos3)
		sharpened := imaging.Sharpen(enlarged, 0.5)
		sharpened = imaging.AdjustContrast(sharpened, 2)
		out = imaging.AdjustSaturation(sharpened, 5)
	}
	return out, true
}
