// Package pipeline 实现产品图分割与合成的核心流水线：
// 判定产品/背景像素、修复抠图边缘、裁剪外接框、合成到目标画布、
// 在体积预算内自适应编码。核心只接收解码后的像素和一份配置，
// 不感知 HTTP、文件路径或 JSON
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/chaos-io/packshot/pipeline/rembg"
)

// Diagnostics 随结果返回的结构化诊断，由调用方决定如何呈现
type Diagnostics struct {
	ProductFound   bool `json:"product_found"`
	EncodedSize    int  `json:"encoded_size"`
	Quality        int  `json:"quality"`
	EncodeAttempts int  `json:"encode_attempts"`
	SizeTargetMet  bool `json:"size_target_met"`
	AIApplied      bool `json:"ai_applied"`
	AIFallback     bool `json:"ai_fallback"`
	Upscaled       bool `json:"upscaled"`
}

// Result 单次请求的输出
type Result struct {
	Data        []byte
	Format      Format
	Diagnostics Diagnostics
}

// unmatteColor 抠图边缘残留的蒙版色，产品图场景固定为白
var unmatteColor = color.NRGBA{R: 255, G: 255, B: 255, A: 255}

// Process 对一幅已解码图像执行完整流水线。只有坏输入和非法配置会返回
// 错误；分割落空、AI 不可用、体积超标都降级为尽力结果加诊断标记
func Process(ctx context.Context, src image.Image, cfg Config, remover rembg.Remover) (*Result, error) {
	if src == nil {
		return nil, errors.New("nil input image")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b := src.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("empty input image %dx%d", b.Dx(), b.Dy())
	}

	img := toNRGBA(src)
	var diag Diagnostics

	// 原生透明压平到白底（可选；会让后续走漫水而不是 alpha 模式）
	if cfg.FlattenPNGFirst && hasUsefulAlpha(img) {
		img = flattenOnWhite(img)
	}

	if up, ok := autoUpscale(img, cfg); ok {
		img = toNRGBA(up)
		diag.Upscaled = true
	}

	// AI 抠图 + 后处理修正；任何失败都回退纯漫水
	work := img
	if cfg.AIBackgroundRemoval {
		cutImg, err := removeBackground(ctx, remover, img)
		if err != nil {
			diag.AIFallback = true
		} else {
			cut := toNRGBA(cutImg)
			if _, _, err := CorrectAIMask(cut, img, cfg); err != nil {
				diag.AIFallback = true
			} else {
				diag.AIApplied = true
				work = cut
			}
		}
	}

	if hasUsefulAlpha(work) {
		Unmatte(work, unmatteColor)
	}

	mask := Segment(work, cfg)
	box, found := ProductBounds(mask, bboxPadding)
	diag.ProductFound = found

	var canvas *image.NRGBA
	var err error
	if found {
		canvas, err = ComposeCanvas(cropNRGBA(work, box), cfg)
	} else {
		// 分割落空：整幅原图原样走后半程
		canvas, err = composeFallback(img, cfg)
	}
	if err != nil {
		return nil, err
	}

	data, stats, err := Encode(canvas, cfg)
	if err != nil {
		return nil, err
	}
	diag.EncodedSize = stats.Size
	diag.Quality = stats.Quality
	diag.EncodeAttempts = stats.Attempts
	diag.SizeTargetMet = stats.TargetMet

	return &Result{Data: data, Format: cfg.OutputFormat, Diagnostics: diag}, nil
}

func removeBackground(ctx context.Context, remover rembg.Remover, img image.Image) (image.Image, error) {
	if remover == nil {
		return nil, rembg.ErrUnavailable
	}
	return remover.Remove(ctx, img)
}

func cropNRGBA(img *image.NRGBA, r image.Rectangle) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}
