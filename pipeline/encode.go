package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/chai2010/webp"
)

// maxEncodeAttempts 重编码次数上限，循环必须有界
const maxEncodeAttempts = 8

// EncodeStats 自适应编码的结果统计
type EncodeStats struct {
	Quality   int
	Size      int
	Attempts  int
	TargetMet bool
}

// Encode 按配置格式编码。有损格式从起始质量逐步降档重编码，
// 直到满足 TargetMaxKB、达到质量下限或用完尝试次数；降到下限仍超标时
// 返回下限质量的结果并在统计里标记未达标，而不是报错。
// 无损格式只编码一次
func Encode(img image.Image, cfg Config) ([]byte, EncodeStats, error) {
	budget := cfg.TargetMaxKB * 1024

	if cfg.OutputFormat == FormatPNG {
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, EncodeStats{}, fmt.Errorf("encode png: %w", err)
		}
		return buf.Bytes(), EncodeStats{
			Quality:   100,
			Size:      buf.Len(),
			Attempts:  1,
			TargetMet: budget == 0 || buf.Len() <= budget,
		}, nil
	}

	q := cfg.Quality
	step := 16
	var data []byte
	attempts := 0
	for {
		var err error
		data, err = encodeLossy(img, cfg.OutputFormat, q)
		if err != nil {
			return nil, EncodeStats{}, err
		}
		attempts++
		if budget == 0 || len(data) <= budget {
			break
		}
		if q <= cfg.MinQuality || attempts >= maxEncodeAttempts {
			break
		}
		// 递减的降档步长
		q = max(cfg.MinQuality, q-step)
		if step > 4 {
			step /= 2
		}
	}

	return data, EncodeStats{
		Quality:   q,
		Size:      len(data),
		Attempts:  attempts,
		TargetMet: budget == 0 || len(data) <= budget,
	}, nil
}

func encodeLossy(img image.Image, format Format, quality int) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatJPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	case FormatWEBP:
		if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
			return nil, fmt.Errorf("encode webp: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported lossy format %q", format)
	}
	return buf.Bytes(), nil
}
