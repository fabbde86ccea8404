package pipeline

import (
	"fmt"
	"image"
)

const (
	// aiConfidence 模型 alpha 低于此视为不确定，需要漫水结果佐证；
	// 刻意不取中点 128
	aiConfidence = 200
	// minRestoreArea 整体恢复连通区域的最小面积，过滤噪点
	minRestoreArea = 16
)

// CorrectAIMask 用独立计算的漫水掩膜核对 AI 模型抠图结果，原地修正 cut。
// 两类缺陷：
//   - 鬼影：模型给了半透明、漫水却判定为内部产品的像素，提升为全不透明；
//   - 误删：模型整块清零、漫水仍判定为产品的独立连通区域，从原图整体恢复，
//     多产品构图不能丢件。
//
// 返回提升与恢复的像素数
func CorrectAIMask(cut, orig *image.NRGBA, cfg Config) (promoted, restored int, err error) {
	cb, ob := cut.Bounds(), orig.Bounds()
	w, h := cb.Dx(), cb.Dy()
	if w != ob.Dx() || h != ob.Dy() {
		return 0, 0, fmt.Errorf("mask size %dx%d does not match source %dx%d", w, h, ob.Dx(), ob.Dy())
	}

	flood := floodMask(orig, cfg)

	// ---------- 鬼影提升 ----------
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			ci := y*cut.Stride + x*4
			a := cut.Pix[ci+3]
			if a == 0 || a >= aiConfidence {
				continue
			}
			if flood.Pix[y*flood.Stride+x] >= maskBGConfidence {
				continue
			}
			oi := y*orig.Stride + x*4
			cut.Pix[ci] = orig.Pix[oi]
			cut.Pix[ci+1] = orig.Pix[oi+1]
			cut.Pix[ci+2] = orig.Pix[oi+2]
			cut.Pix[ci+3] = 255
			promoted++
		}
	}

	// ---------- 误删区域恢复 ----------
	// 模型清零而漫水仍认作产品的像素，按连通区域成块恢复
	visited := make([]bool, w*h)
	removed := func(x, y int) bool {
		return cut.Pix[y*cut.Stride+x*4+3] == 0 &&
			flood.Pix[y*flood.Stride+x] < maskBGConfidence
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if visited[y*w+x] || !removed(x, y) {
				continue
			}
			region := []int{y*w + x}
			visited[y*w+x] = true
			for head := 0; head < len(region); head++ {
				cx, cy := region[head]%w, region[head]/w
				for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
					nx, ny := cx+d[0], cy+d[1]
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					if visited[ny*w+nx] || !removed(nx, ny) {
						continue
					}
					visited[ny*w+nx] = true
					region = append(region, ny*w+nx)
				}
			}
			if len(region) < minRestoreArea {
				continue
			}
			for _, p := range region {
				px, py := p%w, p/w
				ci := py*cut.Stride + px*4
				oi := py*orig.Stride + px*4
				cut.Pix[ci] = orig.Pix[oi]
				cut.Pix[ci+1] = orig.Pix[oi+1]
				cut.Pix[ci+2] = orig.Pix[oi+2]
				cut.Pix[ci+3] = 255
				restored++
			}
		}
	}
	return promoted, restored, nil
}
