package pipeline

import (
	"image"
	"image/color"
)

const (
	// nearTransparent 邻居 alpha 低于此视为"贴着透明区"
	nearTransparent = 24
	// unmatteLightMin 只处理亮度不低于此的浅色像素，深色边缘绝不动
	unmatteLightMin = 160
	// unmatteTol 与蒙版色的单通道最大距离
	unmatteTol = 48
)

// Unmatte 去除半透明边缘像素从旧背景带来的色缘。
// 仅处理紧邻透明区、本身浅色且接近蒙版色的像素：按 (1-alpha) 扣除
// 蒙版色贡献后重新归一化。alpha 为 0 或 255 的像素保持不变
func Unmatte(img *image.NRGBA, matte color.NRGBA) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*img.Stride + x*4
			a := img.Pix[i+3]
			if a == 0 || a == 255 {
				continue
			}
			if !hasTransparentNeighbor(img, x, y, w, h) {
				continue
			}
			r, g, bl := img.Pix[i], img.Pix[i+1], img.Pix[i+2]
			if lum8(r, g, bl) < unmatteLightMin {
				continue
			}
			if absDiff(int(r), int(matte.R)) > unmatteTol ||
				absDiff(int(g), int(matte.G)) > unmatteTol ||
				absDiff(int(bl), int(matte.B)) > unmatteTol {
				continue
			}
			an := float64(a) / 255.0
			img.Pix[i] = clamp8((float64(r) - float64(matte.R)*(1-an)) / an)
			img.Pix[i+1] = clamp8((float64(g) - float64(matte.G)*(1-an)) / an)
			img.Pix[i+2] = clamp8((float64(bl) - float64(matte.B)*(1-an)) / an)
		}
	}
}

func hasTransparentNeighbor(img *image.NRGBA, x, y, w, h int) bool {
	for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
		nx, ny := x+d[0], y+d[1]
		if nx < 0 || ny < 0 || nx >= w || ny >= h {
			continue
		}
		if img.Pix[ny*img.Stride+nx*4+3] <= nearTransparent {
			return true
		}
	}
	return false
}
