package pipeline

import "image"

// bboxPadding 产品外接框的固定留边（像素），越界时贴边收紧
const bboxPadding = 10

// ProductBounds 把背景掩膜收缩为包住全部产品像素的最小矩形并外扩留边。
// 掩膜里没有产品像素、或矩形退化（过小）时返回 false，调用方应回退为
// 处理整幅原图，绝不能输出空图
func ProductBounds(mask *image.Gray, padding int) (image.Rectangle, bool) {
	b := mask.Bounds()
	w, h := b.Dx(), b.Dy()

	minX, minY := w, h
	maxX, maxY := -1, -1
	for y := 0; y < h; y++ {
		row := y * mask.Stride
		for x := 0; x < w; x++ {
			if mask.Pix[row+x] < maskBGConfidence {
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
				if y < minY {
					minY = y
				}
				maxY = y
			}
		}
	}

	if maxX < 0 {
		return image.Rectangle{}, false
	}
	// 退化矩形（如 1x1）视为噪声
	if maxX-minX < 1 || maxY-minY < 1 {
		return image.Rectangle{}, false
	}

	r := image.Rect(
		max(0, minX-padding),
		max(0, minY-padding),
		min(w, maxX+1+padding),
		min(h, maxY+1+padding),
	)
	return r, true
}
