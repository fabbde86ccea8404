package pipeline

import "image"

// 掩膜约定：255=背景，0=产品；低于 maskBGConfidence 一律按产品处理，避免边缘被蚕食
const (
	maskBackground   = 255
	maskProduct      = 0
	maskBGConfidence = 192
)

const (
	// floodMaxDim 漫水在缩小副本上进行的最长边
	floodMaxDim = 320
	// edgeMargin 边框屏障宽度：该范围内必须通过更严格的背景测试
	edgeMargin = 2
	// seedLumDelta 种子与角区背景亮度的最大偏差（更严格的测试）
	seedLumDelta = 8
	// growLumTol 漫水生长时相邻像素的亮度容差
	growLumTol = 8
	// alpha 两端的置信区间，中间值交给漫水判定
	alphaLowCut  = 16
	alphaHighCut = 224
)

type polarity int

const (
	polarityWhite polarity = iota
	polarityBlack
)

// Segment 计算整幅图的背景掩膜。带可用 alpha 时走 alpha 模式，否则按背景色漫水
func Segment(img *image.NRGBA, cfg Config) *image.Gray {
	if hasUsefulAlpha(img) {
		return alphaMask(img, cfg)
	}
	return floodMask(img, cfg)
}

// alphaMask alpha 两端直接定性，中间的半透明像素用漫水结果消歧，
// 不在中点一刀切
func alphaMask(img *image.NRGBA, cfg Config) *image.Gray {
	flood := floodMask(img, cfg)
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	mask := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := img.Pix[y*img.Stride+x*4+3]
			switch {
			case a <= alphaLowCut:
				mask.Pix[y*mask.Stride+x] = maskBackground
			case a >= alphaHighCut:
				mask.Pix[y*mask.Stride+x] = maskProduct
			default:
				mask.Pix[y*mask.Stride+x] = flood.Pix[y*flood.Stride+x]
			}
		}
	}
	return mask
}

// floodMask 从边框种子漫水找背景。亮度过阈值只是必要条件，
// 还必须经由颜色连续的路径连到边框，防止掩膜渗入颜色相近的产品区域
func floodMask(img *image.NRGBA, cfg Config) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	// ---------- 最近邻缩小，避免边界混色造成桥接 ----------
	sw, sh := w, h
	if m := max(w, h); m > floodMaxDim {
		sw = max(1, w*floodMaxDim/m)
		sh = max(1, h*floodMaxDim/m)
	}
	lum := make([]uint8, sw*sh)
	for sy := 0; sy < sh; sy++ {
		srcY := sy * h / sh
		for sx := 0; sx < sw; sx++ {
			srcX := sx * w / sw
			i := srcY*img.Stride + srcX*4
			lum[sy*sw+sx] = lum8(img.Pix[i], img.Pix[i+1], img.Pix[i+2])
		}
	}

	pol, bgRef := detectPolarity(lum, sw, sh, cfg)

	passes := func(l uint8) bool {
		if pol == polarityWhite {
			return int(l) >= cfg.WhiteThreshold
		}
		return int(l) <= cfg.BlackThreshold
	}
	strict := func(l uint8) bool {
		return passes(l) && absDiff(int(l), int(bgRef)) <= seedLumDelta
	}
	nearEdge := func(x, y int) bool {
		return x < edgeMargin || y < edgeMargin || x >= sw-edgeMargin || y >= sh-edgeMargin
	}

	small := make([]uint8, sw*sh) // 0=产品，255=背景

	// ---------- 边框种子 ----------
	queue := make([]int, 0, sw*2+sh*2)
	seed := func(x, y int) {
		i := y*sw + x
		if small[i] == maskProduct && strict(lum[i]) {
			small[i] = maskBackground
			queue = append(queue, i)
		}
	}
	for x := 0; x < sw; x++ {
		seed(x, 0)
		seed(x, sh-1)
	}
	for y := 0; y < sh; y++ {
		seed(0, y)
		seed(sw-1, y)
	}

	// ---------- BFS 生长 ----------
	for head := 0; head < len(queue); head++ {
		cur := queue[head]
		cx, cy := cur%sw, cur/sw
		cl := lum[cur]
		for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			nx, ny := cx+d[0], cy+d[1]
			if nx < 0 || ny < 0 || nx >= sw || ny >= sh {
				continue
			}
			ni := ny*sw + nx
			if small[ni] != maskProduct {
				continue
			}
			nl := lum[ni]
			if !passes(nl) || absDiff(int(nl), int(cl)) > growLumTol {
				continue
			}
			if nearEdge(nx, ny) && !strict(nl) {
				continue
			}
			small[ni] = maskBackground
			queue = append(queue, ni)
		}
	}

	// ---------- 最近邻放大回原分辨率 ----------
	mask := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		sy := y * sh / h
		for x := 0; x < w; x++ {
			mask.Pix[y*mask.Stride+x] = small[sy*sw+x*sw/w]
		}
	}
	return mask
}

// detectPolarity 采样四个角区的平均亮度，推断场景是白底还是黑底；
// 分歧时默认白底。返回同意该极性的角区平均亮度作为屏障参考值
func detectPolarity(lum []uint8, sw, sh int, cfg Config) (polarity, uint8) {
	// 角区尺寸和起点都收紧到网格内，极端长宽比的小网格会让角区重叠
	cw := min(sw, max(2, sw/16))
	ch := min(sh, max(2, sh/16))
	cx := max(0, sw-cw)
	cy := max(0, sh-ch)
	corners := [4][2]int{{0, 0}, {cx, 0}, {0, cy}, {cx, cy}}

	var avgs [4]int
	for i, c := range corners {
		sum, n := 0, 0
		for y := c[1]; y < c[1]+ch && y < sh; y++ {
			for x := c[0]; x < c[0]+cw && x < sw; x++ {
				sum += int(lum[y*sw+x])
				n++
			}
		}
		avgs[i] = sum / max(1, n)
	}

	white, black := 0, 0
	for _, a := range avgs {
		if a >= cfg.WhiteThreshold {
			white++
		}
		if a <= cfg.BlackThreshold {
			black++
		}
	}

	pol := polarityWhite
	if black > white {
		pol = polarityBlack
	}

	sum, n := 0, 0
	for _, a := range avgs {
		if (pol == polarityWhite && a >= cfg.WhiteThreshold) ||
			(pol == polarityBlack && a <= cfg.BlackThreshold) {
			sum += a
			n++
		}
	}
	if n == 0 {
		if pol == polarityWhite {
			return pol, 255
		}
		return pol, 0
	}
	return pol, uint8(sum / n)
}

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
