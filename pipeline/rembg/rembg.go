package rembg

import (
	"context"
	"errors"
	"image"
)

// Remover 外部 AI 抠图模型的端口。返回的图像以 alpha 通道承载模型的掩膜。
// 模型是尽力而为的协作方：失败或未配置都走 ErrUnavailable 这条正常路径，
// 流水线自行回退到纯漫水分割
type Remover interface {
	Remove(ctx context.Context, img image.Image) (image.Image, error)
}

// ErrUnavailable 模型未配置或暂不可用，属可上报的正常状态，不是请求失败
var ErrUnavailable = errors.New("rembg: model unavailable")

// Disabled 未配置模型时的占位实现
type Disabled struct{}

func (Disabled) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	return nil, ErrUnavailable
}
