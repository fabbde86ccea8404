package rembg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"

	nhttp "github.com/chaos-io/packshot/util/http"
)

// HTTPRemover 调用 rembg 兼容的推理服务：multipart 上传 PNG，
// 响应是带 alpha 的 PNG 抠图
type HTTPRemover struct {
	endpoint string
	cli      nhttp.IClient
}

func NewHTTPRemover(endpoint string) *HTTPRemover {
	return &HTTPRemover{
		endpoint: endpoint,
		cli:      nhttp.NewHTTPClient(),
	}
}

func (r *HTTPRemover) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	if r.endpoint == "" {
		return nil, ErrUnavailable
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", "input.png")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if err := png.Encode(part, img); err != nil {
		return nil, fmt.Errorf("encode upload image: %w", err)
	}
	_ = writer.Close()

	out := &bytes.Buffer{}
	reqParam := &nhttp.RequestParam{
		RequestURI: r.endpoint,
		Method:     "POST",
		Header:     map[string]string{"Content-Type": writer.FormDataContentType()},
		Body:       body,
		Response:   out,
	}
	if err := r.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	cut, err := png.Decode(out)
	if err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}
	return cut, nil
}
