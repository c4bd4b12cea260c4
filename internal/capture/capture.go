// Package capture プレビューの現在のフレームを静止画として切り出す
package capture

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/kataras/golog"
	"golang.org/x/image/draw"
)

// DefaultQuality はJPEGの既定品質
const DefaultQuality = 92

const dataURLPrefix = "data:image/jpeg;base64,"

// FrameSource は自然サイズと現在のフレームを提供するプレビュー面
type FrameSource interface {
	NaturalSize() (int, int)
	Frame() (image.Image, error)
}

// Frame は切り出した静止画
type Frame struct {
	DataURL string
	Width   int
	Height  int
}

// FrameCapture はプレビューから静止画を作る
type FrameCapture struct {
	source  FrameSource
	quality int
	logger  *golog.Logger
}

// NewFrameCapture は新しいFrameCaptureを作成する
func NewFrameCapture(source FrameSource, quality int, logger *golog.Logger) *FrameCapture {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	if logger == nil {
		logger = golog.Child("[capture]")
	}
	return &FrameCapture{source: source, quality: quality, logger: logger}
}

// Capture は現在のフレームをJPEGのdata URLにする
// 映像がまだ届いていなければ false を返す
func (c *FrameCapture) Capture() (*Frame, bool) {
	if c.source == nil {
		c.logger.Warn("プレビューが接続されていません")
		return nil, false
	}

	// サイズは呼び出しごとに取り直す
	width, height := c.source.NaturalSize()
	if width == 0 || height == 0 {
		c.logger.Warn("映像の準備ができていません")
		return nil, false
	}

	src, err := c.source.Frame()
	if err != nil {
		c.logger.Warnf("フレームを取得できません: %v", err)
		return nil, false
	}

	data, err := c.encode(src, width, height)
	if err != nil {
		c.logger.Errorf("静止画の作成に失敗: %v", err)
		return nil, false
	}

	return &Frame{
		DataURL: dataURLPrefix + base64.StdEncoding.EncodeToString(data),
		Width:   width,
		Height:  height,
	}, true
}

// encode は width x height のオフスクリーン面にフレームを写してJPEGにする
func (c *FrameCapture) encode(src image.Image, width, height int) ([]byte, error) {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	bounds := src.Bounds()
	if bounds.Dx() == width && bounds.Dy() == height {
		draw.Copy(dst, image.Point{}, src, bounds, draw.Src, nil)
	} else {
		// サイズ取得とフレーム取得の間に解像度が変わった場合
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: c.quality}); err != nil {
		return nil, fmt.Errorf("jpeg encode failed: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeDataURL はdata URLからJPEGのバイト列を取り出す
func DecodeDataURL(dataURL string) ([]byte, error) {
	if len(dataURL) < len(dataURLPrefix) || dataURL[:len(dataURLPrefix)] != dataURLPrefix {
		return nil, errors.New("JPEGのdata URLではありません")
	}
	return base64.StdEncoding.DecodeString(dataURL[len(dataURLPrefix):])
}
