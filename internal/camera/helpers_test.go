package camera

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"testing"
	"time"
)

// testJPEG は指定サイズの単色JPEGを作る
func testJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("jpeg encode failed: %v", err)
	}
	return buf.Bytes()
}

// waitSize はプレビューが期待サイズになるまで待つ
func waitSize(t *testing.T, p *Preview, width, height int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if w, h := p.NaturalSize(); w == width && h == height {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	w, h := p.NaturalSize()
	t.Fatalf("preview size = %dx%d, want %dx%d", w, h, width, height)
}

type recordingSelector struct {
	mu      sync.Mutex
	options []DeviceOption
	calls   int
}

func (r *recordingSelector) ReplaceDevices(options []DeviceOption) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.options = options
}

type recordingSink struct {
	mu   sync.Mutex
	text string
}

func (r *recordingSink) SetText(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.text = text
}

func (r *recordingSink) Text() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.text
}

func timeoutCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
