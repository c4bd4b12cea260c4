package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SyntheticOpener はテストパターンを流す仮想カメラ
// 実機と同じく1デバイスにつき同時に1ハンドルしか取得できない
type SyntheticOpener struct {
	discovery Discovery
	width     int
	height    int
	interval  time.Duration

	mu   sync.Mutex
	held map[string]bool
}

// NewSyntheticOpener は新しいSyntheticOpenerを作成する
func NewSyntheticOpener(discovery Discovery, cfg SourceConfig) *SyntheticOpener {
	width, height, fps := cfg.Width, cfg.Height, cfg.FPS
	if width <= 0 || height <= 0 {
		width, height = 640, 480
	}
	if fps <= 0 {
		fps = 15
	}
	return &SyntheticOpener{
		discovery: discovery,
		width:     width,
		height:    height,
		interval:  time.Second / time.Duration(fps),
		held:      make(map[string]bool),
	}
}

// Open はテストパターンのストリームを開始する
func (o *SyntheticOpener) Open(ctx context.Context, deviceID string) (Stream, error) {
	if deviceID == "" {
		resolved, err := defaultDevice(ctx, o.discovery)
		if err != nil {
			return nil, err
		}
		deviceID = resolved
	}

	o.mu.Lock()
	if o.held[deviceID] {
		o.mu.Unlock()
		return nil, fmt.Errorf("カメラ %s は使用中です", deviceID)
	}
	o.held[deviceID] = true
	o.mu.Unlock()

	s := &syntheticStream{
		id:       uuid.New().String(),
		deviceID: deviceID,
		frames:   make(chan []byte, 2),
		errs:     make(chan error, 1),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		release: func() {
			o.mu.Lock()
			delete(o.held, deviceID)
			o.mu.Unlock()
		},
	}

	// 最初のフレームは同期的に作って、取得直後から映像がある状態にする
	first, err := renderPattern(o.width, o.height, 0)
	if err != nil {
		s.release()
		return nil, err
	}
	s.frames <- first

	go s.run(o.width, o.height, o.interval)
	return s, nil
}

type syntheticStream struct {
	id       string
	deviceID string
	frames   chan []byte
	errs     chan error
	stopCh   chan struct{}
	done     chan struct{}
	release  func()
	stopOnce sync.Once
}

func (s *syntheticStream) ID() string { return s.id }

func (s *syntheticStream) DeviceID() string { return s.deviceID }

func (s *syntheticStream) Frames() <-chan []byte { return s.frames }

func (s *syntheticStream) Errors() <-chan error { return s.errs }

func (s *syntheticStream) Stop() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.done
	return nil
}

func (s *syntheticStream) run(width, height int, interval time.Duration) {
	defer close(s.done)
	defer s.release()
	defer close(s.frames)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for tick := 1; ; tick++ {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			frame, err := renderPattern(width, height, tick)
			if err != nil {
				select {
				case s.errs <- err:
				default:
				}
				continue
			}
			// 古いフレームは捨てて最新だけ残す
			select {
			case s.frames <- frame:
			default:
				select {
				case <-s.frames:
				default:
				}
				select {
				case s.frames <- frame:
				default:
				}
			}
		}
	}
}

// renderPattern はグラデーションの上を縦帯が流れるJPEGを作る
func renderPattern(width, height, tick int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	bar := (tick * 8) % width
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.RGBA{
				R: uint8(x * 255 / width),
				G: uint8(y * 255 / height),
				B: 128,
				A: 255,
			}
			if x >= bar && x < bar+width/16 {
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("テストパターンのエンコードに失敗: %w", err)
	}
	return buf.Bytes(), nil
}
