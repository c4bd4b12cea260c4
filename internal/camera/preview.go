package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"sync"

	"github.com/kataras/golog"
)

// Preview はストリームの最新フレームを保持するプレビュー面
// ブラウザのvideo要素に相当し、自然サイズは最新フレームから得る
type Preview struct {
	mu     sync.RWMutex
	latest []byte
	width  int
	height int
	subs   map[chan []byte]struct{}

	// reset はUnbindのたびに閉じて作り直す。待機中のWaitFrameはreadyを読み直す
	ready chan struct{}
	reset chan struct{}

	stopCh chan struct{}
	wg     sync.WaitGroup
	logger *golog.Logger
}

// NewPreview は新しいPreviewを作成する
func NewPreview(logger *golog.Logger) *Preview {
	if logger == nil {
		logger = golog.Child("[preview]")
	}
	return &Preview{
		ready:  make(chan struct{}),
		reset:  make(chan struct{}),
		subs:   make(map[chan []byte]struct{}),
		logger: logger,
	}
}

// Bind はストリームをプレビューに接続する
// 以前のストリームが接続されていれば先に切り離す
func (p *Preview) Bind(s Stream) {
	p.Unbind()

	p.mu.Lock()
	p.stopCh = make(chan struct{})
	stopCh := p.stopCh
	p.mu.Unlock()

	p.wg.Add(1)
	go p.pump(s, stopCh)
}

// Unbind はストリームを切り離し、保持しているフレームを捨てる
func (p *Preview) Unbind() {
	p.mu.Lock()
	stopCh := p.stopCh
	p.stopCh = nil
	p.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		p.wg.Wait()
	}

	p.mu.Lock()
	p.latest = nil
	p.width, p.height = 0, 0
	p.ready = make(chan struct{})
	close(p.reset)
	p.reset = make(chan struct{})
	p.mu.Unlock()
}

func (p *Preview) pump(s Stream, stopCh chan struct{}) {
	defer p.wg.Done()

	frames := s.Frames()
	errs := s.Errors()
	for {
		select {
		case <-stopCh:
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			p.logger.Warnf("ストリーム %s: %v", s.ID(), err)
		case frame, ok := <-frames:
			if !ok {
				return
			}
			p.store(frame)
		}
	}
}

// store はフレームを最新として記録し、購読者に配る
func (p *Preview) store(frame []byte) {
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(frame))
	if err != nil {
		p.logger.Debugf("壊れたフレームを破棄: %v", err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.latest == nil {
		close(p.ready)
	}
	p.latest = frame
	p.width, p.height = cfg.Width, cfg.Height

	for ch := range p.subs {
		select {
		case ch <- frame:
		default:
			// 遅い購読者はこのフレームを取りこぼす
		}
	}
}

// NaturalSize は最新フレームの幅と高さを返す。フレームがなければ0,0
func (p *Preview) NaturalSize() (int, int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.width, p.height
}

// LatestJPEG は最新フレームのJPEGデータを返す
func (p *Preview) LatestJPEG() ([]byte, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.latest == nil {
		return nil, false
	}
	return p.latest, true
}

// Frame は最新フレームをデコードして返す
func (p *Preview) Frame() (image.Image, error) {
	data, ok := p.LatestJPEG()
	if !ok {
		return nil, ErrNoFrame
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("フレームのデコードに失敗: %w", err)
	}
	return img, nil
}

// WaitFrame は最初のフレームが届くまで待つ
// 待機中にストリームが切り替わった場合は新しいストリームのフレームを待つ
func (p *Preview) WaitFrame(ctx context.Context) error {
	for {
		p.mu.RLock()
		ready, reset := p.ready, p.reset
		p.mu.RUnlock()

		select {
		case <-ready:
			return nil
		case <-reset:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Subscribe は新しいフレームを受け取るチャンネルと解除関数を返す
func (p *Preview) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 1)

	p.mu.Lock()
	p.subs[ch] = struct{}{}
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, ch)
			p.mu.Unlock()
		})
	}
}
