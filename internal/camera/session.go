package camera

import (
	"context"
	"fmt"
	"sync"

	"github.com/kataras/golog"
)

// MsgCameraUnavailable はカメラ取得に失敗したときの表示文言
const MsgCameraUnavailable = "Não foi possível acessar a câmera."

// Session はアクティブなストリームハンドルを1つだけ所有する
type Session struct {
	opener  StreamOpener
	preview *Preview
	sink    MessageSink
	logger  *golog.Logger

	// startMu はStartとCloseを直列化する。取得中も保持する
	startMu sync.Mutex

	// mu はactiveとstatusだけを守る
	mu     sync.Mutex
	active Stream
	status Status
}

// NewSession は新しいSessionを作成する
// opener が nil の場合はプラットフォーム非対応として扱う
func NewSession(opener StreamOpener, preview *Preview, sink MessageSink, logger *golog.Logger) *Session {
	if logger == nil {
		logger = golog.Child("[camera]")
	}
	if preview == nil {
		preview = NewPreview(nil)
	}
	return &Session{
		opener:  opener,
		preview: preview,
		sink:    sink,
		logger:  logger,
		status:  StatusInactive,
	}
}

// Start は指定デバイスのストリームを開始する。空なら任意のデバイス
// 既存のストリームは新しい取得の前に必ず停止・解放する
// 取得中もStatusとActiveはすぐに返る
func (s *Session) Start(ctx context.Context, deviceID string) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	s.release()

	if s.opener == nil {
		s.logger.Error(ErrUnsupported)
		s.setStatus(StatusError)
		return ErrUnsupported
	}

	s.setStatus(StatusStarting)
	stream, err := s.opener.Open(ctx, deviceID)
	if err != nil {
		s.logger.Errorf("カメラへのアクセスに失敗: %v", err)
		s.setStatus(StatusError)
		if s.sink != nil {
			s.sink.SetText(MsgCameraUnavailable)
		}
		return fmt.Errorf("カメラ %q の開始に失敗: %w", deviceID, err)
	}

	s.preview.Bind(stream)

	s.mu.Lock()
	s.active = stream
	s.status = StatusActive
	s.mu.Unlock()

	s.logger.Infof("ストリーム %s を開始: %s", stream.ID(), stream.DeviceID())
	return nil
}

// Close はアクティブなストリームを解放する（終了時用）
func (s *Session) Close() {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	s.release()
	s.setStatus(StatusInactive)
}

// release はプレビューから切り離してからハンドルを停止する
// startMu を保持して呼ぶ
func (s *Session) release() {
	s.mu.Lock()
	active := s.active
	s.active = nil
	s.mu.Unlock()

	if active == nil {
		return
	}
	s.preview.Unbind()
	if err := active.Stop(); err != nil {
		s.logger.Warnf("ストリーム %s の停止に失敗: %v", active.ID(), err)
	}
	s.logger.Debugf("ストリーム %s を解放", active.ID())
}

func (s *Session) setStatus(status Status) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// Active は現在のストリームのIDとデバイスを返す
func (s *Session) Active() (streamID, deviceID string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return "", "", false
	}
	return s.active.ID(), s.active.DeviceID(), true
}

// Status は現在の状態を返す
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Preview は接続先のプレビュー面を返す
func (s *Session) Preview() *Preview {
	return s.preview
}
