package camera

import (
	"context"
	"fmt"
	"sync"
)

// MockOpener はテスト用のStreamOpener実装
// 同時に生きているハンドル数を記録する
type MockOpener struct {
	mu      sync.Mutex
	failFor map[string]error
	live    int
	maxLive int
	opened  []*MockStream
	seq     int
}

// NewMockOpener は新しいMockOpenerを作成する
func NewMockOpener() *MockOpener {
	return &MockOpener{failFor: make(map[string]error)}
}

// Open はモックストリームを返す
func (m *MockOpener) Open(_ context.Context, deviceID string) (Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.failFor[deviceID]; ok {
		return nil, err
	}

	m.seq++
	s := &MockStream{
		id:       fmt.Sprintf("mock-%d", m.seq),
		deviceID: deviceID,
		frames:   make(chan []byte, 4),
		errs:     make(chan error, 1),
		owner:    m,
	}
	m.live++
	if m.live > m.maxLive {
		m.maxLive = m.live
	}
	m.opened = append(m.opened, s)
	return s, nil
}

// SetShouldFail はテスト用に指定デバイスの取得失敗を設定する
func (m *MockOpener) SetShouldFail(deviceID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failFor, deviceID)
		return
	}
	m.failFor[deviceID] = err
}

// Live は現在生きているハンドル数
func (m *MockOpener) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live
}

// MaxLive は同時に生きていたハンドル数の最大値
func (m *MockOpener) MaxLive() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxLive
}

// Opened は取得したストリームを順に返す
func (m *MockOpener) Opened() []*MockStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*MockStream, len(m.opened))
	copy(out, m.opened)
	return out
}

func (m *MockOpener) released() {
	m.mu.Lock()
	m.live--
	m.mu.Unlock()
}

// MockStream はテスト用のStream実装
type MockStream struct {
	id       string
	deviceID string
	frames   chan []byte
	errs     chan error
	owner    *MockOpener

	mu      sync.Mutex
	stopped bool
}

func (s *MockStream) ID() string { return s.id }

func (s *MockStream) DeviceID() string { return s.deviceID }

func (s *MockStream) Frames() <-chan []byte { return s.frames }

func (s *MockStream) Errors() <-chan error { return s.errs }

// Stop はストリームを解放する
func (s *MockStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.frames)
	s.owner.released()
	return nil
}

// Push はテスト用にフレームを流す。停止後は何もしない
func (s *MockStream) Push(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.frames <- frame
}

// Stopped は停止済みかどうか
func (s *MockStream) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
