// Package ui キオスク端末の画面
//
// Surface は選択欄・入力欄・結果表示・警告を持つ画面の状態で、
// 各部品からは小さなインターフェースとして見える。
// Model はSurfaceをbubbleteaで描画し、キー操作をAppに渡す。
package ui

import (
	"sync"

	"presenca/internal/camera"
	"presenca/internal/classes"
)

// Surface は画面の状態。別のgoroutineから更新されても安全
type Surface struct {
	mu sync.Mutex

	devices   []camera.DeviceOption
	deviceIdx int
	classes   []classes.Option
	classIdx  int
	name      string

	result string
	failed bool
	alert  string

	changed chan struct{}
}

// NewSurface は空の画面を作成する
func NewSurface() *Surface {
	return &Surface{changed: make(chan struct{}, 1)}
}

// Snapshot は描画用の画面の写し
type Snapshot struct {
	Devices   []camera.DeviceOption
	DeviceIdx int
	Classes   []classes.Option
	ClassIdx  int
	Name      string
	Result    string
	Failed    bool
	Alert     string
}

// ReplaceDevices はデバイス選択欄を置き換え、先頭を選ぶ
func (s *Surface) ReplaceDevices(options []camera.DeviceOption) {
	s.mu.Lock()
	s.devices = append([]camera.DeviceOption(nil), options...)
	s.deviceIdx = 0
	s.mu.Unlock()
	s.notify()
}

// ReplaceClasses はクラス選択欄を置き換え、先頭を選ぶ
func (s *Surface) ReplaceClasses(options []classes.Option) {
	s.mu.Lock()
	s.classes = append([]classes.Option(nil), options...)
	s.classIdx = 0
	s.mu.Unlock()
	s.notify()
}

// SelectedDevice は選択中のデバイスID。選択欄が空なら空文字
func (s *Surface) SelectedDevice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.devices) == 0 {
		return ""
	}
	return s.devices[s.deviceIdx].Value
}

// SelectDevice は指定IDのデバイスを選ぶ。なければfalse
func (s *Surface) SelectDevice(id string) bool {
	s.mu.Lock()
	found := false
	for i, d := range s.devices {
		if d.Value == id {
			s.deviceIdx = i
			found = true
			break
		}
	}
	s.mu.Unlock()
	if found {
		s.notify()
	}
	return found
}

// SelectClass は指定IDのクラスを選ぶ。なければfalse
func (s *Surface) SelectClass(id string) bool {
	s.mu.Lock()
	found := false
	for i, c := range s.classes {
		if c.Value == id {
			s.classIdx = i
			found = true
			break
		}
	}
	s.mu.Unlock()
	if found {
		s.notify()
	}
	return found
}

// MoveDevice は選択中のデバイスをdelta分ずらす（端で折り返す）
func (s *Surface) MoveDevice(delta int) {
	s.mu.Lock()
	s.deviceIdx = wrap(s.deviceIdx+delta, len(s.devices))
	s.mu.Unlock()
	s.notify()
}

// MoveClass は選択中のクラスをdelta分ずらす（端で折り返す）
func (s *Surface) MoveClass(delta int) {
	s.mu.Lock()
	s.classIdx = wrap(s.classIdx+delta, len(s.classes))
	s.mu.Unlock()
	s.notify()
}

// Name は名前欄の値
func (s *Surface) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// SetName は名前欄の値を設定する
func (s *Surface) SetName(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

// ClassID は選択中のクラスID。未選択なら空文字
func (s *Surface) ClassID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.classes) == 0 {
		return ""
	}
	return s.classes[s.classIdx].Value
}

// SetText は結果欄に文言を表示する
func (s *Surface) SetText(text string) {
	s.SetResult(text, false)
}

// SetResult は結果欄に文言を表示する。failedなら失敗として強調する
func (s *Surface) SetResult(text string, failed bool) {
	s.mu.Lock()
	s.result = text
	s.failed = failed
	s.mu.Unlock()
	s.notify()
}

// Alert は閉じるまで操作を止める警告を出す
func (s *Surface) Alert(text string) {
	s.mu.Lock()
	s.alert = text
	s.mu.Unlock()
	s.notify()
}

// DismissAlert は警告を閉じる
func (s *Surface) DismissAlert() {
	s.mu.Lock()
	s.alert = ""
	s.mu.Unlock()
	s.notify()
}

// Snapshot は現在の状態の写しを返す
func (s *Surface) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Devices:   append([]camera.DeviceOption(nil), s.devices...),
		DeviceIdx: s.deviceIdx,
		Classes:   append([]classes.Option(nil), s.classes...),
		ClassIdx:  s.classIdx,
		Name:      s.name,
		Result:    s.result,
		Failed:    s.failed,
		Alert:     s.alert,
	}
}

// Changes は状態が変わるたびに通知を受け取るチャンネル
// 通知はまとめられることがある
func (s *Surface) Changes() <-chan struct{} {
	return s.changed
}

func (s *Surface) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

func wrap(i, n int) int {
	if n == 0 {
		return 0
	}
	i %= n
	if i < 0 {
		i += n
	}
	return i
}
