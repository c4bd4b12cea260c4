// Package app 画面の初期化と利用者の操作をまとめる
//
// # 責務
// - 部品の組み立て（一度だけ）
// - 初期化: デバイス一覧 → クラス一覧（登録画面のみ） → 最初のデバイスで映像開始
// - カメラ切り替えと撮影・送信の受け付け
//
// # 状態
//
//	Idle → DevicesListed → StreamActive → Submitting → StreamActive
//
// 失敗したときは直前の安定した状態に戻る。
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kataras/golog"

	"presenca/internal/camera"
	"presenca/internal/capture"
	"presenca/internal/classes"
	"presenca/internal/submission"
)

// State は画面の状態
type State int

const (
	StateIdle State = iota
	StateDevicesListed
	StateStreamActive
	StateSubmitting
)

func (s State) String() string {
	switch s {
	case StateDevicesListed:
		return "devices-listed"
	case StateStreamActive:
		return "stream-active"
	case StateSubmitting:
		return "submitting"
	default:
		return "idle"
	}
}

// Surface は画面側の部品。選択欄、入力欄、結果表示、警告を持つ
type Surface interface {
	camera.DeviceSelector
	classes.Selector
	submission.Form
	submission.Display
	submission.Alerter
}

// Backend は出欠サーバー
type Backend interface {
	submission.Poster
	classes.Source
}

// Deps はAppの依存
type Deps struct {
	PageMode string
	PagePath string

	// PreferredDevice が一覧にあれば最初のデバイスの代わりに使う
	PreferredDevice string

	Source      camera.Source
	Backend     Backend
	Surface     Surface
	JPEGQuality int
	Logger      *golog.Logger
}

// App は1画面分の部品と状態を持つ
type App struct {
	mode       submission.Mode
	preferred  string
	surface    Surface
	enumerator *camera.Enumerator
	session    *camera.Session
	preview    *camera.Preview
	fetcher    *classes.Fetcher
	capturer   *capture.FrameCapture
	submitter  *submission.Submitter
	logger     *golog.Logger

	mu      sync.Mutex
	state   State
	devices []camera.VideoDevice
}

// New は部品を組み立てる。画面の種類はここで一度だけ決める
func New(deps Deps) (*App, error) {
	mode, err := submission.ResolveMode(deps.PageMode, deps.PagePath)
	if err != nil {
		return nil, fmt.Errorf("画面の種類を決められません: %w", err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = golog.Child("[app]")
	}

	preview := camera.NewPreview(nil)
	capturer := capture.NewFrameCapture(preview, deps.JPEGQuality, nil)

	a := &App{
		mode:       mode,
		preferred:  deps.PreferredDevice,
		surface:    deps.Surface,
		enumerator: camera.NewEnumerator(deps.Source.Discovery, deps.Surface, nil),
		session:    camera.NewSession(deps.Source.Opener, preview, deps.Surface, nil),
		preview:    preview,
		capturer:   capturer,
		logger:     logger,
		state:      StateIdle,
	}

	var poster submission.Poster
	if deps.Backend != nil {
		poster = deps.Backend
		if mode == submission.Enrollment {
			a.fetcher = classes.NewFetcher(deps.Backend, deps.Surface, nil)
		}
	}

	a.submitter = submission.New(submission.Deps{
		Mode:     mode,
		Capturer: capturer,
		Poster:   poster,
		Form:     deps.Surface,
		Display:  deps.Surface,
		Alerter:  deps.Surface,
	})

	return a, nil
}

// Init はデバイスを列挙し、必要ならクラスを読み込み、最初のデバイスで映像を開始する
// 失敗しても画面は操作できる状態のまま残る
func (a *App) Init(ctx context.Context) error {
	devices := a.enumerator.ListDevices(ctx)

	a.mu.Lock()
	a.devices = devices
	a.state = StateDevicesListed
	a.mu.Unlock()

	if a.fetcher != nil {
		a.fetcher.LoadClasses(ctx)
	}

	if len(devices) == 0 {
		a.logger.Warn("利用できるカメラがありません")
		return nil
	}

	first := devices[0].ID
	for _, d := range devices {
		if a.preferred != "" && d.ID == a.preferred {
			first = d.ID
			break
		}
	}
	if sel, ok := a.surface.(deviceSelection); ok {
		sel.SelectDevice(first)
	}
	return a.SwitchCamera(ctx, first)
}

// deviceSelection は選択中の項目を変えられる選択欄
type deviceSelection interface {
	SelectDevice(id string) bool
}

// SwitchCamera は指定デバイスで映像を開始し直す。空なら任意のデバイス
// 送信中でも切り替えられる
func (a *App) SwitchCamera(ctx context.Context, deviceID string) error {
	err := a.session.Start(ctx, deviceID)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateSubmitting {
		// 送信が終わったときに映像の有無で状態を決める
		return err
	}
	if err != nil {
		a.state = StateDevicesListed
		return err
	}
	a.state = StateStreamActive
	return nil
}

// CaptureAndSubmit は静止画を撮って送信し、表示した文言を返す
func (a *App) CaptureAndSubmit(ctx context.Context) string {
	a.mu.Lock()
	prev := a.state
	if prev != StateSubmitting {
		a.state = StateSubmitting
	}
	a.mu.Unlock()

	text := a.submitter.Submit(ctx)

	if prev != StateSubmitting {
		a.mu.Lock()
		a.state = a.stableStateLocked()
		a.mu.Unlock()
	}
	return text
}

// stableStateLocked は映像の有無から戻るべき状態を返す
func (a *App) stableStateLocked() State {
	if _, _, ok := a.session.Active(); ok {
		return StateStreamActive
	}
	if a.devices != nil {
		return StateDevicesListed
	}
	return StateIdle
}

// State は現在の状態
func (a *App) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Mode は画面の種類
func (a *App) Mode() submission.Mode {
	return a.mode
}

// Devices は最後に列挙したデバイス
func (a *App) Devices() []camera.VideoDevice {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]camera.VideoDevice(nil), a.devices...)
}

// RefreshDevices はデバイスを列挙し直す
func (a *App) RefreshDevices(ctx context.Context) []camera.VideoDevice {
	devices := a.enumerator.ListDevices(ctx)
	a.mu.Lock()
	a.devices = devices
	a.mu.Unlock()
	return devices
}

// Session は映像セッション
func (a *App) Session() *camera.Session {
	return a.session
}

// Preview はプレビュー面
func (a *App) Preview() *camera.Preview {
	return a.preview
}

// WaitReady は最初のフレームが届くまで待つ
func (a *App) WaitReady(ctx context.Context) error {
	if _, _, ok := a.session.Active(); !ok {
		return errors.New("カメラが開始されていません")
	}
	return a.preview.WaitFrame(ctx)
}

// Close は映像を解放する
func (a *App) Close() {
	a.session.Close()
	a.mu.Lock()
	a.state = StateIdle
	a.mu.Unlock()
}
