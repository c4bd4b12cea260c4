package camera

import (
	"context"
	"errors"
)

var (
	// ErrUnsupported はこのプラットフォームでカメラAPIが使えないことを表す
	ErrUnsupported = errors.New("camera: media capture not supported on this platform")
	// ErrNoDevice は利用可能なデバイスがないことを表す
	ErrNoDevice = errors.New("camera: no video input device available")
	// ErrStreamClosed は停止済みのストリームへの操作を表す
	ErrStreamClosed = errors.New("camera: stream closed")
	// ErrNoFrame はプレビューにまだフレームが届いていないことを表す
	ErrNoFrame = errors.New("camera: no frame delivered yet")
)

// Status はセッションの状態を表す
type Status string

const (
	StatusInactive Status = "inactive" // ストリームなし
	StatusStarting Status = "starting" // 取得中
	StatusActive   Status = "active"   // ストリーム動作中
	StatusError    Status = "error"    // 直前の取得に失敗
)

// VideoDevice は列挙された映像入力デバイス
// Label はプラットフォームが名前を返さない場合は空になる
type VideoDevice struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// DeviceOption はデバイス選択欄の1項目
type DeviceOption struct {
	Value string `json:"value"`
	Text  string `json:"text"`
}

// Discovery は映像入力デバイスの列挙を担う
type Discovery interface {
	// ScanDevices はプラットフォームが報告する順にデバイスを返す
	ScanDevices(ctx context.Context) ([]VideoDevice, error)
}

// Stream はカメラデバイスへの生きた接続（ストリームハンドル）
type Stream interface {
	// ID はハンドルの一意識別子
	ID() string

	// DeviceID は取得元のデバイス
	DeviceID() string

	// Frames はJPEGフレームを流す。停止するとクローズされる
	Frames() <-chan []byte

	// Errors は取得中に発生したエラーを流す
	Errors() <-chan error

	// Stop はデバイスを解放する。複数回呼んでもよい
	Stop() error
}

// StreamOpener は指定デバイスのストリームを取得する
// deviceID が空の場合は任意の利用可能なデバイスを使う
type StreamOpener interface {
	Open(ctx context.Context, deviceID string) (Stream, error)
}

// DeviceSelector はデバイス選択欄（画面側の部品）
type DeviceSelector interface {
	ReplaceDevices(options []DeviceOption)
}

// MessageSink は利用者向けメッセージの表示先
type MessageSink interface {
	SetText(text string)
}
