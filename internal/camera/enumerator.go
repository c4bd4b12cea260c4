package camera

import (
	"context"
	"fmt"

	"github.com/kataras/golog"
)

// Enumerator は映像入力デバイスを列挙して選択欄を作り直す
type Enumerator struct {
	discovery Discovery
	selector  DeviceSelector
	logger    *golog.Logger
}

// NewEnumerator は新しいEnumeratorを作成する
// discovery が nil の場合はプラットフォーム非対応として扱う
func NewEnumerator(discovery Discovery, selector DeviceSelector, logger *golog.Logger) *Enumerator {
	if logger == nil {
		logger = golog.Child("[camera]")
	}
	return &Enumerator{
		discovery: discovery,
		selector:  selector,
		logger:    logger,
	}
}

// ListDevices はデバイスを列挙し、選択欄を丸ごと置き換える
// 失敗しても呼び出し元にエラーは返さず、空のスライスを返す
func (e *Enumerator) ListDevices(ctx context.Context) []VideoDevice {
	if e.discovery == nil {
		e.logger.Error(ErrUnsupported)
		return []VideoDevice{}
	}

	devices, err := e.discovery.ScanDevices(ctx)
	if err != nil {
		e.logger.Errorf("カメラの列挙に失敗: %v", err)
		return []VideoDevice{}
	}

	if e.selector != nil {
		e.selector.ReplaceDevices(Options(devices))
	}
	e.logger.Debugf("%d台のカメラを検出", len(devices))
	return devices
}

// Options はデバイスを選択欄の項目に変換する
// 名前のないデバイスには列挙順の番号（1始まり）を付ける
func Options(devices []VideoDevice) []DeviceOption {
	options := make([]DeviceOption, len(devices))
	for i, d := range devices {
		text := d.Label
		if text == "" {
			text = fmt.Sprintf("Câmera %d", i+1)
		}
		options[i] = DeviceOption{Value: d.ID, Text: text}
	}
	return options
}
