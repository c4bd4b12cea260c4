// Package main は画面を出さずに一度だけ撮影して送信するコマンド
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/kataras/golog"

	"presenca/internal/app"
	"presenca/internal/config"
	"presenca/internal/logging"
	"presenca/internal/submission"
	"presenca/internal/ui"
)

// Report は送信結果の出力
type Report struct {
	Mode    string `json:"mode"`
	Device  string `json:"device,omitempty"`
	Message string `json:"message"`
	Failed  bool   `json:"failed"`
	Alert   string `json:"alert,omitempty"`
}

func main() {
	var (
		mode    = flag.String("mode", "", "画面の種類 (presenca / cadastro)")
		path    = flag.String("path", "", "ページパス。modeが空のときに種類を判定する")
		name    = flag.String("nome", "", "登録する生徒の名前")
		class   = flag.String("turma", "", "登録する生徒のクラスID")
		device  = flag.String("device", "", "使うカメラデバイス")
		source  = flag.String("source", "", "カメラソース (v4l2 / synthetic)")
		timeout = flag.Duration("timeout", 30*time.Second, "全体のタイムアウト")
		asJSON  = flag.Bool("json", false, "結果をJSONで出力する")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "設定の読み込みに失敗しました: %v\n", err)
		os.Exit(1)
	}
	if *mode != "" {
		cfg.Page.Mode = *mode
	}
	if *path != "" {
		cfg.Page.Path = *path
	}
	if *device != "" {
		cfg.Camera.Device = *device
	}
	if *source != "" {
		cfg.Camera.Source = *source
	}
	cfg.Preview.Enabled = false
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "設定が不正です: %v\n", err)
		os.Exit(1)
	}

	logFile, err := logging.Setup(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ログの設定に失敗しました: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	report, err := run(ctx, cfg, *name, *class)
	if err != nil {
		golog.Error(err)
		os.Exit(1)
	}

	if *asJSON {
		out, _ := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(report, "", "  ")
		fmt.Println(string(out))
	} else if report.Alert != "" {
		fmt.Println(report.Alert)
	} else {
		fmt.Println(report.Message)
	}

	if report.Failed || report.Alert != "" {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, name, class string) (*Report, error) {
	surface := ui.NewSurface()
	a, err := app.Build(cfg, surface)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	if err := a.Init(ctx); err != nil {
		return nil, fmt.Errorf("カメラを開始できません: %w", err)
	}
	if err := a.WaitReady(ctx); err != nil {
		return nil, fmt.Errorf("最初のフレームが届きません: %w", err)
	}

	surface.SetName(name)
	if class != "" && !surface.SelectClass(class) {
		golog.Warnf("クラス %s は一覧にありません", class)
	}

	text := a.CaptureAndSubmit(ctx)
	snap := surface.Snapshot()

	report := &Report{
		Mode:    a.Mode().String(),
		Device:  surface.SelectedDevice(),
		Message: text,
		Failed:  snap.Failed || text == submission.MsgCaptureNotReady,
		Alert:   snap.Alert,
	}
	return report, nil
}
