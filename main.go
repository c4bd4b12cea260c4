// Package main は出欠キオスクの端末画面
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kataras/golog"

	"presenca/internal/app"
	"presenca/internal/config"
	"presenca/internal/logging"
	"presenca/internal/server"
	"presenca/internal/ui"
)

func main() {
	var (
		mode    = flag.String("mode", "", "画面の種類 (presenca / cadastro)")
		path    = flag.String("path", "", "ページパス。modeが空のときに種類を判定する")
		source  = flag.String("source", "", "カメラソース (v4l2 / synthetic)")
		device  = flag.String("device", "", "最初に使うカメラデバイス")
		backend = flag.String("backend", "", "出席サーバーのURL")
		preview = flag.Bool("preview", true, "プレビューサーバーを起動する")
		help    = flag.Bool("help", false, "ヘルプを表示")
	)
	flag.Parse()

	if *help {
		fmt.Println("presenca")
		fmt.Println()
		fmt.Println("使用方法:")
		fmt.Println("  presenca [オプション]")
		fmt.Println()
		fmt.Println("オプション:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// コマンドラインオプションで設定を上書き
	if *mode != "" {
		cfg.Page.Mode = *mode
	}
	if *path != "" {
		cfg.Page.Path = *path
	}
	if *source != "" {
		cfg.Camera.Source = *source
	}
	if *device != "" {
		cfg.Camera.Device = *device
	}
	if *backend != "" {
		cfg.Backend.BaseURL = *backend
	}
	if !*preview {
		cfg.Preview.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("設定が不正です: %v", err)
	}

	ring := logging.NewRing(200)
	logFile, err := logging.SetupTerminal(cfg.Log, ring)
	if err != nil {
		log.Fatalf("ログの設定に失敗しました: %v", err)
	}
	defer logFile.Close()

	if err := run(cfg, ring); err != nil {
		golog.Errorf("終了します: %v", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, ring *logging.Ring) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	surface := ui.NewSurface()
	a, err := app.Build(cfg, surface)
	if err != nil {
		return err
	}
	defer a.Close()

	var previewURL string
	if cfg.Preview.Enabled {
		srv := server.New(cfg, server.Deps{
			Frames:  a.Preview(),
			Session: a.Session(),
			Devices: a,
			Mode:    a.Mode().String(),
		})
		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start(ctx) }()

		select {
		case <-srv.Ready():
			previewURL = srv.PreviewURL()
		case err := <-errCh:
			// プレビューなしで続ける
			golog.Warnf("プレビューサーバーを起動できません: %v", err)
		case <-time.After(2 * time.Second):
			golog.Warn("プレビューサーバーの起動待ちがタイムアウトしました")
		}
	}

	model := ui.New(ctx, a, surface, ui.Options{Logs: ring, PreviewURL: previewURL})
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("画面の実行に失敗しました: %w", err)
	}
	return nil
}
