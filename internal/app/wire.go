package app

import (
	"fmt"

	"presenca/internal/backend"
	"presenca/internal/camera"
	"presenca/internal/config"
)

// Build は設定から部品を組み立てる
func Build(cfg *config.Config, surface Surface) (*App, error) {
	source, err := camera.NewSourceFactory().Create(camera.SourceType(cfg.Camera.Source), camera.SourceConfig{
		Width:          cfg.Camera.Width,
		Height:         cfg.Camera.Height,
		FPS:            cfg.Camera.FPS,
		AcquireTimeout: cfg.Camera.AcquireTimeout,
		FFmpegPath:     cfg.Camera.FFmpegPath,
	})
	if err != nil {
		return nil, fmt.Errorf("カメラソースの作成に失敗: %w", err)
	}

	client := backend.NewClient(backend.Config{
		BaseURL:   cfg.Backend.BaseURL,
		Timeout:   cfg.Backend.Timeout,
		UserAgent: cfg.Backend.UserAgent,
	}, nil)

	return New(Deps{
		PageMode:        cfg.Page.Mode,
		PagePath:        cfg.Page.Path,
		PreferredDevice: cfg.Camera.Device,
		Source:          source,
		Backend:         client,
		Surface:         surface,
		JPEGQuality:     cfg.Camera.JPEGQuality,
	})
}
