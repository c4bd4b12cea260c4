package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config はクライアント全体の設定を保持する構造体
type Config struct {
	Backend BackendConfig `yaml:"backend"`
	Camera  CameraConfig  `yaml:"camera"`
	Preview PreviewConfig `yaml:"preview"`
	Page    PageConfig    `yaml:"page"`
	Log     LogConfig     `yaml:"log"`
}

// BackendConfig は出席サーバーへの接続設定
type BackendConfig struct {
	BaseURL   string        `yaml:"base_url"`   // 例: http://localhost:5000
	Timeout   time.Duration `yaml:"timeout"`    // 0 はトランスポートのデフォルト
	UserAgent string        `yaml:"user_agent"` // リクエストのUser-Agent
}

// CameraConfig はカメラ関連の設定
type CameraConfig struct {
	Source string `yaml:"source"` // v4l2 または synthetic
	Device string `yaml:"device"` // 空の場合は最初に見つかったデバイス

	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	FPS    int `yaml:"fps"`

	JPEGQuality    int           `yaml:"jpeg_quality"`    // 送信画像の品質 (1-100)
	AcquireTimeout time.Duration `yaml:"acquire_timeout"` // 最初のフレームを待つ時間
	FFmpegPath     string        `yaml:"ffmpeg_path"`
}

// PreviewConfig はプレビューHTTPサーバーの設定
type PreviewConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`

	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"` // ストリーミングのため通常は0
}

// PageConfig は画面の種類（出席 / 登録）を決める設定
type PageConfig struct {
	Mode string `yaml:"mode"` // presenca / cadastro。空ならPathから判定する
	Path string `yaml:"path"` // 元のページパス（例: /cadastrar）
}

// LogConfig はログ出力の設定
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"` // 空の場合は標準エラー出力
}

// Default はデフォルト設定を返す
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:   "http://localhost:5000",
			UserAgent: "presenca-kiosk/1.0",
		},
		Camera: CameraConfig{
			Source:         "v4l2",
			Width:          1280,
			Height:         720,
			FPS:            15,
			JPEGQuality:    92,
			AcquireTimeout: 10 * time.Second,
			FFmpegPath:     "ffmpeg",
		},
		Preview: PreviewConfig{
			Enabled:      true,
			Host:         "127.0.0.1",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 0,
		},
		Page: PageConfig{
			Path: "/",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load は設定を読み込む
// 優先順位: デフォルト < YAMLファイル < .env < 環境変数
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("PRESENCA_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	// .env は存在しなくてもよい
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf(".envの読み込みに失敗: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// loadFile はYAMLファイルの内容をデフォルト値の上に重ねる
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("設定ファイルの解析に失敗: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Backend.BaseURL = getEnvOrDefault("BACKEND_URL", c.Backend.BaseURL)
	c.Backend.Timeout = getEnvAsDurationOrDefault("BACKEND_TIMEOUT", c.Backend.Timeout)

	c.Camera.Source = getEnvOrDefault("CAMERA_SOURCE", c.Camera.Source)
	c.Camera.Device = getEnvOrDefault("CAMERA_DEVICE", c.Camera.Device)
	c.Camera.JPEGQuality = getEnvAsIntOrDefault("CAMERA_JPEG_QUALITY", c.Camera.JPEGQuality)
	c.Camera.FFmpegPath = getEnvOrDefault("FFMPEG_PATH", c.Camera.FFmpegPath)

	c.Preview.Host = getEnvOrDefault("PREVIEW_HOST", c.Preview.Host)
	c.Preview.Port = getEnvAsIntOrDefault("PREVIEW_PORT", c.Preview.Port)
	c.Preview.Enabled = getEnvAsBoolOrDefault("PREVIEW_ENABLED", c.Preview.Enabled)

	c.Page.Mode = getEnvOrDefault("PAGE_MODE", c.Page.Mode)
	c.Page.Path = getEnvOrDefault("PAGE_PATH", c.Page.Path)

	c.Log.Level = getEnvOrDefault("LOG_LEVEL", c.Log.Level)
	c.Log.File = getEnvOrDefault("LOG_FILE", c.Log.File)
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("バックエンドURLが空です")
	}
	if !strings.HasPrefix(c.Backend.BaseURL, "http://") && !strings.HasPrefix(c.Backend.BaseURL, "https://") {
		return fmt.Errorf("無効なバックエンドURL: %s", c.Backend.BaseURL)
	}
	if c.Backend.Timeout < 0 {
		return fmt.Errorf("無効なタイムアウト: %s", c.Backend.Timeout)
	}

	switch c.Camera.Source {
	case "v4l2", "synthetic":
	default:
		return fmt.Errorf("未対応のカメラソース: %s", c.Camera.Source)
	}
	if c.Camera.Width <= 0 || c.Camera.Width > 4096 {
		return fmt.Errorf("無効な幅: %d", c.Camera.Width)
	}
	if c.Camera.Height <= 0 || c.Camera.Height > 4096 {
		return fmt.Errorf("無効な高さ: %d", c.Camera.Height)
	}
	if c.Camera.FPS <= 0 || c.Camera.FPS > 60 {
		return fmt.Errorf("無効なFPS値: %d", c.Camera.FPS)
	}
	if c.Camera.JPEGQuality < 1 || c.Camera.JPEGQuality > 100 {
		return fmt.Errorf("無効なJPEG品質: %d", c.Camera.JPEGQuality)
	}

	if c.Preview.Enabled && (c.Preview.Port < 1 || c.Preview.Port > 65535) {
		return fmt.Errorf("無効なポート番号: %d", c.Preview.Port)
	}

	switch strings.ToLower(c.Page.Mode) {
	case "", "presenca", "attendance", "cadastro", "enrollment":
	default:
		return fmt.Errorf("未対応のページモード: %s", c.Page.Mode)
	}

	return nil
}

// PreviewAddress はプレビューサーバーのリッスンアドレスを返す
func (c *Config) PreviewAddress() string {
	return fmt.Sprintf("%s:%d", c.Preview.Host, c.Preview.Port)
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return defaultValue
}
