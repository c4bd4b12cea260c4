package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kataras/golog"

	"presenca/internal/camera"
	"presenca/internal/config"
)

// FrameFeed はプレビューのフレームを提供する
type FrameFeed interface {
	LatestJPEG() ([]byte, bool)
	NaturalSize() (int, int)
	Subscribe() (<-chan []byte, func())
}

// SessionInfo は映像セッションの状態を提供する
type SessionInfo interface {
	Active() (streamID, deviceID string, ok bool)
	Status() camera.Status
}

// DeviceLister は最後に列挙したデバイスを返す
type DeviceLister interface {
	Devices() []camera.VideoDevice
}

// Deps はServerの依存
type Deps struct {
	Frames  FrameFeed
	Session SessionInfo
	Devices DeviceLister
	Mode    string
	Logger  *golog.Logger
}

// Server はプレビュー用HTTPサーバーを管理する構造体
type Server struct {
	config     *config.Config
	deps       Deps
	engine     *gin.Engine
	httpServer *http.Server
	upgrader   websocket.Upgrader
	logger     *golog.Logger

	mu    sync.Mutex
	addr  string
	ready chan struct{}

	// closing はシャットダウン開始時に閉じ、配信中のストリームを終わらせる
	closing   chan struct{}
	closeOnce sync.Once
}

// New は新しいServerインスタンスを作成する
func New(cfg *config.Config, deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)

	logger := deps.Logger
	if logger == nil {
		logger = golog.Child("[server]")
	}

	s := &Server{
		config: cfg,
		deps:   deps,
		engine: gin.New(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  logger,
		ready:   make(chan struct{}),
		closing: make(chan struct{}),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.PreviewAddress(),
		Handler:      s.engine,
		ReadTimeout:  cfg.Preview.ReadTimeout,
		WriteTimeout: cfg.Preview.WriteTimeout,
	}
	return s
}

// setupRoutes はHTTPルートを設定する
func (s *Server) setupRoutes() {
	// ヘルスチェックエンドポイント
	s.engine.GET("/health", s.HealthCheck)

	// APIエンドポイント
	api := s.engine.Group("/api")
	api.GET("/status", s.GetStatus)
	api.GET("/devices", s.GetDevices)

	// プレビュー
	s.engine.GET("/preview", s.GetPreviewStream)
	s.engine.GET("/preview/snapshot.jpg", s.GetSnapshot)
	s.engine.GET("/ws/preview", s.GetPreviewWebSocket)

	s.engine.GET("/", s.handleRoot)
}

// requestLogger はリクエストをデバッグログに出す
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debugf("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// Handler はルーティング済みのハンドラを返す
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr は実際にリッスンしているアドレス。起動前は設定値
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addr == "" {
		return s.httpServer.Addr
	}
	return s.addr
}

// Ready はリッスンを始めたときに閉じられる
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// PreviewURL はブラウザで開くプレビューのURL
func (s *Server) PreviewURL() string {
	return fmt.Sprintf("http://%s/preview", s.Addr())
}

// Start はサーバーを起動し、コンテキストの終了かシグナルを待つ
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("サーバーの起動に失敗: %w", err)
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()
	close(s.ready)

	// シャットダウン用のチャンネル
	shutdownCh := make(chan error, 1)

	// サーバーを別ゴルーチンで起動
	go func() {
		s.logger.Infof("プレビューサーバーを起動しています: %s", s.Addr())
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			shutdownCh <- fmt.Errorf("サーバーの起動に失敗: %w", err)
		}
	}()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// コンテキストかシグナルを待つ
	select {
	case <-ctx.Done():
		s.logger.Debug("コンテキストがキャンセルされました")
	case sig := <-sigCh:
		s.logger.Infof("シグナルを受信しました: %v", sig)
	case err := <-shutdownCh:
		return err
	}

	// グレースフルシャットダウン
	return s.Shutdown()
}

// Shutdown はサーバーをグレースフルにシャットダウンする
func (s *Server) Shutdown() error {
	s.logger.Info("サーバーをシャットダウンしています...")

	s.closeOnce.Do(func() { close(s.closing) })

	// 5秒のタイムアウトを設定
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
	}

	s.logger.Info("サーバーが正常にシャットダウンされました")
	return nil
}
