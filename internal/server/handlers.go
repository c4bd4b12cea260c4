package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"presenca/internal/camera"
)

// HealthResponse はヘルスチェックの応答
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// CameraInfo は映像セッションの状態
type CameraInfo struct {
	Status   camera.Status `json:"status"`
	StreamID string        `json:"stream_id,omitempty"`
	Device   string        `json:"device,omitempty"`
	Width    int           `json:"width"`
	Height   int           `json:"height"`
}

// ServerInfo はプレビューサーバーの待ち受け情報
type ServerInfo struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// StatusResponse はシステム状態の応答
type StatusResponse struct {
	Status    string     `json:"status"`
	Mode      string     `json:"mode"`
	Server    ServerInfo `json:"server"`
	Camera    CameraInfo `json:"camera"`
	Timestamp time.Time  `json:"timestamp"`
}

// DevicesResponse はデバイス一覧の応答
type DevicesResponse struct {
	Devices []camera.DeviceOption `json:"devices"`
}

// ErrorResponse はエラー応答
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func errorJSON(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{
		Error:     code,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// HealthCheck はヘルスチェックエンドポイントの実装
func (s *Server) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}

// GetStatus はシステム状態取得エンドポイントの実装
func (s *Server) GetStatus(c *gin.Context) {
	info := CameraInfo{Status: camera.StatusInactive}
	if s.deps.Session != nil {
		info.Status = s.deps.Session.Status()
		if id, device, ok := s.deps.Session.Active(); ok {
			info.StreamID = id
			info.Device = device
		}
	}
	if s.deps.Frames != nil {
		info.Width, info.Height = s.deps.Frames.NaturalSize()
	}

	c.JSON(http.StatusOK, StatusResponse{
		Status: "running",
		Mode:   s.deps.Mode,
		Server: ServerInfo{
			Host: s.config.Preview.Host,
			Port: s.config.Preview.Port,
		},
		Camera:    info,
		Timestamp: time.Now(),
	})
}

// GetDevices はカメラ一覧取得エンドポイントの実装
func (s *Server) GetDevices(c *gin.Context) {
	var devices []camera.VideoDevice
	if s.deps.Devices != nil {
		devices = s.deps.Devices.Devices()
	}
	c.JSON(http.StatusOK, DevicesResponse{Devices: camera.Options(devices)})
}

// GetSnapshot は最新フレームをJPEGで返す
func (s *Server) GetSnapshot(c *gin.Context) {
	if s.deps.Frames == nil {
		errorJSON(c, http.StatusServiceUnavailable, "camera_not_active", "カメラがアクティブではありません")
		return
	}
	frame, ok := s.deps.Frames.LatestJPEG()
	if !ok {
		errorJSON(c, http.StatusServiceUnavailable, "no_frame", "映像がまだ届いていません")
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "image/jpeg", frame)
}

// GetPreviewStream はMJPEGストリーミングエンドポイントの実装
func (s *Server) GetPreviewStream(c *gin.Context) {
	if s.deps.Frames == nil || !s.streamActive() {
		errorJSON(c, http.StatusServiceUnavailable, "camera_not_active", "カメラがアクティブではありません")
		return
	}
	s.streamMJPEG(c)
}

// GetPreviewWebSocket はフレームをバイナリメッセージで配信する
func (s *Server) GetPreviewWebSocket(c *gin.Context) {
	if s.deps.Frames == nil {
		errorJSON(c, http.StatusServiceUnavailable, "camera_not_active", "カメラがアクティブではありません")
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warnf("WebSocketへの切り替えに失敗: %v", err)
		return
	}
	defer conn.Close()

	frames, cancel := s.deps.Frames.Subscribe()
	defer cancel()

	// クライアントからのメッセージは読み捨て、切断だけを検知する
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if frame, ok := s.deps.Frames.LatestJPEG(); ok {
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			return
		}
	}

	for {
		select {
		case <-gone:
			return
		case <-s.closing:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(time.Second))
			return
		case frame := <-frames:
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				s.logger.Debugf("WebSocketへの書き込みに失敗: %v", err)
				return
			}
		}
	}
}

// handleRoot はルートパスのハンドラ
func (s *Server) handleRoot(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, `<!DOCTYPE html>
<html lang="pt-BR">
<head>
    <meta charset="UTF-8">
    <title>Presença - Pré-visualização</title>
</head>
<body>
    <h1>Pré-visualização da câmera</h1>
    <img src="/preview" alt="câmera">
    <p>Status: <a href="/api/status">/api/status</a></p>
</body>
</html>`)
}

func (s *Server) streamActive() bool {
	if s.deps.Session == nil {
		return true
	}
	_, _, ok := s.deps.Session.Active()
	return ok
}

// streamMJPEG はMJPEGストリームを配信する
func (s *Server) streamMJPEG(c *gin.Context) {
	// レスポンスヘッダーを設定
	c.Header("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")

	// レスポンスライターを取得
	writer := c.Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusOK)

	frames, cancel := s.deps.Frames.Subscribe()
	defer cancel()

	// クライアント切断を検知するためのコンテキスト
	clientGone := c.Request.Context().Done()

	write := func(frame []byte) bool {
		if _, err := writer.Write([]byte("--frame\r\nContent-Type: image/jpeg\r\n\r\n")); err != nil {
			return false
		}
		if _, err := writer.Write(frame); err != nil {
			return false
		}
		if _, err := writer.Write([]byte("\r\n")); err != nil {
			return false
		}
		// バッファをフラッシュ
		flusher.Flush()
		return true
	}

	// 接続直後に最新フレームを送る
	if frame, ok := s.deps.Frames.LatestJPEG(); ok && !write(frame) {
		return
	}

	// ストリーミングループ
	for {
		select {
		case <-clientGone:
			return
		case <-s.closing:
			return
		case frame := <-frames:
			if !write(frame) {
				return
			}
		}
	}
}
