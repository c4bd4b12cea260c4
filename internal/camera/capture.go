package camera

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kataras/golog"
)

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// FFmpegOpener はffmpeg経由でV4L2デバイスからMJPEGストリームを取得する
type FFmpegOpener struct {
	discovery      Discovery
	ffmpegPath     string
	width          int
	height         int
	fps            int
	acquireTimeout time.Duration
	logger         *golog.Logger
}

// NewFFmpegOpener は新しいFFmpegOpenerを作成する
// discovery はデバイス未指定時の既定デバイス選択に使う
func NewFFmpegOpener(discovery Discovery, cfg SourceConfig, logger *golog.Logger) *FFmpegOpener {
	if logger == nil {
		logger = golog.Child("[camera]")
	}
	path := cfg.FFmpegPath
	if path == "" {
		path = "ffmpeg"
	}
	timeout := cfg.AcquireTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &FFmpegOpener{
		discovery:      discovery,
		ffmpegPath:     path,
		width:          cfg.Width,
		height:         cfg.Height,
		fps:            cfg.FPS,
		acquireTimeout: timeout,
		logger:         logger,
	}
}

// Open はffmpegを起動し、最初のフレームが届くまで待つ
// 届かなければプロセスを終了させてエラーを返す
func (o *FFmpegOpener) Open(ctx context.Context, deviceID string) (Stream, error) {
	if deviceID == "" {
		resolved, err := defaultDevice(ctx, o.discovery)
		if err != nil {
			return nil, err
		}
		deviceID = resolved
	}

	// ストリームはOpenの呼び出しより長生きするので独立したコンテキストを使う
	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, o.ffmpegPath, o.args(deviceID)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stdoutパイプの作成に失敗: %w", err)
	}
	stderr := &tailBuffer{max: 2048}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpegの起動に失敗: %w", err)
	}

	s := newPipeStream(deviceID, cancel)
	go s.run(cmd, stdout, stderr)

	select {
	case <-s.first:
		o.logger.Debugf("ストリーム %s を取得: %s", s.id, deviceID)
		return s, nil
	case <-s.done:
		return nil, fmt.Errorf("カメラ %s を開けません: %s", deviceID, stderr.String())
	case <-ctx.Done():
		_ = s.Stop()
		return nil, ctx.Err()
	case <-time.After(o.acquireTimeout):
		_ = s.Stop()
		return nil, fmt.Errorf("カメラ %s から %s 以内にフレームが届きません", deviceID, o.acquireTimeout)
	}
}

func (o *FFmpegOpener) args(device string) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-f", "v4l2"}
	if o.width > 0 && o.height > 0 {
		args = append(args, "-video_size", fmt.Sprintf("%dx%d", o.width, o.height))
	}
	if o.fps > 0 {
		args = append(args, "-framerate", strconv.Itoa(o.fps))
	}
	return append(args,
		"-i", device,
		"-f", "image2pipe",
		"-c:v", "mjpeg",
		"-q:v", "3",
		"-",
	)
}

// defaultDevice は最初に列挙されたデバイスを返す
func defaultDevice(ctx context.Context, discovery Discovery) (string, error) {
	if discovery == nil {
		return "", ErrUnsupported
	}
	devices, err := discovery.ScanDevices(ctx)
	if err != nil {
		return "", err
	}
	if len(devices) == 0 {
		return "", ErrNoDevice
	}
	return devices[0].ID, nil
}

// pipeStream はffmpegプロセスの標準出力をフレームに分割するStream実装
type pipeStream struct {
	id       string
	deviceID string

	frames chan []byte
	errs   chan error
	first  chan struct{}
	done   chan struct{}

	cancel    context.CancelFunc
	stopped   atomic.Bool
	firstOnce sync.Once
	stopOnce  sync.Once
}

func newPipeStream(deviceID string, cancel context.CancelFunc) *pipeStream {
	return &pipeStream{
		id:       uuid.New().String(),
		deviceID: deviceID,
		frames:   make(chan []byte, 2),
		errs:     make(chan error, 5),
		first:    make(chan struct{}),
		done:     make(chan struct{}),
		cancel:   cancel,
	}
}

func (s *pipeStream) ID() string { return s.id }

func (s *pipeStream) DeviceID() string { return s.deviceID }

func (s *pipeStream) Frames() <-chan []byte { return s.frames }

func (s *pipeStream) Errors() <-chan error { return s.errs }

// Stop はプロセスを終了させ、終了を待ってから戻る
func (s *pipeStream) Stop() error {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		s.cancel()
	})
	<-s.done
	return nil
}

// run はJPEGフレームを読み取り、プロセス終了後にチャンネルを閉じる
func (s *pipeStream) run(cmd *exec.Cmd, stdout io.Reader, stderr *tailBuffer) {
	defer close(s.done)
	defer close(s.frames)

	buf := make([]byte, 64*1024)
	var pending []byte
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			for {
				frame, rest := nextJPEG(pending)
				if frame == nil {
					pending = append([]byte(nil), rest...)
					break
				}
				s.deliver(append([]byte(nil), frame...))
				pending = rest
			}
		}
		if err != nil {
			break
		}
	}

	// エラーはコンテキストキャンセル時にも発生するため停止済みなら無視
	if err := cmd.Wait(); err != nil && !s.stopped.Load() {
		s.report(fmt.Errorf("ffmpegが終了しました: %w (stderr: %s)", err, stderr.String()))
	}
}

// deliver は最新フレームを優先して送る。詰まっていたら古いものを捨てる
func (s *pipeStream) deliver(frame []byte) {
	s.firstOnce.Do(func() { close(s.first) })
	select {
	case s.frames <- frame:
		return
	default:
	}
	select {
	case <-s.frames:
	default:
	}
	select {
	case s.frames <- frame:
	default:
	}
}

func (s *pipeStream) report(err error) {
	select {
	case s.errs <- err:
	default:
	}
}

// nextJPEG はdataから完全なJPEGを1枚切り出し、残りを返す
// 完全なフレームがなければframeはnil
func nextJPEG(data []byte) (frame, rest []byte) {
	start := bytes.Index(data, jpegSOI)
	if start < 0 {
		// マーカーが読み取り境界で切れている可能性がある
		if n := len(data); n > 0 && data[n-1] == 0xFF {
			return nil, data[n-1:]
		}
		return nil, nil
	}

	end := bytes.Index(data[start+2:], jpegEOI)
	if end < 0 {
		return nil, data[start:]
	}
	end += start + 2 + len(jpegEOI)
	return data[start:end], data[end:]
}

// tailBuffer は末尾max バイトだけ保持するio.Writer
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(bytes.TrimSpace(t.buf))
}
