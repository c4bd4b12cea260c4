// Package logging はgologの出力先とレベルを設定する
//
// キオスク画面はターミナルを占有するため、ログはファイルと
// 画面下部のログ欄（Ring）に流す。
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/kataras/golog"

	"presenca/internal/config"
)

// Setup はグローバルロガーを設定し、開いたファイルを返す
// extra にはRingなどの追加出力先を渡す
func Setup(cfg config.LogConfig, extra ...io.Writer) (io.Closer, error) {
	level := cfg.Level
	if level == "" {
		level = "info"
	}
	golog.SetLevel(level)

	if cfg.File == "" {
		if len(extra) > 0 {
			golog.AddOutput(extra...)
		}
		return io.NopCloser(nil), nil
	}

	file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("ログファイルを開けません: %w", err)
	}

	outputs := append([]io.Writer{file}, extra...)
	golog.SetOutput(io.MultiWriter(outputs...))
	return file, nil
}

// SetupTerminal は画面を占有するときの設定。ログは標準エラーに出さない
func SetupTerminal(cfg config.LogConfig, ring *Ring) (io.Closer, error) {
	closer, err := Setup(cfg, ring)
	if err != nil {
		return nil, err
	}
	if cfg.File == "" {
		golog.SetOutput(ring)
	}
	return closer, nil
}

// Ring は直近のログ行を保持するio.Writer
type Ring struct {
	mu    sync.Mutex
	lines []string
	max   int
}

// NewRing は最大max行を保持するRingを作成する
func NewRing(max int) *Ring {
	if max <= 0 {
		max = 100
	}
	return &Ring{max: max, lines: make([]string, 0, max)}
}

// Write はログ出力を行単位で蓄積する
func (r *Ring) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line == "" {
			continue
		}
		r.lines = append(r.lines, line)
		if len(r.lines) > r.max {
			r.lines = r.lines[1:]
		}
	}
	return len(p), nil
}

// Lines は保持している行のコピーを返す
func (r *Ring) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}
