package ui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"presenca/internal/app"
	"presenca/internal/camera"
	"presenca/internal/submission"
)

// Controller は画面から呼び出す操作
type Controller interface {
	Init(ctx context.Context) error
	SwitchCamera(ctx context.Context, deviceID string) error
	CaptureAndSubmit(ctx context.Context) string
	RefreshDevices(ctx context.Context) []camera.VideoDevice
	State() app.State
	Mode() submission.Mode
}

// LogSource は直近のログ行を返す
type LogSource interface {
	Lines() []string
}

type focusArea int

const (
	focusDevices focusArea = iota
	focusClasses
	focusName
)

// メッセージ
type (
	tickMsg          time.Time
	surfaceChangeMsg struct{}
	initDoneMsg      struct{ err error }
	switchDoneMsg    struct{ err error }
	refreshDoneMsg   struct{ count int }
	submitDoneMsg    struct{ text string }
)

// Model はキオスク画面
type Model struct {
	ctx        context.Context
	ctrl       Controller
	surface    *Surface
	logs       LogSource
	mode       submission.Mode
	previewURL string

	width       int
	height      int
	focus       focusArea
	status      string
	submitting  bool
	currentTime time.Time

	nameInput   textinput.Model
	logViewport viewport.Model
}

// Options はModelの設定
type Options struct {
	Logs       LogSource
	PreviewURL string
}

// New は新しいModelを作成する
func New(ctx context.Context, ctrl Controller, surface *Surface, opts Options) Model {
	input := textinput.New()
	input.Placeholder = "Nome do aluno"
	input.CharLimit = 120
	input.Width = 40

	vp := viewport.New(80, 6)
	vp.MouseWheelEnabled = true

	return Model{
		ctx:         ctx,
		ctrl:        ctrl,
		surface:     surface,
		logs:        opts.Logs,
		mode:        ctrl.Mode(),
		previewURL:  opts.PreviewURL,
		width:       80,
		height:      24,
		focus:       focusDevices,
		status:      "Iniciando...",
		currentTime: time.Now(),
		nameInput:   input,
		logViewport: vp,
	}
}

// Init は初期化処理と画面更新の監視を始める
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.initCmd(),
		waitForChange(m.surface),
		timeTickCmd(),
	)
}

func (m Model) initCmd() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return initDoneMsg{err: ctrl.Init(ctx)}
	}
}

func (m Model) switchCmd(deviceID string) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return switchDoneMsg{err: ctrl.SwitchCamera(ctx, deviceID)}
	}
}

func (m Model) refreshCmd() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return refreshDoneMsg{count: len(ctrl.RefreshDevices(ctx))}
	}
}

func (m Model) submitCmd() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return submitDoneMsg{text: ctrl.CaptureAndSubmit(ctx)}
	}
}

func waitForChange(s *Surface) tea.Cmd {
	return func() tea.Msg {
		<-s.Changes()
		return surfaceChangeMsg{}
	}
}

func timeTickCmd() tea.Cmd {
	return tea.Every(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// focusOrder は画面の種類ごとのフォーカス順
func (m Model) focusOrder() []focusArea {
	if m.mode == submission.Enrollment {
		return []focusArea{focusDevices, focusClasses, focusName}
	}
	return []focusArea{focusDevices}
}

func (m *Model) refreshLogs() {
	if m.logs == nil {
		return
	}
	m.logViewport.SetContent(strings.Join(m.logs.Lines(), "\n"))
	m.logViewport.GotoBottom()
}
