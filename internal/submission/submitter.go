// Package submission 静止画の撮影から送信、結果表示までを行う
package submission

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/kataras/golog"

	"presenca/internal/backend"
	"presenca/internal/capture"
)

// 利用者に表示する文言
const (
	MsgCaptureNotReady = "Não foi possível capturar a imagem. Aguarde o vídeo carregar."
	MsgNameRequired    = "Digite o nome do aluno!"
	MsgClassRequired   = "Selecione a turma do aluno!"
	MsgDone            = "Operação realizada."
	MsgSendFailed      = "Erro ao enviar imagem."
	MsgBusy            = "Envio em andamento. Aguarde."
)

// Capturer は静止画を作る
type Capturer interface {
	Capture() (*capture.Frame, bool)
}

// Poster はJSONを送信する
type Poster interface {
	Post(ctx context.Context, path string, payload any) (*backend.Result, error)
}

// Form は登録画面の入力欄
type Form interface {
	Name() string
	ClassID() string
}

// Display は結果表示欄
type Display interface {
	SetText(text string)
}

// Alerter は入力エラーを知らせる
type Alerter interface {
	Alert(text string)
}

// ResultDisplay は応答のstatusも受け取れる結果表示欄
type ResultDisplay interface {
	SetResult(text string, failed bool)
}

// Deps はSubmitterの依存
type Deps struct {
	Mode     Mode
	Capturer Capturer
	Poster   Poster
	Form     Form
	Display  Display
	Alerter  Alerter
	Logger   *golog.Logger
}

// Submitter は撮影と送信を行う
type Submitter struct {
	mode     Mode
	capturer Capturer
	poster   Poster
	form     Form
	display  Display
	alerter  Alerter
	logger   *golog.Logger

	busy atomic.Bool
}

// New は新しいSubmitterを作成する
func New(deps Deps) *Submitter {
	logger := deps.Logger
	if logger == nil {
		logger = golog.Child("[submit]")
	}
	return &Submitter{
		mode:     deps.Mode,
		capturer: deps.Capturer,
		poster:   deps.Poster,
		form:     deps.Form,
		display:  deps.Display,
		alerter:  deps.Alerter,
		logger:   logger,
	}
}

// Mode は送信先を決める画面の種類
func (s *Submitter) Mode() Mode {
	return s.mode
}

// Busy は送信中かどうか
func (s *Submitter) Busy() bool {
	return s.busy.Load()
}

// Submit は静止画を撮って送信し、表示した文言を返す
// 入力エラーで中断した場合は知らせた文言を返す
func (s *Submitter) Submit(ctx context.Context) string {
	if !s.busy.CompareAndSwap(false, true) {
		s.logger.Warn("前の送信が終わっていないため無視します")
		return s.show(MsgBusy, false)
	}
	defer s.busy.Store(false)

	endpoint := s.mode.Endpoint()

	frame, ok := s.capture()
	if !ok {
		return s.show(MsgCaptureNotReady, false)
	}

	var payload any
	if s.mode == Enrollment {
		name, classID := "", ""
		if s.form != nil {
			name = strings.TrimSpace(s.form.Name())
			classID = s.form.ClassID()
		}
		if name == "" {
			return s.alert(MsgNameRequired)
		}
		if classID == "" {
			return s.alert(MsgClassRequired)
		}
		payload = backend.EnrollmentPayload{Nome: name, TurmaID: classID, Imagem: frame.DataURL}
	} else {
		payload = backend.AttendancePayload{Imagem: frame.DataURL}
	}

	if s.poster == nil {
		s.logger.Error("送信先が設定されていません")
		return s.show(MsgSendFailed, true)
	}

	result, err := s.poster.Post(ctx, endpoint, payload)
	if err != nil {
		s.logger.Errorf("画像の送信に失敗: %v", err)
		return s.show(MsgSendFailed, true)
	}

	text := string(result.Mensagem)
	if text == "" {
		text = MsgDone
	}
	s.logger.Infof("%s: %s", endpoint, text)
	return s.show(text, result.Failed())
}

func (s *Submitter) capture() (*capture.Frame, bool) {
	if s.capturer == nil {
		return nil, false
	}
	return s.capturer.Capture()
}

func (s *Submitter) show(text string, failed bool) string {
	if rd, ok := s.display.(ResultDisplay); ok {
		rd.SetResult(text, failed)
		return text
	}
	if s.display != nil {
		s.display.SetText(text)
	}
	return text
}

func (s *Submitter) alert(text string) string {
	if s.alerter != nil {
		s.alerter.Alert(text)
	}
	return text
}
