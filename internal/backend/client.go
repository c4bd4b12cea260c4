// Package backend 出欠サーバーとのHTTP通信
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/imroc/req/v3"
	jsoniter "github.com/json-iterator/go"
	"github.com/kataras/golog"
)

// サーバーのエンドポイント
const (
	PathAttendance = "/capturar_presenca"
	PathEnrollment = "/salvar_cadastro"
	PathClasses    = "/get_turmas"
)

// ErrEmptyResponse はレスポンス本文が空だったことを表す
var ErrEmptyResponse = errors.New("empty response body")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// AttendancePayload は出席登録の送信内容
type AttendancePayload struct {
	Imagem string `json:"imagem"`
}

// EnrollmentPayload は顔登録の送信内容
type EnrollmentPayload struct {
	Nome    string `json:"nome"`
	TurmaID string `json:"turma_id"`
	Imagem  string `json:"imagem"`
}

// Result はサーバーの応答
type Result struct {
	Status   string  `json:"status,omitempty"`
	Mensagem Message `json:"mensagem"`
}

// Message は表示する文言。文字列以外のスカラーも表示用の文字列にする
// 偽とみなす値（null, false, 0, ""）は空文字になる
type Message string

// UnmarshalJSON は文字列・数値・真偽値を受け付ける
func (m *Message) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	switch {
	case s == "null", s == "false":
		*m = ""
	case s == "true":
		*m = "true"
	case strings.HasPrefix(s, `"`):
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*m = Message(str)
	case strings.HasPrefix(s, "{"), strings.HasPrefix(s, "["):
		*m = Message(s)
	default:
		n, err := formatNumber(s)
		if err != nil {
			return err
		}
		if n == "0" || n == "-0" {
			n = ""
		}
		*m = Message(n)
	}
	return nil
}

// formatNumber はJSONの数値を最短の10進表記にする（3.0 → 3, 1e1 → 10）
func formatNumber(s string) (string, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "", fmt.Errorf("invalid number %s", s)
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

// Failed はサーバーが失敗を報告したかどうか
func (r *Result) Failed() bool {
	return r.Status == "erro"
}

// ClassID はクラスID。数値でも文字列でも受け付け、常に文字列で保持する
type ClassID string

// UnmarshalJSON は数値と文字列の両方を受け付ける
func (id *ClassID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*id = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*id = ClassID(str)
		return nil
	}
	n, err := formatNumber(s)
	if err != nil {
		return fmt.Errorf("invalid class id %s", s)
	}
	*id = ClassID(n)
	return nil
}

// ClassOption はクラス一覧の1件
type ClassOption struct {
	ID   ClassID `json:"id"`
	Nome string  `json:"nome"`
}

// Config はクライアント設定
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Client は出欠サーバーのクライアント
type Client struct {
	http   *req.Client
	logger *golog.Logger
}

// NewClient は新しいClientを作成する
// Timeout が0ならトランスポートの既定値に任せる
func NewClient(cfg Config, logger *golog.Logger) *Client {
	if logger == nil {
		logger = golog.Child("[backend]")
	}

	c := req.C().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetJsonMarshal(json.Marshal).
		SetJsonUnmarshal(json.Unmarshal)
	if cfg.Timeout > 0 {
		c.SetTimeout(cfg.Timeout)
	}
	if cfg.UserAgent != "" {
		c.SetUserAgent(cfg.UserAgent)
	}

	return &Client{http: c, logger: logger}
}

// Post はpayloadをJSONで送り、応答を返す
// HTTPステータスに関係なく本文を解釈する
func (c *Client) Post(ctx context.Context, path string, payload any) (*Result, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetBodyJsonMarshal(payload).
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}

	body, err := resp.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("POST %s: 本文の読み取りに失敗: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warnf("POST %s: status %d", path, resp.StatusCode)
	}
	trimmed := strings.TrimSpace(string(body))
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("POST %s: %w", path, ErrEmptyResponse)
	}
	if trimmed == "null" {
		return nil, fmt.Errorf("POST %s: 応答がnullです", path)
	}
	// オブジェクト以外の有効なJSONはmensagemなしとして扱う
	if trimmed[0] != '{' {
		if !json.Valid(body) {
			return nil, fmt.Errorf("POST %s: 応答の解析に失敗", path)
		}
		return &Result{}, nil
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("POST %s: 応答の解析に失敗: %w", path, err)
	}
	return &result, nil
}

// Classes はクラス一覧を取得する。空の配列も正常な応答として扱う
func (c *Client) Classes(ctx context.Context) ([]ClassOption, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get(PathClasses)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", PathClasses, err)
	}

	body, err := resp.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("GET %s: 本文の読み取りに失敗: %w", PathClasses, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", PathClasses, resp.StatusCode)
	}

	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return []ClassOption{}, nil
	}

	var classes []ClassOption
	if err := json.Unmarshal(body, &classes); err != nil {
		return nil, fmt.Errorf("GET %s: 応答の解析に失敗: %w", PathClasses, err)
	}
	return classes, nil
}
