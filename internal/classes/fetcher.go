// Package classes 登録画面のクラス選択欄を作る
package classes

import (
	"context"

	"github.com/kataras/golog"

	"presenca/internal/backend"
)

// PlaceholderText は未選択を表す先頭の項目
const PlaceholderText = "Selecionar..."

// Option は選択欄の1項目
type Option struct {
	Value string
	Text  string
}

// Placeholder は値が空の先頭項目
func Placeholder() Option {
	return Option{Value: "", Text: PlaceholderText}
}

// Source はクラス一覧を取得する
type Source interface {
	Classes(ctx context.Context) ([]backend.ClassOption, error)
}

// Selector はクラス選択欄
type Selector interface {
	ReplaceClasses(options []Option)
}

// Fetcher はサーバーからクラス一覧を読み込んで選択欄を作り直す
type Fetcher struct {
	source   Source
	selector Selector
	logger   *golog.Logger
}

// NewFetcher は新しいFetcherを作成する
func NewFetcher(source Source, selector Selector, logger *golog.Logger) *Fetcher {
	if logger == nil {
		logger = golog.Child("[classes]")
	}
	return &Fetcher{source: source, selector: selector, logger: logger}
}

// LoadClasses は選択欄を先頭項目とクラス一覧で置き換える
// 取得に失敗したら先頭項目だけに戻してnilを返す
func (f *Fetcher) LoadClasses(ctx context.Context) []backend.ClassOption {
	if f.source == nil {
		f.logger.Warn("クラス一覧の取得先がありません")
		f.replace(nil)
		return nil
	}

	classes, err := f.source.Classes(ctx)
	if err != nil {
		f.logger.Errorf("クラス一覧の読み込みに失敗: %v", err)
		f.replace(nil)
		return nil
	}

	f.replace(classes)
	f.logger.Debugf("クラスを %d 件読み込みました", len(classes))
	return classes
}

func (f *Fetcher) replace(classes []backend.ClassOption) {
	if f.selector == nil {
		return
	}
	f.selector.ReplaceClasses(Options(classes))
}

// Options は先頭項目に続けてクラスを並べた選択肢を返す
func Options(classes []backend.ClassOption) []Option {
	options := make([]Option, 0, len(classes)+1)
	options = append(options, Placeholder())
	for _, c := range classes {
		options = append(options, Option{Value: string(c.ID), Text: c.Nome})
	}
	return options
}
