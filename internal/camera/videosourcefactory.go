package camera

import (
	"fmt"
	"sort"
	"time"

	"github.com/kataras/golog"
)

// SourceType はカメラ取得方式の種類
type SourceType string

const (
	// SourceTypeV4L2 はffmpeg経由のV4L2デバイス
	SourceTypeV4L2 SourceType = "v4l2"
	// SourceTypeSynthetic は生成したテストパターン
	SourceTypeSynthetic SourceType = "synthetic"
)

// SourceConfig はソース作成設定
type SourceConfig struct {
	Width          int
	Height         int
	FPS            int
	AcquireTimeout time.Duration
	FFmpegPath     string
	Logger         *golog.Logger
}

// Source は列挙と取得の組
type Source struct {
	Type      SourceType
	Discovery Discovery
	Opener    StreamOpener
}

// SourceCreator はソース作成関数の型
type SourceCreator func(cfg SourceConfig) Source

// SourceFactory はソース種別ごとの作成関数を管理する
type SourceFactory struct {
	creators map[SourceType]SourceCreator
}

// NewSourceFactory は標準のソースを登録したファクトリーを作成する
func NewSourceFactory() *SourceFactory {
	f := &SourceFactory{creators: make(map[SourceType]SourceCreator)}

	f.Register(SourceTypeV4L2, func(cfg SourceConfig) Source {
		discovery := NewLinuxDiscovery()
		return Source{
			Type:      SourceTypeV4L2,
			Discovery: discovery,
			Opener:    NewFFmpegOpener(discovery, cfg, cfg.Logger),
		}
	})

	f.Register(SourceTypeSynthetic, func(cfg SourceConfig) Source {
		discovery := NewSyntheticDiscovery(2)
		return Source{
			Type:      SourceTypeSynthetic,
			Discovery: discovery,
			Opener:    NewSyntheticOpener(discovery, cfg),
		}
	})

	return f
}

// Register はソース作成関数を登録する
func (f *SourceFactory) Register(sourceType SourceType, creator SourceCreator) {
	f.creators[sourceType] = creator
}

// Create はソースを作成する
func (f *SourceFactory) Create(sourceType SourceType, cfg SourceConfig) (Source, error) {
	creator, exists := f.creators[sourceType]
	if !exists {
		return Source{}, fmt.Errorf("サポートされていないソースタイプ: %s", sourceType)
	}
	return creator(cfg), nil
}

// SupportedTypes は登録済みのソース種別を名前順に返す
func (f *SourceFactory) SupportedTypes() []SourceType {
	types := make([]SourceType, 0, len(f.creators))
	for t := range f.creators {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
