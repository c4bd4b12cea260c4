package camera

import (
	"bytes"
	"image/jpeg"
	"testing"
	"time"
)

func TestSyntheticOpener_FirstFrameImmediately(t *testing.T) {
	opener := NewSyntheticOpener(NewSyntheticDiscovery(1), SourceConfig{Width: 64, Height: 48, FPS: 30})

	stream, err := opener.Open(timeoutCtx(t), "")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer stream.Stop()

	if stream.DeviceID() != "synthetic:0" {
		t.Errorf("Expected default device synthetic:0, got %s", stream.DeviceID())
	}

	select {
	case frame := <-stream.Frames():
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(frame))
		if err != nil {
			t.Fatalf("invalid frame: %v", err)
		}
		if cfg.Width != 64 || cfg.Height != 48 {
			t.Errorf("frame size = %dx%d", cfg.Width, cfg.Height)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected a frame right after Open")
	}
}

func TestSyntheticOpener_ExclusiveDevice(t *testing.T) {
	opener := NewSyntheticOpener(NewSyntheticDiscovery(2), SourceConfig{Width: 16, Height: 16})
	ctx := timeoutCtx(t)

	first, err := opener.Open(ctx, "synthetic:0")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if _, err := opener.Open(ctx, "synthetic:0"); err == nil {
		t.Fatal("Expected busy device to be rejected")
	}

	other, err := opener.Open(ctx, "synthetic:1")
	if err != nil {
		t.Fatalf("Expected another device to open, got %v", err)
	}
	defer other.Stop()

	if err := first.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	again, err := opener.Open(ctx, "synthetic:0")
	if err != nil {
		t.Fatalf("Expected device to be free after Stop, got %v", err)
	}
	defer again.Stop()
}

func TestSyntheticOpener_WithSession(t *testing.T) {
	// 解放前に取得すると失敗する実機と同じ振る舞いでも切り替えられる
	opener := NewSyntheticOpener(NewSyntheticDiscovery(1), SourceConfig{Width: 20, Height: 10, FPS: 30})
	preview := NewPreview(nil)
	session := NewSession(opener, preview, &recordingSink{}, nil)
	defer session.Close()

	ctx := timeoutCtx(t)
	for i := 0; i < 3; i++ {
		if err := session.Start(ctx, "synthetic:0"); err != nil {
			t.Fatalf("Start #%d failed: %v", i, err)
		}
	}
	waitSize(t, preview, 20, 10)
}

func TestSourceFactory(t *testing.T) {
	factory := NewSourceFactory()

	types := factory.SupportedTypes()
	if len(types) != 2 || types[0] != SourceTypeSynthetic || types[1] != SourceTypeV4L2 {
		t.Fatalf("unexpected types: %v", types)
	}

	source, err := factory.Create(SourceTypeSynthetic, SourceConfig{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if source.Type != SourceTypeSynthetic || source.Discovery == nil || source.Opener == nil {
		t.Errorf("incomplete source: %+v", source)
	}

	if _, err := factory.Create("x11", SourceConfig{}); err == nil {
		t.Error("Expected error for unknown type")
	}

	factory.Register("fake", func(cfg SourceConfig) Source {
		return Source{Type: "fake", Discovery: NewMockDiscovery(), Opener: NewMockOpener()}
	})
	if source, err := factory.Create("fake", SourceConfig{}); err != nil || source.Type != "fake" {
		t.Errorf("Expected registered creator to be used, got %+v %v", source, err)
	}
}
