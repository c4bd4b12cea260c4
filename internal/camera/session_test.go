package camera

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSession_StartBindsPreview(t *testing.T) {
	opener := NewMockOpener()
	preview := NewPreview(nil)
	session := NewSession(opener, preview, &recordingSink{}, nil)

	if err := session.Start(timeoutCtx(t), "/dev/video0"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if session.Status() != StatusActive {
		t.Errorf("Expected active status, got %s", session.Status())
	}

	streams := opener.Opened()
	if len(streams) != 1 {
		t.Fatalf("Expected 1 stream, got %d", len(streams))
	}
	streams[0].Push(testJPEG(t, 64, 48))
	waitSize(t, preview, 64, 48)

	id, device, ok := session.Active()
	if !ok || id != streams[0].ID() || device != "/dev/video0" {
		t.Errorf("unexpected active handle: %s %s %v", id, device, ok)
	}
}

func TestSession_RestartReleasesFirst(t *testing.T) {
	opener := NewMockOpener()
	session := NewSession(opener, NewPreview(nil), &recordingSink{}, nil)
	ctx := timeoutCtx(t)

	if err := session.Start(ctx, "a"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := session.Start(ctx, "b"); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	// 同じデバイスでの再開始も同様
	if err := session.Start(ctx, "b"); err != nil {
		t.Fatalf("third Start failed: %v", err)
	}

	if opener.MaxLive() != 1 {
		t.Errorf("Expected at most 1 live handle, saw %d", opener.MaxLive())
	}
	if opener.Live() != 1 {
		t.Errorf("Expected exactly 1 live handle, got %d", opener.Live())
	}

	streams := opener.Opened()
	for _, s := range streams[:len(streams)-1] {
		if !s.Stopped() {
			t.Errorf("Expected stream %s to be stopped", s.ID())
		}
	}
}

func TestSession_FailureLeavesNoStream(t *testing.T) {
	opener := NewMockOpener()
	opener.SetShouldFail("busy", errors.New("device busy"))
	preview := NewPreview(nil)
	sink := &recordingSink{}
	session := NewSession(opener, preview, sink, nil)
	ctx := timeoutCtx(t)

	if err := session.Start(ctx, "ok"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	opener.Opened()[0].Push(testJPEG(t, 32, 32))
	waitSize(t, preview, 32, 32)

	err := session.Start(ctx, "busy")
	if err == nil {
		t.Fatal("Expected error for busy device")
	}

	if sink.Text() != MsgCameraUnavailable {
		t.Errorf("Expected %q, got %q", MsgCameraUnavailable, sink.Text())
	}
	if _, _, ok := session.Active(); ok {
		t.Error("Expected no active stream after failure")
	}
	if opener.Live() != 0 {
		t.Errorf("Expected previous stream to be released, %d still live", opener.Live())
	}
	if w, h := preview.NaturalSize(); w != 0 || h != 0 {
		t.Errorf("Expected empty preview, got %dx%d", w, h)
	}
	if session.Status() != StatusError {
		t.Errorf("Expected error status, got %s", session.Status())
	}

	// 失敗後も再試行できる
	if err := session.Start(ctx, "ok"); err != nil {
		t.Fatalf("Start after failure failed: %v", err)
	}
}

func TestSession_Unsupported(t *testing.T) {
	session := NewSession(nil, nil, nil, nil)
	if err := session.Start(timeoutCtx(t), ""); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("Expected ErrUnsupported, got %v", err)
	}
}

func TestSession_Close(t *testing.T) {
	opener := NewMockOpener()
	session := NewSession(opener, nil, nil, nil)

	if err := session.Start(timeoutCtx(t), "a"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	session.Close()
	session.Close()

	if opener.Live() != 0 {
		t.Errorf("Expected no live handles after Close, got %d", opener.Live())
	}
	if session.Status() != StatusInactive {
		t.Errorf("Expected inactive status, got %s", session.Status())
	}
}

func TestSession_WaitFrameAcrossSwitch(t *testing.T) {
	opener := NewMockOpener()
	preview := NewPreview(nil)
	session := NewSession(opener, preview, &recordingSink{}, nil)
	ctx := timeoutCtx(t)

	if err := session.Start(ctx, "a"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- preview.WaitFrame(waitCtx) }()

	// 待機が始まってから切り替える
	time.Sleep(20 * time.Millisecond)
	if err := session.Start(ctx, "b"); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}

	streams := opener.Opened()
	streams[len(streams)-1].Push(testJPEG(t, 8, 8))

	if err := <-done; err != nil {
		t.Fatalf("Expected the waiter to see the new stream's frame, got %v", err)
	}
}

// blockingOpener はreleaseが閉じられるまでOpenを返さない
type blockingOpener struct {
	*MockOpener
	entered chan struct{}
	release chan struct{}
}

func (b *blockingOpener) Open(ctx context.Context, deviceID string) (Stream, error) {
	close(b.entered)
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return b.MockOpener.Open(ctx, deviceID)
}

func TestSession_ReadableWhileStarting(t *testing.T) {
	opener := &blockingOpener{
		MockOpener: NewMockOpener(),
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	session := NewSession(opener, nil, &recordingSink{}, nil)

	ctx := timeoutCtx(t)
	started := make(chan error, 1)
	go func() { started <- session.Start(ctx, "a") }()
	<-opener.entered

	read := make(chan struct{})
	go func() {
		defer close(read)
		if status := session.Status(); status != StatusStarting {
			t.Errorf("Expected starting status, got %s", status)
		}
		if _, _, ok := session.Active(); ok {
			t.Error("Expected no active stream while starting")
		}
	}()

	select {
	case <-read:
	case <-time.After(time.Second):
		t.Fatal("Status and Active blocked during Open")
	}

	close(opener.release)
	if err := <-started; err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if session.Status() != StatusActive {
		t.Errorf("Expected active status, got %s", session.Status())
	}
}
