package app_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"presenca/internal/app"
	"presenca/internal/backend"
	"presenca/internal/camera"
	"presenca/internal/classes"
	"presenca/internal/ui"
)

type post struct {
	path    string
	payload any
}

type fakeBackend struct {
	mu         sync.Mutex
	posts      []post
	result     *backend.Result
	classes    []backend.ClassOption
	classErr   error
	classCalls int
}

func (f *fakeBackend) Post(_ context.Context, path string, payload any) (*backend.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, post{path: path, payload: payload})
	if f.result == nil {
		return &backend.Result{}, nil
	}
	return f.result, nil
}

func (f *fakeBackend) Classes(context.Context) ([]backend.ClassOption, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.classCalls++
	return f.classes, f.classErr
}

func (f *fakeBackend) Posts() []post {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]post(nil), f.posts...)
}

func syntheticSource() camera.Source {
	discovery := camera.NewSyntheticDiscovery(2)
	return camera.Source{
		Type:      camera.SourceTypeSynthetic,
		Discovery: discovery,
		Opener:    camera.NewSyntheticOpener(discovery, camera.SourceConfig{Width: 32, Height: 24, FPS: 30}),
	}
}

func ctxWithTimeout(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func newApp(t *testing.T, deps app.Deps) *app.App {
	t.Helper()
	a, err := app.New(deps)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func TestApp_InitAttendance(t *testing.T) {
	surface := ui.NewSurface()
	be := &fakeBackend{}
	a := newApp(t, app.Deps{PagePath: "/", Source: syntheticSource(), Backend: be, Surface: surface})

	if a.State() != app.StateIdle {
		t.Fatalf("Expected idle before init, got %s", a.State())
	}
	if err := a.Init(ctxWithTimeout(t)); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	snap := surface.Snapshot()
	if len(snap.Devices) != 2 || snap.Devices[0].Text != "Câmera 1" || snap.Devices[1].Text != "Câmera 2" {
		t.Errorf("unexpected device options %+v", snap.Devices)
	}
	if be.classCalls != 0 {
		t.Error("Expected no class fetch on the attendance page")
	}
	if a.State() != app.StateStreamActive {
		t.Errorf("Expected stream-active, got %s", a.State())
	}
	if _, device, ok := a.Session().Active(); !ok || device != "synthetic:0" {
		t.Errorf("Expected first device to be started, got %s %v", device, ok)
	}
}

func TestApp_InitEnrollmentLoadsClasses(t *testing.T) {
	surface := ui.NewSurface()
	be := &fakeBackend{classes: []backend.ClassOption{{ID: "4", Nome: "9º Ano"}}}
	a := newApp(t, app.Deps{PagePath: "/cadastrar", Source: syntheticSource(), Backend: be, Surface: surface})

	if err := a.Init(ctxWithTimeout(t)); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	want := []classes.Option{{Value: "", Text: "Selecionar..."}, {Value: "4", Text: "9º Ano"}}
	snap := surface.Snapshot()
	if len(snap.Classes) != len(want) {
		t.Fatalf("unexpected class options %+v", snap.Classes)
	}
	for i := range want {
		if snap.Classes[i] != want[i] {
			t.Errorf("class %d = %+v, want %+v", i, snap.Classes[i], want[i])
		}
	}
	if be.classCalls != 1 {
		t.Errorf("Expected 1 class fetch, got %d", be.classCalls)
	}
}

func TestApp_InitWithoutDevices(t *testing.T) {
	surface := ui.NewSurface()
	opener := camera.NewMockOpener()
	a := newApp(t, app.Deps{
		Source:  camera.Source{Discovery: camera.NewMockDiscovery(), Opener: opener},
		Surface: surface,
	})

	if err := a.Init(ctxWithTimeout(t)); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if a.State() != app.StateDevicesListed {
		t.Errorf("Expected devices-listed, got %s", a.State())
	}
	if len(opener.Opened()) != 0 {
		t.Error("Expected no stream request without devices")
	}
}

func TestApp_InitCameraFailure(t *testing.T) {
	surface := ui.NewSurface()
	opener := camera.NewMockOpener()
	opener.SetShouldFail("cam0", errors.New("permission denied"))
	a := newApp(t, app.Deps{
		Source:  camera.Source{Discovery: camera.NewMockDiscovery(camera.VideoDevice{ID: "cam0"}), Opener: opener},
		Surface: surface,
	})

	if err := a.Init(ctxWithTimeout(t)); err == nil {
		t.Fatal("Expected Init to report the camera failure")
	}
	if got := surface.Snapshot().Result; got != camera.MsgCameraUnavailable {
		t.Errorf("Expected %q, got %q", camera.MsgCameraUnavailable, got)
	}
	if a.State() != app.StateDevicesListed {
		t.Errorf("Expected devices-listed, got %s", a.State())
	}
}

func TestApp_SwitchCamera(t *testing.T) {
	opener := camera.NewMockOpener()
	discovery := camera.NewMockDiscovery(camera.VideoDevice{ID: "a"}, camera.VideoDevice{ID: "b"})
	a := newApp(t, app.Deps{Source: camera.Source{Discovery: discovery, Opener: opener}, Surface: ui.NewSurface()})
	ctx := ctxWithTimeout(t)

	if err := a.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := a.SwitchCamera(ctx, "b"); err != nil {
		t.Fatalf("SwitchCamera failed: %v", err)
	}

	if opener.MaxLive() != 1 {
		t.Errorf("Expected one live handle at a time, saw %d", opener.MaxLive())
	}
	if _, device, _ := a.Session().Active(); device != "b" {
		t.Errorf("Expected device b, got %s", device)
	}
}

func TestApp_CaptureAndSubmit(t *testing.T) {
	surface := ui.NewSurface()
	be := &fakeBackend{result: &backend.Result{Status: "ok", Mensagem: "Presença registrada."}}
	a := newApp(t, app.Deps{Source: syntheticSource(), Backend: be, Surface: surface})
	ctx := ctxWithTimeout(t)

	if err := a.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := a.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady failed: %v", err)
	}

	if got := a.CaptureAndSubmit(ctx); got != "Presença registrada." {
		t.Errorf("unexpected result %q", got)
	}
	if surface.Snapshot().Result != "Presença registrada." {
		t.Errorf("Expected result on the surface, got %q", surface.Snapshot().Result)
	}

	posts := be.Posts()
	if len(posts) != 1 || posts[0].path != backend.PathAttendance {
		t.Fatalf("unexpected posts %+v", posts)
	}
	payload, ok := posts[0].payload.(backend.AttendancePayload)
	if !ok || !strings.HasPrefix(payload.Imagem, "data:image/jpeg;base64,") {
		t.Errorf("unexpected payload %T", posts[0].payload)
	}
	if a.State() != app.StateStreamActive {
		t.Errorf("Expected stream-active after submit, got %s", a.State())
	}
}

func TestApp_EnrollmentValidation(t *testing.T) {
	surface := ui.NewSurface()
	be := &fakeBackend{classes: []backend.ClassOption{{ID: "1", Nome: "A"}}}
	a := newApp(t, app.Deps{PageMode: "cadastro", Source: syntheticSource(), Backend: be, Surface: surface})
	ctx := ctxWithTimeout(t)

	if err := a.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := a.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady failed: %v", err)
	}

	a.CaptureAndSubmit(ctx)
	if surface.Snapshot().Alert != "Digite o nome do aluno!" {
		t.Errorf("unexpected alert %q", surface.Snapshot().Alert)
	}

	surface.DismissAlert()
	surface.SetName("Ana")
	a.CaptureAndSubmit(ctx)
	if surface.Snapshot().Alert != "Selecione a turma do aluno!" {
		t.Errorf("unexpected alert %q", surface.Snapshot().Alert)
	}
	if len(be.Posts()) != 0 {
		t.Fatal("Expected no POST while the form is incomplete")
	}

	surface.DismissAlert()
	surface.MoveClass(1)
	a.CaptureAndSubmit(ctx)
	posts := be.Posts()
	if len(posts) != 1 || posts[0].path != backend.PathEnrollment {
		t.Fatalf("unexpected posts %+v", posts)
	}
	payload := posts[0].payload.(backend.EnrollmentPayload)
	if payload.Nome != "Ana" || payload.TurmaID != "1" {
		t.Errorf("unexpected payload %+v", payload)
	}
	if surface.Snapshot().Result != "Operação realizada." {
		t.Errorf("unexpected result %q", surface.Snapshot().Result)
	}
}

func TestApp_SubmitBeforeVideo(t *testing.T) {
	surface := ui.NewSurface()
	be := &fakeBackend{}
	a := newApp(t, app.Deps{Source: camera.Source{}, Backend: be, Surface: surface})

	if err := a.Init(ctxWithTimeout(t)); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	got := a.CaptureAndSubmit(context.Background())
	if got != "Não foi possível capturar a imagem. Aguarde o vídeo carregar." {
		t.Errorf("unexpected result %q", got)
	}
	if len(be.Posts()) != 0 {
		t.Error("Expected no POST without video")
	}
	if a.State() != app.StateDevicesListed {
		t.Errorf("Expected devices-listed, got %s", a.State())
	}
}

func TestApp_InvalidMode(t *testing.T) {
	if _, err := app.New(app.Deps{PageMode: "admin"}); err == nil {
		t.Fatal("Expected error for unknown page mode")
	}
}
