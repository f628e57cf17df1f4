package session

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iabetor/pivoice/internal/audio"
	"github.com/iabetor/pivoice/internal/tts"
)

type call struct {
	text, voice string
}

// fakeEngine 记录请求并返回预设结果。
type fakeEngine struct {
	mu      sync.Mutex
	calls   []call
	speech  *tts.Speech
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Synthesize(ctx context.Context, text, voiceID string) (*tts.Speech, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{text, voiceID})
	speech, err := f.speech, f.err
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return speech, err
}

func (f *fakeEngine) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

var testPCM = []byte{0x01, 0x00, 0xff, 0x7f, 0x00, 0x80}

func okEngine() *fakeEngine {
	return &fakeEngine{speech: &tts.Speech{
		Audio:      base64.StdEncoding.EncodeToString(testPCM),
		SampleRate: 24000,
	}}
}

func newTestApp(t *testing.T, e tts.Engine) *App {
	t.Helper()
	app, err := New(Options{Engine: e, Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { app.Close() })
	return app
}

func TestGenerate_CleansTextAndUsesSelectedVoice(t *testing.T) {
	e := okEngine()
	app := newTestApp(t, e)

	item, err := app.Generate(context.Background(), "Hello!!  world")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	calls := e.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 request, got %d", len(calls))
	}
	if calls[0].text != "Hello!! world" || calls[0].voice != "Kore" {
		t.Errorf("unexpected request %+v", calls[0])
	}
	if item.Text != "Hello!! world" || item.Voice != "Kore" || item.VoiceID != "Kore" {
		t.Errorf("unexpected item %+v", item)
	}

	pcm, f, err := audio.DecodeWAV(item.Blob)
	if err != nil {
		t.Fatalf("blob is not a valid WAV: %v", err)
	}
	if !bytes.Equal(pcm, testPCM) || f.SampleRate != 24000 {
		t.Errorf("unexpected blob payload % x at %d Hz", pcm, f.SampleRate)
	}

	if !strings.HasPrefix(item.AudioURL, "file://") {
		t.Errorf("unexpected audio url %q", item.AudioURL)
	}
	path, ok := PathFromURL(item.AudioURL)
	if !ok {
		t.Fatalf("cannot resolve %q", item.AudioURL)
	}
	onDisk, err := os.ReadFile(path)
	if err != nil || !bytes.Equal(onDisk, item.Blob) {
		t.Errorf("audio file should hold the blob: %v", err)
	}

	snap := app.Snapshot()
	if snap.State != StateIdle || snap.Loading {
		t.Errorf("expected idle after success, got %s", snap.State)
	}
	if snap.Error != "" {
		t.Errorf("expected no error, got %q", snap.Error)
	}
	if snap.Current == nil || snap.Current.ID != item.ID {
		t.Errorf("current should be the new item")
	}
	if len(snap.History) != 1 || snap.History[0].ID != item.ID {
		t.Errorf("history should hold the new item")
	}
}

func TestGenerate_EmptyAfterCleaning(t *testing.T) {
	e := okEngine()
	app := newTestApp(t, e)

	for _, in := range []string{"\U0001F600", "  \U0001F680 \t ", ""} {
		_, err := app.Generate(context.Background(), in)
		if !errors.Is(err, ErrEmptyText) {
			t.Errorf("input %q: expected ErrEmptyText, got %v", in, err)
		}
	}
	if len(e.Calls()) != 0 {
		t.Errorf("no request should be sent, got %d", len(e.Calls()))
	}
	snap := app.Snapshot()
	if snap.Error != MsgEmptyText {
		t.Errorf("expected validation message, got %q", snap.Error)
	}
	if snap.State != StateIdle {
		t.Errorf("expected Idle, got %s", snap.State)
	}
}

func TestGenerate_NoAudioIsGenericFailure(t *testing.T) {
	e := &fakeEngine{err: tts.ErrNoAudio}
	app := newTestApp(t, e)

	item, err := app.Generate(context.Background(), "hello")
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
	if errors.Is(err, tts.ErrNoAudio) {
		t.Error("root cause should not be surfaced")
	}
	if item != nil {
		t.Error("no item expected on failure")
	}

	snap := app.Snapshot()
	if snap.Current != nil {
		t.Error("current should stay unset")
	}
	if snap.Loading || snap.State != StateIdle {
		t.Errorf("busy flag should be cleared, state=%s", snap.State)
	}
	if snap.Error != MsgGenerationFailed {
		t.Errorf("unexpected error message %q", snap.Error)
	}
	if len(snap.History) != 0 {
		t.Error("history should be empty")
	}
}

func TestGenerate_BadPayloads(t *testing.T) {
	payloads := []*tts.Speech{
		nil,
		{Audio: ""},
		{Audio: "%%% not base64 %%%"},
	}
	for _, p := range payloads {
		app := newTestApp(t, &fakeEngine{speech: p})
		if _, err := app.Generate(context.Background(), "hello"); !errors.Is(err, ErrGenerationFailed) {
			t.Errorf("payload %+v: expected ErrGenerationFailed, got %v", p, err)
		}
	}
}

func TestGenerate_DefaultSampleRate(t *testing.T) {
	e := okEngine()
	e.speech.SampleRate = 0
	app := newTestApp(t, e)

	item, err := app.Generate(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if item.SampleRate != audio.DefaultSampleRate {
		t.Errorf("expected default sample rate, got %d", item.SampleRate)
	}
}

func TestGenerate_ClearsCurrentAndErrorAtStart(t *testing.T) {
	e := okEngine()
	app := newTestApp(t, e)

	if _, err := app.Generate(context.Background(), "first"); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	e.mu.Lock()
	e.err = errors.New("network down")
	e.mu.Unlock()
	app.Generate(context.Background(), "second")
	if snap := app.Snapshot(); snap.Current != nil {
		t.Error("current should be cleared by a failed attempt")
	}

	e.mu.Lock()
	e.err = nil
	e.mu.Unlock()
	if _, err := app.Generate(context.Background(), "third"); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if snap := app.Snapshot(); snap.Error != "" {
		t.Errorf("success should clear the previous error, got %q", snap.Error)
	}
}

func TestGenerate_RejectsWhileBusy(t *testing.T) {
	e := okEngine()
	e.started = make(chan struct{}, 1)
	e.release = make(chan struct{})
	app := newTestApp(t, e)

	done := make(chan error, 1)
	go func() {
		_, err := app.Generate(context.Background(), "slow request")
		done <- err
	}()

	select {
	case <-e.started:
	case <-time.After(2 * time.Second):
		t.Fatal("request did not start")
	}

	if snap := app.Snapshot(); !snap.Loading || snap.State != StateRequesting {
		t.Errorf("expected Requesting while in flight, got %s", snap.State)
	}
	if _, err := app.Generate(context.Background(), "second"); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}
	if _, err := app.Regenerate(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("Regenerate while busy: expected ErrBusy, got %v", err)
	}

	close(e.release)
	if err := <-done; err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	if len(e.Calls()) != 1 {
		t.Errorf("busy request should not reach the engine, got %d calls", len(e.Calls()))
	}
	if app.Snapshot().Loading {
		t.Error("busy flag should be cleared after completion")
	}
}

func TestGenerate_EmptyTextWhileBusyLeavesErrorUnset(t *testing.T) {
	e := okEngine()
	e.started = make(chan struct{}, 1)
	e.release = make(chan struct{})
	app := newTestApp(t, e)

	done := make(chan error, 1)
	go func() {
		_, err := app.Generate(context.Background(), "slow request")
		done <- err
	}()

	select {
	case <-e.started:
	case <-time.After(2 * time.Second):
		t.Fatal("request did not start")
	}

	if _, err := app.Generate(context.Background(), "\U0001F600"); !errors.Is(err, ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}
	if msg := app.Snapshot().Error; msg != "" {
		t.Errorf("in-flight request should keep an empty error, got %q", msg)
	}

	close(e.release)
	if err := <-done; err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	snap := app.Snapshot()
	if snap.Error != "" {
		t.Errorf("success should leave no error, got %q", snap.Error)
	}
	if snap.Current == nil || snap.State != StateIdle {
		t.Errorf("expected Idle with current set, got %s current=%v", snap.State, snap.Current)
	}
}

func TestGenerate_SuccessClearsError(t *testing.T) {
	app := newTestApp(t, okEngine())

	app.Generate(context.Background(), "   ")
	if app.Snapshot().Error != MsgEmptyText {
		t.Fatalf("expected validation error, got %q", app.Snapshot().Error)
	}
	if _, err := app.Generate(context.Background(), "hello"); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if msg := app.Snapshot().Error; msg != "" {
		t.Errorf("error should be cleared after success, got %q", msg)
	}
}

func TestGenerate_ContextCancelled(t *testing.T) {
	e := okEngine()
	e.release = make(chan struct{})
	app := newTestApp(t, e)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := app.Generate(ctx, "hello"); !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
	if app.Snapshot().State != StateIdle {
		t.Error("should return to Idle")
	}
}

func TestRegenerate_NewEntryWithCurrentVoice(t *testing.T) {
	e := okEngine()
	app := newTestApp(t, e)

	first, err := app.Generate(context.Background(), "say  this")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	app.SelectVoice("Puck")

	second, err := app.Regenerate(context.Background())
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if second.ID == first.ID {
		t.Error("regenerate should create a new entry")
	}
	if second.Text != "say this" || second.Voice != "Puck" {
		t.Errorf("unexpected regenerated item %+v", second)
	}

	calls := e.Calls()
	if len(calls) != 2 || calls[1].text != "say this" || calls[1].voice != "Puck" {
		t.Errorf("unexpected calls %+v", calls)
	}
	snap := app.Snapshot()
	if len(snap.History) != 2 || snap.History[0].ID != second.ID {
		t.Errorf("history should have the new entry first")
	}
}

func TestRegenerate_WithoutCurrentIsNoop(t *testing.T) {
	e := okEngine()
	app := newTestApp(t, e)

	if _, err := app.Regenerate(context.Background()); !errors.Is(err, ErrNoCurrent) {
		t.Fatalf("expected ErrNoCurrent, got %v", err)
	}
	if len(e.Calls()) != 0 {
		t.Error("no request should be sent")
	}
}

func TestSelectHistory(t *testing.T) {
	app := newTestApp(t, okEngine())
	first, _ := app.Generate(context.Background(), "one")
	app.Generate(context.Background(), "two")

	got, err := app.SelectHistory(first.ID)
	if err != nil {
		t.Fatalf("SelectHistory: %v", err)
	}
	if got.Text != "one" {
		t.Errorf("unexpected item %+v", got)
	}
	snap := app.Snapshot()
	if snap.Current == nil || snap.Current.ID != first.ID {
		t.Error("selected item should become current")
	}
	if len(snap.History) != 2 {
		t.Error("selecting should not remove from history")
	}

	if _, err := app.SelectHistory("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestHistory_CapReleasesEvictedAudio(t *testing.T) {
	app := newTestApp(t, okEngine())

	var items []string
	for i := 0; i < 6; i++ {
		item, err := app.Generate(context.Background(), strings.Repeat("x", i+1))
		if err != nil {
			t.Fatalf("Generate %d: %v", i, err)
		}
		items = append(items, item.AudioURL)
	}

	snap := app.Snapshot()
	if len(snap.History) != 5 {
		t.Fatalf("expected 5 items, got %d", len(snap.History))
	}
	if snap.History[0].Text != "xxxxxx" || snap.History[4].Text != "xx" {
		t.Errorf("expected newest first, got %q ... %q", snap.History[0].Text, snap.History[4].Text)
	}

	evicted, _ := PathFromURL(items[0])
	if _, err := os.Stat(evicted); !os.IsNotExist(err) {
		t.Errorf("evicted audio should be released, stat err = %v", err)
	}
	kept, _ := PathFromURL(items[5])
	if _, err := os.Stat(kept); err != nil {
		t.Errorf("kept audio should exist: %v", err)
	}
}

func TestSelectVoice_Unknown(t *testing.T) {
	e := okEngine()
	app := newTestApp(t, e)

	opt := app.SelectVoice("Orus")
	if opt.Name != "Unknown" {
		t.Errorf("expected Unknown display name, got %q", opt.Name)
	}
	item, err := app.Generate(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if item.Voice != "Unknown" || item.VoiceID != "Orus" {
		t.Errorf("unexpected voice fields %+v", item)
	}
	if e.Calls()[0].voice != "Orus" {
		t.Error("unknown voice id should pass through")
	}
}

func TestNew_InitialVoice(t *testing.T) {
	app, err := New(Options{Engine: okEngine(), Voice: "Zephyr", Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer app.Close()
	if v := app.Snapshot().Voice; v.ID != "Zephyr" || v.Gender != "Female" {
		t.Errorf("unexpected initial voice %+v", v)
	}
}

func TestNew_RequiresEngine(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected error without engine")
	}
}

func TestClose_RemovesSessionDir(t *testing.T) {
	app, err := New(Options{Engine: okEngine(), Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	app.Generate(context.Background(), "bye")
	dir := app.Dir()

	if err := app.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("session dir should be removed, stat err = %v", err)
	}
	if err := app.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
}

func TestClose_ResetsInFlightRequest(t *testing.T) {
	e := okEngine()
	e.started = make(chan struct{}, 1)
	e.release = make(chan struct{})
	app := newTestApp(t, e)

	done := make(chan error, 1)
	go func() {
		_, err := app.Generate(context.Background(), "closing soon")
		done <- err
	}()
	<-e.started

	if err := app.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if st := app.Snapshot().State; st != StateIdle {
		t.Errorf("expected Idle after Close, got %s", st)
	}

	close(e.release)
	if err := <-done; !errors.Is(err, ErrGenerationFailed) {
		t.Errorf("request finishing after Close should fail, got %v", err)
	}
	if n := len(app.Snapshot().History); n != 0 {
		t.Errorf("history should stay empty after Close, got %d", n)
	}
}

func TestOnChange_CallbackCanReadSnapshot(t *testing.T) {
	app := newTestApp(t, okEngine())
	var mu sync.Mutex
	var loading []bool
	app.OnChange(func(_, _ State) {
		snap := app.Snapshot()
		mu.Lock()
		loading = append(loading, snap.Loading)
		mu.Unlock()
	})

	done := make(chan error, 1)
	go func() {
		_, err := app.Generate(context.Background(), "hello")
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Generate blocked by a callback reading the snapshot")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []bool{true, false, false}
	if len(loading) != len(want) {
		t.Fatalf("expected %v, got %v", want, loading)
	}
	for i := range want {
		if loading[i] != want[i] {
			t.Errorf("step %d: loading = %v, want %v", i, loading[i], want[i])
		}
	}
}

func TestOnChange_SeesFullCycle(t *testing.T) {
	app := newTestApp(t, &fakeEngine{err: errors.New("boom")})
	var mu sync.Mutex
	var seen []State
	app.OnChange(func(_, to State) {
		mu.Lock()
		seen = append(seen, to)
		mu.Unlock()
	})
	app.Generate(context.Background(), "hi")

	mu.Lock()
	defer mu.Unlock()
	want := []State{StateRequesting, StateFailure, StateIdle}
	if len(seen) != len(want) {
		t.Fatalf("expected %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("step %d: got %s, want %s", i, seen[i], want[i])
		}
	}
}
