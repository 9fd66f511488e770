package walker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/partwalk/internal/dispatch"
	"github.com/mattjoyce/partwalk/internal/handler"
	"github.com/mattjoyce/partwalk/internal/handler/mocks"
	"github.com/mattjoyce/partwalk/internal/log"
	"github.com/mattjoyce/partwalk/internal/materialize"
	"github.com/mattjoyce/partwalk/internal/plugin"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR") // Suppress logs in tests
	os.Exit(m.Run())
}

type v1Module struct {
	*mocks.MockModule
	*mocks.MockPartHandlerV1
}

type v2Module struct {
	*mocks.MockModule
	*mocks.MockPartHandlerV2
}

func newV2Module(ctrl *gomock.Controller, name string, freq handler.Frequency, types ...string) v2Module {
	m := v2Module{mocks.NewMockModule(ctrl), mocks.NewMockPartHandlerV2(ctrl)}
	m.MockModule.EXPECT().Name().Return(name).AnyTimes()
	m.MockModule.EXPECT().Declaration().Return(handler.Declaration{Frequency: freq, HandlerVersion: 2}).AnyTimes()
	m.MockModule.EXPECT().Register(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, b handler.Binder, _ handler.Data, _ handler.Frequency) error {
			b.Bind(types...)
			return nil
		})
	return m
}

func newV1Module(ctrl *gomock.Controller, name string, freq handler.Frequency, types ...string) v1Module {
	m := v1Module{mocks.NewMockModule(ctrl), mocks.NewMockPartHandlerV1(ctrl)}
	m.MockModule.EXPECT().Name().Return(name).AnyTimes()
	m.MockModule.EXPECT().Declaration().Return(handler.Declaration{Frequency: freq, HandlerVersion: 1}).AnyTimes()
	m.MockModule.EXPECT().Register(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, b handler.Binder, _ handler.Data, _ handler.Frequency) error {
			b.Bind(types...)
			return nil
		})
	return m
}

type recorder struct {
	events []Event
	err    error
}

func (r *recorder) Record(_ context.Context, ev Event) error {
	r.events = append(r.events, ev)
	return r.err
}

func (r *recorder) kinds() []string {
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, fmt.Sprintf("%s:%s:%s", ev.Kind, ev.ContentType, ev.Outcome))
	}
	return out
}

func newWalker(t *testing.T, loader handler.Loader, freq handler.Frequency) (*Walker, *handler.State) {
	t.Helper()
	st := handler.NewState(t.TempDir(), freq, map[string]any{"instance_id": "i-1"})
	w := New(st, materialize.New(loader, nil), dispatch.New(nil), nil)
	return w, st
}

func TestRun_RoutesParts(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	ctx := context.Background()
	freq := handler.FrequencyOncePerInstance

	builtin := newV2Module(ctrl, "shellscript", handler.FrequencyAlways, "text/x-shellscript")
	custom := newV1Module(ctrl, "part-handler-000", freq, "text/x-custom")

	loader := mocks.NewMockLoader(ctrl)
	loader.EXPECT().Load(gomock.Any(), "part-handler-000", gomock.Any()).Return(custom, nil)

	w, st := newWalker(t, loader, freq)
	require.NoError(t, w.RegisterBuiltin(ctx, builtin))

	gomock.InOrder(
		builtin.MockPartHandlerV2.EXPECT().HandlePartFreq(gomock.Any(), st.Data, handler.ContentTypeBegin, "", gomock.Nil(), freq),
		builtin.MockPartHandlerV2.EXPECT().HandlePartFreq(gomock.Any(), st.Data, "text/x-shellscript", "boot.sh", []byte("echo hi"), freq),
		custom.MockPartHandlerV1.EXPECT().HandlePart(gomock.Any(), st.Data, handler.ContentTypeBegin, "", gomock.Nil()),
		custom.MockPartHandlerV1.EXPECT().HandlePart(gomock.Any(), st.Data, "text/x-custom", "c.txt", []byte("custom")),
		builtin.MockPartHandlerV2.EXPECT().HandlePartFreq(gomock.Any(), st.Data, handler.ContentTypeEnd, "", gomock.Nil(), freq),
		custom.MockPartHandlerV1.EXPECT().HandlePart(gomock.Any(), st.Data, handler.ContentTypeEnd, "", gomock.Nil()),
	)

	rec := &recorder{}
	w.SetRecorder(rec)

	sum := w.Run(ctx, []Part{
		{ContentType: "text/x-shellscript", Filename: "boot.sh", Payload: []byte("echo hi")},
		{ContentType: "text/x-unknown", Filename: "mystery.bin", Payload: []byte{0x1}},
		{ContentType: handler.ContentTypePartHandler, Filename: "custom.py", Payload: []byte("#!/bin/sh\n")},
		{ContentType: "text/x-custom", Filename: "c.txt", Payload: []byte("custom")},
	})

	assert.Equal(t, Summary{Parts: 4, Materialized: 1, Handled: 2, Unhandled: 1}, sum)
	assert.Equal(t, 1, st.HandlerCount)
	assert.Equal(t, []string{
		"begin:__begin__:handled",
		"dispatch:text/x-shellscript:handled",
		"unhandled:text/x-unknown:unhandled",
		"materialize:text/part-handler:registered",
		"begin:__begin__:handled",
		"dispatch:text/x-custom:handled",
		"end:__end__:handled",
		"end:__end__:handled",
	}, rec.kinds())

	for i, ev := range rec.events {
		assert.Equal(t, i+1, ev.Seq)
	}
	assert.NotEmpty(t, rec.events[3].Digest)
	assert.Equal(t, "part-handler-000", rec.events[3].Module)
}

func TestWalk_FrequencyMismatchIsSkipped(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	ctx := context.Background()

	// Declares once; the pass requests once-per-instance. No handle call expected.
	mod := newV1Module(ctrl, "per-boot", handler.FrequencyOnce, "text/x-once")

	w, _ := newWalker(t, mocks.NewMockLoader(ctrl), handler.FrequencyOncePerInstance)
	require.NoError(t, w.RegisterBuiltin(ctx, mod))

	sum := w.Run(ctx, []Part{
		{ContentType: "text/x-once", Filename: "a"},
		{ContentType: "text/x-once", Filename: "b"},
	})
	assert.Equal(t, Summary{Parts: 2, Skipped: 2}, sum)
}

func TestWalk_MaterializeFailureCountsAndSkipsBegin(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	loader := mocks.NewMockLoader(ctrl)
	loader.EXPECT().Load(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("syntax error"))

	w, st := newWalker(t, loader, handler.FrequencyOnce)
	rec := &recorder{}
	w.SetRecorder(rec)

	sum := w.Run(context.Background(), []Part{
		{ContentType: handler.ContentTypePartHandler, Filename: "bad.py", Payload: []byte("garbage")},
		{ContentType: "text/x-never-bound"},
	})

	assert.Equal(t, Summary{Parts: 2, MaterializeFailed: 1, Unhandled: 1}, sum)
	assert.Equal(t, 1, st.HandlerCount)
	assert.Equal(t, 0, st.Handlers.Len())
	require.Len(t, rec.events, 2)
	assert.Equal(t, "failed", rec.events[0].Outcome)
	assert.Error(t, rec.events[0].Err)
}

func TestWalk_HandlerFailureDoesNotStopWalk(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	ctx := context.Background()
	freq := handler.FrequencyAlways

	mod := newV2Module(ctrl, "flaky", freq, "text/x-flaky")
	gomock.InOrder(
		mod.MockPartHandlerV2.EXPECT().HandlePartFreq(gomock.Any(), gomock.Any(), "text/x-flaky", "1", gomock.Any(), freq).
			Return(errors.New("boom")),
		mod.MockPartHandlerV2.EXPECT().HandlePartFreq(gomock.Any(), gomock.Any(), "text/x-flaky", "2", gomock.Any(), freq).
			DoAndReturn(func(context.Context, handler.Data, string, string, []byte, handler.Frequency) error {
				panic("worse")
			}),
		mod.MockPartHandlerV2.EXPECT().HandlePartFreq(gomock.Any(), gomock.Any(), "text/x-flaky", "3", gomock.Any(), freq).
			Return(nil),
	)

	w, _ := newWalker(t, mocks.NewMockLoader(ctrl), freq)
	require.NoError(t, w.RegisterBuiltin(ctx, mod))

	sum := w.Walk(ctx, []Part{
		{ContentType: "text/x-flaky", Filename: "1"},
		{ContentType: "text/x-flaky", Filename: "2"},
		{ContentType: "text/x-flaky", Filename: "3"},
	})
	assert.Equal(t, Summary{Parts: 3, Handled: 1, Failed: 2}, sum)
}

func TestBeginAndEndRunOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	ctx := context.Background()
	freq := handler.FrequencyAlways

	mod := newV2Module(ctrl, "lifecycle", freq, "text/x-a", "text/x-b")
	mod.MockPartHandlerV2.EXPECT().HandlePartFreq(gomock.Any(), gomock.Any(), handler.ContentTypeBegin, "", gomock.Nil(), freq).Times(1)
	mod.MockPartHandlerV2.EXPECT().HandlePartFreq(gomock.Any(), gomock.Any(), handler.ContentTypeEnd, "", gomock.Nil(), freq).
		Return(errors.New("cleanup failed")).Times(1)

	w, _ := newWalker(t, mocks.NewMockLoader(ctrl), freq)
	require.NoError(t, w.RegisterBuiltin(ctx, mod))

	assert.Equal(t, Summary{}, w.Begin(ctx))
	assert.Equal(t, Summary{}, w.Begin(ctx))
	assert.Equal(t, Summary{Failed: 1}, w.End(ctx))
	assert.Equal(t, Summary{}, w.End(ctx))
}

func TestWalk_StopsWhenCancelled(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	w, _ := newWalker(t, mocks.NewMockLoader(ctrl), handler.FrequencyOnce)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum := w.Walk(ctx, []Part{{ContentType: "text/x-a"}, {ContentType: "text/x-b"}})
	assert.Equal(t, Summary{Cancelled: true}, sum)
}

func TestRun_CancelledSkipsEnd(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	freq := handler.FrequencyAlways
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mod := newV2Module(ctrl, "interrupted", freq, "text/x-a")
	gomock.InOrder(
		mod.MockPartHandlerV2.EXPECT().HandlePartFreq(gomock.Any(), gomock.Any(), handler.ContentTypeBegin, "", gomock.Nil(), freq),
		mod.MockPartHandlerV2.EXPECT().HandlePartFreq(gomock.Any(), gomock.Any(), "text/x-a", "first", gomock.Any(), freq).
			DoAndReturn(func(context.Context, handler.Data, string, string, []byte, handler.Frequency) error {
				cancel()
				return nil
			}),
		mod.MockPartHandlerV2.EXPECT().HandlePartFreq(gomock.Any(), gomock.Any(), handler.ContentTypeEnd, "", gomock.Nil(), freq),
	)

	w, _ := newWalker(t, mocks.NewMockLoader(ctrl), freq)
	require.NoError(t, w.RegisterBuiltin(ctx, mod))

	sum := w.Run(ctx, []Part{
		{ContentType: "text/x-a", Filename: "first"},
		{ContentType: "text/x-a", Filename: "second"},
	})
	assert.Equal(t, Summary{Parts: 1, Handled: 1, Cancelled: true}, sum)

	// __end__ was held back and is still delivered once with a live context.
	assert.Equal(t, Summary{}, w.End(context.Background()))
	assert.Equal(t, Summary{}, w.End(context.Background()))
}

func TestRecorderErrorIsIgnored(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	w, _ := newWalker(t, mocks.NewMockLoader(ctrl), handler.FrequencyOnce)
	rec := &recorder{err: errors.New("disk full")}
	w.SetRecorder(rec)

	sum := w.Walk(context.Background(), []Part{{ContentType: "text/x-a"}})
	assert.Equal(t, Summary{Parts: 1, Unhandled: 1}, sum)
	assert.Len(t, rec.events, 1)
}

const execHandler = `#!/bin/sh
read -r line
echo "$line" >> "%s/requests.log"
case "$line" in
  *'"command":"describe"'*)
    echo '{"status":"ok","frequency":"always","handler_version":2}' ;;
  *'"command":"register"'*)
    echo '{"status":"ok","content_types":["text/x-test"]}' ;;
  *'"content_type":"text/x-test"'*)
    echo '{"status":"ok","state_updates":{"seen":true}}' ;;
  *)
    echo '{"status":"ok"}' ;;
esac
`

func TestRun_ExecHandlerEndToEnd(t *testing.T) {
	handlerDir := t.TempDir()
	logDir := t.TempDir()

	st := handler.NewState(handlerDir, handler.FrequencyOncePerInstance, map[string]any{"instance_id": "i-e2e"})
	w := New(st, materialize.New(plugin.NewLoader(handlerDir), nil), dispatch.New(nil), nil)

	sum := w.Run(context.Background(), []Part{
		{ContentType: handler.ContentTypePartHandler, Filename: "custom.sh", Payload: []byte(fmt.Sprintf(execHandler, logDir))},
		{ContentType: "text/x-test", Filename: "payload.txt", Payload: []byte("hello")},
	})

	assert.Equal(t, Summary{Parts: 2, Materialized: 1, Handled: 1}, sum)

	info, err := os.Stat(filepath.Join(handlerDir, "part-handler-000.part"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(filepath.Join(logDir, "requests.log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], `"command":"describe"`)
	assert.Contains(t, lines[1], `"command":"register"`)
	assert.Contains(t, lines[2], `"content_type":"__begin__"`)
	assert.Contains(t, lines[3], `"content_type":"text/x-test"`)
	assert.Contains(t, lines[3], `"payload":"aGVsbG8="`)
	assert.Contains(t, lines[3], `"frequency":"once-per-instance"`)
	assert.Contains(t, lines[4], `"content_type":"__end__"`)
	assert.Contains(t, lines[4], `"state":{"seen":true}`)
}
