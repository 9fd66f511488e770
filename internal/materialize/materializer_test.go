package materialize

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"

	"github.com/mattjoyce/partwalk/internal/handler"
	"github.com/mattjoyce/partwalk/internal/handler/mocks"
	"github.com/mattjoyce/partwalk/internal/log"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR")
	os.Exit(m.Run())
}

type v2Module struct {
	*mocks.MockModule
	*mocks.MockPartHandlerV2
}

func newV2Module(ctrl *gomock.Controller, name string) v2Module {
	m := v2Module{mocks.NewMockModule(ctrl), mocks.NewMockPartHandlerV2(ctrl)}
	m.MockModule.EXPECT().Name().Return(name).AnyTimes()
	m.MockModule.EXPECT().Declaration().
		Return(handler.Declaration{Frequency: handler.FrequencyOncePerInstance, HandlerVersion: 2}).AnyTimes()
	return m
}

func setup(t *testing.T) (*handler.State, *bytes.Buffer, *slog.Logger) {
	t.Helper()
	st := handler.NewState(t.TempDir(), handler.FrequencyOncePerInstance, map[string]any{"instance_id": "i-1"})
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return st, &buf, logger
}

func TestMaterialize_NoErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	st, _, logger := setup(t)
	payload := []byte("#!/bin/sh\necho dummy payload\n")
	expectedPath := filepath.Join(st.HandlerDir, "part-handler-000.part")

	mod := newV2Module(ctrl, "part-handler-000")
	mod.MockModule.EXPECT().
		Register(gomock.Any(), gomock.Any(), st.Data, st.Frequency).
		DoAndReturn(func(_ context.Context, b handler.Binder, _ handler.Data, _ handler.Frequency) error {
			b.Bind("text/x-custom")
			return nil
		})

	loader := mocks.NewMockLoader(ctrl)
	loader.EXPECT().Load(gomock.Any(), "part-handler-000", expectedPath).Return(mod, nil)

	res := New(loader, logger).Materialize(context.Background(), st, handler.ContentTypePartHandler, "ignored.py", payload)

	assert.Equal(t, OutcomeRegistered, res.Outcome)
	assert.NoError(t, res.Err)
	assert.Equal(t, 1, st.HandlerCount)
	assert.Equal(t, expectedPath, res.Path)
	assert.Equal(t, mod, res.Module)

	sum := blake3.Sum256(payload)
	assert.Equal(t, hex.EncodeToString(sum[:]), res.Digest)

	written, err := os.ReadFile(expectedPath)
	require.NoError(t, err)
	assert.Equal(t, payload, written)

	info, err := os.Stat(expectedPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	b, ok := st.Handlers.Get("text/x-custom")
	require.True(t, ok)
	assert.Equal(t, "part-handler-000", b.Module.Name())
}

func TestMaterialize_ImportError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	st, buf, logger := setup(t)
	loader := mocks.NewMockLoader(ctrl)
	loader.EXPECT().Load(gomock.Any(), "part-handler-000", gomock.Any()).Return(nil, errors.New("no module named yaml"))

	res := New(loader, logger).Materialize(context.Background(), st, handler.ContentTypePartHandler, "", []byte("payload"))

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Error(t, res.Err)
	assert.Nil(t, res.Module)
	// The file was written, so its name is spent.
	assert.Equal(t, 1, st.HandlerCount)
	assert.FileExists(t, res.Path)
	assert.Equal(t, 0, st.Handlers.Len())
	assert.Contains(t, buf.String(), "failed to import handler module")
	assert.Contains(t, buf.String(), "no module named yaml")
	assert.Contains(t, buf.String(), `"traceback"`)
}

func TestMaterialize_RegistrationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	st, buf, logger := setup(t)
	mod := newV2Module(ctrl, "part-handler-000")
	mod.MockModule.EXPECT().Register(gomock.Any(), gomock.Any(), st.Data, st.Frequency).
		DoAndReturn(func(_ context.Context, b handler.Binder, _ handler.Data, _ handler.Frequency) error {
			b.Bind("text/x-custom")
			return errors.New("list_types missing")
		})

	loader := mocks.NewMockLoader(ctrl)
	loader.EXPECT().Load(gomock.Any(), gomock.Any(), gomock.Any()).Return(mod, nil)

	res := New(loader, logger).Materialize(context.Background(), st, handler.ContentTypePartHandler, "", []byte("payload"))

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, 1, st.HandlerCount)
	_, bound := st.Handlers.Get("text/x-custom")
	assert.False(t, bound)
	assert.Contains(t, buf.String(), "failed to register handler module")
	assert.Contains(t, buf.String(), "list_types missing")
}

func TestMaterialize_MissingCapabilityNotRegistered(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	st, buf, logger := setup(t)

	// Declares version 1 but has no HandlePart; Register must never be called.
	bare := mocks.NewMockModule(ctrl)
	bare.EXPECT().Name().Return("part-handler-000").AnyTimes()
	bare.EXPECT().Declaration().Return(handler.Declaration{Frequency: handler.FrequencyOnce, HandlerVersion: 1}).AnyTimes()

	loader := mocks.NewMockLoader(ctrl)
	loader.EXPECT().Load(gomock.Any(), gomock.Any(), gomock.Any()).Return(bare, nil)

	res := New(loader, logger).Materialize(context.Background(), st, handler.ContentTypePartHandler, "", []byte("payload"))

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, handler.ErrMissingCapability)
	assert.Contains(t, buf.String(), "failed to register handler module")
}

func TestMaterialize_LoaderPanicContained(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	st, buf, logger := setup(t)
	loader := mocks.NewMockLoader(ctrl)
	loader.EXPECT().Load(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, string) (handler.Module, error) {
			panic("loader exploded")
		})

	var res Result
	assert.NotPanics(t, func() {
		res = New(loader, logger).Materialize(context.Background(), st, handler.ContentTypePartHandler, "", []byte("x"))
	})
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, 1, st.HandlerCount)
	assert.Contains(t, buf.String(), "loader exploded")
}

func TestMaterialize_WriteFailureKeepsCounter(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	st, buf, logger := setup(t)
	st.HandlerDir = filepath.Join(st.HandlerDir, "missing")
	loader := mocks.NewMockLoader(ctrl) // no Load expected

	res := New(loader, logger).Materialize(context.Background(), st, handler.ContentTypePartHandler, "", []byte("x"))

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, 0, st.HandlerCount)
	assert.Contains(t, buf.String(), "failed to write handler module")
}

func TestMaterialize_SequentialNamesIgnoreFilename(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	st, _, logger := setup(t)
	loader := mocks.NewMockLoader(ctrl)
	gomock.InOrder(
		loader.EXPECT().Load(gomock.Any(), "part-handler-000", filepath.Join(st.HandlerDir, "part-handler-000.part")).
			Return(nil, errors.New("broken")),
		loader.EXPECT().Load(gomock.Any(), "part-handler-001", filepath.Join(st.HandlerDir, "part-handler-001.part")).
			Return(nil, errors.New("broken")),
	)

	m := New(loader, logger)
	first := m.Materialize(context.Background(), st, handler.ContentTypePartHandler, "same.py", []byte("a"))
	second := m.Materialize(context.Background(), st, handler.ContentTypePartHandler, "same.py", []byte("b"))

	assert.Equal(t, "part-handler-000", first.Name)
	assert.Equal(t, "part-handler-001", second.Name)
	assert.Equal(t, 2, st.HandlerCount)
}

func TestWriteModuleFile_ReplacesStaleModeAndContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "part-handler-000.part")
	require.NoError(t, os.WriteFile(path, []byte("old content that is longer"), 0o644))
	require.NoError(t, os.Chmod(path, 0o644))

	require.NoError(t, writeModuleFile(path, []byte("new")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
