package filesystem

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/contentstore/internal/storage"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := New(dir, zerolog.Nop())
	require.NoError(t, err)
	return s, dir
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestStore_PutAndGet(t *testing.T) {
	ctx := context.Background()
	s, dir := newTestStore(t)

	ref, err := s.PutObject(ctx, storage.ObjectReference{Bucket: "storage", Name: "abc/abc-1/obj"}, strings.NewReader("hello world"))
	require.NoError(t, err)
	require.Equal(t, int64(11), ref.Size)
	require.Equal(t, int64(0), ref.Offset)

	_, err = os.Stat(filepath.Join(dir, "storage", "abc", "abc-1", "obj"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		offset int64
		size   int64
		want   string
	}{
		{name: "whole object", offset: 0, size: 0, want: "hello world"},
		{name: "prefix", offset: 0, size: 5, want: "hello"},
		{name: "middle", offset: 6, size: 3, want: "wor"},
		{name: "tail to end", offset: 6, size: 0, want: "world"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc, err := s.GetObject(ctx, storage.ObjectReference{
				Bucket: "storage", Name: "abc/abc-1/obj", Offset: tt.offset, Size: tt.size,
			})
			require.NoError(t, err)
			require.Equal(t, tt.want, readAll(t, rc))
		})
	}
}

func TestStore_GetMissing(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.GetObject(context.Background(), storage.ObjectReference{Bucket: "storage", Name: "abc/missing"})
	require.True(t, storage.IsNotFound(err))
}

func TestStore_InvalidName(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.PutObject(context.Background(), storage.ObjectReference{Bucket: "storage", Name: "../escape"}, strings.NewReader("x"))
	require.ErrorIs(t, err, storage.ErrInvalidName)
}

func TestStore_PutObjects(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	err := s.PutObjects(ctx, "storage", []storage.ObjectWrite{
		{Name: "abc/a", Data: []byte("one")},
		{Name: "abc/b", Data: []byte("two")},
	})
	require.NoError(t, err)

	rc, err := s.GetObject(ctx, storage.ObjectReference{Bucket: "storage", Name: "abc/b"})
	require.NoError(t, err)
	require.Equal(t, "two", readAll(t, rc))
}

func TestStore_Remove(t *testing.T) {
	ctx := context.Background()
	s, dir := newTestStore(t)

	require.NoError(t, s.PutObjects(ctx, "storage", []storage.ObjectWrite{
		{Name: "abc/abc-1/a", Data: []byte("one")},
		{Name: "abc/abc-1/b", Data: []byte("two")},
		{Name: "def/def-1/c", Data: []byte("three")},
	}))

	require.NoError(t, s.RemoveObject(ctx, storage.ObjectReference{Bucket: "storage", Name: "abc/abc-1/a"}))
	require.NoError(t, s.RemoveObjects(ctx, "storage", []string{"abc/abc-1/b", "def/def-1/c", "def/def-1/missing"}))

	for _, name := range []string{"abc/abc-1/a", "abc/abc-1/b", "def/def-1/c"} {
		_, err := s.GetObject(ctx, storage.ObjectReference{Bucket: "storage", Name: name})
		require.True(t, storage.IsNotFound(err), name)
	}

	// owner directories are cleaned up, the bucket directory stays
	_, err := os.Stat(filepath.Join(dir, "storage", "abc"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "storage"))
	require.NoError(t, err)
}

func TestStore_ContextCanceled(t *testing.T) {
	s, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.PutObject(ctx, storage.ObjectReference{Bucket: "storage", Name: "abc/x"}, strings.NewReader("x"))
	require.ErrorIs(t, err, context.Canceled)
}
