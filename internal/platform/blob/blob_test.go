// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package blob_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/ventigrow/internal/platform/blob"
)

// pngHeader is enough for content sniffing to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

func openStore(t *testing.T) *blob.Store {
	t.Helper()
	store, err := blob.Open(filepath.Join(t.TempDir(), "blobs.db"), "https://console.example/")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

/*
TestStore_PutGetDelete covers the full lifecycle of one avatar.
*/
func TestStore_PutGetDelete(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	path, err := store.Put(ctx, "op-1", pngHeader)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, "op-1/"))
	assert.True(t, strings.HasSuffix(path, ".png"))

	object, err := store.Get(path)
	require.NoError(t, err)
	assert.Equal(t, "image/png", object.ContentType)
	assert.Equal(t, pngHeader, object.Data)

	assert.Equal(t, "https://console.example/storage/avatars/"+path, store.PublicLocator(path))

	require.NoError(t, store.Delete(ctx, path))
	_, err = store.Get(path)
	assert.ErrorIs(t, err, blob.ErrNotFound)

	// Deleting twice is harmless.
	assert.NoError(t, store.Delete(ctx, path))
}

func TestStore_PutNeverReusesPath(t *testing.T) {
	store := openStore(t)

	first, err := store.Put(context.Background(), "op-1", pngHeader)
	require.NoError(t, err)
	second, err := store.Put(context.Background(), "op-1", pngHeader)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestStore_PutRejectsInvalidInput(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, blob.ErrEmpty},
		{"not_an_image", []byte("plain text, not pixels"), blob.ErrUnsupportedType},
		{"too_large", append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, blob.MaxAvatarBytes)...), blob.ErrTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Put(ctx, "op-1", tt.data)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestHandler_ServesAvatar(t *testing.T) {
	store := openStore(t)
	path, err := store.Put(context.Background(), "op-1", pngHeader)
	require.NoError(t, err)

	router := chi.NewRouter()
	router.Mount("/storage", blob.NewHandler(store).Routes())

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/storage/avatars/"+path, nil))
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "image/png", recorder.Header().Get("Content-Type"))

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/storage/avatars/op-1/missing.png", nil))
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}
