// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package blob

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/ventigrow/internal/platform/respond"
)

// Handler serves stored avatars publicly.
type Handler struct {
	store *Store
}

// NewHandler constructs a new blob Handler.
func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// Routes mounts under /storage.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Get("/avatars/*", handler.serveAvatar)
	return router
}

// GET /storage/avatars/{owner}/{file}
func (handler *Handler) serveAvatar(writer http.ResponseWriter, request *http.Request) {
	object, err := handler.store.Get(chi.URLParam(request, "*"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	header := writer.Header()
	header.Set("Content-Type", object.ContentType)
	header.Set("Content-Length", strconv.Itoa(len(object.Data)))
	header.Set("Cache-Control", "public, max-age=86400, immutable")
	header.Set("X-Content-Type-Options", "nosniff")
	writer.WriteHeader(http.StatusOK)
	_, _ = writer.Write(object.Data)
}
