package api

import (
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

type upload struct {
	filename    string
	contentType string
	data        []byte
}

// readUpload reads one multipart file field. It writes the 400 response
// itself and reports whether a file was read.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request, field, missing string) (*upload, bool) {
	limit := h.svc.maxUpload()
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return nil, false
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(missing))
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return nil, false
	}
	ct := header.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		ct = mt
	}
	return &upload{filename: header.Filename, contentType: ct, data: data}, true
}

// ServeUpload handles GET /api/uploads/*, returning a stored original.
// Keys that escape the store root are rejected by the store.
//
//	@Summary		Download a stored upload
//	@Tags			ingest
//	@Produce		octet-stream
//	@Param			key	path		string	true	"Object key"
//	@Success		200	{file}		file
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/uploads/{key} [get]
func (h *Handler) ServeUpload(w http.ResponseWriter, r *http.Request) {
	key, ok := uploadKey(w, r)
	if !ok {
		return
	}
	data, obj, err := h.svc.Uploads.Get(r.Context(), key)
	if err != nil {
		writeError(w, "serve upload", err)
		return
	}
	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("ETag", `"`+obj.Checksum+`"`)
	_, _ = w.Write(data)
}

// StatUpload handles HEAD /api/uploads/*: the headers of ServeUpload
// without reading the object.
//
//	@Summary		Check a stored upload
//	@Tags			ingest
//	@Param			key	path	string	true	"Object key"
//	@Success		200
//	@Failure		404
//	@Security		BearerAuth
//	@Router			/uploads/{key} [head]
func (h *Handler) StatUpload(w http.ResponseWriter, r *http.Request) {
	key, ok := uploadKey(w, r)
	if !ok {
		return
	}
	obj, err := h.svc.Uploads.Stat(r.Context(), key)
	if err != nil {
		writeError(w, "stat upload", err)
		return
	}
	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	w.Header().Set("Last-Modified", obj.ModTime.Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
}

// ListUploads handles GET /api/uploads.
//
//	@Summary		List stored uploads
//	@Tags			ingest
//	@Produce		json
//	@Param			prefix	query		string	false	"Key prefix (default uploads/)"
//	@Success		200		{object}	UploadListResponse
//	@Security		BearerAuth
//	@Router			/uploads [get]
func (h *Handler) ListUploads(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		prefix = uploadsPrefix
	}
	objs, err := h.svc.Uploads.List(r.Context(), prefix)
	if err != nil {
		writeError(w, "list uploads", err)
		return
	}
	writeJSON(w, http.StatusOK, UploadListResponse{Objects: objs, Total: len(objs)})
}

const uploadsPrefix = "uploads/"

func uploadKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if key == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("key is required"))
		return "", false
	}
	return key, true
}
