package api

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tsawhneybuilds/exploprd/internal/util"
)

func TestStatusForErr(t *testing.T) {
	require.Equal(t, http.StatusBadRequest, statusForErr(util.ErrEmptyQuery))
	require.Equal(t, http.StatusNotFound, statusForErr(util.ErrNotFound))
	require.Equal(t, http.StatusConflict, statusForErr(util.ErrNoContent))
	require.Equal(t, http.StatusBadGateway, statusForErr(fmt.Errorf("%w: upstream 500", util.ErrGeneration)))
	require.Equal(t, http.StatusBadGateway, statusForErr(fmt.Errorf("embed query: %w", util.ErrEmbedding)))
	require.Equal(t, http.StatusInternalServerError, statusForErr(errors.New("boom")))
}

func fileHeader(name, contentType string) *multipart.FileHeader {
	h := textproto.MIMEHeader{}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	return &multipart.FileHeader{Filename: name, Header: h}
}

func TestDetectContentType(t *testing.T) {
	require.Equal(t, "application/pdf", detectContentType(fileHeader("doc.pdf", "application/pdf")))
	require.Equal(t,
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		detectContentType(fileHeader("doc.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")))
	// generic header falls back to the extension
	require.Equal(t, "application/pdf", detectContentType(fileHeader("doc.pdf", "application/octet-stream")))
	require.Equal(t, "application/octet-stream", detectContentType(fileHeader("doc.zzzz", "")))
}

func TestHealthz(t *testing.T) {
	s := &Server{}
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"ok":true`)
}

func TestMethodNotAllowed(t *testing.T) {
	s := &Server{}
	for _, path := range []string{"/retrieve", "/ask", "/export"} {
		rec := httptest.NewRecorder()
		s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusMethodNotAllowed, rec.Code, path)
	}
}

func TestListDocumentsRequiresOwner(t *testing.T) {
	s := &Server{}
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := &Server{}
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/ask", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
