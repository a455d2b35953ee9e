package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/tsawhneybuilds/exploprd/internal/chat"
	"github.com/tsawhneybuilds/exploprd/internal/config"
	"github.com/tsawhneybuilds/exploprd/internal/events"
	"github.com/tsawhneybuilds/exploprd/internal/export"
	"github.com/tsawhneybuilds/exploprd/internal/models"
	"github.com/tsawhneybuilds/exploprd/internal/retrieval"
	"github.com/tsawhneybuilds/exploprd/internal/storage"
	"github.com/tsawhneybuilds/exploprd/internal/util"
)

// Publisher is the slice of the events client the server needs.
type Publisher interface {
	Publish(subject string, data any) error
}

type Server struct {
	cfg       config.Config
	docRepo   *storage.DocumentRepo
	msgRepo   *storage.MessageRepo
	publisher Publisher
	retriever *retrieval.Engine
	chat      *chat.Assembler
	export    *export.Assembler
	logger    *slog.Logger
}

func NewServer(cfg config.Config, db *storage.DB, publisher Publisher, retriever *retrieval.Engine, chatAsm *chat.Assembler, exportAsm *export.Assembler, logger *slog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		docRepo:   storage.NewDocumentRepo(db),
		msgRepo:   storage.NewMessageRepo(db),
		publisher: publisher,
		retriever: retriever,
		chat:      chatAsm,
		export:    exportAsm,
		logger:    logger,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/documents", s.handleDocuments)
	mux.HandleFunc("/documents/", s.handleDocumentsScoped)
	mux.HandleFunc("/retrieve", s.handleRetrieve)
	mux.HandleFunc("/ask", s.handleAsk)
	mux.HandleFunc("/export", s.handleExport)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	owner := strings.TrimSpace(r.URL.Query().Get("owner"))
	if owner == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("owner is required"))
		return
	}
	docs, err := s.docRepo.ListByOwner(r.Context(), owner)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleDocumentsScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/documents/"), "/"), "/")
	if len(parts) != 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}

	if parts[0] == "upload" {
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		s.handleUpload(w, r)
		return
	}

	if r.Method != http.MethodDelete {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	s.handleDelete(w, r, parts[0])
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}
	owner := strings.TrimSpace(r.FormValue("owner"))
	if owner == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("owner is required"))
		return
	}
	fh := firstUploadedFile(r.MultipartForm)
	if fh == nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("no file provided"))
		return
	}

	ownerDir := util.SafeJoin(s.cfg.UploadRoot, owner)
	if err := util.EnsureDir(ownerDir); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	blobPath, err := saveUploadedFile(ownerDir, fh)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	name := filepath.Base(fh.Filename)
	contentType := detectContentType(fh)

	// A re-upload to the same blob location reuses the existing record and
	// restarts its state machine; the ingestion workflow key is the document
	// id, so the new run supersedes any in-flight one.
	doc, err := s.docRepo.GetByBlobLocation(r.Context(), blobPath)
	switch {
	case err == nil:
		if doc.OwnerScope != owner {
			writeErr(w, http.StatusConflict, fmt.Errorf("blob location owned by another scope"))
			return
		}
		if err := s.docRepo.ResetForReingest(r.Context(), doc.DocumentID, name, contentType); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
	case errors.Is(err, util.ErrNotFound):
		doc = models.Document{
			DocumentID:   uuid.NewString(),
			OwnerScope:   owner,
			Name:         name,
			BlobLocation: blobPath,
			ContentType:  contentType,
			Status:       models.StatusUploaded,
		}
		if err := s.docRepo.Create(r.Context(), doc); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
	default:
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	if err := s.publisher.Publish(events.SubjectUploadFinalized, events.UploadFinalized{
		BlobLocation: blobPath,
		ContentType:  contentType,
		OwnerScope:   owner,
	}); err != nil {
		s.logger.Error("publish upload event", "document_id", doc.DocumentID, "error", err)
		writeErr(w, http.StatusInternalServerError, fmt.Errorf("queue ingestion: %w", err))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"document_id":  doc.DocumentID,
		"name":         name,
		"content_type": contentType,
		"status":       string(models.StatusUploaded),
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, documentID string) {
	owner := strings.TrimSpace(r.URL.Query().Get("owner"))
	if owner == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("owner is required"))
		return
	}
	doc, err := s.docRepo.GetByID(r.Context(), owner, documentID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			writeErr(w, http.StatusNotFound, err)
			return
		}
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if err := s.docRepo.Delete(r.Context(), owner, documentID); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if err := os.Remove(doc.BlobLocation); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("remove blob after delete", "document_id", documentID, "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": documentID})
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		OwnerScope    string   `json:"owner_scope"`
		Query         string   `json:"query"`
		TopK          int      `json:"top_k"`
		MinSimilarity *float64 `json:"min_similarity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	if strings.TrimSpace(req.OwnerScope) == "" || strings.TrimSpace(req.Query) == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("owner_scope and query are required"))
		return
	}
	minSim := -1.0
	if req.MinSimilarity != nil {
		minSim = *req.MinSimilarity
	}
	res, err := s.retriever.RetrieveWithOptions(r.Context(), req.OwnerScope, req.Query, req.TopK, minSim)
	if err != nil {
		writeErr(w, statusForErr(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		OwnerScope string `json:"owner_scope"`
		Question   string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	if strings.TrimSpace(req.OwnerScope) == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("owner_scope is required"))
		return
	}

	ans, err := s.chat.Ask(r.Context(), req.OwnerScope, req.Question)
	if err != nil {
		writeErr(w, statusForErr(err), err)
		return
	}

	// History is persisted only after a successful generation, so a failed
	// request leaves the conversation unchanged.
	userMsg := models.Message{MessageID: uuid.NewString(), OwnerScope: req.OwnerScope, Role: models.RoleUser, Text: req.Question}
	if err := s.msgRepo.Append(r.Context(), userMsg); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	assistantMsg := models.Message{MessageID: uuid.NewString(), OwnerScope: req.OwnerScope, Role: models.RoleAssistant, Text: ans.Text}
	if err := s.msgRepo.Append(r.Context(), assistantMsg); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"answer":     ans.Text,
		"fragments":  ans.Retrieved.Fragments,
		"no_context": ans.Retrieved.NoContext,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		OwnerScope string `json:"owner_scope"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	if strings.TrimSpace(req.OwnerScope) == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("owner_scope is required"))
		return
	}
	doc, err := s.export.Export(r.Context(), req.OwnerScope)
	if err != nil {
		writeErr(w, statusForErr(err), err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func statusForErr(err error) int {
	switch {
	case errors.Is(err, util.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, util.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, util.ErrNoContent):
		return http.StatusConflict
	case errors.Is(err, util.ErrEmbedding), errors.Is(err, util.ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func firstUploadedFile(form *multipart.Form) *multipart.FileHeader {
	if form == nil {
		return nil
	}
	if files := form.File["file"]; len(files) > 0 {
		return files[0]
	}
	for _, files := range form.File {
		if len(files) > 0 {
			return files[0]
		}
	}
	return nil
}

func detectContentType(fh *multipart.FileHeader) string {
	if ct := fh.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		return ct
	}
	if ct := mime.TypeByExtension(filepath.Ext(fh.Filename)); ct != "" {
		if base, _, err := mime.ParseMediaType(ct); err == nil {
			return base
		}
		return ct
	}
	return "application/octet-stream"
}

// saveUploadedFile writes the upload to a temp file, then renames it onto
// its final blob location so readers never observe a partial blob.
func saveUploadedFile(dstDir string, fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(dstDir, "upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}

	finalPath := util.SafeJoin(dstDir, fh.Filename)
	if err := os.Rename(tmp.Name(), finalPath); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("atomic move upload: %w", err)
	}
	return finalPath, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": err.Error(),
		},
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
