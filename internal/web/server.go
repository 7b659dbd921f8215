package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/illarion/lockbox/internal/core"
	"github.com/illarion/lockbox/internal/crypto"
	"github.com/illarion/lockbox/internal/security"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	msgTooLarge       = "File is too large."
	errorPrefix       = "Error: "
)

// Options configures a Handler. Secret must not change while it is in use.
type Options struct {
	Secret         []byte
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// Handler serves the lockbox routes
type Handler struct {
	logger    *slog.Logger
	flash     flasher
	maxUpload int64
	mux       *http.ServeMux
}

// NewHandler builds the route table
func NewHandler(opts Options) (*Handler, error) {
	if len(opts.Secret) == 0 {
		return nil, errors.New("session secret is required")
	}
	if opts.MaxUploadBytes <= 0 {
		return nil, errors.New("max upload size must be positive")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	h := &Handler{
		logger:    logger,
		flash:     newFlasher(opts.Secret),
		maxUpload: opts.MaxUploadBytes,
		mux:       http.NewServeMux(),
	}
	h.mux.HandleFunc("GET /{$}", h.handleIndex)
	h.mux.HandleFunc("POST /process", h.handleProcess)
	h.mux.HandleFunc("GET /generate-key", h.handleGenerateKey)

	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	h.mux.ServeHTTP(rec, r)

	h.logger.Info("request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", rec.status,
		"bytes", rec.bytes,
		"duration", time.Since(start),
	)
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct{ Flashes []string }{Flashes: h.flash.Pop(w, r)}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := indexTemplate.Execute(w, data); err != nil {
		h.logger.Error("template error", "err", err)
	}
}

func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	req, err := h.readRequest(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := core.Process(*req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.Debug("processed upload",
		"action", req.Action,
		"variant", res.Variant.String(),
		"in_bytes", len(req.Data),
		"out_bytes", len(res.Data),
	)
	sendAttachment(w, res.Filename, res.Data)
}

func (h *Handler) handleGenerateKey(w http.ResponseWriter, r *http.Request) {
	keyFile, err := core.NewKeyFile()
	if err != nil {
		h.logger.Error("key generation error", "err", err)
		http.Error(w, "failed to generate key", http.StatusInternalServerError)
		return
	}
	sendAttachment(w, core.KeyFileName, keyFile)
}

// readRequest pulls the form fields into a core.Request
func (h *Handler) readRequest(r *http.Request) (*core.Request, error) {
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, core.ErrNoFile
		}
		return nil, err
	}

	data, name, err := readUpload(r, "file")
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, core.ErrNoFile
	}

	action, err := core.ParseAction(r.FormValue("action"))
	if err != nil {
		return nil, err
	}

	keyFile, keyName, err := readUpload(r, "keyfile")
	if err != nil {
		return nil, err
	}
	if keyName == "" {
		keyFile = nil
	}

	return &core.Request{
		Action:   action,
		Filename: security.SanitizeFilename(name),
		Data:     data,
		Password: []byte(r.FormValue("password")),
		KeyFile:  keyFile,
	}, nil
}

// readUpload returns the contents and client filename of a form file.
// A missing field yields an empty name and no error.
func readUpload(r *http.Request, field string) ([]byte, string, error) {
	f, hdr, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", field, err)
	}
	return data, hdr.Filename, nil
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	msg := core.UserMessage(err)

	// Input problems are shown as is; failures of the operation itself get a prefix.
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge) || errors.Is(err, multipart.ErrMessageTooLarge):
		msg = msgTooLarge
		h.logger.Warn("upload rejected", "reason", "too large", "limit", h.maxUpload)
	case errors.Is(err, core.ErrInput):
		h.logger.Info("request rejected", "reason", msg)
	case errors.Is(err, crypto.ErrFormat),
		errors.Is(err, crypto.ErrAuthentication),
		errors.Is(err, crypto.ErrKeyLength):
		msg = errorPrefix + msg
		h.logger.Info("request rejected", "reason", msg)
	default:
		msg = errorPrefix + msg
		h.logger.Error("processing error", "err", err)
	}

	if ferr := h.flash.Add(w, r, msg); ferr != nil {
		h.logger.Error("flash error", "err", ferr)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func sendAttachment(w http.ResponseWriter, name string, data []byte) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

// ListenAndServe runs handler on addr until ctx is cancelled
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("lockbox listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
