package web

import (
	"bytes"
	"encoding/base64"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/illarion/lockbox/internal/core"
	"github.com/illarion/lockbox/internal/crypto"
)

type upload struct {
	field    string
	filename string
	data     []byte
}

func newTestHandler(t *testing.T, maxUpload int64) *Handler {
	t.Helper()
	h, err := NewHandler(Options{
		Secret:         []byte("test-secret-0123456789"),
		MaxUploadBytes: maxUpload,
	})
	if err != nil {
		t.Fatalf("NewHandler failed: %v", err)
	}
	return h
}

func multipartRequest(t *testing.T, fields map[string]string, files ...upload) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField failed: %v", err)
		}
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.filename)
		if err != nil {
			t.Fatalf("CreateFormFile failed: %v", err)
		}
		part.Write(f.data)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/process", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func attachmentName(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	_, params, err := mime.ParseMediaType(rec.Header().Get("Content-Disposition"))
	if err != nil {
		t.Fatalf("Bad Content-Disposition: %v", err)
	}
	return params["filename"]
}

// followFlash replays the cookies from a redirect onto GET / and returns the page
func followFlash(t *testing.T, h http.Handler, redirect *httptest.ResponseRecorder) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range redirect.Result().Cookies() {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET / status %d", rec.Code)
	}
	return rec.Body.String()
}

func TestIndex(t *testing.T) {
	h := newTestHandler(t, 1<<20)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Status: got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `action="/process"`) {
		t.Error("Form not rendered")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Unknown path: got %d", rec.Code)
	}
}

func TestGenerateKey(t *testing.T) {
	h := newTestHandler(t, 1<<20)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/generate-key", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Status: got %d", rec.Code)
	}
	if name := attachmentName(t, rec); name != "keyfile.key" {
		t.Errorf("Filename: got %q", name)
	}
	key, err := base64.StdEncoding.DecodeString(rec.Body.String())
	if err != nil {
		t.Fatalf("Body is not base64: %v", err)
	}
	if len(key) != crypto.KeySize {
		t.Errorf("Key length: got %d", len(key))
	}
}

func TestProcessPasswordRoundTrip(t *testing.T) {
	h := newTestHandler(t, 1<<20)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRequest(t,
		map[string]string{"action": "encrypt", "password": "correct horse"},
		upload{"file", "notes.txt", []byte("hello world")},
	))
	if rec.Code != http.StatusOK {
		t.Fatalf("Encrypt status: got %d", rec.Code)
	}
	if name := attachmentName(t, rec); name != "notes.txt.enc" {
		t.Errorf("Encrypt filename: got %q", name)
	}
	envelope := rec.Body.Bytes()
	if len(envelope) != 66 {
		t.Errorf("Envelope length: got %d, want 66", len(envelope))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRequest(t,
		map[string]string{"action": "decrypt", "password": "correct horse"},
		upload{"file", "notes.txt.enc", envelope},
	))
	if rec.Code != http.StatusOK {
		t.Fatalf("Decrypt status: got %d", rec.Code)
	}
	if name := attachmentName(t, rec); name != "notes.txt" {
		t.Errorf("Decrypt filename: got %q", name)
	}
	if rec.Body.String() != "hello world" {
		t.Errorf("Decrypt body: got %q", rec.Body.String())
	}
}

func TestProcessKeyFileRoundTrip(t *testing.T) {
	h := newTestHandler(t, 1<<20)
	keyFile, err := core.NewKeyFile()
	if err != nil {
		t.Fatalf("NewKeyFile failed: %v", err)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRequest(t,
		map[string]string{"action": "encrypt"},
		upload{"file", "data.bin", []byte{0, 1, 2}},
		upload{"keyfile", "keyfile.key", keyFile},
	))
	if rec.Code != http.StatusOK {
		t.Fatalf("Encrypt status: got %d", rec.Code)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte(crypto.KeyTag)) {
		t.Fatal("Expected a keyfile envelope")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRequest(t,
		map[string]string{"action": "decrypt"},
		upload{"file", "data.bin.enc", rec.Body.Bytes()},
		upload{"keyfile", "keyfile.key", keyFile},
	))
	if rec.Code != http.StatusOK {
		t.Fatalf("Decrypt status: got %d", rec.Code)
	}
	if !bytes.Equal(rec.Body.Bytes(), []byte{0, 1, 2}) {
		t.Errorf("Decrypt body: got %v", rec.Body.Bytes())
	}
}

func TestProcessErrorsFlash(t *testing.T) {
	h := newTestHandler(t, 1<<20)
	envelope, err := crypto.EncryptWithPassword([]byte("secret"), []byte("right"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	tests := []struct {
		name   string
		fields map[string]string
		files  []upload
		want   string
	}{
		{
			"no file",
			map[string]string{"action": "encrypt", "password": "pw"},
			nil,
			"Please upload a file.",
		},
		{
			"no password",
			map[string]string{"action": "encrypt"},
			[]upload{{"file", "a.txt", []byte("x")}},
			"Password required if no keyfile provided.",
		},
		{
			"wrong password",
			map[string]string{"action": "decrypt", "password": "wrong"},
			[]upload{{"file", "a.txt.enc", envelope}},
			"Error: Decryption failed: wrong password or key, or the file is corrupted.",
		},
		{
			"not an envelope",
			map[string]string{"action": "decrypt", "password": "pw"},
			[]upload{{"file", "a.txt", []byte("plain text")}},
			"Error: Invalid or unrecognized file format.",
		},
		{
			"short key",
			map[string]string{"action": "encrypt"},
			[]upload{{"file", "a.txt", []byte("x")}, {"keyfile", "k.key", []byte(base64.StdEncoding.EncodeToString([]byte("short")))}},
			"Error: Key must be exactly 32 bytes.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, multipartRequest(t, tt.fields, tt.files...))

			if rec.Code != http.StatusSeeOther {
				t.Fatalf("Status: got %d, want 303", rec.Code)
			}
			if rec.Header().Get("Content-Disposition") != "" {
				t.Error("No file should be sent on failure")
			}

			page := followFlash(t, h, rec)
			if !strings.Contains(page, `<p class="flash">`+tt.want+`</p>`) {
				t.Errorf("Flash %q not found in page", tt.want)
			}
		})
	}
}

func TestProcessTooLarge(t *testing.T) {
	h := newTestHandler(t, 1024)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRequest(t,
		map[string]string{"action": "encrypt", "password": "pw"},
		upload{"file", "big.bin", bytes.Repeat([]byte("x"), 4096)},
	))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("Status: got %d, want 303", rec.Code)
	}
	if page := followFlash(t, h, rec); !strings.Contains(page, `<p class="flash">`+msgTooLarge+`</p>`) {
		t.Error("Too-large flash not shown")
	}
}

func TestForgedFlashIgnored(t *testing.T) {
	h := newTestHandler(t, 1<<20)
	other := newFlasher([]byte("some other secret"))

	value, err := other.encode([]string{"forged message"})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: flashCookie, Value: value})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if strings.Contains(rec.Body.String(), "forged message") {
		t.Error("Forged flash message was rendered")
	}
}

func TestFlashCookie(t *testing.T) {
	f := newFlasher([]byte("test-secret-0123456789"))

	value, err := f.encode([]string{"one", "two"})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if got := f.decode(value); len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Errorf("decode: got %v", got)
	}

	tampered := []byte(value)
	tampered[len(tampered)/2] ^= 1
	if got := f.decode(string(tampered)); got != nil {
		t.Errorf("Tampered cookie decoded to %v", got)
	}
	if got := f.decode("not-a-cookie"); got != nil {
		t.Errorf("Garbage cookie decoded to %v", got)
	}
}

func TestFlashKeepsNewest(t *testing.T) {
	f := newFlasher([]byte("test-secret-0123456789"))

	var cookies []*http.Cookie
	for i := range maxFlashes + 2 {
		req := httptest.NewRequest(http.MethodPost, "/process", nil)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		if err := f.Add(rec, req, strconv.Itoa(i)); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		cookies = rec.Result().Cookies()
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	got := f.Pop(httptest.NewRecorder(), req)
	if len(got) != maxFlashes || got[0] != "2" || got[maxFlashes-1] != strconv.Itoa(maxFlashes+1) {
		t.Errorf("Flashes: got %v", got)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestHandler(t, 1<<20)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/process", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /process: got %d, want 405", rec.Code)
	}
}

func TestNewHandlerRequiresSecret(t *testing.T) {
	if _, err := NewHandler(Options{MaxUploadBytes: 1}); err == nil {
		t.Error("Expected error without a secret")
	}
}
