package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"fileserver/internal/auth"
	"fileserver/internal/service"
	"fileserver/internal/storage"
)

const testPassword = "hunter2"

func newTestServer(t *testing.T, maxFileSize int64, publicRead bool) *httptest.Server {
	t.Helper()

	policy := storage.NewPolicy(maxFileSize, nil, []string{".exe", ".sh"})
	engine, err := storage.NewDisk(t.TempDir(), policy)
	if err != nil {
		t.Fatalf("NewDisk: %v", err)
	}
	log := logrus.New()
	log.SetOutput(io.Discard)

	srv := New(Config{
		Addr:        "127.0.0.1:0",
		Build:       BuildInfo{Version: "test"},
		Service:     service.New(auth.New(testPassword, ""), engine, "http://localhost:8008", publicRead, log),
		Log:         log,
		MaxFileSize: maxFileSize,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func multipartUpload(t *testing.T, url, password, filename, content string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("password", password); err != nil {
		t.Fatal(err)
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(fw, content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Post(url+"/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST /upload: %v", err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestUploadListDeleteFlow(t *testing.T) {
	ts := newTestServer(t, 1024*1024, true)

	resp := multipartUpload(t, ts.URL, testPassword, "notes.txt", "remember the milk")
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("upload status = %d, body %s", resp.StatusCode, body)
	}
	var up uploadResp
	decodeJSON(t, resp, &up)
	if !strings.HasSuffix(up.Filename, ".txt") {
		t.Errorf("stored filename %q lacks .txt suffix", up.Filename)
	}
	if up.Size != int64(len("remember the milk")) {
		t.Errorf("size = %d", up.Size)
	}
	if !strings.HasSuffix(up.URL, "/files/"+up.Filename) {
		t.Errorf("url = %q does not reference stored name", up.URL)
	}

	// The listing reflects the upload.
	resp, err := http.Get(ts.URL + "/list?password=" + testPassword)
	if err != nil {
		t.Fatal(err)
	}
	var list listResp
	decodeJSON(t, resp, &list)
	if list.Total != 1 || len(list.Files) != 1 {
		t.Fatalf("list = %+v, want one file", list)
	}
	if list.Files[0].Name != up.Filename {
		t.Errorf("listed %q, uploaded %q", list.Files[0].Name, up.Filename)
	}
	if list.Files[0].Icon == "" || list.Files[0].SizeFormatted == "" {
		t.Error("list entry missing icon or formatted size")
	}

	// Download the stored file publicly.
	resp, err = http.Get(ts.URL + "/files/" + up.Filename)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "remember the milk" {
		t.Fatalf("read status = %d body = %q", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q", ct)
	}

	// Delete, then confirm the listing is empty and a repeat is 404.
	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/delete/"+up.Filename+"?password="+testPassword, nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}

	resp, _ = http.Get(ts.URL + "/list?password=" + testPassword)
	decodeJSON(t, resp, &list)
	if list.Total != 0 {
		t.Errorf("list after delete = %+v", list)
	}

	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/delete/"+up.Filename+"?password="+testPassword, nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	assertErrorResponse(t, resp, http.StatusNotFound, "not_found")
}

// Clients control field order; a password field arriving after the
// file must still authenticate the upload.
func TestUpload_PasswordFieldAfterFile(t *testing.T) {
	ts := newTestServer(t, 1024*1024, true)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "late.txt")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(fw, "field order should not matter"); err != nil {
		t.Fatal(err)
	}
	if err := mw.WriteField("password", testPassword); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Post(ts.URL+"/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("upload status = %d, body %s", resp.StatusCode, body)
	}
	var up uploadResp
	decodeJSON(t, resp, &up)
	if up.Size != int64(len("field order should not matter")) {
		t.Errorf("size = %d", up.Size)
	}

	resp, err = http.Get(ts.URL + "/files/" + up.Filename)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "field order should not matter" {
		t.Errorf("read back status = %d body = %q", resp.StatusCode, body)
	}
}

func TestUpload_WrongPassword(t *testing.T) {
	ts := newTestServer(t, 0, true)

	resp := multipartUpload(t, ts.URL, "letmein", "a.txt", "x")
	assertErrorResponse(t, resp, http.StatusUnauthorized, "auth")
}

func TestUpload_BlockedExtension(t *testing.T) {
	ts := newTestServer(t, 0, true)

	resp := multipartUpload(t, ts.URL, testPassword, "setup.exe", "MZ")
	assertErrorResponse(t, resp, http.StatusBadRequest, "validation")
}

func TestUpload_MissingFileField(t *testing.T) {
	ts := newTestServer(t, 0, true)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("password", testPassword)
	_ = mw.Close()

	resp, err := http.Post(ts.URL+"/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	assertErrorResponse(t, resp, http.StatusBadRequest, "validation")
}

func TestUpload_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, 0, true)

	resp, err := http.Get(ts.URL + "/upload")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /upload status = %d, want 405", resp.StatusCode)
	}
}

func TestList_RequiresPassword(t *testing.T) {
	ts := newTestServer(t, 0, true)

	resp, err := http.Get(ts.URL + "/list")
	if err != nil {
		t.Fatal(err)
	}
	assertErrorResponse(t, resp, http.StatusUnauthorized, "auth")
}

func TestDelete_InvalidTargetName(t *testing.T) {
	ts := newTestServer(t, 0, true)

	for _, target := range []string{"..foo", ".hidden"} {
		req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/delete/"+target+"?password="+testPassword, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		assertErrorResponse(t, resp, http.StatusBadRequest, "invalid_name")
	}
}

func TestRead_GatedWhenPublicReadOff(t *testing.T) {
	ts := newTestServer(t, 0, false)

	resp := multipartUpload(t, ts.URL, testPassword, "secret.txt", "classified")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload status = %d", resp.StatusCode)
	}
	var up uploadResp
	decodeJSON(t, resp, &up)

	resp, err := http.Get(ts.URL + "/files/" + up.Filename)
	if err != nil {
		t.Fatal(err)
	}
	assertErrorResponse(t, resp, http.StatusUnauthorized, "auth")

	resp, err = http.Get(ts.URL + "/files/" + up.Filename + "?password=" + testPassword)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "classified" {
		t.Errorf("authenticated read status = %d body = %q", resp.StatusCode, body)
	}
}

func TestRead_NotFound(t *testing.T) {
	ts := newTestServer(t, 0, true)

	resp, err := http.Get(ts.URL + "/files/nope.txt")
	if err != nil {
		t.Fatal(err)
	}
	assertErrorResponse(t, resp, http.StatusNotFound, "not_found")
}

func TestHealthAndAPIInfo(t *testing.T) {
	ts := newTestServer(t, 0, true)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	var health map[string]string
	decodeJSON(t, resp, &health)
	if health["status"] != "healthy" {
		t.Errorf("health = %+v", health)
	}

	resp, err = http.Get(ts.URL + "/api")
	if err != nil {
		t.Fatal(err)
	}
	var info map[string]any
	decodeJSON(t, resp, &info)
	if info["name"] != "File Server API" {
		t.Errorf("api info = %+v", info)
	}
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	ts := newTestServer(t, 0, true)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := resp.Header.Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
}

func assertErrorResponse(t *testing.T, resp *http.Response, status int, code string) {
	t.Helper()
	if resp.StatusCode != status {
		t.Errorf("status = %d, want %d", resp.StatusCode, status)
	}
	var body map[string]string
	decodeJSON(t, resp, &body)
	if body["code"] != code {
		t.Errorf("code = %q, want %q", body["code"], code)
	}
	if body["error"] == "" {
		t.Error("error message is empty")
	}
	if strings.Contains(body["error"], "/") {
		t.Errorf("error message leaks a path: %q", body["error"])
	}
}
