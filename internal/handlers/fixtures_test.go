package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vidfriends/videotube/internal/auth"
	"github.com/vidfriends/videotube/internal/media"
	"github.com/vidfriends/videotube/internal/middleware"
	"github.com/vidfriends/videotube/internal/models"
	"github.com/vidfriends/videotube/internal/repositories"
)

type fakeTransfer struct {
	mu      sync.Mutex
	seq     int
	failOn  string
	uploads []string
	removed []string
}

func (f *fakeTransfer) Upload(_ context.Context, localPath string) (media.Asset, error) {
	defer os.Remove(localPath)
	if _, err := os.Stat(localPath); err != nil {
		return media.Asset{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != "" && strings.Contains(filepath.Base(localPath), f.failOn) {
		return media.Asset{}, media.ErrUploadFailed
	}
	f.seq++
	ext := filepath.Ext(localPath)
	kind := media.KindImage
	var duration float64
	if ext == ".mp4" {
		kind = media.KindVideo
		duration = 12
	}
	id := fmt.Sprintf("asset%d", f.seq)
	f.uploads = append(f.uploads, id)
	return media.Asset{
		URL:      fmt.Sprintf("https://cdn.test/%s/%s%s", kind, id, ext),
		PublicID: id,
		Kind:     kind,
		Metadata: media.Metadata{Duration: duration},
	}, nil
}

func (f *fakeTransfer) Remove(_ context.Context, publicID string, _ media.Kind) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, publicID)
}

func (f *fakeTransfer) removedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.removed...)
}

type fakeJanitor struct {
	mu        sync.Mutex
	discarded []string
}

func (f *fakeJanitor) Discard(_ context.Context, url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discarded = append(f.discarded, url)
}

func (f *fakeJanitor) urls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.discarded...)
}

type testApp struct {
	t       *testing.T
	handler http.Handler
	users   *repositories.MemoryUserRepository
	tweets  *repositories.MemoryTweetRepository
	videos  *repositories.MemoryVideoRepository
	media   *fakeTransfer
	janitor *fakeJanitor
	tempDir string
	deps    Dependencies
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	issuer, err := auth.NewTokenIssuer(auth.TokenConfig{
		AccessSecret:  "access-secret",
		AccessTTL:     time.Minute,
		RefreshSecret: "refresh-secret",
		RefreshTTL:    time.Hour,
	})
	require.NoError(t, err)

	app := &testApp{
		t:       t,
		users:   repositories.NewMemoryUserRepository(),
		tweets:  repositories.NewMemoryTweetRepository(),
		videos:  repositories.NewMemoryVideoRepository(),
		media:   &fakeTransfer{},
		janitor: &fakeJanitor{},
		tempDir: t.TempDir(),
	}
	app.deps = Dependencies{
		APIPrefix:  "/api/v1",
		BcryptCost: bcrypt.MinCost,
		Uploads:    UploadConfig{TempDir: app.tempDir},
		Cookies:    CookieConfig{AccessTTL: time.Minute, RefreshTTL: time.Hour},
		Users:      app.users,
		Tweets:     app.tweets,
		Videos:     app.videos,
		Sessions:   auth.NewManager(issuer, app.users),
		Media:      app.media,
		Janitor:    app.janitor,
		Metrics:    middleware.NewMetrics(prometheus.NewRegistry()),
	}
	app.handler = NewRouter(app.deps)
	return app
}

// useMedia rebuilds the router around a real transfer and janitor.
func (a *testApp) useMedia(transfer MediaTransfer, janitor AssetJanitor) {
	a.deps.Media = transfer
	a.deps.Janitor = janitor
	a.handler = NewRouter(a.deps)
}

type bucket struct {
	mu      sync.Mutex
	objects map[string]string
}

func (b *bucket) Put(_ context.Context, key string, body io.Reader, _ string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.objects == nil {
		b.objects = make(map[string]string)
	}
	b.objects[key] = string(data)
	return "https://bucket.test/" + key, nil
}

func (b *bucket) DeleteByPrefix(_ context.Context, prefix string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for key := range b.objects {
		if strings.HasPrefix(key, prefix) {
			delete(b.objects, key)
			n++
		}
	}
	return n, nil
}

func (b *bucket) keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, 0, len(b.objects))
	for key := range b.objects {
		keys = append(keys, key)
	}
	return keys
}

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
	Errors     []string        `json:"errors"`
	Stack      string          `json:"stack"`
}

type response struct {
	*httptest.ResponseRecorder
	env envelope
}

func (r response) decode(t *testing.T, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.env.Data, dst))
}

type upload struct {
	field    string
	filename string
}

func multipartBody(t *testing.T, fields map[string]string, files ...upload) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, value := range fields {
		require.NoError(t, mw.WriteField(name, value))
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.filename)
		require.NoError(t, err)
		_, err = part.Write([]byte("content of " + f.filename))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func jsonBody(t *testing.T, payload any) (io.Reader, string) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return bytes.NewReader(data), "application/json"
}

func (a *testApp) do(method, path string, body io.Reader, contentType, token string) response {
	a.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	resp := response{ResponseRecorder: rec}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &resp.env))
		require.Equal(a.t, rec.Code, resp.env.StatusCode)
		require.Equal(a.t, rec.Code < 400, resp.env.Success)
	}
	return resp
}

func (a *testApp) doJSON(method, path string, payload any, token string) response {
	a.t.Helper()
	body, contentType := jsonBody(a.t, payload)
	return a.do(method, path, body, contentType, token)
}

func registrationFields(username string) map[string]string {
	return map[string]string{
		"fullname": strings.ToUpper(username[:1]) + username[1:],
		"email":    username + "@example.com",
		"username": username,
		"password": username + "-password",
	}
}

func (a *testApp) register(username string) models.User {
	a.t.Helper()
	body, contentType := multipartBody(a.t, registrationFields(username), upload{field: "avatar", filename: "avatar.png"})
	resp := a.do(http.MethodPost, "/api/v1/users/register", body, contentType, "")
	require.Equal(a.t, http.StatusCreated, resp.Code, resp.env.Message)
	var user models.User
	resp.decode(a.t, &user)
	return user
}

func (a *testApp) login(username string) loginResponse {
	a.t.Helper()
	resp := a.doJSON(http.MethodPost, "/api/v1/users/login", map[string]string{
		"username": username,
		"password": username + "-password",
	}, "")
	require.Equal(a.t, http.StatusOK, resp.Code, resp.env.Message)
	var out loginResponse
	resp.decode(a.t, &out)
	return out
}

func (a *testApp) signUp(username string) (models.User, string) {
	a.t.Helper()
	user := a.register(username)
	return user, a.login(username).AccessToken
}

func (a *testApp) requireNoStagedFiles() {
	a.t.Helper()
	entries, err := os.ReadDir(a.tempDir)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	require.NoError(a.t, err)
	require.Empty(a.t, entries)
}

func (a *testApp) publish(token, title string) models.Video {
	a.t.Helper()
	body, contentType := multipartBody(a.t,
		map[string]string{"title": title, "description": "about " + title},
		upload{field: "video", filename: "clip.mp4"},
		upload{field: "thumbnail", filename: "thumb.png"},
	)
	resp := a.do(http.MethodPost, "/api/v1/videos", body, contentType, token)
	require.Equal(a.t, http.StatusCreated, resp.Code, resp.env.Message)
	var video models.Video
	resp.decode(a.t, &video)
	return video
}
