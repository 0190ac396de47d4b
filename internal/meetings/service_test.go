package meetings

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niveshya/leadops/internal/rbac"
	"github.com/niveshya/leadops/internal/shared"
)

type stubAudioRepo struct {
	mu   sync.Mutex
	recs map[string]AudioRecording
}

func newStubAudioRepo() *stubAudioRepo {
	return &stubAudioRepo{recs: map[string]AudioRecording{}}
}

func (s *stubAudioRepo) SaveAudio(ctx context.Context, rec AudioRecording) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.recs[rec.MeetingID].Filename
	s.recs[rec.MeetingID] = rec
	return prev, nil
}

func (s *stubAudioRepo) GetAudio(ctx context.Context, meetingID string) (AudioRecording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[meetingID]
	if !ok {
		return AudioRecording{}, shared.ErrNotFound
	}
	return rec, nil
}

type stubDirectory struct{}

func (stubDirectory) UserName(ctx context.Context, userID string) (string, error) {
	return userID, nil
}

func newAudioService(t *testing.T, maxBytes int64) (*AudioService, *stubAudioRepo, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "audio")
	repo := newStubAudioRepo()
	svc, err := NewAudioService(repo, dir, maxBytes, nil)
	require.NoError(t, err)
	return svc, repo, dir
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestStoreAudioWritesFileAndMetadata(t *testing.T) {
	svc, repo, dir := newAudioService(t, 0)
	actor := shared.Principal{UserID: "u-1"}

	res, err := svc.StoreAudio(context.Background(), actor, "m-42", AudioUpload{
		Filename:    "standup.webm",
		ContentType: "audio/webm;codecs=opus",
		Body:        strings.NewReader("opus-bytes"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Audio recording uploaded successfully", res.Message)
	assert.Equal(t, "m-42", res.MeetingID)
	assert.EqualValues(t, 10, res.FileSize)
	assert.Equal(t, ProcessingNotStarted, res.ProcessingStatus)
	assert.True(t, strings.HasSuffix(res.AudioFilename, ".webm"))

	rec, err := repo.GetAudio(context.Background(), "m-42")
	require.NoError(t, err)
	assert.Equal(t, "standup.webm", rec.OriginalFilename)
	assert.Equal(t, "audio/webm", rec.MIMEType)
	assert.Equal(t, "u-1", rec.UploadedBy)

	data, err := os.ReadFile(filepath.Join(dir, res.AudioFilename))
	require.NoError(t, err)
	assert.Equal(t, "opus-bytes", string(data))
	assert.Equal(t, []string{res.AudioFilename}, dirEntries(t, dir))
}

func TestStoreAudioValidation(t *testing.T) {
	svc, _, dir := newAudioService(t, 8)
	ctx := context.Background()

	cases := map[string]AudioUpload{
		"wrong type": {Filename: "notes.txt", ContentType: "text/plain", Body: strings.NewReader("hello")},
		"empty":      {Filename: "a.wav", ContentType: "audio/wav", Body: strings.NewReader("")},
		"too large":  {Filename: "a.wav", ContentType: "audio/wav", Body: strings.NewReader("0123456789")},
		"no meeting": {Filename: "a.wav", ContentType: "audio/wav", Body: strings.NewReader("x")},
	}
	for name, upload := range cases {
		t.Run(name, func(t *testing.T) {
			meetingID := "m-1"
			if name == "no meeting" {
				meetingID = "  "
			}
			_, err := svc.StoreAudio(ctx, shared.Principal{UserID: "u-1"}, meetingID, upload)
			assert.ErrorIs(t, err, shared.ErrValidation)
		})
	}
	assert.Empty(t, dirEntries(t, dir))
}

func TestStoreAudioAcceptsKnownExtension(t *testing.T) {
	svc, repo, _ := newAudioService(t, 0)

	res, err := svc.StoreAudio(context.Background(), shared.Principal{UserID: "u-1"}, "m-1", AudioUpload{
		Filename:    "call.m4a",
		ContentType: "application/octet-stream",
		Body:        strings.NewReader("aac"),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(res.AudioFilename, ".m4a"))
	rec, err := repo.GetAudio(context.Background(), "m-1")
	require.NoError(t, err)
	assert.Equal(t, "audio/mp4", rec.MIMEType)
}

func TestStoreAudioReplacesPreviousFile(t *testing.T) {
	svc, _, dir := newAudioService(t, 0)
	ctx := context.Background()
	upload := func(body string) UploadResult {
		res, err := svc.StoreAudio(ctx, shared.Principal{UserID: "u-1"}, "m-1", AudioUpload{
			Filename: "take.ogg", ContentType: "audio/ogg", Body: strings.NewReader(body),
		})
		require.NoError(t, err)
		return res
	}

	upload("first")
	second := upload("second")
	assert.Equal(t, []string{second.AudioFilename}, dirEntries(t, dir))

	rec, f, err := svc.OpenAudio(ctx, "m-1")
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
	assert.Equal(t, second.AudioFilename, rec.Filename)
}

func TestOpenAudioMissing(t *testing.T) {
	svc, repo, _ := newAudioService(t, 0)
	ctx := context.Background()

	_, _, err := svc.OpenAudio(ctx, "m-404")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = repo.SaveAudio(ctx, AudioRecording{MeetingID: "m-gone", Filename: "vanished.webm"})
	require.NoError(t, err)
	_, _, err = svc.OpenAudio(ctx, "m-gone")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func multipartBody(t *testing.T, field, filename, contentType, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "ignored"))
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func newMeetingsRouter(t *testing.T) (http.Handler, *AudioService) {
	t.Helper()
	svc, _, _ := newAudioService(t, 0)
	rbacSvc := rbac.NewService(rbac.NewMemoryRepository(), stubDirectory{}, nil)
	require.NoError(t, rbacSvc.Bootstrap(context.Background(), rbac.BootstrapOptions{SuperAdminUserID: "u-root"}))

	h := NewHandler(nil, svc, rbac.Middleware{Service: rbacSvc})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if id := req.Header.Get("X-Test-User"); id != "" {
				req = req.WithContext(shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: id}))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/meetings", h.MountRoutes)
	return r, svc
}

func TestHandlerUploadAndDownload(t *testing.T) {
	router, _ := newMeetingsRouter(t)

	body, contentType := multipartBody(t, AudioFormField, "m-7.webm", "audio/webm", "capture")
	req := httptest.NewRequest(http.MethodPost, "/meetings/m-7/audio", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Test-User", "u-root")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	var result UploadResult
	require.NoError(t, json.NewDecoder(res.Body).Decode(&result))
	assert.Equal(t, "m-7", result.MeetingID)
	assert.EqualValues(t, 7, result.FileSize)

	req = httptest.NewRequest(http.MethodGet, "/meetings/m-7/audio", nil)
	req.Header.Set("X-Test-User", "u-root")
	res = httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "audio/webm", res.Header().Get("Content-Type"))
	assert.Equal(t, "capture", res.Body.String())
}

func TestHandlerUploadErrors(t *testing.T) {
	router, _ := newMeetingsRouter(t)

	send := func(user, field string) *httptest.ResponseRecorder {
		body, contentType := multipartBody(t, field, "a.webm", "audio/webm", "x")
		req := httptest.NewRequest(http.MethodPost, "/meetings/m-1/audio", body)
		req.Header.Set("Content-Type", contentType)
		if user != "" {
			req.Header.Set("X-Test-User", user)
		}
		res := httptest.NewRecorder()
		router.ServeHTTP(res, req)
		return res
	}

	assert.Equal(t, http.StatusUnauthorized, send("", AudioFormField).Code)
	assert.Equal(t, http.StatusForbidden, send("u-nobody", AudioFormField).Code)
	assert.Equal(t, http.StatusBadRequest, send("u-root", "file").Code)

	req := httptest.NewRequest(http.MethodPost, "/meetings/m-1/audio", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", "u-root")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	req = httptest.NewRequest(http.MethodGet, "/meetings/m-404/audio", nil)
	req.Header.Set("X-Test-User", "u-root")
	res = httptest.NewRecorder()
	router.ServeHTTP(res, req)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestAllowedAudio(t *testing.T) {
	assert.True(t, AllowedAudio("audio/webm;codecs=opus", ""))
	assert.True(t, AllowedAudio("AUDIO/WAV", "x"))
	assert.True(t, AllowedAudio("", "take.MP3"))
	assert.False(t, AllowedAudio("video/webm", "clip.mkv"))
	assert.Equal(t, ".webm", ExtensionFor("audio/webm; codecs=opus"))
	assert.Equal(t, ".m4a", ExtensionFor("audio/x-m4a"))
	assert.Equal(t, "audio/webm", ContentTypeFor("x.webm"))
}
