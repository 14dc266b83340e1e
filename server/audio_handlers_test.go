package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"songbook/config"
	"songbook/core/admin"
	"songbook/core/catalog"
	"songbook/model"
	"songbook/repository"
	"songbook/storage"
)

// fakeAudioRepo is an in-memory AudioRepository for handler tests.
type fakeAudioRepo struct {
	mu          sync.Mutex
	attachments map[int64]*model.AudioAttachment
	saveErr     error
	deleteErr   error
	saveStarted chan struct{} // closed when Save begins, if set
	saveRelease chan struct{} // Save blocks on this, if set
}

func newFakeAudioRepo() *fakeAudioRepo {
	return &fakeAudioRepo{attachments: make(map[int64]*model.AudioAttachment)}
}

func (f *fakeAudioRepo) Save(ctx context.Context, songID int64, r io.Reader, size int64, contentType, displayName string, onProgress storage.ProgressFunc) (string, error) {
	if f.saveStarted != nil {
		close(f.saveStarted)
		f.saveStarted = nil
	}
	if f.saveRelease != nil {
		<-f.saveRelease
	}
	if f.saveErr != nil {
		return "", f.saveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if onProgress != nil {
		onProgress(int64(len(data)), size)
	}
	url := "/static/audio/test"
	f.mu.Lock()
	f.attachments[songID] = &model.AudioAttachment{
		SongID:   songID,
		FileName: displayName,
		AudioURL: url,
	}
	f.mu.Unlock()
	return url, nil
}

func (f *fakeAudioRepo) Get(ctx context.Context, songID int64) (*model.AudioAttachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attachments[songID], nil
}

func (f *fakeAudioRepo) Delete(ctx context.Context, songID int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.attachments, songID)
	return nil
}

// fakeSongRepo backs the catalog in handler tests.
type fakeSongRepo struct {
	songs map[int64]model.Song
}

func (r *fakeSongRepo) GetAll(ctx context.Context) ([]model.Song, error) {
	out := make([]model.Song, 0, len(r.songs))
	for _, s := range r.songs {
		out = append(out, s)
	}
	return out, nil
}

func (r *fakeSongRepo) GetByID(ctx context.Context, id int64) (*model.Song, error) {
	s, ok := r.songs[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *fakeSongRepo) Search(ctx context.Context, query string) ([]model.Song, error) {
	q := strings.ToLower(query)
	var out []model.Song
	for _, s := range r.songs {
		if strings.Contains(strings.ToLower(s.Title), q) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSongRepo) UpsertAll(ctx context.Context, songs []model.Song) error {
	for _, s := range songs {
		r.songs[s.ID] = s
	}
	return nil
}

const testPasscode = "choir-admin"

func newTestHandler(t *testing.T, audioRepo repository.AudioRepository) *APIHandler {
	t.Helper()

	songs := &fakeSongRepo{songs: map[int64]model.Song{
		1: {ID: 1, Title: "Amazing Grace", Category: "Hymns"},
		2: {ID: 2, Title: "Silent Night", Category: "Christmas"},
	}}
	gate, err := admin.NewGate(testPasscode, "test-secret", time.Hour, nil)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	cfg := &config.Config{HTTPAddr: ":0"}
	return NewAPIHandler(audioRepo, catalog.New(songs, nil, ""), gate, cfg)
}

func newTestServer(t *testing.T, audioRepo repository.AudioRepository) *httptest.Server {
	t.Helper()
	h := newTestHandler(t, audioRepo)
	srv := httptest.NewServer(NewRouter(h, h.cfg))
	t.Cleanup(srv.Close)
	return srv
}

// audioForm builds a multipart body with one audioFile part.
func audioForm(t *testing.T, fileName, contentType string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="audioFile"; filename="`+fileName+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestUploadAudio(t *testing.T) {
	repo := newFakeAudioRepo()
	srv := newTestServer(t, repo)

	body, contentType := audioForm(t, "anthem.mp3", "audio/mpeg", []byte("ID3 bytes"))
	resp, err := http.Post(srv.URL+"/api/songs/1/audio", contentType, body)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	got := decodeBody(t, resp)
	if got["audioUrl"] != "/static/audio/test" {
		t.Fatalf("audioUrl = %v", got["audioUrl"])
	}
	if got["fileName"] != "anthem.mp3" {
		t.Fatalf("fileName = %v", got["fileName"])
	}
	uploadID, _ := got["uploadId"].(string)
	if uploadID == "" {
		t.Fatal("missing uploadId")
	}

	// The finished upload is visible on the progress endpoint.
	resp, err = http.Get(srv.URL + "/api/uploads/" + uploadID)
	if err != nil {
		t.Fatalf("GET progress: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("progress status = %d", resp.StatusCode)
	}
	progress := decodeBody(t, resp)
	if progress["done"] != true {
		t.Fatalf("progress = %v, want done", progress)
	}
	if progress["percent"] != float64(100) {
		t.Fatalf("percent = %v, want 100", progress["percent"])
	}
}

func TestUploadAudioRejectsNonAudioType(t *testing.T) {
	repo := newFakeAudioRepo()
	srv := newTestServer(t, repo)

	body, contentType := audioForm(t, "cover.png", "image/png", []byte("PNG"))
	resp, err := http.Post(srv.URL+"/api/songs/1/audio", contentType, body)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	got := decodeBody(t, resp)
	if msg, _ := got["error"].(string); !strings.Contains(msg, "valid audio file") {
		t.Fatalf("error = %q", got["error"])
	}
	if len(repo.attachments) != 0 {
		t.Fatal("rejected upload still reached the repository")
	}
}

func TestUploadAudioMissingFile(t *testing.T) {
	srv := newTestServer(t, newFakeAudioRepo())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("note", "no file here")
	mw.Close()

	resp, err := http.Post(srv.URL+"/api/songs/1/audio", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestUploadAudioInvalidSongID(t *testing.T) {
	srv := newTestServer(t, newFakeAudioRepo())

	body, contentType := audioForm(t, "a.mp3", "audio/mpeg", []byte("x"))
	resp, err := http.Post(srv.URL+"/api/songs/not-a-number/audio", contentType, body)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestUploadAudioConflictWhileInFlight(t *testing.T) {
	repo := newFakeAudioRepo()
	repo.saveStarted = make(chan struct{})
	repo.saveRelease = make(chan struct{})
	started := repo.saveStarted
	srv := newTestServer(t, repo)

	firstDone := make(chan error, 1)
	go func() {
		body, contentType := audioForm(t, "slow.mp3", "audio/mpeg", []byte("x"))
		resp, err := http.Post(srv.URL+"/api/songs/1/audio", contentType, body)
		if err == nil {
			resp.Body.Close()
		}
		firstDone <- err
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("first upload never reached the repository")
	}

	// Second upload for the same song while the first is in flight.
	body, contentType := audioForm(t, "fast.mp3", "audio/mpeg", []byte("y"))
	resp, err := http.Post(srv.URL+"/api/songs/1/audio", contentType, body)
	if err != nil {
		t.Fatalf("second POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}

	close(repo.saveRelease)
	if err := <-firstDone; err != nil {
		t.Fatalf("first upload: %v", err)
	}

	// The guard is released after completion.
	body, contentType = audioForm(t, "retry.mp3", "audio/mpeg", []byte("z"))
	resp, err = http.Post(srv.URL+"/api/songs/1/audio", contentType, body)
	if err != nil {
		t.Fatalf("retry POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("retry status = %d, want 201", resp.StatusCode)
	}
}

func TestUploadAudioErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", &repository.ValidationError{Field: "size", Reason: "too big"}, http.StatusBadRequest},
		{"transport", &repository.TransportError{Op: "put", Err: errors.New("conn reset")}, http.StatusBadGateway},
		{"metadata", &repository.MetadataError{Op: "upsert", Err: errors.New("deadlock")}, http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeAudioRepo()
			repo.saveErr = tt.err
			srv := newTestServer(t, repo)

			body, contentType := audioForm(t, "a.mp3", "audio/mpeg", []byte("x"))
			resp, err := http.Post(srv.URL+"/api/songs/1/audio", contentType, body)
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestGetAudioAbsentIsNull(t *testing.T) {
	srv := newTestServer(t, newFakeAudioRepo())

	resp, err := http.Get(srv.URL + "/api/songs/1/audio")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	got := decodeBody(t, resp)
	if att, present := got["attachment"]; !present || att != nil {
		t.Fatalf("attachment = %v, want explicit null", att)
	}
}

func TestGetAudioPresent(t *testing.T) {
	repo := newFakeAudioRepo()
	repo.attachments[1] = &model.AudioAttachment{SongID: 1, FileName: "a.mp3", AudioURL: "/static/audio/1/a.mp3"}
	srv := newTestServer(t, repo)

	resp, err := http.Get(srv.URL + "/api/songs/1/audio")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	got := decodeBody(t, resp)
	att, _ := got["attachment"].(map[string]interface{})
	if att == nil || att["audioUrl"] != "/static/audio/1/a.mp3" {
		t.Fatalf("attachment = %v", got["attachment"])
	}
}

func TestUnknownUploadProgressIs404(t *testing.T) {
	srv := newTestServer(t, newFakeAudioRepo())

	resp, err := http.Get(srv.URL + "/api/uploads/no-such-upload")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func adminToken(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/admin/login", "application/json",
		strings.NewReader(`{"passcode":"`+testPasscode+`"}`))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatal("empty token")
	}
	return token
}

func deleteAudio(t *testing.T, srv *httptest.Server, songID, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/songs/"+songID+"/audio", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	return resp
}

func TestDeleteAudioRequiresAdminToken(t *testing.T) {
	repo := newFakeAudioRepo()
	repo.attachments[1] = &model.AudioAttachment{SongID: 1}
	srv := newTestServer(t, repo)

	resp := deleteAudio(t, srv, "1", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status without token = %d, want 401", resp.StatusCode)
	}

	resp = deleteAudio(t, srv, "1", "bogus-token")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status with bad token = %d, want 401", resp.StatusCode)
	}

	if len(repo.attachments) != 1 {
		t.Fatal("unauthorized delete reached the repository")
	}
}

func TestDeleteAudioWithAdminToken(t *testing.T) {
	repo := newFakeAudioRepo()
	repo.attachments[1] = &model.AudioAttachment{SongID: 1}
	srv := newTestServer(t, repo)

	token := adminToken(t, srv)
	resp := deleteAudio(t, srv, "1", token)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(repo.attachments) != 0 {
		t.Fatal("attachment survived authorized delete")
	}
}

func TestDeleteAudioDanglingRowMessage(t *testing.T) {
	repo := newFakeAudioRepo()
	repo.attachments[1] = &model.AudioAttachment{SongID: 1}
	repo.deleteErr = &repository.MetadataError{Op: "delete", Err: errors.New("lock timeout")}
	srv := newTestServer(t, repo)

	token := adminToken(t, srv)
	resp := deleteAudio(t, srv, "1", token)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	got := decodeBody(t, resp)
	if msg, _ := got["error"].(string); !strings.Contains(msg, "record remains") {
		t.Fatalf("error = %q", got["error"])
	}
}

func TestAdminLoginRejectsWrongPasscode(t *testing.T) {
	srv := newTestServer(t, newFakeAudioRepo())

	resp, err := http.Post(srv.URL+"/api/admin/login", "application/json",
		strings.NewReader(`{"passcode":"guess"}`))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	got := decodeBody(t, resp)
	if msg, _ := got["error"].(string); !strings.Contains(msg, "Invalid passcode") {
		t.Fatalf("error = %q", got["error"])
	}
}
