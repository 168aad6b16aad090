package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"

	"drivemind/internal/agent"
	"drivemind/internal/dal"
	"drivemind/internal/ingest"
	"drivemind/internal/models"
	"drivemind/internal/vectorstore"
)

const testSecret = "test-secret"

var errFake = errors.New("model unavailable")

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeFolders struct {
	byID map[string]*models.Folder
}

func newFakeFolders() *fakeFolders {
	return &fakeFolders{byID: make(map[string]*models.Folder)}
}

func (f *fakeFolders) Create(_ context.Context, folder *models.Folder) error {
	copied := *folder
	f.byID[folder.ID] = &copied
	return nil
}

func (f *fakeFolders) GetForUser(_ context.Context, userID, id string) (*models.Folder, error) {
	folder, ok := f.byID[id]
	if !ok || folder.UserID != userID {
		return nil, dal.ErrNotFound
	}
	copied := *folder
	return &copied, nil
}

func (f *fakeFolders) GetByDriveID(_ context.Context, userID, driveID string) (*models.Folder, error) {
	for _, folder := range f.byID {
		if folder.UserID == userID && folder.DriveFolderID == driveID {
			copied := *folder
			return &copied, nil
		}
	}
	return nil, dal.ErrNotFound
}

func (f *fakeFolders) ListByUser(_ context.Context, userID string) ([]*models.Folder, error) {
	var out []*models.Folder
	for _, folder := range f.byID {
		if folder.UserID == userID {
			copied := *folder
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeFolders) Update(_ context.Context, folder *models.Folder) error {
	copied := *folder
	f.byID[folder.ID] = &copied
	return nil
}

func (f *fakeFolders) Delete(_ context.Context, userID, id string) error {
	folder, ok := f.byID[id]
	if !ok || folder.UserID != userID {
		return dal.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

type fakeConversations struct {
	byID map[string]*models.Conversation
}

func newFakeConversations() *fakeConversations {
	return &fakeConversations{byID: make(map[string]*models.Conversation)}
}

func (f *fakeConversations) Create(_ context.Context, conv *models.Conversation) error {
	copied := *conv
	f.byID[conv.ID] = &copied
	return nil
}

func (f *fakeConversations) GetForUser(_ context.Context, userID, id string) (*models.Conversation, error) {
	conv, ok := f.byID[id]
	if !ok || conv.UserID != userID {
		return nil, dal.ErrNotFound
	}
	copied := *conv
	copied.Messages = append([]models.Message(nil), conv.Messages...)
	return &copied, nil
}

func (f *fakeConversations) List(_ context.Context, userID, folderID string) ([]*models.Conversation, error) {
	var out []*models.Conversation
	for _, conv := range f.byID {
		if conv.UserID != userID {
			continue
		}
		if folderID != "" && conv.FolderID != folderID {
			continue
		}
		copied := *conv
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeConversations) AppendMessage(_ context.Context, msg *models.Message) error {
	conv, ok := f.byID[msg.ConversationID]
	if !ok {
		return fmt.Errorf("no conversation %s", msg.ConversationID)
	}
	conv.Messages = append(conv.Messages, *msg)
	conv.UpdatedAt = msg.CreatedAt
	return nil
}

func (f *fakeConversations) DeleteByFolder(_ context.Context, userID, folderID string) error {
	for id, conv := range f.byID {
		if conv.UserID == userID && conv.FolderID == folderID {
			delete(f.byID, id)
		}
	}
	return nil
}

type fakeDrive struct {
	meta map[string]models.FileDescriptor
	data map[string][]byte
}

func newFakeDrive() *fakeDrive {
	return &fakeDrive{
		meta: make(map[string]models.FileDescriptor),
		data: make(map[string][]byte),
	}
}

func (f *fakeDrive) GetFolderMetadata(_ context.Context, _, folderID string) (models.FileDescriptor, error) {
	md, ok := f.meta[folderID]
	if !ok {
		return models.FileDescriptor{}, fmt.Errorf("no folder %s", folderID)
	}
	return md, nil
}

func (f *fakeDrive) GetFileMetadata(_ context.Context, _, fileID string) (models.FileDescriptor, error) {
	md, ok := f.meta[fileID]
	if !ok {
		return models.FileDescriptor{}, fmt.Errorf("no file %s", fileID)
	}
	return md, nil
}

func (f *fakeDrive) Download(_ context.Context, _, fileID, _ string) ([]byte, error) {
	content, ok := f.data[fileID]
	if !ok {
		return nil, fmt.Errorf("no content for %s", fileID)
	}
	return content, nil
}

type fakeAgent struct {
	response agent.Response
	err      error
	lastReq  agent.Request
}

func (f *fakeAgent) Chat(_ context.Context, req agent.Request) (agent.Response, error) {
	f.lastReq = req
	return f.response, f.err
}

func (f *fakeAgent) StreamChat(_ context.Context, req agent.Request) <-chan agent.Event {
	f.lastReq = req
	out := make(chan agent.Event)
	go func() {
		defer close(out)
		if f.err != nil {
			out <- agent.Event{Err: f.err}
			return
		}
		for _, r := range f.response.Content {
			out <- agent.Event{Text: string(r)}
		}
		out <- agent.Event{Done: true, Citations: f.response.Citations}
	}()
	return out
}

type fakeQueue struct {
	jobs []ingest.Job
}

func (f *fakeQueue) Publish(_ context.Context, job ingest.Job) error {
	f.jobs = append(f.jobs, job)
	return nil
}

type testServer struct {
	folders       *fakeFolders
	conversations *fakeConversations
	store         *vectorstore.MemoryStore
	drive         *fakeDrive
	agent         *fakeAgent
	queue         *fakeQueue
	router        *gin.Engine
}

func newTestServer() *testServer {
	ts := &testServer{
		folders:       newFakeFolders(),
		conversations: newFakeConversations(),
		store:         vectorstore.NewMemoryStore(),
		drive:         newFakeDrive(),
		agent:         &fakeAgent{},
		queue:         &fakeQueue{},
	}
	h := NewHandler(ts.folders, ts.conversations, ts.store, ts.drive, ts.agent, ts.queue)
	ts.router = SetupRouter(h, testSecret)
	return ts
}

func signToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":           userID,
		"refresh_token": "refresh-token",
		"exp":           time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func (ts *testServer) do(t *testing.T, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+signToken(t, userID))
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func (ts *testServer) seedReadyFolder(userID string) *models.Folder {
	mode := models.IndexModeVectorStore
	folder := &models.Folder{
		ID:            "folder-1",
		UserID:        userID,
		DriveFolderID: "drive-abc",
		Name:          "Research",
		Status:        models.FolderStatusReady,
		IndexMode:     &mode,
		FileCount:     2,
	}
	ts.folders.byID[folder.ID] = folder
	return folder
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer()

	w := ts.do(t, http.MethodGet, "/api/drive/folders", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/drive/folders", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer()
	w := ts.do(t, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
