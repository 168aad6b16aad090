package api

import (
	"net/http"
	"strings"
	"testing"

	"drivemind/internal/agent"
	"drivemind/internal/models"
)

func TestSendMessage(t *testing.T) {
	ts := newTestServer()
	folder := ts.seedReadyFolder("user-1")
	ts.agent.response = agent.Response{
		Content:   "The plan ships in Q3. [Source: plan.txt]",
		Citations: []models.Citation{{FileName: "plan.txt", FileID: "f1"}},
	}

	w := ts.do(t, http.MethodPost, "/api/chat/send", "user-1", map[string]string{
		"folder_id": folder.ID,
		"message":   "When does the plan ship?",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		ConversationID string         `json:"conversation_id"`
		Message        models.Message `json:"message"`
	}
	decodeJSON(t, w, &resp)
	if resp.ConversationID == "" {
		t.Fatal("expected a conversation id")
	}
	if resp.Message.Role != models.MessageRoleAssistant {
		t.Errorf("expected assistant message, got %q", resp.Message.Role)
	}
	if !strings.Contains(resp.Message.Content, "Q3") {
		t.Errorf("unexpected answer %q", resp.Message.Content)
	}
	if len(resp.Message.Citations) != 1 || resp.Message.Citations[0].FileName != "plan.txt" {
		t.Errorf("unexpected citations %+v", resp.Message.Citations)
	}

	conv, ok := ts.conversations.byID[resp.ConversationID]
	if !ok {
		t.Fatal("conversation not persisted")
	}
	if conv.Title != "When does the plan ship?" {
		t.Errorf("unexpected title %q", conv.Title)
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("expected user and assistant messages persisted, got %d", len(conv.Messages))
	}
	if conv.Messages[0].Role != models.MessageRoleUser || conv.Messages[1].Role != models.MessageRoleAssistant {
		t.Errorf("messages out of order: %+v", conv.Messages)
	}

	if ts.agent.lastReq.IndexMode != models.IndexModeVectorStore {
		t.Errorf("expected vector mode request, got %q", ts.agent.lastReq.IndexMode)
	}
	if len(ts.agent.lastReq.History) != 0 {
		t.Errorf("first turn should carry no history, got %d turns", len(ts.agent.lastReq.History))
	}
}

func TestSendMessageContinuesConversation(t *testing.T) {
	ts := newTestServer()
	folder := ts.seedReadyFolder("user-1")
	ts.conversations.byID["conv-1"] = &models.Conversation{
		ID:       "conv-1",
		UserID:   "user-1",
		FolderID: folder.ID,
		Title:    "earlier",
		Messages: []models.Message{
			{ID: "m1", ConversationID: "conv-1", Role: models.MessageRoleUser, Content: "first question"},
			{ID: "m2", ConversationID: "conv-1", Role: models.MessageRoleAssistant, Content: "first answer"},
		},
	}
	ts.agent.response = agent.Response{Content: "second answer"}

	w := ts.do(t, http.MethodPost, "/api/chat/send", "user-1", map[string]string{
		"folder_id":       folder.ID,
		"message":         "and then?",
		"conversation_id": "conv-1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if len(ts.agent.lastReq.History) != 2 {
		t.Fatalf("expected the 2 prior messages as history, got %d", len(ts.agent.lastReq.History))
	}
	if ts.agent.lastReq.History[0].Content != "first question" {
		t.Errorf("unexpected history %+v", ts.agent.lastReq.History)
	}
	if ts.agent.lastReq.Message != "and then?" {
		t.Errorf("unexpected message %q", ts.agent.lastReq.Message)
	}
	if got := len(ts.conversations.byID["conv-1"].Messages); got != 4 {
		t.Errorf("expected 4 persisted messages, got %d", got)
	}
}

func TestSendMessageFolderNotReady(t *testing.T) {
	ts := newTestServer()
	folder := ts.seedReadyFolder("user-1")
	folder.Status = models.FolderStatusIndexing

	w := ts.do(t, http.MethodPost, "/api/chat/send", "user-1", map[string]string{
		"folder_id": folder.ID,
		"message":   "hello",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Folder is not ready. Status: indexing") {
		t.Errorf("unexpected error body %q", w.Body.String())
	}
}

func TestSendMessageUnknownConversation(t *testing.T) {
	ts := newTestServer()
	folder := ts.seedReadyFolder("user-1")

	w := ts.do(t, http.MethodPost, "/api/chat/send", "user-1", map[string]string{
		"folder_id":       folder.ID,
		"message":         "hello",
		"conversation_id": "missing",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestSendMessageStream(t *testing.T) {
	ts := newTestServer()
	folder := ts.seedReadyFolder("user-1")
	ts.agent.response = agent.Response{
		Content:   "hi",
		Citations: []models.Citation{{FileName: "plan.txt"}},
	}

	w := ts.do(t, http.MethodPost, "/api/chat/send/stream", "user-1", map[string]string{
		"folder_id": folder.ID,
		"message":   "stream it",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/event-stream") {
		t.Errorf("expected event-stream content type, got %q", got)
	}

	body := w.Body.String()
	for _, event := range []string{"event:start", "event:content", "event:done"} {
		if !strings.Contains(body, event) {
			t.Errorf("stream missing %q: %s", event, body)
		}
	}
	if !strings.Contains(body, "conversation_id") {
		t.Errorf("start event missing conversation id: %s", body)
	}
	if !strings.Contains(body, "plan.txt") {
		t.Errorf("done event missing citations: %s", body)
	}

	// The full streamed answer is persisted as the assistant message.
	var persisted *models.Conversation
	for _, conv := range ts.conversations.byID {
		persisted = conv
	}
	if persisted == nil || len(persisted.Messages) != 2 {
		t.Fatalf("expected persisted conversation with 2 messages, got %+v", persisted)
	}
	if persisted.Messages[1].Content != "hi" {
		t.Errorf("persisted answer %q, want %q", persisted.Messages[1].Content, "hi")
	}
}

func TestSendMessageStreamError(t *testing.T) {
	ts := newTestServer()
	folder := ts.seedReadyFolder("user-1")
	ts.agent.err = errFake

	w := ts.do(t, http.MethodPost, "/api/chat/send/stream", "user-1", map[string]string{
		"folder_id": folder.ID,
		"message":   "stream it",
	})
	body := w.Body.String()
	if !strings.Contains(body, "event:error") {
		t.Errorf("expected error event, got %s", body)
	}
}

func TestListConversations(t *testing.T) {
	ts := newTestServer()
	folder := ts.seedReadyFolder("user-1")
	ts.conversations.byID["conv-1"] = &models.Conversation{
		ID: "conv-1", UserID: "user-1", FolderID: folder.ID, Title: "a",
		Messages: []models.Message{{ID: "m1", Role: models.MessageRoleUser, Content: "q"}},
	}
	ts.conversations.byID["conv-2"] = &models.Conversation{
		ID: "conv-2", UserID: "user-1", FolderID: "other-folder", Title: "b",
	}

	w := ts.do(t, http.MethodGet, "/api/chat/conversations?folder_id="+folder.ID, "user-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var convs []models.Conversation
	decodeJSON(t, w, &convs)
	if len(convs) != 1 || convs[0].ID != "conv-1" {
		t.Errorf("expected only the folder's conversation, got %+v", convs)
	}
}

func TestGetConversationNotFound(t *testing.T) {
	ts := newTestServer()
	w := ts.do(t, http.MethodGet, "/api/chat/conversations/missing", "user-1", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestConversationTitle(t *testing.T) {
	cases := []struct {
		message string
		want    string
	}{
		{"short question", "short question"},
		{strings.Repeat("a", 50), strings.Repeat("a", 50)},
		{strings.Repeat("a", 51), strings.Repeat("a", 50) + "..."},
		{"  padded  ", "padded"},
	}
	for _, tc := range cases {
		if got := conversationTitle(tc.message); got != tc.want {
			t.Errorf("conversationTitle(%q) = %q, want %q", tc.message, got, tc.want)
		}
	}
}
