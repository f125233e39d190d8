package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"relay-service/internal/credentials"
	"relay-service/internal/middleware"
	"relay-service/internal/mocks"
	"relay-service/internal/models"
	"relay-service/internal/store"
)

func setupRelayRouter(handler *RelayHandler, p models.Participant) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ParticipantContextKey, p)
		c.Next()
	})
	registerRelayRoutes(r, handler)
	return r
}

func registerRelayRoutes(r *gin.Engine, handler *RelayHandler) {
	r.POST("/messages", handler.Send)
	r.GET("/messages", handler.List)
	r.GET("/messages/poll", handler.Poll)
	r.DELETE("/messages", handler.Purge)
	r.POST("/typing", handler.SetTyping)
	r.GET("/typing", handler.GetTyping)
	r.POST("/receipts", handler.SendReadReceipt)
	r.GET("/receipts/:message_id", handler.GetReadStatus)
}

func TestSendSuccess(t *testing.T) {
	convStore := new(mocks.ConversationStoreMock)
	handler := NewRelayHandler(convStore, nil)
	router := setupRelayRouter(handler, models.ParticipantA)

	stored := models.Message{ID: "01J", LocalID: "l1", Text: "hi", Sender: models.ParticipantA, Recipient: models.ParticipantB, Timestamp: 42}
	convStore.On("Append", models.ParticipantA, "hi", "l1").Return(stored, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewBufferString(`{"text":"hi","local_id":"l1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, stored, resp)
	convStore.AssertExpectations(t)
}

func TestSendValidationError(t *testing.T) {
	convStore := new(mocks.ConversationStoreMock)
	handler := NewRelayHandler(convStore, nil)
	router := setupRelayRouter(handler, models.ParticipantA)

	convStore.On("Append", models.ParticipantA, "  ", "").Return(models.Message{}, store.ErrEmptyText).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewBufferString(`{"text":"  "}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	convStore.AssertExpectations(t)
}

func TestSendMalformedBody(t *testing.T) {
	convStore := new(mocks.ConversationStoreMock)
	handler := NewRelayHandler(convStore, nil)
	router := setupRelayRouter(handler, models.ParticipantA)

	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewBufferString(`{"text":5}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	convStore.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything)
}

func TestListSuccess(t *testing.T) {
	convStore := new(mocks.ConversationStoreMock)
	handler := NewRelayHandler(convStore, nil)
	router := setupRelayRouter(handler, models.ParticipantB)

	convStore.On("ListFor", models.ParticipantB).Return([]models.Message{{ID: "01J", Text: "hi"}}).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	convStore.AssertExpectations(t)
}

func TestPollPassesCursor(t *testing.T) {
	convStore := new(mocks.ConversationStoreMock)
	handler := NewRelayHandler(convStore, nil)
	router := setupRelayRouter(handler, models.ParticipantB)

	convStore.On("PollSince", models.ParticipantB, int64(1700000000000)).Return(([]models.Message)(nil)).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/poll?since=1700000000000", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	convStore.AssertExpectations(t)
}

func TestPollDefaultsCursorToZero(t *testing.T) {
	convStore := new(mocks.ConversationStoreMock)
	handler := NewRelayHandler(convStore, nil)
	router := setupRelayRouter(handler, models.ParticipantB)

	convStore.On("PollSince", models.ParticipantB, int64(0)).Return(([]models.Message)(nil)).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/poll", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	convStore.AssertExpectations(t)
}

func TestPollInvalidCursor(t *testing.T) {
	convStore := new(mocks.ConversationStoreMock)
	handler := NewRelayHandler(convStore, nil)
	router := setupRelayRouter(handler, models.ParticipantB)

	req := httptest.NewRequest(http.MethodGet, "/messages/poll?since=abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	convStore.AssertNotCalled(t, "PollSince", mock.Anything, mock.Anything)
}

func TestSetTypingSuccess(t *testing.T) {
	convStore := new(mocks.ConversationStoreMock)
	handler := NewRelayHandler(convStore, nil)
	router := setupRelayRouter(handler, models.ParticipantA)

	convStore.On("SetTyping", models.ParticipantA, false).Once()

	req := httptest.NewRequest(http.MethodPost, "/typing", bytes.NewBufferString(`{"is_typing":false}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	convStore.AssertExpectations(t)
}

func TestSetTypingRejectsNonBoolean(t *testing.T) {
	convStore := new(mocks.ConversationStoreMock)
	handler := NewRelayHandler(convStore, nil)
	router := setupRelayRouter(handler, models.ParticipantA)

	for _, body := range []string{`{"is_typing":"yes"}`, `{"is_typing":1}`, `{}`} {
		req := httptest.NewRequest(http.MethodPost, "/typing", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %s", body)
	}
	convStore.AssertNotCalled(t, "SetTyping", mock.Anything, mock.Anything)
}

func TestGetTypingReadsPartner(t *testing.T) {
	convStore := new(mocks.ConversationStoreMock)
	handler := NewRelayHandler(convStore, nil)
	router := setupRelayRouter(handler, models.ParticipantA)

	convStore.On("GetTyping", models.ParticipantB).Return(true).Once()

	req := httptest.NewRequest(http.MethodGet, "/typing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]bool
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp["is_typing"])
	convStore.AssertExpectations(t)
}

func TestSendReadReceiptSuccess(t *testing.T) {
	convStore := new(mocks.ConversationStoreMock)
	handler := NewRelayHandler(convStore, nil)
	router := setupRelayRouter(handler, models.ParticipantB)

	convStore.On("MarkRead", models.ParticipantB, []string{"m1", "m2"}).Return(1).Once()

	req := httptest.NewRequest(http.MethodPost, "/receipts", bytes.NewBufferString(`{"message_ids":["m1","m2"]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Success bool `json:"success"`
		Updated int  `json:"updated"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.Updated)
	convStore.AssertExpectations(t)
}

func TestSendReadReceiptRejectsNonArray(t *testing.T) {
	convStore := new(mocks.ConversationStoreMock)
	handler := NewRelayHandler(convStore, nil)
	router := setupRelayRouter(handler, models.ParticipantB)

	req := httptest.NewRequest(http.MethodPost, "/receipts", bytes.NewBufferString(`{"message_ids":"m1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	convStore.AssertNotCalled(t, "MarkRead", mock.Anything, mock.Anything)
}

func TestGetReadStatusUnknownID(t *testing.T) {
	convStore := new(mocks.ConversationStoreMock)
	handler := NewRelayHandler(convStore, nil)
	router := setupRelayRouter(handler, models.ParticipantA)

	convStore.On("ReadStatus", "ghost").Return(false).Once()

	req := httptest.NewRequest(http.MethodGet, "/receipts/ghost", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]bool
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp["read"])
	convStore.AssertExpectations(t)
}

func TestPurgeSuccess(t *testing.T) {
	convStore := new(mocks.ConversationStoreMock)
	handler := NewRelayHandler(convStore, nil)
	router := setupRelayRouter(handler, models.ParticipantA)

	convStore.On("Purge", models.ParticipantA).Once()

	req := httptest.NewRequest(http.MethodDelete, "/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	convStore.AssertExpectations(t)
}

// setupAuthedRouter runs the real auth middleware and the real store so the
// full relay flow can be exercised over HTTP.
func setupAuthedRouter(t *testing.T, convStore *store.Store) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	creds, err := credentials.NewMap("token-a", "token-b")
	require.NoError(t, err)

	handler := NewRelayHandler(convStore, nil)
	r := gin.New()
	r.Use(middleware.Auth(creds))
	registerRelayRoutes(r, handler)
	return r
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body == "" {
		reader = bytes.NewBuffer(nil)
	} else {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRelayEndToEndScenario(t *testing.T) {
	convStore := store.New()
	router := setupAuthedRouter(t, convStore)

	// A sends "hi".
	rec := doJSON(t, router, http.MethodPost, "/messages", "token-a", `{"text":"hi","local_id":"c1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var sent models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sent))
	assert.Equal(t, models.ParticipantA, sent.Sender)
	assert.Equal(t, models.ParticipantB, sent.Recipient)
	assert.Equal(t, "c1", sent.LocalID)
	assert.False(t, sent.Read)

	// A lists one unread message.
	rec = doJSON(t, router, http.MethodGet, "/messages", "token-a", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listResp struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&listResp))
	require.Len(t, listResp.Messages, 1)
	assert.False(t, listResp.Messages[0].Read)

	// B polls from zero and receives the message as delivered.
	rec = doJSON(t, router, http.MethodGet, "/messages/poll", "token-b", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var pollResp struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&pollResp))
	require.Len(t, pollResp.Messages, 1)
	assert.True(t, pollResp.Messages[0].Delivered)

	// B acknowledges it, alongside a stale id that is silently skipped.
	rec = doJSON(t, router, http.MethodPost, "/receipts", "token-b", `{"message_ids":["stale-id","`+sent.ID+`"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var receiptResp struct {
		Success bool `json:"success"`
		Updated int  `json:"updated"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&receiptResp))
	assert.Equal(t, 1, receiptResp.Updated)

	// Read status flips to true and A's list reflects it.
	rec = doJSON(t, router, http.MethodGet, "/receipts/"+sent.ID, "token-a", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var statusResp map[string]bool
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&statusResp))
	assert.True(t, statusResp["read"])

	rec = doJSON(t, router, http.MethodGet, "/messages", "token-a", "")
	require.Equal(t, http.StatusOK, rec.Code)
	listResp.Messages = nil
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&listResp))
	require.Len(t, listResp.Messages, 1)
	assert.True(t, listResp.Messages[0].Read)

	// B purges; history and read status are gone.
	rec = doJSON(t, router, http.MethodDelete, "/messages", "token-b", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/messages", "token-a", "")
	require.Equal(t, http.StatusOK, rec.Code)
	listResp.Messages = nil
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&listResp))
	assert.Empty(t, listResp.Messages)

	rec = doJSON(t, router, http.MethodGet, "/receipts/"+sent.ID, "token-a", "")
	require.Equal(t, http.StatusOK, rec.Code)
	statusResp = nil
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&statusResp))
	assert.False(t, statusResp["read"])
}

func TestPollEmptySerializesAsEmptyList(t *testing.T) {
	convStore := store.New()
	router := setupAuthedRouter(t, convStore)

	// The steady-state client tick: nothing new must render as [], never null.
	rec := doJSON(t, router, http.MethodGet, "/messages/poll", "token-b", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"messages":[]}`, rec.Body.String())

	sent, err := convStore.Append(models.ParticipantA, "hi", "")
	require.NoError(t, err)

	rec = doJSON(t, router, http.MethodGet, "/messages/poll?since="+strconv.FormatInt(sent.Timestamp, 10), "token-b", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"messages":[]}`, rec.Body.String())
}

func TestOversizedSendLeavesStoreUnchanged(t *testing.T) {
	convStore := store.New()
	router := setupAuthedRouter(t, convStore)

	body, err := json.Marshal(gin.H{"text": strings.Repeat("x", store.MaxTextLen+1)})
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodPost, "/messages", "token-a", string(body))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, convStore.Len())
}

func TestRelayRejectsBadCredentials(t *testing.T) {
	convStore := store.New()
	router := setupAuthedRouter(t, convStore)

	rec := doJSON(t, router, http.MethodGet, "/messages", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/messages", "wrong-token", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
