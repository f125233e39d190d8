package mocks

import (
	"github.com/stretchr/testify/mock"

	"relay-service/internal/models"
	"relay-service/internal/store"
)

type ConversationStoreMock struct {
	mock.Mock
}

func (m *ConversationStoreMock) Append(sender models.Participant, text, localID string) (models.Message, error) {
	args := m.Called(sender, text, localID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *ConversationStoreMock) ListFor(p models.Participant) []models.Message {
	args := m.Called(p)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs
}

func (m *ConversationStoreMock) PollSince(p models.Participant, since int64) []models.Message {
	args := m.Called(p, since)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs
}

func (m *ConversationStoreMock) SetTyping(p models.Participant, isTyping bool) {
	m.Called(p, isTyping)
}

func (m *ConversationStoreMock) GetTyping(p models.Participant) bool {
	args := m.Called(p)
	return args.Bool(0)
}

func (m *ConversationStoreMock) MarkRead(p models.Participant, messageIDs []string) int {
	args := m.Called(p, messageIDs)
	return args.Int(0)
}

func (m *ConversationStoreMock) ReadStatus(messageID string) bool {
	args := m.Called(messageID)
	return args.Bool(0)
}

func (m *ConversationStoreMock) Purge(p models.Participant) {
	m.Called(p)
}

var _ store.ConversationStore = (*ConversationStoreMock)(nil)
