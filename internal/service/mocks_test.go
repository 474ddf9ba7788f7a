package service_test

import (
	"context"

	"ilumina.app/assistant/common/llm"
	"ilumina.app/assistant/internal/model"
	"ilumina.app/assistant/internal/platform"
	"ilumina.app/assistant/internal/queue"
	"ilumina.app/assistant/internal/store"
)

type mockConversationStore struct {
	getByIDFn          func(ctx context.Context, id int64) (*model.Conversation, error)
	getLatestFn        func(ctx context.Context, submissionID string, section model.Section) (*model.Conversation, error)
	createFn           func(ctx context.Context, conv *model.Conversation) error
	listBySubmissionFn func(ctx context.Context, submissionID string) ([]model.Conversation, error)
	createCalls        int
}

func (m *mockConversationStore) GetByID(ctx context.Context, id int64) (*model.Conversation, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *mockConversationStore) GetLatest(ctx context.Context, submissionID string, section model.Section) (*model.Conversation, error) {
	if m.getLatestFn != nil {
		return m.getLatestFn(ctx, submissionID, section)
	}
	return nil, store.ErrNotFound
}

func (m *mockConversationStore) Create(ctx context.Context, conv *model.Conversation) error {
	m.createCalls++
	if m.createFn != nil {
		return m.createFn(ctx, conv)
	}
	return nil
}

func (m *mockConversationStore) ListBySubmission(ctx context.Context, submissionID string) ([]model.Conversation, error) {
	if m.listBySubmissionFn != nil {
		return m.listBySubmissionFn(ctx, submissionID)
	}
	return []model.Conversation{}, nil
}

type mockMessageStore struct {
	appendFn                 func(ctx context.Context, msg *model.ChatMessage) error
	listByConversationFn     func(ctx context.Context, conversationID int64) ([]model.ChatMessage, error)
	listByConversationDescFn func(ctx context.Context, conversationID int64, limit int32) ([]model.ChatMessage, error)
	appendCalls              int
	appended                 []*model.ChatMessage
}

func (m *mockMessageStore) Append(ctx context.Context, msg *model.ChatMessage) error {
	m.appendCalls++
	m.appended = append(m.appended, msg)
	if m.appendFn != nil {
		return m.appendFn(ctx, msg)
	}
	return nil
}

func (m *mockMessageStore) ListByConversation(ctx context.Context, conversationID int64) ([]model.ChatMessage, error) {
	if m.listByConversationFn != nil {
		return m.listByConversationFn(ctx, conversationID)
	}
	return nil, nil
}

func (m *mockMessageStore) ListByConversationDesc(ctx context.Context, conversationID int64, limit int32) ([]model.ChatMessage, error) {
	if m.listByConversationDescFn != nil {
		return m.listByConversationDescFn(ctx, conversationID, limit)
	}
	return nil, nil
}

type mockTxRunner struct {
	stores   *store.Stores
	withTxFn func(ctx context.Context, fn func(stores *store.Stores) error) error
}

func (m *mockTxRunner) WithTx(ctx context.Context, fn func(stores *store.Stores) error) error {
	if m.withTxFn != nil {
		return m.withTxFn(ctx, fn)
	}
	return fn(m.stores)
}

type mockSessionService struct {
	resolveFn          func(ctx context.Context, submissionID string, section model.Section, explicitID *int64) (*model.Conversation, error)
	startNewFn         func(ctx context.Context, submissionID string, section model.Section) (*model.Conversation, error)
	historyFn          func(ctx context.Context, conversationID int64) ([]model.ChatMessage, error)
	historyDescFn      func(ctx context.Context, conversationID int64, limit int32) ([]model.ChatMessage, error)
	appendTurnFn       func(ctx context.Context, userMsg, assistantMsg *model.ChatMessage) error
	appendFn           func(ctx context.Context, msg *model.ChatMessage) error
	listBySubmissionFn func(ctx context.Context, submissionID string) ([]model.Conversation, error)
	getFn              func(ctx context.Context, conversationID int64) (*model.Conversation, error)

	startNewCalls   int
	appendTurnCalls int
	appendCalls     int

	lastUserMsg      *model.ChatMessage
	lastAssistantMsg *model.ChatMessage
	lastAppended     *model.ChatMessage
}

func (m *mockSessionService) Resolve(ctx context.Context, submissionID string, section model.Section, explicitID *int64) (*model.Conversation, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, submissionID, section, explicitID)
	}
	return &model.Conversation{ID: 1001, SubmissionID: submissionID, Section: section}, nil
}

func (m *mockSessionService) StartNew(ctx context.Context, submissionID string, section model.Section) (*model.Conversation, error) {
	m.startNewCalls++
	if m.startNewFn != nil {
		return m.startNewFn(ctx, submissionID, section)
	}
	return &model.Conversation{ID: 2002, SubmissionID: submissionID, Section: section}, nil
}

func (m *mockSessionService) History(ctx context.Context, conversationID int64) ([]model.ChatMessage, error) {
	if m.historyFn != nil {
		return m.historyFn(ctx, conversationID)
	}
	return nil, nil
}

func (m *mockSessionService) HistoryDesc(ctx context.Context, conversationID int64, limit int32) ([]model.ChatMessage, error) {
	if m.historyDescFn != nil {
		return m.historyDescFn(ctx, conversationID, limit)
	}
	return nil, nil
}

func (m *mockSessionService) AppendTurn(ctx context.Context, userMsg, assistantMsg *model.ChatMessage) error {
	m.appendTurnCalls++
	m.lastUserMsg = userMsg
	m.lastAssistantMsg = assistantMsg
	if m.appendTurnFn != nil {
		return m.appendTurnFn(ctx, userMsg, assistantMsg)
	}
	return nil
}

func (m *mockSessionService) Append(ctx context.Context, msg *model.ChatMessage) error {
	m.appendCalls++
	m.lastAppended = msg
	if m.appendFn != nil {
		return m.appendFn(ctx, msg)
	}
	return nil
}

func (m *mockSessionService) ListBySubmission(ctx context.Context, submissionID string) ([]model.Conversation, error) {
	if m.listBySubmissionFn != nil {
		return m.listBySubmissionFn(ctx, submissionID)
	}
	return []model.Conversation{}, nil
}

func (m *mockSessionService) Get(ctx context.Context, conversationID int64) (*model.Conversation, error) {
	if m.getFn != nil {
		return m.getFn(ctx, conversationID)
	}
	return nil, nil
}

type mockRunner struct {
	runFn       func(ctx context.Context, req platform.RunRequest) (*platform.RunResult, error)
	runCalls    int
	lastRequest platform.RunRequest
}

func (m *mockRunner) Run(ctx context.Context, req platform.RunRequest) (*platform.RunResult, error) {
	m.runCalls++
	m.lastRequest = req
	if m.runFn != nil {
		return m.runFn(ctx, req)
	}
	return &platform.RunResult{RunID: "run-1", Status: "started"}, nil
}

type mockProducer struct {
	enqueueFn    func(ctx context.Context, msg queue.EventMessage) error
	enqueueCalls int
	lastMessage  queue.EventMessage
}

func (m *mockProducer) Enqueue(ctx context.Context, msg queue.EventMessage) error {
	m.enqueueCalls++
	m.lastMessage = msg
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, msg)
	}
	return nil
}

func (m *mockProducer) Close() error {
	return nil
}

// mockLLM drives the brain components the chat service is built from.
type mockLLM struct {
	completeFn    func(ctx context.Context, req llm.Request) (*llm.Response, error)
	completeCalls int
	lastRequest   llm.Request
}

func (m *mockLLM) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	m.completeCalls++
	m.lastRequest = req
	if m.completeFn != nil {
		return m.completeFn(ctx, req)
	}
	return &llm.Response{Text: "{}", FinishReason: "stop"}, nil
}

func (m *mockLLM) Model() string {
	return "mock-oracle"
}

func respondWith(text string) func(ctx context.Context, req llm.Request) (*llm.Response, error) {
	return func(_ context.Context, _ llm.Request) (*llm.Response, error) {
		return &llm.Response{Text: text, FinishReason: "stop"}, nil
	}
}
