package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"ilumina.app/assistant/internal/http/handler"
	"ilumina.app/assistant/internal/model"
	"ilumina.app/assistant/internal/store"
)

var _ = Describe("ConversationHandler", func() {
	var (
		router *gin.Engine
		svc    *mockSessionService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		svc = &mockSessionService{}
		h := handler.NewConversationHandler(svc)
		router.POST("/conversations", h.Start)
		router.GET("/conversations", h.List)
		router.GET("/conversations/:id/messages", h.Messages)
	})

	Describe("Start", func() {
		It("creates a fresh thread and returns 201", func() {
			svc.startNewFn = func(_ context.Context, sub string, section model.Section) (*model.Conversation, error) {
				Expect(sub).To(Equal("sub-42"))
				Expect(section).To(Equal(model.SectionGeneral))
				return &model.Conversation{ID: 77, SubmissionID: sub, Section: section, CreatedAt: time.Now()}, nil
			}

			body := `{"submission_id":"sub-42"}`
			req := httptest.NewRequest(http.MethodPost, "/conversations", bytes.NewBufferString(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusCreated))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["id"]).To(Equal("77"))
			Expect(resp["section"]).To(Equal("general"))
		})

		It("rejects a body without submission_id", func() {
			req := httptest.NewRequest(http.MethodPost, "/conversations", bytes.NewBufferString(`{}`))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("List", func() {
		It("lists the submission's conversations", func() {
			svc.listBySubmissionFn = func(_ context.Context, sub string) ([]model.Conversation, error) {
				return []model.Conversation{
					{ID: 2, SubmissionID: sub, Section: model.SectionActorSummary},
					{ID: 1, SubmissionID: sub, Section: model.SectionGeneral},
				}, nil
			}

			req := httptest.NewRequest(http.MethodGet, "/conversations?submission_id=sub-42", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp struct {
				Conversations []map[string]any `json:"conversations"`
			}
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Conversations).To(HaveLen(2))
			Expect(resp.Conversations[0]["id"]).To(Equal("2"))
		})

		It("requires submission_id", func() {
			req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("Messages", func() {
		It("returns messages newest first", func() {
			svc.historyDescFn = func(_ context.Context, convID int64, limit int32) ([]model.ChatMessage, error) {
				Expect(convID).To(Equal(int64(55)))
				Expect(limit).To(Equal(int32(50)))
				return []model.ChatMessage{
					{ID: 2, Role: model.RoleAssistant, Content: "hello"},
					{ID: 1, Role: model.RoleUser, Content: "hi"},
				}, nil
			}

			req := httptest.NewRequest(http.MethodGet, "/conversations/55/messages", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp struct {
				ConversationID string           `json:"conversation_id"`
				Messages       []map[string]any `json:"messages"`
			}
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.ConversationID).To(Equal("55"))
			Expect(resp.Messages).To(HaveLen(2))
			Expect(resp.Messages[0]["role"]).To(Equal("assistant"))
		})

		It("honors an explicit limit", func() {
			var captured int32
			svc.historyDescFn = func(_ context.Context, _ int64, limit int32) ([]model.ChatMessage, error) {
				captured = limit
				return nil, nil
			}

			req := httptest.NewRequest(http.MethodGet, "/conversations/55/messages?limit=5", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(captured).To(Equal(int32(5)))
		})

		It("rejects a non-numeric id", func() {
			req := httptest.NewRequest(http.MethodGet, "/conversations/abc/messages", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("rejects a garbage limit", func() {
			req := httptest.NewRequest(http.MethodGet, "/conversations/55/messages?limit=-1", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 404 for an unknown conversation", func() {
			svc.getFn = func(_ context.Context, _ int64) (*model.Conversation, error) {
				return nil, store.ErrNotFound
			}

			req := httptest.NewRequest(http.MethodGet, "/conversations/55/messages", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})
})
