package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"ilumina.app/assistant/internal/http/handler"
	"ilumina.app/assistant/internal/model"
	"ilumina.app/assistant/internal/service"
)

var _ = Describe("ChatHandler", func() {
	var (
		router *gin.Engine
		svc    *mockChatService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		svc = &mockChatService{}
		h := handler.NewChatHandler(svc)
		router.POST("/turns", h.HandleTurn)
	})

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/turns", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	It("returns the reply with its classification on success", func() {
		svc.handleTurnFn = func(_ context.Context, _ service.TurnInput) (*service.TurnResult, error) {
			return &service.TurnResult{
				Reply:          "The summary lists three actors.",
				ConversationID: 123456789,
				Classification: model.Classification{
					Step:       model.StepAnalyzeActors,
					Action:     model.ActionClarify,
					Confidence: 0.9,
				},
			}, nil
		}

		w := post(`{"submission_id":"sub-42","section":"actor_summary","message":"what does the summary show?"}`)

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["reply"]).To(Equal("The summary lists three actors."))
		Expect(resp["conversation_id"]).To(Equal("123456789"))

		classification, ok := resp["classification"].(map[string]any)
		Expect(ok).To(BeTrue())
		Expect(classification["step"]).To(Equal("analyze_actors"))
		Expect(classification["action"]).To(Equal("clarify"))
		Expect(classification["isActionable"]).To(BeFalse())
		Expect(classification["needsConfirmation"]).To(BeFalse())
		Expect(classification["actionTaken"]).To(BeFalse())
	})

	It("normalizes section and step before calling the service", func() {
		w := post(`{"submission_id":"sub-42","section":"Actor_Summary","current_step":" Analyze_Actors ","message":"hi"}`)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(svc.lastInput.Section).To(Equal(model.SectionActorSummary))
		Expect(svc.lastInput.CurrentStep).To(Equal(model.StepAnalyzeActors))
	})

	It("threads an explicit conversation id through", func() {
		w := post(`{"submission_id":"sub-42","conversation_id":"987","message":"hi"}`)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(svc.lastInput.ConversationID).NotTo(BeNil())
		Expect(*svc.lastInput.ConversationID).To(Equal(int64(987)))
	})

	It("returns 400 when the message is missing", func() {
		w := post(`{"submission_id":"sub-42"}`)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("returns 400 on a malformed body", func() {
		w := post(`{`)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("returns 500 when the service fails", func() {
		svc.handleTurnFn = func(_ context.Context, _ service.TurnInput) (*service.TurnResult, error) {
			return nil, errors.New("db down")
		}

		w := post(`{"submission_id":"sub-42","message":"hi"}`)

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
	})
})
