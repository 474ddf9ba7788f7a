package service_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"ilumina.app/assistant/common/id"
	"ilumina.app/assistant/internal/model"
	"ilumina.app/assistant/internal/service"
	"ilumina.app/assistant/internal/store"
)

var _ = Describe("SessionService", func() {
	var (
		ctx      context.Context
		convs    *mockConversationStore
		messages *mockMessageStore
		svc      service.SessionService
	)

	const submission = "sub-42"

	BeforeEach(func() {
		ctx = context.Background()
		convs = &mockConversationStore{}
		messages = &mockMessageStore{}

		err := id.Init(1)
		Expect(err).NotTo(HaveOccurred())

		stores := &store.Stores{Conversation: convs, Message: messages}
		svc = service.NewSessionService(stores, &mockTxRunner{stores: stores})
	})

	Describe("Resolve", func() {
		Context("with an explicit conversation id", func() {
			It("should return the conversation when it belongs to the submission", func() {
				existing := &model.Conversation{ID: 7, SubmissionID: submission, Section: model.SectionActorSummary}
				convs.getByIDFn = func(_ context.Context, convID int64) (*model.Conversation, error) {
					Expect(convID).To(Equal(int64(7)))
					return existing, nil
				}

				explicitID := int64(7)
				conv, err := svc.Resolve(ctx, submission, model.SectionActorSummary, &explicitID)

				Expect(err).NotTo(HaveOccurred())
				Expect(conv).To(Equal(existing))
				Expect(convs.createCalls).To(BeZero())
			})

			It("should start fresh when the id belongs to another submission", func() {
				convs.getByIDFn = func(_ context.Context, _ int64) (*model.Conversation, error) {
					return &model.Conversation{ID: 7, SubmissionID: "someone-else", Section: model.SectionActorSummary}, nil
				}

				explicitID := int64(7)
				conv, err := svc.Resolve(ctx, submission, model.SectionActorSummary, &explicitID)

				Expect(err).NotTo(HaveOccurred())
				Expect(conv.SubmissionID).To(Equal(submission))
				Expect(conv.ID).NotTo(Equal(int64(7)))
				Expect(convs.createCalls).To(Equal(1))
			})

			It("should start fresh when the id does not exist", func() {
				explicitID := int64(404)
				conv, err := svc.Resolve(ctx, submission, model.SectionGeneral, &explicitID)

				Expect(err).NotTo(HaveOccurred())
				Expect(conv.SubmissionID).To(Equal(submission))
				Expect(convs.createCalls).To(Equal(1))
			})

			It("should propagate storage errors", func() {
				convs.getByIDFn = func(_ context.Context, _ int64) (*model.Conversation, error) {
					return nil, errors.New("connection refused")
				}

				explicitID := int64(7)
				_, err := svc.Resolve(ctx, submission, model.SectionGeneral, &explicitID)

				Expect(err).To(HaveOccurred())
				Expect(convs.createCalls).To(BeZero())
			})
		})

		Context("without an explicit conversation id", func() {
			It("should reuse the newest conversation for the section", func() {
				existing := &model.Conversation{ID: 9, SubmissionID: submission, Section: model.SectionActorSummary}
				convs.getLatestFn = func(_ context.Context, sub string, section model.Section) (*model.Conversation, error) {
					Expect(sub).To(Equal(submission))
					Expect(section).To(Equal(model.SectionActorSummary))
					return existing, nil
				}

				conv, err := svc.Resolve(ctx, submission, model.SectionActorSummary, nil)

				Expect(err).NotTo(HaveOccurred())
				Expect(conv).To(Equal(existing))
				Expect(convs.createCalls).To(BeZero())
			})

			It("should create a conversation when the section has none", func() {
				var created *model.Conversation
				convs.createFn = func(_ context.Context, conv *model.Conversation) error {
					created = conv
					return nil
				}

				conv, err := svc.Resolve(ctx, submission, model.SectionDeploymentInstructions, nil)

				Expect(err).NotTo(HaveOccurred())
				Expect(conv.ID).NotTo(BeZero())
				Expect(conv.Section).To(Equal(model.SectionDeploymentInstructions))
				Expect(created).To(Equal(conv))
			})
		})
	})

	Describe("StartNew", func() {
		It("should always create, leaving existing threads alone", func() {
			convs.getLatestFn = func(_ context.Context, _ string, _ model.Section) (*model.Conversation, error) {
				Fail("StartNew must not look for existing conversations")
				return nil, nil
			}

			conv, err := svc.StartNew(ctx, submission, model.SectionGeneral)

			Expect(err).NotTo(HaveOccurred())
			Expect(conv.ID).NotTo(BeZero())
			Expect(convs.createCalls).To(Equal(1))
		})

		It("should propagate create failures", func() {
			convs.createFn = func(_ context.Context, _ *model.Conversation) error {
				return errors.New("insert failed")
			}

			_, err := svc.StartNew(ctx, submission, model.SectionGeneral)

			Expect(err).To(HaveOccurred())
		})
	})

	Describe("AppendTurn", func() {
		It("should append the user message before the assistant message", func() {
			userMsg := &model.ChatMessage{ID: 1, Role: model.RoleUser, Content: "hi"}
			assistantMsg := &model.ChatMessage{ID: 2, Role: model.RoleAssistant, Content: "hello"}

			err := svc.AppendTurn(ctx, userMsg, assistantMsg)

			Expect(err).NotTo(HaveOccurred())
			Expect(messages.appended).To(HaveLen(2))
			Expect(messages.appended[0]).To(Equal(userMsg))
			Expect(messages.appended[1]).To(Equal(assistantMsg))
		})

		It("should stop after a failed user append", func() {
			messages.appendFn = func(_ context.Context, msg *model.ChatMessage) error {
				if msg.Role == model.RoleUser {
					return errors.New("insert failed")
				}
				return nil
			}

			err := svc.AppendTurn(ctx,
				&model.ChatMessage{Role: model.RoleUser},
				&model.ChatMessage{Role: model.RoleAssistant})

			Expect(err).To(HaveOccurred())
			Expect(messages.appendCalls).To(Equal(1))
		})
	})

	Describe("History", func() {
		It("should return messages oldest first as stored", func() {
			stored := []model.ChatMessage{
				{ID: 1, Role: model.RoleUser, Content: "first"},
				{ID: 2, Role: model.RoleAssistant, Content: "second"},
			}
			messages.listByConversationFn = func(_ context.Context, convID int64) ([]model.ChatMessage, error) {
				Expect(convID).To(Equal(int64(5)))
				return stored, nil
			}

			history, err := svc.History(ctx, 5)

			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(Equal(stored))
		})
	})
})
