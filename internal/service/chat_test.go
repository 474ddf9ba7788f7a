package service_test

import (
	"context"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"ilumina.app/assistant/common/id"
	"ilumina.app/assistant/common/llm"
	"ilumina.app/assistant/internal/brain"
	"ilumina.app/assistant/internal/model"
	"ilumina.app/assistant/internal/platform"
	"ilumina.app/assistant/internal/service"
)

var _ = Describe("ChatService", func() {
	var (
		ctx              context.Context
		sessions         *mockSessionService
		runner           *mockRunner
		classifierOracle *mockLLM
		continuityOracle *mockLLM
		checklistOracle  *mockLLM
		svc              service.ChatService
	)

	input := func(message string) service.TurnInput {
		return service.TurnInput{
			SubmissionID: "sub-42",
			Section:      model.SectionActorSummary,
			ProjectName:  "TokenVault",
			CurrentStep:  model.StepAnalyzeActors,
			Message:      message,
		}
	}

	classifyAs := func(step model.Step, action model.ActionKind, confidence float64, actionable bool, reply string) {
		payload, err := json.Marshal(map[string]any{
			"step":         step,
			"action":       action,
			"confidence":   confidence,
			"explanation":  "scripted",
			"isActionable": actionable,
			"reply":        reply,
		})
		Expect(err).NotTo(HaveOccurred())
		classifierOracle.completeFn = respondWith(string(payload))
	}

	pendingHistory := func() []model.ChatMessage {
		return []model.ChatMessage{
			{ID: 1, Role: model.RoleUser, Content: "Remove the admin actor from the summary"},
			{ID: 2, Role: model.RoleAssistant, Content: "checklist", Classification: &model.Classification{
				Step:              model.StepAnalyzeActors,
				Action:            model.ActionUpdate,
				Confidence:        0.9,
				IsActionable:      true,
				NeedsConfirmation: true,
			}},
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		sessions = &mockSessionService{}
		runner = &mockRunner{}
		classifierOracle = &mockLLM{}
		continuityOracle = &mockLLM{}
		checklistOracle = &mockLLM{}

		err := id.Init(1)
		Expect(err).NotTo(HaveOccurred())

		svc = service.NewChatService(
			sessions,
			brain.NewClassifier(classifierOracle, 1024),
			brain.NewContinuityClassifier(continuityOracle),
			brain.NewSummarizer(checklistOracle, 512),
			runner,
		)
	})

	Describe("HandleTurn", func() {
		Context("when the user asks for a significant change", func() {
			It("should answer with a checklist and hold the action", func() {
				classifyAs(model.StepAnalyzeActors, model.ActionUpdate, 0.9, true, "You want the admin actor removed.")
				checklistOracle.completeFn = respondWith(brain.ChecklistTitle +
					"\n- Remove the admin actor from the summary\n\nShall I go ahead with these changes?")

				result, err := svc.HandleTurn(ctx, input("Remove the admin actor from the summary"))

				Expect(err).NotTo(HaveOccurred())
				Expect(result.Reply).To(ContainSubstring(brain.ChecklistTitle))
				Expect(result.Reply).To(ContainSubstring("- Remove the admin actor from the summary"))
				Expect(result.Reply).To(ContainSubstring("Shall I go ahead with these changes?"))
				Expect(result.Classification.NeedsConfirmation).To(BeTrue())
				Expect(result.Classification.ActionTaken).To(BeFalse())
				Expect(runner.runCalls).To(BeZero())
			})

			It("should keep the oracle's reply when it already is a checklist", func() {
				classifyAs(model.StepAnalyzeActors, model.ActionUpdate, 0.9, true,
					brain.ChecklistTitle+"\n- Remove the admin actor\n\nShall I go ahead with these changes?")

				result, err := svc.HandleTurn(ctx, input("Remove the admin actor from the summary"))

				Expect(err).NotTo(HaveOccurred())
				Expect(result.Reply).To(ContainSubstring(brain.ChecklistTitle))
				Expect(checklistOracle.completeCalls).To(BeZero())
			})

			It("should persist the turn with the held classification", func() {
				classifyAs(model.StepAnalyzeActors, model.ActionUpdate, 0.9, true, "Understood.")

				_, err := svc.HandleTurn(ctx, input("Remove the admin actor from the summary"))

				Expect(err).NotTo(HaveOccurred())
				Expect(sessions.appendTurnCalls).To(Equal(1))
				Expect(sessions.lastUserMsg.Role).To(Equal(model.RoleUser))
				Expect(sessions.lastUserMsg.Content).To(Equal("Remove the admin actor from the summary"))
				Expect(sessions.lastUserMsg.ID).NotTo(BeZero())
				Expect(sessions.lastAssistantMsg.Role).To(Equal(model.RoleAssistant))
				Expect(sessions.lastAssistantMsg.Classification).NotTo(BeNil())
				Expect(sessions.lastAssistantMsg.Classification.NeedsConfirmation).To(BeTrue())
			})
		})

		Context("when the user confirms a pending action", func() {
			BeforeEach(func() {
				sessions.historyFn = func(_ context.Context, _ int64) ([]model.ChatMessage, error) {
					return pendingHistory(), nil
				}
				continuityOracle.completeFn = respondWith(`{"type":"continue_conversation","confidence":0.9,"explanation":"same topic"}`)
				classifyAs(model.StepAnalyzeActors, model.ActionUpdate, 0.9, true, "Starting now.")
			})

			It("should execute the held action against the platform", func() {
				result, err := svc.HandleTurn(ctx, input("yes, go ahead"))

				Expect(err).NotTo(HaveOccurred())
				Expect(runner.runCalls).To(Equal(1))
				Expect(runner.lastRequest.SubmissionID).To(Equal("sub-42"))
				Expect(runner.lastRequest.Step).To(Equal(model.StepAnalyzeActors))
				Expect(runner.lastRequest.Action).To(Equal(model.ActionUpdate))
				Expect(runner.lastRequest.Instruction).To(Equal("Remove the admin actor from the summary"))
				Expect(result.Classification.ActionTaken).To(BeTrue())
				Expect(result.Classification.NeedsConfirmation).To(BeFalse())
				Expect(result.Reply).To(ContainSubstring("I've started the actor analysis"))
			})

			It("should report a platform failure without claiming success", func() {
				runner.runFn = func(_ context.Context, _ platform.RunRequest) (*platform.RunResult, error) {
					return nil, errors.New("upstream 500")
				}

				result, err := svc.HandleTurn(ctx, input("yes"))

				Expect(err).NotTo(HaveOccurred())
				Expect(result.Reply).To(ContainSubstring("I couldn't start that run"))
				Expect(result.Reply).To(ContainSubstring("Nothing has been changed"))
				Expect(result.Classification.ActionTaken).To(BeFalse())
				Expect(result.Classification.NeedsConfirmation).To(BeFalse())
			})

			It("should surface the plan limit message verbatim", func() {
				runner.runFn = func(_ context.Context, _ platform.RunRequest) (*platform.RunResult, error) {
					return nil, platform.ErrPlanLimit
				}

				result, err := svc.HandleTurn(ctx, input("yes"))

				Expect(err).NotTo(HaveOccurred())
				Expect(result.Reply).To(Equal("You've reached your plan's analysis limit. Upgrade your plan to run more analyses, or wait for your quota to reset."))
				Expect(result.Classification.ActionTaken).To(BeFalse())
			})
		})

		Context("when the user cancels a pending action", func() {
			BeforeEach(func() {
				sessions.historyFn = func(_ context.Context, _ int64) ([]model.ChatMessage, error) {
					return pendingHistory(), nil
				}
				continuityOracle.completeFn = respondWith(`{"type":"continue_conversation","confidence":0.9,"explanation":"same topic"}`)
				classifyAs(model.StepAnalyzeActors, model.ActionUpdate, 0.9, true, "Understood.")
			})

			It("should drop the action and acknowledge", func() {
				result, err := svc.HandleTurn(ctx, input("no, hold off"))

				Expect(err).NotTo(HaveOccurred())
				Expect(runner.runCalls).To(BeZero())
				Expect(result.Reply).To(ContainSubstring("I won't make those changes"))
				Expect(result.Classification.NeedsConfirmation).To(BeFalse())
				Expect(result.Classification.ActionTaken).To(BeFalse())
			})
		})

		Context("when a second actionable request arrives before confirmation", func() {
			It("should replace the pending action with a new checklist", func() {
				sessions.historyFn = func(_ context.Context, _ int64) ([]model.ChatMessage, error) {
					return pendingHistory(), nil
				}
				continuityOracle.completeFn = respondWith(`{"type":"continue_conversation","confidence":0.9,"explanation":"same topic"}`)
				classifyAs(model.StepAnalyzeActors, model.ActionUpdate, 0.9, true, "You want treasury renamed instead.")
				checklistOracle.completeFn = respondWith(brain.ChecklistTitle +
					"\n- Remove the admin actor from the summary\n- Rename treasury to vault\n\nShall I go ahead with these changes?")

				result, err := svc.HandleTurn(ctx, input("actually also rename treasury to vault"))

				Expect(err).NotTo(HaveOccurred())
				Expect(runner.runCalls).To(BeZero())
				Expect(result.Classification.NeedsConfirmation).To(BeTrue())
				Expect(result.Reply).To(ContainSubstring("Rename treasury to vault"))
			})
		})

		Context("when the user asks a question", func() {
			It("should answer without any confirmation framing", func() {
				classifyAs(model.StepAnalyzeActors, model.ActionClarify, 0.9, false, "The summary lists three actors.")

				result, err := svc.HandleTurn(ctx, input("What does the actor summary show?"))

				Expect(err).NotTo(HaveOccurred())
				Expect(result.Reply).To(Equal("The summary lists three actors."))
				Expect(result.Classification.NeedsConfirmation).To(BeFalse())
				Expect(result.Classification.ActionTaken).To(BeFalse())
				Expect(runner.runCalls).To(BeZero())
			})

			It("should flatten a checklist-shaped answer into prose", func() {
				classifyAs(model.StepAnalyzeActors, model.ActionClarify, 0.9, false,
					brain.ChecklistTitle+"\n- Remove the admin actor\n\nShall I go ahead with these changes?")

				result, err := svc.HandleTurn(ctx, input("What have I asked for so far?"))

				Expect(err).NotTo(HaveOccurred())
				Expect(result.Reply).To(Equal("Based on this conversation, you've asked to remove the admin actor."))
				Expect(result.Reply).NotTo(ContainSubstring("Shall I go ahead"))
			})
		})

		Context("when the topic changes mid-thread", func() {
			It("should start a fresh conversation and classify without old context", func() {
				sessions.historyFn = func(_ context.Context, _ int64) ([]model.ChatMessage, error) {
					return pendingHistory(), nil
				}
				continuityOracle.completeFn = respondWith(`{"type":"new_conversation","confidence":0.9,"explanation":"unrelated"}`)
				classifyAs(model.StepAnalyzeDeployment, model.ActionClarify, 0.9, false, "Deployment runs in two stages.")

				result, err := svc.HandleTurn(ctx, input("How does the deployment work?"))

				Expect(err).NotTo(HaveOccurred())
				Expect(sessions.startNewCalls).To(Equal(1))
				Expect(result.ConversationID).To(Equal(int64(2002)))
				Expect(classifierOracle.lastRequest.Prompt).NotTo(ContainSubstring("Remove the admin actor"))
				Expect(runner.runCalls).To(BeZero())
			})

			It("should not start anything for the first message of a thread", func() {
				classifyAs(model.StepUnknown, model.ActionClarify, 0.9, false, "Hello! Ask me about your analysis.")

				result, err := svc.HandleTurn(ctx, input("hi"))

				Expect(err).NotTo(HaveOccurred())
				Expect(sessions.startNewCalls).To(BeZero())
				Expect(result.ConversationID).To(Equal(int64(1001)))
				Expect(continuityOracle.completeCalls).To(BeZero())
			})
		})

		Context("when the classifier oracle is unavailable", func() {
			It("should degrade to an informational reply", func() {
				classifierOracle.completeFn = func(_ context.Context, _ llm.Request) (*llm.Response, error) {
					return nil, errors.New("oracle down")
				}

				result, err := svc.HandleTurn(ctx, input("Remove the admin actor"))

				Expect(err).NotTo(HaveOccurred())
				Expect(result.Reply).To(Equal("Sorry, I couldn't process that just now. Please try again."))
				Expect(result.Classification.IsActionable).To(BeFalse())
				Expect(result.Classification.NeedsConfirmation).To(BeFalse())
				Expect(runner.runCalls).To(BeZero())
			})
		})

		Context("when the message is empty", func() {
			It("should reject the turn without touching storage", func() {
				_, err := svc.HandleTurn(ctx, input("   "))

				Expect(err).To(HaveOccurred())
				Expect(sessions.appendTurnCalls).To(BeZero())
			})
		})

		Context("when persistence fails", func() {
			It("should return the error", func() {
				classifyAs(model.StepAnalyzeActors, model.ActionClarify, 0.9, false, "Three actors.")
				sessions.appendTurnFn = func(_ context.Context, _, _ *model.ChatMessage) error {
					return errors.New("connection refused")
				}

				_, err := svc.HandleTurn(ctx, input("What does the summary show?"))

				Expect(err).To(HaveOccurred())
			})
		})

		Context("across every outcome", func() {
			It("should never report confirmation pending and action taken together", func() {
				runs := []func() (*service.TurnResult, error){
					func() (*service.TurnResult, error) {
						classifyAs(model.StepAnalyzeActors, model.ActionUpdate, 0.9, true, "Understood.")
						return svc.HandleTurn(ctx, input("Remove the admin actor"))
					},
					func() (*service.TurnResult, error) {
						sessions.historyFn = func(_ context.Context, _ int64) ([]model.ChatMessage, error) {
							return pendingHistory(), nil
						}
						continuityOracle.completeFn = respondWith(`{"type":"continue_conversation","confidence":0.9,"explanation":"x"}`)
						classifyAs(model.StepAnalyzeActors, model.ActionUpdate, 0.9, true, "Starting.")
						return svc.HandleTurn(ctx, input("yes"))
					},
				}

				for _, run := range runs {
					result, err := run()
					Expect(err).NotTo(HaveOccurred())
					Expect(result.Classification.NeedsConfirmation && result.Classification.ActionTaken).To(BeFalse())
				}
			})
		})
	})
})
