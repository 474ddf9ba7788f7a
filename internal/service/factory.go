package service

import (
	"ilumina.app/assistant/common/llm"
	"ilumina.app/assistant/core/config"
	"ilumina.app/assistant/internal/brain"
	"ilumina.app/assistant/internal/platform"
	"ilumina.app/assistant/internal/queue"
	"ilumina.app/assistant/internal/store"
)

// ServicesConfig carries everything the service layer is wired from.
// The LLM clients arrive pre-built so boot fails fast on bad oracle
// config instead of at first use.
type ServicesConfig struct {
	Stores        *store.Stores
	TxRunner      TxRunner
	ClassifierLLM llm.Client
	ChecklistLLM  llm.Client
	Config        config.Config
	Runner        platform.Runner
	EventProducer queue.Producer
}

type Services struct {
	cfg ServicesConfig
}

func NewServices(cfg ServicesConfig) *Services {
	return &Services{cfg: cfg}
}

func (s *Services) Sessions() SessionService {
	return NewSessionService(s.cfg.Stores, s.cfg.TxRunner)
}

func (s *Services) Chat() ChatService {
	return NewChatService(
		s.Sessions(),
		brain.NewClassifier(s.cfg.ClassifierLLM, s.cfg.Config.ClassifierLLM.MaxTokens),
		brain.NewContinuityClassifier(s.cfg.ClassifierLLM),
		brain.NewSummarizer(s.cfg.ChecklistLLM, s.cfg.Config.ChecklistLLM.MaxTokens),
		s.cfg.Runner,
	)
}

func (s *Services) AnalysisEvents() EventIngestService {
	return NewEventIngestService(s.cfg.EventProducer, nil)
}

func (s *Services) Notifications() NotificationService {
	return NewNotificationService(s.Sessions())
}
