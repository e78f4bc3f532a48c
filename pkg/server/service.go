package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mikeboe/deep-research/pkg/database"
	"github.com/mikeboe/deep-research/pkg/research"
)

// EngineFactory builds a fresh research engine for one session. The server
// wires the real LLM collaborators in main; tests inject fakes here.
type EngineFactory func(cfg research.Config) *research.Engine

type Service struct {
	DB        *database.PostgresDB
	Cfg       research.Config
	NewEngine EngineFactory

	broker *eventBroker
}

func NewService(db *database.PostgresDB, cfg research.Config, factory EngineFactory) *Service {
	return &Service{
		DB:        db,
		Cfg:       cfg,
		NewEngine: factory,
		broker:    newEventBroker(),
	}
}

type Session struct {
	ID           uuid.UUID       `json:"id"`
	Question     string          `json:"question"`
	Status       string          `json:"status"`
	MaxLoops     int             `json:"max_loops"`
	UseDocuments bool            `json:"use_documents"`
	State        json.RawMessage `json:"state,omitempty"`
	Answer       *string         `json:"answer,omitempty"`
	Citations    json.RawMessage `json:"citations,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type CreateSessionRequest struct {
	Question     string `json:"question" binding:"required"`
	MaxLoops     int    `json:"max_loops"`
	UseDocuments bool   `json:"use_documents"`
}

// CreateSession persists a pending session and starts its background worker.
func (s *Service) CreateSession(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	cfg := s.Cfg
	if req.MaxLoops > 0 {
		cfg.MaxLoops = req.MaxLoops
	}
	cfg.UseDocuments = req.UseDocuments

	sessionID := uuid.New()
	query := `
		INSERT INTO research_sessions (id, question, status, max_loops, use_documents)
		VALUES ($1, $2, 'pending', $3, $4)
		RETURNING id, question, status, max_loops, use_documents, created_at, updated_at
	`

	session := &Session{}
	err := s.DB.Pool.QueryRow(ctx, query, sessionID, req.Question, cfg.MaxLoops, cfg.UseDocuments).Scan(
		&session.ID, &session.Question, &session.Status, &session.MaxLoops, &session.UseDocuments,
		&session.CreatedAt, &session.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	// Start background worker
	go s.runWorker(session.ID, req.Question, cfg)

	return session, nil
}

func (s *Service) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	query := `
		SELECT id, question, status, max_loops, use_documents, state, answer, citations, created_at, updated_at
		FROM research_sessions
		WHERE id = $1
	`
	session := &Session{}
	err := s.DB.Pool.QueryRow(ctx, query, id).Scan(
		&session.ID, &session.Question, &session.Status, &session.MaxLoops, &session.UseDocuments,
		&session.State, &session.Answer, &session.Citations, &session.CreatedAt, &session.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

func (s *Service) ListSessions(ctx context.Context) ([]Session, error) {
	query := `
		SELECT id, question, status, max_loops, use_documents, state, answer, citations, created_at, updated_at
		FROM research_sessions
		ORDER BY created_at DESC
		LIMIT 50
	`
	rows, err := s.DB.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var session Session
		if err := rows.Scan(&session.ID, &session.Question, &session.Status, &session.MaxLoops, &session.UseDocuments,
			&session.State, &session.Answer, &session.Citations, &session.CreatedAt, &session.UpdatedAt); err != nil {
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

type LogEntry struct {
	ID        int             `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
}

func (s *Service) GetSessionLogs(ctx context.Context, sessionID uuid.UUID) ([]LogEntry, error) {
	query := `
		SELECT id, timestamp, level, message, metadata
		FROM research_logs
		WHERE session_id = $1
		ORDER BY id ASC
	`
	rows, err := s.DB.Pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}
	defer rows.Close()

	var logs []LogEntry
	for rows.Next() {
		var l LogEntry
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Message, &l.Metadata); err != nil {
			continue
		}
		logs = append(logs, l)
	}
	return logs, nil
}

// Subscribe attaches a listener to a running session's progress events.
func (s *Service) Subscribe(sessionID uuid.UUID) (<-chan research.Event, func()) {
	return s.broker.Subscribe(sessionID)
}

func (s *Service) runWorker(sessionID uuid.UUID, question string, cfg research.Config) {
	ctx := context.Background()
	defer s.broker.Close(sessionID)

	_, _ = s.DB.Pool.Exec(ctx, "UPDATE research_sessions SET status = 'running', updated_at = NOW() WHERE id = $1", sessionID)

	engine := s.NewEngine(cfg)
	engine.SetLogger(slog.New(NewDBLogHandler(s.DB, sessionID)))

	// Persist a state snapshot and fan the event out on every transition.
	engine.OnEvent = func(event research.Event) {
		snapshot := engine.Snapshot()
		if stateJSON, err := json.Marshal(snapshot); err == nil {
			_, _ = s.DB.Pool.Exec(context.Background(),
				"UPDATE research_sessions SET state = $2, updated_at = NOW() WHERE id = $1",
				sessionID, stateJSON)
		}
		s.broker.Publish(sessionID, event)
	}

	answer, err := engine.Run(ctx, question)
	if err != nil {
		s.failSession(ctx, sessionID, fmt.Sprintf("Research failed: %v", err))
		return
	}

	citationsJSON, err := json.Marshal(answer.Citations)
	if err != nil {
		citationsJSON = []byte("[]")
	}

	_, err = s.DB.Pool.Exec(ctx,
		"UPDATE research_sessions SET status = 'completed', answer = $2, citations = $3, updated_at = NOW() WHERE id = $1",
		sessionID, answer.Text, citationsJSON)
	if err != nil {
		engine.Logger.Error("Failed to save final answer", "error", err)
	}
}

func (s *Service) failSession(ctx context.Context, sessionID uuid.UUID, reason string) {
	dbLogger := slog.New(NewDBLogHandler(s.DB, sessionID))
	dbLogger.Error(reason)

	_, _ = s.DB.Pool.Exec(ctx, "UPDATE research_sessions SET status = 'failed', updated_at = NOW() WHERE id = $1", sessionID)
}
