package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-debate-backend/internal/domain"
	"github.com/tbourn/go-debate-backend/internal/llm"
)

// newServiceDB opens a fresh in-memory database with the full schema.
func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&domain.Debate{}, &domain.Round{}, &domain.Response{}, &domain.Vote{},
		&domain.DebateResult{}, &domain.ModelStat{}, &domain.UserAPIKey{}, &domain.Idempotency{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// fakeLLM is a scripted LLMClient. Each model id may have a responder; models
// without one answer with a deterministic placeholder. Prompts are captured
// for assertions. Safe for the concurrent fan-outs the services run.
type fakeLLM struct {
	mu      sync.Mutex
	respond map[string]func(prompt string) (string, error)
	prompts map[string][]string
}

func newFakeLLM() *fakeLLM {
	return &fakeLLM{
		respond: map[string]func(string) (string, error){},
		prompts: map[string][]string{},
	}
}

func (f *fakeLLM) on(modelID string, fn func(prompt string) (string, error)) {
	f.mu.Lock()
	f.respond[modelID] = fn
	f.mu.Unlock()
}

func (f *fakeLLM) reply(modelID, text string) {
	f.on(modelID, func(string) (string, error) { return text, nil })
}

func (f *fakeLLM) fail(modelID string, err error) {
	f.on(modelID, func(string) (string, error) { return "", err })
}

func (f *fakeLLM) promptsFor(modelID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts[modelID]...)
}

func (f *fakeLLM) Invoke(_ context.Context, modelID string, msgs []llm.Message, _ int, _ *llm.Credential) (*llm.Result, error) {
	var prompt string
	if len(msgs) > 0 {
		prompt = msgs[len(msgs)-1].Content
	}
	f.mu.Lock()
	f.prompts[modelID] = append(f.prompts[modelID], prompt)
	fn := f.respond[modelID]
	f.mu.Unlock()

	if fn == nil {
		return &llm.Result{Text: "argument from " + modelID, PromptTokens: 10, CompletionTokens: 5}, nil
	}
	text, err := fn(prompt)
	if err != nil {
		return nil, err
	}
	return &llm.Result{Text: text, PromptTokens: 10, CompletionTokens: 5, EstimatedCostUSD: 0.001}, nil
}

func (f *fakeLLM) Stream(ctx context.Context, modelID string, msgs []llm.Message, maxTokens int, cred *llm.Credential, cb llm.Callbacks) error {
	res, err := f.Invoke(ctx, modelID, msgs, maxTokens, cred)
	if err != nil {
		if cb.OnError != nil {
			cb.OnError(err)
		}
		return nil
	}
	if cb.OnToken != nil {
		half := len(res.Text) / 2
		cb.OnToken(res.Text[:half])
		cb.OnToken(res.Text[half:])
	}
	if cb.OnComplete != nil {
		cb.OnComplete(res)
	}
	return nil
}

func (f *fakeLLM) Catalog() llm.Catalog { return llm.DefaultCatalog() }

// createDebate seeds an active debate through the service layer.
func createDebate(t *testing.T, db *gorm.DB, userID string, p CreateDebateParams) *domain.Debate {
	t.Helper()
	svc := NewDebateService(db, llm.DefaultCatalog())
	d, err := svc.Create(context.Background(), userID, p)
	if err != nil {
		t.Fatalf("create debate: %v", err)
	}
	return d
}

func defaultParams() CreateDebateParams {
	return CreateDebateParams{
		Question:          "Should remote work be the default?",
		ParticipantModels: []string{"gpt-4o", "grok-3", "claude-sonnet-4"},
		ModeratorModel:    "gpt-4.1",
		VotingEnabled:     true,
	}
}

func newRoundService(db *gorm.DB, client *fakeLLM) *RoundService {
	return &RoundService{
		DB:             db,
		LLM:            client,
		DocBudget:      1000,
		MaxTokens:      512,
		AnalyticsModel: "gpt-4o-mini",
	}
}

func newResultService(db *gorm.DB, client *fakeLLM) *ResultService {
	return &ResultService{DB: db, LLM: client, DocBudget: 1000, MaxTokens: 512}
}

// runRound drives one full round: create, generate, vote, synthesize.
func runRound(t *testing.T, svc *RoundService, userID, debateID, followUp string) *domain.Round {
	t.Helper()
	ctx := context.Background()
	r, err := svc.StartRound(ctx, userID, debateID, followUp)
	if err != nil {
		t.Fatalf("start round: %v", err)
	}
	if _, err := svc.GenerateResponses(ctx, userID, debateID, r.ID, false); err != nil {
		t.Fatalf("generate responses: %v", err)
	}
	if _, err := svc.CollectVotes(ctx, userID, debateID, r.ID, false); err != nil {
		t.Fatalf("collect votes: %v", err)
	}
	out, err := svc.Synthesize(ctx, userID, debateID, r.ID, false)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	return out
}
