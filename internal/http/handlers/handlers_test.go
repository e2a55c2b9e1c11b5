package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-debate-backend/internal/domain"
	"github.com/tbourn/go-debate-backend/internal/llm"
	"github.com/tbourn/go-debate-backend/internal/services"
)

//
// Scriptable service fakes. Nil function fields mean "return zero values".
//

type fakeDebateSvc struct {
	create      func(userID string, p services.CreateDebateParams) (*domain.Debate, error)
	get         func(userID, debateID string) (*domain.Debate, error)
	listPage    func(userID string, page, pageSize int) ([]domain.Debate, int64, error)
	updateTitle func(userID, debateID, title string) error
	archive     func(userID, debateID string) error
}

func (f *fakeDebateSvc) Create(_ context.Context, userID string, p services.CreateDebateParams) (*domain.Debate, error) {
	if f.create == nil {
		return &domain.Debate{}, nil
	}
	return f.create(userID, p)
}

func (f *fakeDebateSvc) Get(_ context.Context, userID, debateID string) (*domain.Debate, error) {
	if f.get == nil {
		return &domain.Debate{}, nil
	}
	return f.get(userID, debateID)
}

func (f *fakeDebateSvc) ListPage(_ context.Context, userID string, page, pageSize int) ([]domain.Debate, int64, error) {
	if f.listPage == nil {
		return nil, 0, nil
	}
	return f.listPage(userID, page, pageSize)
}

func (f *fakeDebateSvc) UpdateTitle(_ context.Context, userID, debateID, title string) error {
	if f.updateTitle == nil {
		return nil
	}
	return f.updateTitle(userID, debateID, title)
}

func (f *fakeDebateSvc) Archive(_ context.Context, userID, debateID string) error {
	if f.archive == nil {
		return nil
	}
	return f.archive(userID, debateID)
}

type fakeRoundSvc struct {
	startRound func(userID, debateID, followUp string) (*domain.Round, error)
	listRounds func(userID, debateID string) ([]domain.Round, error)
	getRound   func(userID, debateID, roundID string) (*domain.Round, []domain.Response, []domain.Vote, error)
	generate   func(userID, debateID, roundID string, useCallerKey bool) ([]domain.Response, error)
	stream     func(userID, debateID, roundID, modelID string, order int, useCallerKey bool, ev services.StreamEvents) error
	votes      func(userID, debateID, roundID string, useCallerKey bool) ([]domain.Vote, error)
	synthesize func(userID, debateID, roundID string, useCallerKey bool) (*domain.Round, error)
	complete   func(userID, debateID, roundID string) (*domain.Round, error)
	score      func(userID, debateID, roundID string, useCallerKey bool) error
}

func (f *fakeRoundSvc) StartRound(_ context.Context, userID, debateID, followUp string) (*domain.Round, error) {
	if f.startRound == nil {
		return &domain.Round{}, nil
	}
	return f.startRound(userID, debateID, followUp)
}

func (f *fakeRoundSvc) ListRounds(_ context.Context, userID, debateID string) ([]domain.Round, error) {
	if f.listRounds == nil {
		return nil, nil
	}
	return f.listRounds(userID, debateID)
}

func (f *fakeRoundSvc) GetRound(_ context.Context, userID, debateID, roundID string) (*domain.Round, []domain.Response, []domain.Vote, error) {
	if f.getRound == nil {
		return &domain.Round{}, nil, nil, nil
	}
	return f.getRound(userID, debateID, roundID)
}

func (f *fakeRoundSvc) GenerateResponses(_ context.Context, userID, debateID, roundID string, useCallerKey bool) ([]domain.Response, error) {
	if f.generate == nil {
		return nil, nil
	}
	return f.generate(userID, debateID, roundID, useCallerKey)
}

func (f *fakeRoundSvc) StreamResponse(_ context.Context, userID, debateID, roundID, modelID string, order int, useCallerKey bool, ev services.StreamEvents) error {
	if f.stream == nil {
		return nil
	}
	return f.stream(userID, debateID, roundID, modelID, order, useCallerKey, ev)
}

func (f *fakeRoundSvc) CollectVotes(_ context.Context, userID, debateID, roundID string, useCallerKey bool) ([]domain.Vote, error) {
	if f.votes == nil {
		return nil, nil
	}
	return f.votes(userID, debateID, roundID, useCallerKey)
}

func (f *fakeRoundSvc) Synthesize(_ context.Context, userID, debateID, roundID string, useCallerKey bool) (*domain.Round, error) {
	if f.synthesize == nil {
		return &domain.Round{}, nil
	}
	return f.synthesize(userID, debateID, roundID, useCallerKey)
}

func (f *fakeRoundSvc) CompleteRound(_ context.Context, userID, debateID, roundID string) (*domain.Round, error) {
	if f.complete == nil {
		return &domain.Round{}, nil
	}
	return f.complete(userID, debateID, roundID)
}

func (f *fakeRoundSvc) ScoreResponses(_ context.Context, userID, debateID, roundID string, useCallerKey bool) error {
	if f.score == nil {
		return nil
	}
	return f.score(userID, debateID, roundID, useCallerKey)
}

type fakeResultSvc struct {
	finalize func(userID, debateID string, useCallerKey bool) (*domain.DebateResult, error)
	get      func(userID, debateID string) (*domain.DebateResult, error)
	board    func(userID string) ([]domain.ModelStat, error)
	window   func(userID string, since time.Time) ([]services.LeaderboardEntry, error)
}

func (f *fakeResultSvc) Finalize(_ context.Context, userID, debateID string, useCallerKey bool) (*domain.DebateResult, error) {
	if f.finalize == nil {
		return &domain.DebateResult{}, nil
	}
	return f.finalize(userID, debateID, useCallerKey)
}

func (f *fakeResultSvc) Get(_ context.Context, userID, debateID string) (*domain.DebateResult, error) {
	if f.get == nil {
		return &domain.DebateResult{}, nil
	}
	return f.get(userID, debateID)
}

func (f *fakeResultSvc) Leaderboard(_ context.Context, userID string) ([]domain.ModelStat, error) {
	if f.board == nil {
		return nil, nil
	}
	return f.board(userID)
}

func (f *fakeResultSvc) LeaderboardWindow(_ context.Context, userID string, since time.Time) ([]services.LeaderboardEntry, error) {
	if f.window == nil {
		return nil, nil
	}
	return f.window(userID, since)
}

type fakeKeySvc struct {
	set    func(userID, provider, key string) error
	remove func(userID, provider string) error
}

func (f *fakeKeySvc) Set(_ context.Context, userID, provider, key string) error {
	if f.set == nil {
		return nil
	}
	return f.set(userID, provider, key)
}

func (f *fakeKeySvc) Delete(_ context.Context, userID, provider string) error {
	if f.remove == nil {
		return nil
	}
	return f.remove(userID, provider)
}

// testRouter mounts every handler on the production paths (without the API
// base prefix) against the given fakes.
func testRouter(debate DebateService, round RoundService, result ResultService, keys APIKeyService, catalog llm.Catalog) *gin.Engine {
	gin.SetMode(gin.TestMode)
	if debate == nil {
		debate = &fakeDebateSvc{}
	}
	if round == nil {
		round = &fakeRoundSvc{}
	}
	if result == nil {
		result = &fakeResultSvc{}
	}
	if keys == nil {
		keys = &fakeKeySvc{}
	}
	h := New(debate, round, result, keys, catalog)

	r := gin.New()
	r.POST("/debates", h.CreateDebate)
	r.GET("/debates", h.ListDebates)
	r.GET("/debates/:id", h.GetDebate)
	r.PUT("/debates/:id/title", h.UpdateDebateTitle)
	r.DELETE("/debates/:id", h.ArchiveDebate)
	r.GET("/models", h.ListModels)
	r.POST("/debates/:id/rounds", h.StartRound)
	r.GET("/debates/:id/rounds", h.ListRounds)
	r.GET("/debates/:id/rounds/:rid", h.GetRound)
	r.POST("/debates/:id/rounds/:rid/responses", h.GenerateResponses)
	r.GET("/debates/:id/rounds/:rid/stream", h.StreamResponse)
	r.POST("/debates/:id/rounds/:rid/votes", h.CollectVotes)
	r.POST("/debates/:id/rounds/:rid/synthesis", h.Synthesize)
	r.POST("/debates/:id/rounds/:rid/complete", h.CompleteRound)
	r.POST("/debates/:id/rounds/:rid/scores", h.ScoreResponses)
	r.POST("/debates/:id/result", h.FinalizeDebate)
	r.GET("/debates/:id/result", h.GetResult)
	r.GET("/leaderboard", h.Leaderboard)
	r.PUT("/keys/:provider", h.SetAPIKey)
	r.DELETE("/keys/:provider", h.DeleteAPIKey)
	return r
}
