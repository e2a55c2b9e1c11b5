package repo

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/tbourn/go-debate-backend/internal/domain"
)

func responseSchema() []any {
	return []any{&domain.Debate{}, &domain.Round{}, &domain.Response{}}
}

func seedResponse(t *testing.T, db *gorm.DB, roundID, modelID string, order int) *domain.Response {
	t.Helper()
	r, err := CreateResponse(context.Background(), db, &domain.Response{
		RoundID:       roundID,
		ModelID:       modelID,
		DisplayName:   modelID,
		Content:       "argument by " + modelID,
		ResponseOrder: order,
	})
	if err != nil {
		t.Fatalf("seed response: %v", err)
	}
	return r
}

func TestCreateResponse_OrderConflict(t *testing.T) {
	db := newTestDB(t, responseSchema()...)
	d := seedDebate(t, db, "u1")
	r := seedRound(t, db, d.ID, 1)

	seedResponse(t, db, r.ID, "gpt-4o", 1)
	_, err := CreateResponse(context.Background(), db, &domain.Response{
		RoundID: r.ID, ModelID: "grok-3", DisplayName: "Grok 3", Content: "x", ResponseOrder: 1,
	})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate on order collision, got %v", err)
	}
}

func TestListResponses_OrderedByResponseOrder(t *testing.T) {
	db := newTestDB(t, responseSchema()...)
	d := seedDebate(t, db, "u1")
	r := seedRound(t, db, d.ID, 1)

	seedResponse(t, db, r.ID, "grok-3", 2)
	seedResponse(t, db, r.ID, "gpt-4o", 1)

	out, err := ListResponses(context.Background(), db, r.ID)
	if err != nil || len(out) != 2 {
		t.Fatalf("list: %v len=%d", err, len(out))
	}
	if out[0].ModelID != "gpt-4o" || out[1].ModelID != "grok-3" {
		t.Fatalf("ordering broken: %+v", out)
	}
}

func TestListResponsesForDebate_AcrossRounds(t *testing.T) {
	db := newTestDB(t, responseSchema()...)
	d := seedDebate(t, db, "u1")
	r1 := seedRound(t, db, d.ID, 1)
	r2 := seedRound(t, db, d.ID, 2)

	// insert out of round order to prove the JOIN sorts by round first
	seedResponse(t, db, r2.ID, "gpt-4o", 1)
	seedResponse(t, db, r1.ID, "gpt-4o", 1)
	seedResponse(t, db, r1.ID, "grok-3", 2)

	// noise from another debate
	other := seedDebate(t, db, "u1")
	ro := seedRound(t, db, other.ID, 1)
	seedResponse(t, db, ro.ID, "gpt-4o", 1)

	out, err := ListResponsesForDebate(context.Background(), db, d.ID)
	if err != nil || len(out) != 3 {
		t.Fatalf("list for debate: %v len=%d", err, len(out))
	}
	if out[0].RoundID != r1.ID || out[1].RoundID != r1.ID || out[2].RoundID != r2.ID {
		t.Fatalf("round ordering broken: %+v", out)
	}
	if out[0].ResponseOrder != 1 || out[1].ResponseOrder != 2 {
		t.Fatalf("within-round ordering broken: %+v", out)
	}
}

func TestUpdateResponseScore(t *testing.T) {
	db := newTestDB(t, responseSchema()...)
	d := seedDebate(t, db, "u1")
	r := seedRound(t, db, d.ID, 1)
	resp := seedResponse(t, db, r.ID, "gpt-4o", 1)
	ctx := context.Background()

	if err := UpdateResponseScore(ctx, db, resp.ID, 8.5, "rigorous"); err != nil {
		t.Fatalf("update score: %v", err)
	}
	out, _ := ListResponses(ctx, db, r.ID)
	if out[0].Score == nil || *out[0].Score != 8.5 || out[0].ScoreRationale == nil || *out[0].ScoreRationale != "rigorous" {
		t.Fatalf("score not stored: %+v", out[0])
	}

	if err := UpdateResponseScore(ctx, db, "missing", 1, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
