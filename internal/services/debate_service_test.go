package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tbourn/go-debate-backend/internal/domain"
	"github.com/tbourn/go-debate-backend/internal/llm"
)

func TestDebateService_Create_Success(t *testing.T) {
	db := newServiceDB(t)
	svc := NewDebateService(db, llm.DefaultCatalog())

	p := defaultParams()
	p.Title = "  Remote   work  "
	p.DevilsAdvocateModel = "grok-3"
	d, err := svc.Create(context.Background(), "u1", p)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if d.ID == "" {
		t.Fatalf("expected generated id")
	}
	if d.Status != domain.DebateStatusActive {
		t.Fatalf("status = %q, want active", d.Status)
	}
	if d.Title != "Remote work" {
		t.Fatalf("title = %q, want collapsed whitespace", d.Title)
	}
	if !d.DevilsAdvocateEnabled || d.DevilsAdvocateModel == nil || *d.DevilsAdvocateModel != "grok-3" {
		t.Fatalf("devil's advocate not recorded: %+v", d)
	}
	if got := Participants(d); len(got) != 3 || got[0] != "gpt-4o" || got[2] != "claude-sonnet-4" {
		t.Fatalf("Participants = %v", got)
	}
}

func TestDebateService_Create_VotingOffPersists(t *testing.T) {
	db := newServiceDB(t)
	svc := NewDebateService(db, llm.DefaultCatalog())

	p := defaultParams()
	p.VotingEnabled = false
	d, err := svc.Create(context.Background(), "u1", p)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Read the row back: the flag must survive the INSERT, not get replaced
	// by a column default.
	var stored domain.Debate
	if err := db.First(&stored, "id = ?", d.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.VotingEnabled {
		t.Fatalf("voting-off debate stored as voting-on")
	}
}

func TestDebateService_Create_TitleFallsBackToQuestion(t *testing.T) {
	db := newServiceDB(t)
	svc := NewDebateService(db, llm.DefaultCatalog())
	svc.TitleMaxLen = 10

	p := defaultParams()
	p.Title = "   "
	d, err := svc.Create(context.Background(), "u1", p)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	want := string([]rune(p.Question)[:10])
	if d.Title != want {
		t.Fatalf("title = %q, want clipped question %q", d.Title, want)
	}
	if d.Question != p.Question {
		t.Fatalf("question must not be clipped, got %q", d.Question)
	}
}

func TestDebateService_Create_Validation(t *testing.T) {
	db := newServiceDB(t)
	svc := NewDebateService(db, llm.DefaultCatalog())
	svc.MaxParticipants = 3
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*CreateDebateParams)
		want   error
	}{
		{"empty question", func(p *CreateDebateParams) { p.Question = "  \n " }, ErrEmptyQuestion},
		{"one participant", func(p *CreateDebateParams) { p.ParticipantModels = []string{"gpt-4o"} }, ErrInvalidParticipants},
		{"too many participants", func(p *CreateDebateParams) {
			p.ParticipantModels = []string{"gpt-4o", "grok-3", "claude-sonnet-4", "gpt-4o-mini"}
		}, ErrInvalidParticipants},
		{"duplicate participant", func(p *CreateDebateParams) {
			p.ParticipantModels = []string{"gpt-4o", "gpt-4o"}
		}, ErrInvalidParticipants},
		{"unknown participant", func(p *CreateDebateParams) {
			p.ParticipantModels = []string{"gpt-4o", "gpt-99"}
		}, ErrInvalidParticipants},
		{"unknown moderator", func(p *CreateDebateParams) { p.ModeratorModel = "gpt-99" }, ErrInvalidModerator},
		{"devil's advocate outside roster", func(p *CreateDebateParams) {
			p.DevilsAdvocateModel = "gemini-2.0-flash"
		}, ErrInvalidDevilsAdvocate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := defaultParams()
			tc.mutate(&p)
			if _, err := svc.Create(ctx, "u1", p); !errors.Is(err, tc.want) {
				t.Fatalf("Create = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestDebateService_Get_OwnerScoped(t *testing.T) {
	db := newServiceDB(t)
	svc := NewDebateService(db, llm.DefaultCatalog())
	d := createDebate(t, db, "u1", defaultParams())

	got, err := svc.Get(context.Background(), "u1", d.ID)
	if err != nil || got.ID != d.ID {
		t.Fatalf("Get = %+v, %v", got, err)
	}
	if _, err := svc.Get(context.Background(), "intruder", d.ID); !errors.Is(err, ErrDebateNotFound) {
		t.Fatalf("foreign Get = %v, want ErrDebateNotFound", err)
	}
}

func TestDebateService_ListPage(t *testing.T) {
	db := newServiceDB(t)
	svc := NewDebateService(db, llm.DefaultCatalog())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		createDebate(t, db, "u1", defaultParams())
	}
	createDebate(t, db, "other", defaultParams())

	items, total, err := svc.ListPage(ctx, "u1", 1, 2)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if total != 3 || len(items) != 2 {
		t.Fatalf("page 1: total=%d len=%d", total, len(items))
	}
	items, total, err = svc.ListPage(ctx, "u1", 2, 2)
	if err != nil || total != 3 || len(items) != 1 {
		t.Fatalf("page 2: total=%d len=%d err=%v", total, len(items), err)
	}

	// invalid paging falls back to defaults rather than erroring
	items, total, err = svc.ListPage(ctx, "u1", 0, -5)
	if err != nil || total != 3 || len(items) != 3 {
		t.Fatalf("defaulted page: total=%d len=%d err=%v", total, len(items), err)
	}

	items, total, err = svc.ListPage(ctx, "nobody", 1, 20)
	if err != nil || total != 0 || len(items) != 0 {
		t.Fatalf("empty user: total=%d items=%v err=%v", total, items, err)
	}
}

func TestDebateService_UpdateTitle(t *testing.T) {
	db := newServiceDB(t)
	svc := NewDebateService(db, llm.DefaultCatalog())
	ctx := context.Background()
	d := createDebate(t, db, "u1", defaultParams())

	if err := svc.UpdateTitle(ctx, "u1", d.ID, "  Fresh  title "); err != nil {
		t.Fatalf("UpdateTitle: %v", err)
	}
	got, _ := svc.Get(ctx, "u1", d.ID)
	if got.Title != "Fresh title" {
		t.Fatalf("title = %q", got.Title)
	}

	if err := svc.UpdateTitle(ctx, "u1", d.ID, "   "); err != nil {
		t.Fatalf("blank UpdateTitle: %v", err)
	}
	got, _ = svc.Get(ctx, "u1", d.ID)
	if got.Title != "Untitled" {
		t.Fatalf("blank title fallback = %q", got.Title)
	}

	if err := svc.UpdateTitle(ctx, "u1", d.ID, strings.Repeat("x", 200)); err != nil {
		t.Fatalf("long UpdateTitle: %v", err)
	}
	got, _ = svc.Get(ctx, "u1", d.ID)
	if len(got.Title) != svc.TitleMaxLen {
		t.Fatalf("clipped title len = %d, want %d", len(got.Title), svc.TitleMaxLen)
	}

	if err := svc.UpdateTitle(ctx, "intruder", d.ID, "hijack"); !errors.Is(err, ErrDebateNotFound) {
		t.Fatalf("foreign UpdateTitle = %v", err)
	}
}

func TestDebateService_Archive(t *testing.T) {
	db := newServiceDB(t)
	svc := NewDebateService(db, llm.DefaultCatalog())
	ctx := context.Background()
	d := createDebate(t, db, "u1", defaultParams())

	if err := svc.Archive(ctx, "u1", d.ID); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	got, _ := svc.Get(ctx, "u1", d.ID)
	if got.Status != domain.DebateStatusArchived {
		t.Fatalf("status = %q, want archived", got.Status)
	}

	// archived debates reject orchestration
	rs := newRoundService(db, newFakeLLM())
	if _, err := rs.StartRound(ctx, "u1", d.ID, ""); !errors.Is(err, ErrDebateNotActive) {
		t.Fatalf("StartRound on archived = %v, want ErrDebateNotActive", err)
	}

	if err := svc.Archive(ctx, "u1", "missing"); !errors.Is(err, ErrDebateNotFound) {
		t.Fatalf("Archive missing = %v", err)
	}
}
