// Package services – DebateService
//
// This file implements the DebateService, which manages the lifecycle of
// debates. It validates participant lists against the model catalog,
// normalizes titles, enforces ownership rules, and coordinates repository
// operations for creating, listing (with pagination), and updating debates.
// A debate's question and participant roster are immutable after creation;
// only the title, tags, and lifecycle status change later.
//
// Service-level errors (e.g., ErrDebateNotFound) are returned for predictable
// cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/tbourn/go-debate-backend/internal/domain"
	"github.com/tbourn/go-debate-backend/internal/llm"
	"github.com/tbourn/go-debate-backend/internal/repo"
	"golang.org/x/text/language"
)

// participant list bounds, fixed at creation time.
const minParticipants = 2

// CreateDebateParams carries the immutable configuration of a new debate.
type CreateDebateParams struct {
	Question            string
	Title               string
	ParticipantModels   []string
	ModeratorModel      string
	DevilsAdvocateModel string
	VotingEnabled       bool
	BlindMode           bool
	AttachmentRef       string
}

// DebateService provides debate-level operations such as creating,
// listing, and updating debate metadata. It enforces catalog and
// ownership constraints.
type DebateService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Catalog validates model ids and supplies display names.
	Catalog llm.Catalog

	// MaxParticipants caps the roster size (default 20).
	MaxParticipants int
	// TitleMaxLen caps stored titles by rune length.
	TitleMaxLen int
	// TitleLocale is retained for locale-aware casing of generated titles.
	TitleLocale language.Tag
}

// NewDebateService constructs a DebateService with sane defaults.
func NewDebateService(db *gorm.DB, catalog llm.Catalog) *DebateService {
	return &DebateService{
		DB:              db,
		Catalog:         catalog,
		MaxParticipants: 20,
		TitleMaxLen:     60,
		TitleLocale:     language.Und,
	}
}

// Create validates params and inserts a new debate owned by userID.
// The title falls back to a clipped form of the question when blank.
func (s *DebateService) Create(ctx context.Context, userID string, p CreateDebateParams) (*domain.Debate, error) {
	question := strings.TrimSpace(p.Question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if err := s.validateModels(p); err != nil {
		return nil, err
	}

	title := normalizeTitle(p.Title)
	if title == "" {
		title = normalizeTitle(question)
	}

	participants, err := json.Marshal(p.ParticipantModels)
	if err != nil {
		return nil, err
	}

	d := &domain.Debate{
		UserID:            userID,
		Title:             s.clip(title),
		Question:          question,
		ParticipantModels: string(participants),
		ModeratorModel:    p.ModeratorModel,
		VotingEnabled:     p.VotingEnabled,
		BlindMode:         p.BlindMode,
	}
	if p.DevilsAdvocateModel != "" {
		da := p.DevilsAdvocateModel
		d.DevilsAdvocateModel = &da
		d.DevilsAdvocateEnabled = true
	}
	if p.AttachmentRef != "" {
		ref := p.AttachmentRef
		d.AttachmentRef = &ref
	}
	return repo.CreateDebate(ctx, s.DB, d)
}

// Get fetches a debate by id, ensuring it belongs to the user.
func (s *DebateService) Get(ctx context.Context, userID, debateID string) (*domain.Debate, error) {
	d, err := repo.GetDebate(ctx, s.DB, debateID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDebateNotFound
		}
		return nil, err
	}
	return d, nil
}

// ListPage returns a page of debates for a user (paginated).
// It applies defaults for invalid page/pageSize and returns total count.
func (s *DebateService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Debate, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountDebates(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Debate{}, 0, nil
	}

	items, err := repo.ListDebatesPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// UpdateTitle updates a debate's title, ensuring the debate exists and
// belongs to the given user. Falls back to "Untitled" if title is blank.
func (s *DebateService) UpdateTitle(ctx context.Context, userID, debateID, title string) error {
	title = normalizeTitle(title)
	if title == "" {
		title = "Untitled"
	}
	if _, err := s.Get(ctx, userID, debateID); err != nil {
		return err
	}
	return repo.UpdateDebateTitle(ctx, s.DB, debateID, userID, s.clip(title))
}

// Archive soft-deletes a debate by moving it to the archived status. Rounds
// and results remain readable; orchestration operations reject archived
// debates.
func (s *DebateService) Archive(ctx context.Context, userID, debateID string) error {
	if _, err := s.Get(ctx, userID, debateID); err != nil {
		return err
	}
	return repo.UpdateDebateStatus(ctx, s.DB, debateID, userID, domain.DebateStatusArchived)
}

// validateModels checks the participant roster, moderator, and devil's
// advocate against the catalog and the 2..MaxParticipants bound.
func (s *DebateService) validateModels(p CreateDebateParams) error {
	max := s.MaxParticipants
	if max <= 0 {
		max = 20
	}
	if len(p.ParticipantModels) < minParticipants || len(p.ParticipantModels) > max {
		return ErrInvalidParticipants
	}
	seen := make(map[string]bool, len(p.ParticipantModels))
	for _, id := range p.ParticipantModels {
		if _, ok := s.Catalog.Lookup(id); !ok || seen[id] {
			return ErrInvalidParticipants
		}
		seen[id] = true
	}
	if _, ok := s.Catalog.Lookup(p.ModeratorModel); !ok {
		return ErrInvalidModerator
	}
	if p.DevilsAdvocateModel != "" && !seen[p.DevilsAdvocateModel] {
		return ErrInvalidDevilsAdvocate
	}
	return nil
}

// Participants decodes a debate's participant model ids.
func Participants(d *domain.Debate) []string {
	var ids []string
	_ = json.Unmarshal([]byte(d.ParticipantModels), &ids)
	return ids
}

// clip truncates a debate title to the configured maximum rune length.
func (s *DebateService) clip(title string) string {
	if s.TitleMaxLen > 0 && utf8.RuneCountInString(title) > s.TitleMaxLen {
		return string([]rune(title)[:s.TitleMaxLen])
	}
	return title
}

// normalizeTitle trims whitespace and collapses multiple spaces to one.
func normalizeTitle(s string) string {
	s = whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
	return s
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)
