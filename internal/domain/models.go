// Package domain defines the persistence models for debates, rounds,
// responses, votes, results, and leaderboard statistics. These types are
// mapped with GORM and form the core data layer of the debate application.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Debate lifecycle statuses.
const (
	DebateStatusActive    = "active"
	DebateStatusCompleted = "completed"
	DebateStatusArchived  = "archived"
)

// Round lifecycle statuses. Transitions are strictly forward:
// in_progress -> awaiting_moderator -> completed.
const (
	RoundStatusInProgress        = "in_progress"
	RoundStatusAwaitingModerator = "awaiting_moderator"
	RoundStatusCompleted         = "completed"
)

// Debate represents one multi-model orchestration session owned by a user.
// Its participant list and moderator are fixed at creation; only status,
// title, and tags may change afterwards.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserID: identifier of the debate owner; indexed for efficient retrieval.
//   - Title: human-readable title (auto-generated from the question if blank).
//   - Question: the original debate question; immutable after creation.
//   - ParticipantModels: JSON array of 2-20 logical model ids, fixed at creation.
//   - ModeratorModel: logical model id used for synthesis and final assessment.
//   - DevilsAdvocateModel: optional participant instructed to argue contra.
//   - VotingEnabled / BlindMode: per-debate orchestration switches.
//   - AttachmentRef: optional reference to an uploaded document.
//   - Status: active | completed | archived (archived is the soft-delete path).
type Debate struct {
	ID                    string         `json:"id"                     gorm:"type:char(36);primaryKey"`
	UserID                string         `json:"user_id"                gorm:"type:varchar(64);not null;index:idx_user_debates"`
	Title                 string         `json:"title"                  gorm:"type:varchar(255);not null;default:'New debate'"`
	Question              string         `json:"question"               gorm:"type:text;not null"`
	ParticipantModels     string         `json:"participant_models"     gorm:"type:text;not null"` // JSON []string
	ModeratorModel        string         `json:"moderator_model"        gorm:"type:varchar(128);not null"`
	DevilsAdvocateModel   *string        `json:"devils_advocate_model,omitempty" gorm:"type:varchar(128)"`
	DevilsAdvocateEnabled bool           `json:"devils_advocate_enabled" gorm:"not null;default:false"`
	// No column default here: GORM skips zero values on INSERT when a
	// default is declared, which would silently flip voting-off to on.
	VotingEnabled bool           `json:"voting_enabled"           gorm:"not null"`
	BlindMode     bool           `json:"blind_mode"               gorm:"not null;default:false"`
	AttachmentRef *string        `json:"attachment_ref,omitempty" gorm:"type:varchar(512)"`
	Status        string         `json:"status"                   gorm:"type:varchar(16);not null;default:'active';check:status IN ('active','completed','archived')"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-"                        gorm:"index"`
}

// TableName returns the database table name for Debate.
func (Debate) TableName() string { return "debates" }

// Round represents one discussion cycle within a debate. Rounds form an
// ordered, append-only sequence: round N+1 is only created once round N
// exists, and RoundNumber is unique per debate.
//
// Fields:
//   - RoundNumber: 1-based, contiguous per debate (enforced by unique index).
//   - FollowUpQuestion: replaces the original question for rounds > 1.
//   - ModeratorSynthesis / SuggestedFollowUp: nullable until the moderator runs.
//   - Analytics: JSON-encoded discourse analytics; nullable, best-effort.
//   - Status: in_progress | awaiting_moderator | completed (forward-only).
type Round struct {
	ID                 string         `json:"id"                  gorm:"type:char(36);primaryKey"`
	DebateID           string         `json:"debate_id"           gorm:"type:char(36);not null;index;uniqueIndex:ux_debate_round,priority:1"`
	RoundNumber        int            `json:"round_number"        gorm:"not null;uniqueIndex:ux_debate_round,priority:2"`
	FollowUpQuestion   *string        `json:"follow_up_question,omitempty" gorm:"type:text"`
	ModeratorSynthesis *string        `json:"moderator_synthesis,omitempty" gorm:"type:text"`
	SuggestedFollowUp  *string        `json:"suggested_follow_up,omitempty" gorm:"type:text"`
	Analytics          *string        `json:"analytics,omitempty" gorm:"type:text"` // JSON DiscourseAnalytics
	Status             string         `json:"status"              gorm:"type:varchar(24);not null;default:'in_progress';check:status IN ('in_progress','awaiting_moderator','completed')"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `json:"-"                   gorm:"index"`

	// Debate is the parent session. Rounds are cascade-deleted with it.
	Debate Debate `json:"-" gorm:"foreignKey:DebateID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Round.
func (Round) TableName() string { return "rounds" }

// Response represents a single model's generated text within a round.
// Responses are immutable once created except for the async score fields,
// which a separate scoring pass may populate later.
//
// ResponseOrder is the model's position within the round (1..N participants)
// and is unique per round; concurrent writers use that uniqueness as the
// conflict-detection signal rather than locking.
type Response struct {
	ID               string         `json:"id"                gorm:"type:char(36);primaryKey"`
	RoundID          string         `json:"round_id"          gorm:"type:char(36);not null;index;uniqueIndex:ux_round_order,priority:1"`
	ModelID          string         `json:"model_id"          gorm:"type:varchar(128);not null"`
	DisplayName      string         `json:"display_name"      gorm:"type:varchar(128);not null"`
	Content          string         `json:"content"           gorm:"type:text;not null"`
	IsDevilsAdvocate bool           `json:"is_devils_advocate" gorm:"not null;default:false"`
	ResponseOrder    int            `json:"response_order"    gorm:"not null;uniqueIndex:ux_round_order,priority:2"`
	Score            *float64       `json:"score,omitempty"` // 0-10, populated asynchronously
	ScoreRationale   *string        `json:"score_rationale,omitempty" gorm:"type:text"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `json:"-"                 gorm:"index"`

	// Round is the parent cycle. Responses are cascade-deleted with it.
	Round Round `json:"-" gorm:"foreignKey:RoundID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Response.
func (Response) TableName() string { return "responses" }

// Vote records a participant model's pick of the best other participant
// within a round. A round holds at most one vote per voter (unique index),
// and VotedForModel must differ from VoterModel (self-votes are dropped at
// the parsing boundary, the check constraint is a backstop).
type Vote struct {
	ID            string         `json:"id"              gorm:"type:char(36);primaryKey"`
	RoundID       string         `json:"round_id"        gorm:"type:char(36);not null;index;uniqueIndex:ux_round_voter,priority:1"`
	VoterModel    string         `json:"voter_model"     gorm:"type:varchar(128);not null;uniqueIndex:ux_round_voter,priority:2"`
	VotedForModel string         `json:"voted_for_model" gorm:"type:varchar(128);not null;check:voted_for_model <> voter_model"`
	Rationale     string         `json:"rationale"       gorm:"type:text"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-"               gorm:"index"`

	// Round is the parent cycle. Votes are cascade-deleted with it.
	Round Round `json:"-" gorm:"foreignKey:RoundID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Vote.
func (Vote) TableName() string { return "votes" }

// DebateResult is the final assessment of a debate, created exactly once per
// debate (unique index on DebateID). Points flow into cumulative ModelStat
// rows, so an existing result blocks re-creation rather than being replaced.
//
// VoteTally, StrongArguments, and PointsBreakdown are JSON-encoded columns;
// see PointsBreakdown for the per-model shape.
type DebateResult struct {
	ID                    string         `json:"id"                      gorm:"type:char(36);primaryKey"`
	DebateID              string         `json:"debate_id"               gorm:"type:char(36);not null;uniqueIndex:ux_result_debate"`
	FinalAssessment       string         `json:"final_assessment"        gorm:"type:text;not null"`
	Synthesis             string         `json:"synthesis"               gorm:"type:text"`
	ModeratorPick         string         `json:"moderator_pick"          gorm:"type:varchar(128)"`
	VoteTally             string         `json:"vote_tally"              gorm:"type:text"` // JSON map[model]int
	StrongArguments       string         `json:"strong_arguments"        gorm:"type:text"` // JSON []string
	DevilsAdvocateSuccess bool           `json:"devils_advocate_success" gorm:"not null;default:false"`
	PointsBreakdown       string         `json:"points_breakdown"        gorm:"type:text;not null"` // JSON map[model]PointsBreakdown
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
	DeletedAt             gorm.DeletedAt `json:"-"                       gorm:"index"`

	// Debate is the finished session this result scores.
	Debate Debate `json:"-" gorm:"foreignKey:DebateID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for DebateResult.
func (DebateResult) TableName() string { return "debate_results" }

// PointsBreakdown is the per-model scoring detail embedded (JSON) in a
// DebateResult. Total must always equal the sum of the four components.
type PointsBreakdown struct {
	Total               int `json:"total"`
	ModeratorPick       int `json:"moderatorPick"`
	PeerVotes           int `json:"peerVotes"`
	StrongArguments     int `json:"strongArguments"`
	DevilsAdvocateBonus int `json:"devilsAdvocateBonus"`
}

// Sum returns the component sum, used to verify the Total invariant.
func (p PointsBreakdown) Sum() int {
	return p.ModeratorPick + p.PeerVotes + p.StrongArguments + p.DevilsAdvocateBonus
}

// ModelStat is the cross-debate aggregate for one (user, model) pair.
// Rows are upserted incrementally after each DebateResult is saved; the
// upsert is a single atomic statement so concurrent debate completions for
// the same user cannot lose updates.
type ModelStat struct {
	ID                 string    `json:"id"                   gorm:"type:char(36);primaryKey"`
	UserID             string    `json:"user_id"              gorm:"type:varchar(64);not null;uniqueIndex:ux_stat_user_model,priority:1"`
	ModelID            string    `json:"model_id"             gorm:"type:varchar(128);not null;uniqueIndex:ux_stat_user_model,priority:2"`
	TotalPoints        int       `json:"total_points"         gorm:"not null;default:0"`
	DebatesCount       int       `json:"debates_count"        gorm:"not null;default:0"`
	ModeratorPicks     int       `json:"moderator_picks"      gorm:"not null;default:0"`
	PeerVotes          int       `json:"peer_votes"           gorm:"not null;default:0"`
	StrongArguments    int       `json:"strong_arguments"     gorm:"not null;default:0"`
	DevilsAdvocateWins int       `json:"devils_advocate_wins" gorm:"not null;default:0"`
	RecentForm         int       `json:"recent_form"          gorm:"not null;default:0"` // points in the latest contributing result
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// TableName returns the database table name for ModelStat.
func (ModelStat) TableName() string { return "model_stats" }

// UserAPIKey stores a caller-supplied provider credential, keyed by
// (user, provider). When a debate opts in to caller credentials, the
// adapter layer resolves keys from this table before platform defaults.
type UserAPIKey struct {
	ID        string    `json:"id"       gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"  gorm:"type:varchar(64);not null;uniqueIndex:ux_key_user_provider,priority:1"`
	Provider  string    `json:"provider" gorm:"type:varchar(32);not null;uniqueIndex:ux_key_user_provider,priority:2"`
	Key       string    `json:"-"        gorm:"type:varchar(256);not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for UserAPIKey.
func (UserAPIKey) TableName() string { return "user_api_keys" }
