// Package services defines the business logic for debates, rounds, voting,
// synthesis, and scoring. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

// Debate-related errors.
var (
	// ErrDebateNotFound indicates that the requested debate does not exist or
	// is not accessible to the current user.
	ErrDebateNotFound = errors.New("debate not found")

	// ErrDebateNotActive is returned when an orchestration operation targets
	// a completed or archived debate.
	ErrDebateNotActive = errors.New("debate is not active")

	// ErrEmptyQuestion is returned when a debate or follow-up question is blank.
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrInvalidParticipants is returned when the participant list is outside
	// the 2-20 bound, contains duplicates, or names unknown models.
	ErrInvalidParticipants = errors.New("participants must be 2-20 distinct known models")

	// ErrInvalidModerator is returned when the moderator model id is unknown.
	ErrInvalidModerator = errors.New("moderator must be a known model")

	// ErrInvalidDevilsAdvocate is returned when the devil's-advocate model is
	// enabled but is not one of the participants.
	ErrInvalidDevilsAdvocate = errors.New("devil's advocate must be a participant")

	// ErrInvalidProvider is returned when a credential operation names an
	// unsupported provider.
	ErrInvalidProvider = errors.New("unknown provider")
)

// Round-related errors.
var (
	// ErrRoundNotFound indicates that the requested round does not exist
	// within the debate.
	ErrRoundNotFound = errors.New("round not found")

	// ErrRoundNotSettled is returned when a new round is requested while the
	// current round has not finished.
	ErrRoundNotSettled = errors.New("current round is not settled")

	// ErrFollowUpRequired is returned when a round after the first is created
	// without a follow-up question.
	ErrFollowUpRequired = errors.New("follow-up question required")

	// ErrVotingDisabled is returned when votes are requested for a debate
	// created with voting turned off.
	ErrVotingDisabled = errors.New("voting is disabled for this debate")

	// ErrNoResponses is returned when voting or synthesis is requested before
	// any participant has responded.
	ErrNoResponses = errors.New("round has no responses")

	// ErrResponseExists is returned when a response slot (round, order) is
	// already taken, the conflict signal for overlapping generation.
	ErrResponseExists = errors.New("response order already taken")
)

// Result-related errors.
var (
	// ErrResultExists is returned when a debate already has a final result.
	// Results are created exactly once; re-creation is a conflict because
	// leaderboard stats are cumulative and not designed to be corrected.
	ErrResultExists = errors.New("debate result already exists")

	// ErrResultNotFound indicates that the debate has not been finalized yet.
	ErrResultNotFound = errors.New("debate result not found")

	// ErrAllModelsFailed is returned when every model in a required step
	// failed; partial failure of some models is tolerated, total failure is
	// not.
	ErrAllModelsFailed = errors.New("all participant models failed")
)
