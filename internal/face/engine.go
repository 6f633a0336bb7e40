package face

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rowanhale/pulsefit/internal/model"
)

const (
	// MinEnrollConfidence is the inclusive lower bound on enrollment-time
	// capture confidence (0–100).
	MinEnrollConfidence = 70

	// MaxActiveProfiles is the hard per-user enrollment cap, counted over
	// active profiles only.
	MaxActiveProfiles = 3

	// DefaultMatchThreshold is the acceptance gate on the normalized match
	// score. It is deliberately higher than the 0.6 capture-quality gate:
	// this is an identity decision, not a capture-quality decision.
	DefaultMatchThreshold = 0.85
)

// RejectReason explains why an enrollment was refused. Enrollment is a
// self-service flow, so the specific reason is returned to the caller.
type RejectReason string

const (
	RejectLowConfidence       RejectReason = "low_confidence"
	RejectMalformedDescriptor RejectReason = "malformed_descriptor"
	RejectCapExceeded         RejectReason = "cap_exceeded"
)

// EnrollmentError is returned when an enrollment is refused.
type EnrollmentError struct {
	Reason RejectReason
}

func (e *EnrollmentError) Error() string {
	return fmt.Sprintf("enrollment rejected: %s", e.Reason)
}

var (
	// ErrProfileNotFound covers both a genuinely missing profile and, at
	// the API surface, a profile the caller does not own.
	ErrProfileNotFound = errors.New("face profile not found")

	// ErrNotOwner is internal-only; handlers surface it as not-found so a
	// caller cannot confirm the existence of someone else's profile.
	ErrNotOwner = errors.New("face profile not owned by caller")
)

// ProfileStore is the persistence collaborator for face profiles. The
// store must provide per-row atomic read-modify-write for IncrementUsage.
type ProfileStore interface {
	Create(userID int64, descriptor Descriptor, confidence int, deviceInfo string) (*model.FaceProfile, error)
	GetByID(id int64) (*model.FaceProfile, error)
	ActiveByUser(userID int64) ([]*model.FaceProfile, error)
	CountActive(userID int64) (int, error)
	Deactivate(id int64) error
	IncrementUsage(id int64) error
}

// MatchResult is the outcome of a verification attempt. Score must not be
// surfaced to an unauthenticated caller on a miss; that would give an
// oracle against the threshold.
type MatchResult struct {
	Matched bool
	Profile *model.FaceProfile
	Score   float64
}

// Engine enrolls and verifies face descriptors against stored profiles.
type Engine struct {
	profiles  ProfileStore
	threshold float64
	logger    *slog.Logger

	// Enroll's cap check is check-then-act; serialize it per user so two
	// concurrent enrollments cannot both pass a count of 2.
	mu        sync.Mutex
	userLocks map[int64]*sync.Mutex
}

func NewEngine(profiles ProfileStore, threshold float64, logger *slog.Logger) *Engine {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultMatchThreshold
	}
	return &Engine{
		profiles:  profiles,
		threshold: threshold,
		logger:    logger,
		userLocks: make(map[int64]*sync.Mutex),
	}
}

func (e *Engine) userLock(userID int64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		e.userLocks[userID] = l
	}
	return l
}

// Enroll stores a new active profile for the user. It fails with a typed
// EnrollmentError when the descriptor is malformed, the confidence is
// below the gate, or the user already holds the maximum number of active
// profiles. The confidence bound is inclusive: 70 is accepted, 69 is not.
func (e *Engine) Enroll(userID int64, descriptor Descriptor, confidence int, deviceInfo string) (*model.FaceProfile, error) {
	if err := descriptor.Validate(); err != nil {
		return nil, &EnrollmentError{Reason: RejectMalformedDescriptor}
	}
	if confidence < MinEnrollConfidence {
		return nil, &EnrollmentError{Reason: RejectLowConfidence}
	}

	lock := e.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	count, err := e.profiles.CountActive(userID)
	if err != nil {
		return nil, fmt.Errorf("count active profiles: %w", err)
	}
	if count >= MaxActiveProfiles {
		return nil, &EnrollmentError{Reason: RejectCapExceeded}
	}

	profile, err := e.profiles.Create(userID, descriptor, confidence, deviceInfo)
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	e.logger.Info("face profile enrolled", "user_id", userID, "profile_id", profile.ID, "confidence", confidence)
	return profile, nil
}

// Verify compares the candidate against the user's active profiles and
// accepts the best score if it clears the threshold. Matching is always
// scoped to a claimed user; there is no blind scan across all profiles.
// On a hit, usage_count and last_used_at are updated atomically in the
// store.
func (e *Engine) Verify(userID int64, candidate Descriptor) (*MatchResult, error) {
	if err := candidate.Validate(); err != nil {
		return nil, fmt.Errorf("candidate descriptor: %w", err)
	}

	profiles, err := e.profiles.ActiveByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}

	var best *model.FaceProfile
	var bestScore float64
	for _, p := range profiles {
		score := MatchScore(CosineSimilarity(candidate, p.Descriptor))
		if best == nil || score > bestScore {
			best = p
			bestScore = score
		}
	}

	if best == nil || bestScore < e.threshold {
		return &MatchResult{Matched: false, Score: bestScore}, nil
	}

	if err := e.profiles.IncrementUsage(best.ID); err != nil {
		return nil, fmt.Errorf("record profile usage: %w", err)
	}
	e.logger.Info("face verified", "user_id", userID, "profile_id", best.ID)
	return &MatchResult{Matched: true, Profile: best, Score: bestScore}, nil
}

// Deactivate soft-disables a profile. Only the owner may deactivate;
// acting on another user's profile returns ErrNotOwner, which the API
// layer surfaces identically to not-found.
func (e *Engine) Deactivate(profileID, requestingUserID int64) error {
	profile, err := e.profiles.GetByID(profileID)
	if err != nil {
		return fmt.Errorf("get profile: %w", err)
	}
	if profile == nil {
		return ErrProfileNotFound
	}
	if profile.UserID != requestingUserID {
		return ErrNotOwner
	}
	if err := e.profiles.Deactivate(profileID); err != nil {
		return fmt.Errorf("deactivate profile: %w", err)
	}
	e.logger.Info("face profile deactivated", "user_id", requestingUserID, "profile_id", profileID)
	return nil
}
