package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rowanhale/pulsefit/internal/face"
	"github.com/rowanhale/pulsefit/internal/model"
)

type FaceProfileStore struct {
	db *sql.DB
}

func NewFaceProfileStore(db *sql.DB) *FaceProfileStore {
	return &FaceProfileStore{db: db}
}

const faceProfileCols = `id, user_id, descriptor, confidence, device_info, is_active, usage_count, last_used_at, created_at, updated_at`

func scanFaceProfile(scanner interface{ Scan(...any) error }) (*model.FaceProfile, error) {
	var p model.FaceProfile
	var descriptorJSON string
	err := scanner.Scan(&p.ID, &p.UserID, &descriptorJSON, &p.Confidence, &p.DeviceInfo, &p.IsActive, &p.UsageCount, &p.LastUsedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(descriptorJSON), &p.Descriptor); err != nil {
		return nil, fmt.Errorf("decode descriptor: %w", err)
	}
	return &p, nil
}

func (s *FaceProfileStore) Create(userID int64, descriptor face.Descriptor, confidence int, deviceInfo string) (*model.FaceProfile, error) {
	descriptorJSON, err := json.Marshal(descriptor)
	if err != nil {
		return nil, fmt.Errorf("encode descriptor: %w", err)
	}
	result, err := s.db.Exec(
		`INSERT INTO face_profiles (user_id, descriptor, confidence, device_info) VALUES (?, ?, ?, ?)`,
		userID, string(descriptorJSON), confidence, deviceInfo,
	)
	if err != nil {
		return nil, fmt.Errorf("insert face profile: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *FaceProfileStore) GetByID(id int64) (*model.FaceProfile, error) {
	row := s.db.QueryRow(`SELECT `+faceProfileCols+` FROM face_profiles WHERE id = ?`, id)
	p, err := scanFaceProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get face profile: %w", err)
	}
	return p, nil
}

// ActiveByUser returns the user's active profiles. Deactivated profiles
// are kept but never matched against.
func (s *FaceProfileStore) ActiveByUser(userID int64) ([]*model.FaceProfile, error) {
	rows, err := s.db.Query(
		`SELECT `+faceProfileCols+` FROM face_profiles WHERE user_id = ? AND is_active = 1 ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list active face profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*model.FaceProfile
	for rows.Next() {
		p, err := scanFaceProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan face profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// ByUser returns all of a user's profiles, active or not.
func (s *FaceProfileStore) ByUser(userID int64) ([]*model.FaceProfile, error) {
	rows, err := s.db.Query(
		`SELECT `+faceProfileCols+` FROM face_profiles WHERE user_id = ? ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list face profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*model.FaceProfile
	for rows.Next() {
		p, err := scanFaceProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan face profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (s *FaceProfileStore) CountActive(userID int64) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM face_profiles WHERE user_id = ? AND is_active = 1`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active face profiles: %w", err)
	}
	return count, nil
}

// Deactivate soft-disables a profile. The row is kept for audit.
func (s *FaceProfileStore) Deactivate(id int64) error {
	_, err := s.db.Exec(
		`UPDATE face_profiles SET is_active = 0, updated_at = datetime('now') WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deactivate face profile: %w", err)
	}
	return nil
}

// IncrementUsage bumps usage_count and stamps last_used_at in a single
// statement, so concurrent verifies against the same profile cannot lose
// an increment.
func (s *FaceProfileStore) IncrementUsage(id int64) error {
	_, err := s.db.Exec(
		`UPDATE face_profiles
		 SET usage_count = usage_count + 1, last_used_at = datetime('now'), updated_at = datetime('now')
		 WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("increment face profile usage: %w", err)
	}
	return nil
}
