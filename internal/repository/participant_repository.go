package repository

import (
	"context"
	"fmt"

	"gitlab.com/nandar/payquest/internal/database"
	"gitlab.com/nandar/payquest/internal/models"
)

// ParticipantRepository handles participant database operations.
type ParticipantRepository struct {
	db database.PGXDB
}

// NewParticipantRepository creates a new ParticipantRepository.
func NewParticipantRepository(db database.PGXDB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

// Create registers a new participant.
func (r *ParticipantRepository) Create(ctx context.Context, p *models.Participant) error {
	if p.Track == "" {
		p.Track = models.TrackStudent
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO participants (name, track)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, p.Name, p.Track).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create participant: %w", err)
	}
	return nil
}

// GetByID retrieves a participant by ID.
func (r *ParticipantRepository) GetByID(ctx context.Context, id int64) (*models.Participant, error) {
	var p models.Participant
	err := r.db.QueryRow(ctx, `
		SELECT id, name, track, created_at FROM participants WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Track, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return &p, nil
}
