package study

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/park285/chess-study-bot/internal/domain"
)

var ErrDuplicateStudy = errors.New("study already archived")

type Repository interface {
	InsertStudy(ctx context.Context, record *domain.StudyRecord) (int64, error)
	GetRecentStudies(ctx context.Context, playerHash string, limit int) ([]*domain.StudyRecord, error)
	GetStudy(ctx context.Context, id int64, playerHash string) (*domain.StudyRecord, error)
	GetStudyByUUID(ctx context.Context, studyUUID string, playerHash string) (*domain.StudyRecord, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) InsertStudy(ctx context.Context, record *domain.StudyRecord) (int64, error) {
	if record == nil {
		return 0, fmt.Errorf("nil study record")
	}

	const query = `
		INSERT INTO studies (
			study_uuid,
			player_hash,
			room_hash,
			title,
			root_fen,
			movetext,
			move_count,
			created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (study_uuid) DO NOTHING
		RETURNING id`

	var id sql.NullInt64
	err := r.db.QueryRowContext(
		ctx,
		query,
		record.StudyUUID,
		record.PlayerHash,
		record.RoomHash,
		record.Title,
		record.RootFEN,
		record.Movetext,
		record.MoveCount,
		record.CreatedAt,
	).Scan(&id)
	if err == sql.ErrNoRows || (err == nil && !id.Valid) {
		return 0, ErrDuplicateStudy
	}
	if err != nil {
		return 0, fmt.Errorf("insert study: %w", err)
	}
	return id.Int64, nil
}

const studyColumns = `
	id,
	study_uuid,
	player_hash,
	room_hash,
	title,
	root_fen,
	movetext,
	move_count,
	created_at`

func scanStudy(row interface{ Scan(...any) error }) (*domain.StudyRecord, error) {
	var record domain.StudyRecord
	err := row.Scan(
		&record.ID,
		&record.StudyUUID,
		&record.PlayerHash,
		&record.RoomHash,
		&record.Title,
		&record.RootFEN,
		&record.Movetext,
		&record.MoveCount,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) GetRecentStudies(ctx context.Context, playerHash string, limit int) ([]*domain.StudyRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT` + studyColumns + `
		FROM studies
		WHERE player_hash = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, playerHash, limit)
	if err != nil {
		return nil, fmt.Errorf("select studies: %w", err)
	}
	defer rows.Close()

	records := make([]*domain.StudyRecord, 0, limit)
	for rows.Next() {
		record, err := scanStudy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan study: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (r *repository) GetStudy(ctx context.Context, id int64, playerHash string) (*domain.StudyRecord, error) {
	query := `
		SELECT` + studyColumns + `
		FROM studies
		WHERE id = $1 AND player_hash = $2`

	record, err := scanStudy(r.db.QueryRowContext(ctx, query, id, playerHash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select study: %w", err)
	}
	return record, nil
}

func (r *repository) GetStudyByUUID(ctx context.Context, studyUUID string, playerHash string) (*domain.StudyRecord, error) {
	query := `
		SELECT` + studyColumns + `
		FROM studies
		WHERE study_uuid = $1 AND player_hash = $2
		ORDER BY created_at DESC
		LIMIT 1`

	record, err := scanStudy(r.db.QueryRowContext(ctx, query, studyUUID, playerHash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select study by uuid: %w", err)
	}
	return record, nil
}
