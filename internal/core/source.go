package core

import (
	"context"
	"fmt"

	"github.com/edvin/borgdesk/internal/model"
)

type SourceService struct {
	db DB
}

func NewSourceService(db DB) *SourceService {
	return &SourceService{db: db}
}

const sourceColumns = `id, name, source_type, path, ssh_host, ssh_port, ssh_user, ssh_key_path, user_id, created_at`

func scanSource(row interface{ Scan(...any) error }) (*model.Source, error) {
	var src model.Source
	err := row.Scan(&src.ID, &src.Name, &src.SourceType, &src.Path, &src.SSHHost,
		&src.SSHPort, &src.SSHUser, &src.SSHKeyPath, &src.UserID, &src.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &src, nil
}

func (s *SourceService) Create(ctx context.Context, src *model.Source) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO sources (id, name, source_type, path, ssh_host, ssh_port, ssh_user, ssh_key_path, user_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		src.ID, src.Name, src.SourceType, src.Path, src.SSHHost,
		src.SSHPort, src.SSHUser, src.SSHKeyPath, src.UserID, src.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create source: %w", err)
	}
	return nil
}

func (s *SourceService) GetByID(ctx context.Context, id string) (*model.Source, error) {
	src, err := scanSource(s.db.QueryRow(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get source %s: %w", id, err)
	}
	return src, nil
}

func (s *SourceService) ListByUser(ctx context.Context, userID string) ([]model.Source, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE user_id = $1 ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var sources []model.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, *src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return sources, nil
}

func (s *SourceService) Update(ctx context.Context, src *model.Source) error {
	_, err := s.db.Exec(ctx,
		`UPDATE sources SET name = $1, source_type = $2, path = $3, ssh_host = $4, ssh_port = $5, ssh_user = $6, ssh_key_path = $7
		 WHERE id = $8`,
		src.Name, src.SourceType, src.Path, src.SSHHost, src.SSHPort, src.SSHUser, src.SSHKeyPath, src.ID,
	)
	if err != nil {
		return fmt.Errorf("update source %s: %w", src.ID, err)
	}
	return nil
}

func (s *SourceService) Delete(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM sources WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete source %s: %w", id, err)
	}
	return nil
}
