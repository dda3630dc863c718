package core

import (
	"context"
	"fmt"

	"github.com/edvin/borgdesk/internal/model"
)

type RepositoryService struct {
	db DB
}

func NewRepositoryService(db DB) *RepositoryService {
	return &RepositoryService{db: db}
}

const repositoryColumns = `id, name, path, encryption, passphrase, max_size_gb, user_id, created_at, updated_at`

func scanRepository(row interface{ Scan(...any) error }) (*model.Repository, error) {
	var r model.Repository
	err := row.Scan(&r.ID, &r.Name, &r.Path, &r.Encryption, &r.Passphrase,
		&r.MaxSizeGB, &r.UserID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *RepositoryService) Create(ctx context.Context, repo *model.Repository) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO repositories (id, name, path, encryption, passphrase, max_size_gb, user_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		repo.ID, repo.Name, repo.Path, repo.Encryption, repo.Passphrase,
		repo.MaxSizeGB, repo.UserID, repo.CreatedAt, repo.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create repository: %w", err)
	}
	return nil
}

func (s *RepositoryService) GetByID(ctx context.Context, id string) (*model.Repository, error) {
	repo, err := scanRepository(s.db.QueryRow(ctx,
		`SELECT `+repositoryColumns+` FROM repositories WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get repository %s: %w", id, err)
	}
	return repo, nil
}

func (s *RepositoryService) GetByName(ctx context.Context, userID, name string) (*model.Repository, error) {
	repo, err := scanRepository(s.db.QueryRow(ctx,
		`SELECT `+repositoryColumns+` FROM repositories WHERE user_id = $1 AND name = $2`, userID, name))
	if err != nil {
		return nil, fmt.Errorf("get repository %q: %w", name, err)
	}
	return repo, nil
}

func (s *RepositoryService) ListByUser(ctx context.Context, userID string) ([]model.Repository, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+repositoryColumns+` FROM repositories WHERE user_id = $1 ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	defer rows.Close()

	var repos []model.Repository
	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, fmt.Errorf("scan repository: %w", err)
		}
		repos = append(repos, *repo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate repositories: %w", err)
	}
	return repos, nil
}

func (s *RepositoryService) Update(ctx context.Context, repo *model.Repository) error {
	_, err := s.db.Exec(ctx,
		`UPDATE repositories SET name = $1, path = $2, encryption = $3, passphrase = $4, max_size_gb = $5, updated_at = now()
		 WHERE id = $6`,
		repo.Name, repo.Path, repo.Encryption, repo.Passphrase, repo.MaxSizeGB, repo.ID,
	)
	if err != nil {
		return fmt.Errorf("update repository %s: %w", repo.ID, err)
	}
	return nil
}

// UpdateMaxSize sets only the size limit, for the settings endpoint.
func (s *RepositoryService) UpdateMaxSize(ctx context.Context, id string, maxSizeGB float64) error {
	if maxSizeGB < 1 {
		return fmt.Errorf("max size must be at least 1 GB")
	}
	_, err := s.db.Exec(ctx,
		`UPDATE repositories SET max_size_gb = $1, updated_at = now() WHERE id = $2`, maxSizeGB, id)
	if err != nil {
		return fmt.Errorf("update repository %s max size: %w", id, err)
	}
	return nil
}

// Delete removes the repository along with its schedules and jobs.
func (s *RepositoryService) Delete(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM schedules WHERE repository_id = $1`, id); err != nil {
		return fmt.Errorf("delete repository %s schedules: %w", id, err)
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM mounts WHERE repository_id = $1`, id); err != nil {
		return fmt.Errorf("delete repository %s mounts: %w", id, err)
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM jobs WHERE repository_id = $1`, id); err != nil {
		return fmt.Errorf("delete repository %s jobs: %w", id, err)
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM repositories WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete repository %s: %w", id, err)
	}
	return nil
}
