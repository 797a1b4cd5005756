package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/snaptastic/snaptastic/internal/models"
)

type PhotoRepository struct {
	db *sql.DB
}

func NewPhotoRepository(db *sql.DB) *PhotoRepository {
	return &PhotoRepository{db: db}
}

func (r *PhotoRepository) ListByUser(ctx context.Context, userID string) ([]models.Photo, error) {
	const query = `
SELECT id, user_id, name, url, size, restored, restored_url, exported, created_at, updated_at
FROM photos WHERE user_id = ?
ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		photo, err := scanPhoto(rows.Scan)
		if err != nil {
			return nil, err
		}
		photos = append(photos, *photo)
	}
	return photos, rows.Err()
}

func (r *PhotoRepository) FindByID(ctx context.Context, id string) (*models.Photo, error) {
	const query = `
SELECT id, user_id, name, url, size, restored, restored_url, exported, created_at, updated_at
FROM photos WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	photo, err := scanPhoto(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return photo, nil
}

func (r *PhotoRepository) Insert(ctx context.Context, photo *models.Photo) error {
	if photo.ID == "" {
		photo.ID = uuid.NewString()
	}
	const query = `
INSERT INTO photos (id, user_id, name, url, size, restored, exported)
VALUES (?, ?, ?, ?, ?, 0, 0)`
	if _, err := r.db.ExecContext(ctx, query, photo.ID, photo.UserID, photo.Name, photo.URL, photo.Size); err != nil {
		return fmt.Errorf("insert photo: %w", err)
	}
	return nil
}

func (r *PhotoRepository) MarkRestored(ctx context.Context, id, restoredURL string) error {
	const query = `
UPDATE photos SET restored = 1, restored_url = ?, updated_at = NOW() WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, restoredURL, id); err != nil {
		return fmt.Errorf("mark photo restored: %w", err)
	}
	return nil
}

func (r *PhotoRepository) MarkExported(ctx context.Context, id string) error {
	const query = `UPDATE photos SET exported = 1, updated_at = NOW() WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("mark photo exported: %w", err)
	}
	return nil
}

// DeleteOwned removes the photo only when it belongs to the user. A
// non-owner delete matches zero rows and is reported as success, which
// mirrors the ownership-silent behavior the API promises.
func (r *PhotoRepository) DeleteOwned(ctx context.Context, id, userID string) error {
	const query = `DELETE FROM photos WHERE id = ? AND user_id = ?`
	if _, err := r.db.ExecContext(ctx, query, id, userID); err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}
	return nil
}

func scanPhoto(scan func(...any) error) (*models.Photo, error) {
	var p models.Photo
	var restored, exported int
	var restoredURL sql.NullString
	if err := scan(&p.ID, &p.UserID, &p.Name, &p.URL, &p.Size, &restored, &restoredURL, &exported, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan photo: %w", err)
	}
	p.Restored = restored != 0
	p.Exported = exported != 0
	if restoredURL.Valid {
		p.RestoredURL = &restoredURL.String
	}
	return &p, nil
}
