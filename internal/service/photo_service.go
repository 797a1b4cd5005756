package service

import (
	"context"
	"fmt"

	"github.com/snaptastic/snaptastic/internal/models"
)

// PhotoStore is implemented by repository.PhotoRepository.
type PhotoStore interface {
	ListByUser(ctx context.Context, userID string) ([]models.Photo, error)
	FindByID(ctx context.Context, id string) (*models.Photo, error)
	Insert(ctx context.Context, photo *models.Photo) error
	MarkRestored(ctx context.Context, id, restoredURL string) error
	MarkExported(ctx context.Context, id string) error
	DeleteOwned(ctx context.Context, id, userID string) error
}

type PhotoService struct {
	photos PhotoStore
}

func NewPhotoService(photos PhotoStore) *PhotoService {
	return &PhotoService{photos: photos}
}

func (s *PhotoService) List(ctx context.Context, userID string) ([]models.Photo, error) {
	photos, err := s.photos.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	return photos, nil
}

func (s *PhotoService) Create(ctx context.Context, photo *models.Photo) error {
	if err := s.photos.Insert(ctx, photo); err != nil {
		return fmt.Errorf("create photo: %w", err)
	}
	return nil
}

func (s *PhotoService) Delete(ctx context.Context, id, userID string) error {
	return s.photos.DeleteOwned(ctx, id, userID)
}
