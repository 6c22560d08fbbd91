package gorm

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/narwhalmedia/deadarchive/internal/domain/download"
	apperrors "github.com/narwhalmedia/deadarchive/pkg/errors"
)

// DownloadRepository implements the download repository using GORM
type DownloadRepository struct {
	db *gorm.DB
}

// NewDownloadRepository creates a new download repository
func NewDownloadRepository(db *gorm.DB) *DownloadRepository {
	return &DownloadRepository{db: db}
}

var _ download.Repository = (*DownloadRepository)(nil)

// Save inserts or replaces a download entry
func (r *DownloadRepository) Save(ctx context.Context, entry *download.Entry) error {
	model := toDownloadModel(entry)

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(model)
	if result.Error != nil {
		return apperrors.Storage("failed to save download entry", result.Error)
	}

	return nil
}

// FindByID finds a download entry by ID
func (r *DownloadRepository) FindByID(ctx context.Context, id string) (*download.Entry, error) {
	var model DownloadModel

	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound(fmt.Sprintf("download %s not found", id))
		}
		return nil, apperrors.Storage("failed to find download entry", result.Error)
	}

	return toDomainDownload(&model), nil
}

// FindAll finds all download entries, oldest first
func (r *DownloadRepository) FindAll(ctx context.Context) ([]*download.Entry, error) {
	var models []DownloadModel

	result := r.db.WithContext(ctx).Order("created_at").Order("id").Find(&models)
	if result.Error != nil {
		return nil, apperrors.Storage("failed to find download entries", result.Error)
	}

	return toDomainDownloads(models), nil
}

// FindByStatus finds download entries in any of the given statuses
func (r *DownloadRepository) FindByStatus(ctx context.Context, statuses ...download.Status) ([]*download.Entry, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	values := make([]string, 0, len(statuses))
	for _, s := range statuses {
		values = append(values, string(s))
	}

	var models []DownloadModel
	result := r.db.WithContext(ctx).
		Where("status IN ?", values).
		Order("created_at").Order("id").
		Find(&models)
	if result.Error != nil {
		return nil, apperrors.Storage("failed to find download entries by status", result.Error)
	}

	return toDomainDownloads(models), nil
}

// ActiveShowIDs returns the distinct shows referenced by active entries
func (r *DownloadRepository) ActiveShowIDs(ctx context.Context) ([]string, error) {
	var ids []string

	result := r.db.WithContext(ctx).Model(&DownloadModel{}).
		Distinct("show_id").
		Where("status IN ?", activeStatusStrings()).
		Order("show_id").
		Pluck("show_id", &ids)
	if result.Error != nil {
		return nil, apperrors.Storage("failed to list active shows", result.Error)
	}

	return ids, nil
}

// Delete deletes a download entry
func (r *DownloadRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&DownloadModel{}, "id = ?", id)
	if result.Error != nil {
		return apperrors.Storage("failed to delete download entry", result.Error)
	}

	if result.RowsAffected == 0 {
		return apperrors.NotFound(fmt.Sprintf("download %s not found", id))
	}

	return nil
}

func toDomainDownloads(models []DownloadModel) []*download.Entry {
	entries := make([]*download.Entry, 0, len(models))
	for i := range models {
		entries = append(entries, toDomainDownload(&models[i]))
	}
	return entries
}
