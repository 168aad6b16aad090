// Package dal provides data access methods over the relational store.
package dal

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"drivemind/internal/models"
)

// ErrNotFound is returned when a row does not exist or is not owned by the
// requesting user.
var ErrNotFound = errors.New("not found")

// FolderDAL provides data access methods for linked folders.
type FolderDAL struct {
	db *gorm.DB
}

func NewFolderDAL(db *gorm.DB) *FolderDAL {
	return &FolderDAL{db: db}
}

// Create inserts a new folder row.
func (dal *FolderDAL) Create(ctx context.Context, folder *models.Folder) error {
	return dal.db.WithContext(ctx).Create(folder).Error
}

// GetByID fetches a folder regardless of owner. It returns (nil, nil) when
// the folder does not exist, for callers that treat absence as a no-op.
func (dal *FolderDAL) GetByID(ctx context.Context, id string) (*models.Folder, error) {
	var folder models.Folder
	result := dal.db.WithContext(ctx).Where("id = ?", id).First(&folder)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &folder, nil
}

// GetForUser fetches a folder and checks ownership.
func (dal *FolderDAL) GetForUser(ctx context.Context, userID, id string) (*models.Folder, error) {
	var folder models.Folder
	result := dal.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&folder)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &folder, nil
}

// GetByDriveID finds a user's folder by the drive-side id, to keep links
// idempotent.
func (dal *FolderDAL) GetByDriveID(ctx context.Context, userID, driveFolderID string) (*models.Folder, error) {
	var folder models.Folder
	result := dal.db.WithContext(ctx).Where("user_id = ? AND drive_folder_id = ?", userID, driveFolderID).First(&folder)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &folder, nil
}

// ListByUser returns all folders owned by a user, newest first.
func (dal *FolderDAL) ListByUser(ctx context.Context, userID string) ([]*models.Folder, error) {
	var folders []*models.Folder
	result := dal.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&folders)
	if result.Error != nil {
		return nil, result.Error
	}
	return folders, nil
}

// Update saves all fields of a folder row.
func (dal *FolderDAL) Update(ctx context.Context, folder *models.Folder) error {
	return dal.db.WithContext(ctx).Save(folder).Error
}

// Delete removes a folder owned by the user.
func (dal *FolderDAL) Delete(ctx context.Context, userID, id string) error {
	result := dal.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Folder{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
