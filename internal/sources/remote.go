package sources

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/justchokingaround/vodhub/internal/database"
)

// RemoteRow is one backend row of the shared remote store
type RemoteRow struct {
	ID     uint
	Name   string
	APIURL string
	Active bool
}

// RemoteStore is the shared table of backends. Rows are addressed by URL.
type RemoteStore interface {
	List(ctx context.Context) ([]RemoteRow, error)
	Insert(ctx context.Context, name, apiURL string, active bool) error
	DeleteByURL(ctx context.Context, apiURL string) error
	SetActive(ctx context.Context, apiURL string, active bool) error
}

// GormRemoteStore keeps remote rows in the backend_sources table
type GormRemoteStore struct {
	db *gorm.DB
}

// NewGormRemoteStore wraps db, which must already be migrated
func NewGormRemoteStore(db *gorm.DB) *GormRemoteStore {
	return &GormRemoteStore{db: db}
}

func (s *GormRemoteStore) List(ctx context.Context) ([]RemoteRow, error) {
	var rows []database.BackendSource
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list remote backends: %w", err)
	}

	out := make([]RemoteRow, len(rows))
	for i, row := range rows {
		out[i] = RemoteRow{ID: row.ID, Name: row.Name, APIURL: row.APIURL, Active: row.Active}
	}
	return out, nil
}

func (s *GormRemoteStore) Insert(ctx context.Context, name, apiURL string, active bool) error {
	row := database.BackendSource{Name: name, APIURL: apiURL, Active: active}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "api_url"}}, DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to insert remote backend: %w", err)
	}
	return nil
}

func (s *GormRemoteStore) DeleteByURL(ctx context.Context, apiURL string) error {
	result := s.db.WithContext(ctx).Where("api_url = ?", apiURL).Delete(&database.BackendSource{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete remote backend: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.New("no remote row for " + apiURL)
	}
	return nil
}

func (s *GormRemoteStore) SetActive(ctx context.Context, apiURL string, active bool) error {
	err := s.db.WithContext(ctx).
		Model(&database.BackendSource{}).
		Where("api_url = ?", apiURL).
		Update("active", active).Error
	if err != nil {
		return fmt.Errorf("failed to update remote backend: %w", err)
	}
	return nil
}
