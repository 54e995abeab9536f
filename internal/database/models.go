package database

import (
	"time"

	"gorm.io/gorm"
)

// Setting is one row of the local key/value store
type Setting struct {
	Key       string    `gorm:"primaryKey"`
	Value     string    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}

// TableName overrides the table name
func (Setting) TableName() string {
	return "settings"
}

// BackendSource is a shared backend-index row in the remote store.
// The API URL is the stable key; primary keys are never shared with local ids.
type BackendSource struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"not null"`
	APIURL    string    `gorm:"column:api_url;not null;uniqueIndex"`
	Active    bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}

// TableName overrides the table name
func (BackendSource) TableName() string {
	return "backend_sources"
}

// Migrate runs database migrations
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Setting{},
		&BackendSource{},
	)
}
