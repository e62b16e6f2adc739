package models

import "time"

// SyncCheckpointID is the fixed primary key of the single checkpoint row.
const SyncCheckpointID = 1

// SyncCheckpoint is the terminal's last-sync watermark: when the queue last
// fully drained and how far the catalog delta pull has advanced.
type SyncCheckpoint struct {
	ID             int        `gorm:"column:id;primaryKey" json:"id"`
	Version        int        `gorm:"column:version;not null;default:1" json:"version"`
	LastSyncAt     *time.Time `gorm:"column:last_sync_at" json:"last_sync_at,omitempty"`
	CatalogCursor  time.Time  `gorm:"column:catalog_cursor" json:"catalog_cursor"`
	CustomerCursor time.Time  `gorm:"column:customer_cursor" json:"customer_cursor"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (SyncCheckpoint) TableName() string { return "sync_checkpoints" }
