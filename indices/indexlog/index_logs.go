package indexlog

import (
	"context"
	"protocolo/persistence"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

// IndexLogRecord is a pending reindex of one source, kept until the document is written.
type IndexLogRecord struct {
	ID types.ID `json:"id" gorm:"primary_key"`

	SourceType string   `json:"sourceType" gorm:"type:varchar(32);index:for_search"`
	SourceId   types.ID `json:"sourceId"   gorm:"index:for_search"`
	SourceDesc string   `json:"sourceDesc" gorm:"type:varchar(64)"`
	TenantID   string   `json:"tenantId"   gorm:"type:varchar(64)"`

	Obsolete    bool       `json:"obsolete"`
	Timestamp   time.Time  `json:"timestamp"   gorm:"precision:3"`
	IndexedTime *time.Time `json:"indexedTime" gorm:"precision:3"`
}

func (r *IndexLogRecord) TableName() string {
	return "index_logs"
}

type Store struct {
	dataSource *persistence.DataSourceManager
}

func NewStore(ds *persistence.DataSourceManager) *Store {
	return &Store{dataSource: ds}
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.dataSource.GormDB(ctx).AutoMigrate(&IndexLogRecord{}).Error
}

// Create obsoletes the pending logs of the same source and records a new one.
func (s *Store) Create(ctx context.Context, record *IndexLogRecord) error {
	return s.dataSource.GormDB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&IndexLogRecord{}).
			Where("source_type = ? AND source_id = ? AND indexed_time IS NULL AND obsolete = ?", record.SourceType, record.SourceId, false).
			Update("obsolete", true).Error; err != nil {
			return err
		}
		return tx.Create(record).Error
	})
}

func (s *Store) Finish(ctx context.Context, id types.ID, at time.Time) error {
	changes := map[string]interface{}{"indexed_time": at, "obsolete": false}
	return s.dataSource.GormDB(ctx).Model(&IndexLogRecord{}).Where("id = ?", id).Update(changes).Error
}

func (s *Store) LoadPending(ctx context.Context, page, size int) ([]IndexLogRecord, error) {
	records := []IndexLogRecord{}
	offset := (page - 1) * size
	if offset < 0 {
		offset = 0
	}
	if err := s.dataSource.GormDB(ctx).Where("indexed_time IS NULL AND obsolete = ?", false).
		Order("id ASC").Offset(offset).Limit(size).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
