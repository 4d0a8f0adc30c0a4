package protocol

import (
	"context"
	"protocolo/bizerror"
	"protocolo/persistence"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

const sequenceAttempts = 5

// ProtocolSequence is the last protocol number consumed by a tenant in a year.
type ProtocolSequence struct {
	TenantID string `gorm:"primary_key;type:varchar(64)"`
	Year     int    `gorm:"primary_key;auto_increment:false"`
	Consumed int64  `sql:"type:BIGINT NOT NULL"`
}

func (s *ProtocolSequence) TableName() string {
	return "protocol_sequences"
}

type GormRepository struct {
	dataSource *persistence.DataSourceManager
}

func NewGormRepository(ds *persistence.DataSourceManager) *GormRepository {
	return &GormRepository{dataSource: ds}
}

// Migrate creates or updates the protocol tables.
func (r *GormRepository) Migrate(ctx context.Context) error {
	return r.dataSource.GormDB(ctx).AutoMigrate(&Protocol{}, &HistoryEntry{}, &ProtocolSequence{}).Error
}

func (r *GormRepository) Create(ctx context.Context, p *Protocol, entry *HistoryEntry) error {
	return r.dataSource.GormDB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		return tx.Create(entry).Error
	})
}

func (r *GormRepository) Find(ctx context.Context, tenantID string, id types.ID) (*Protocol, error) {
	return r.find(r.dataSource.GormDB(ctx), tenantID, id)
}

func (r *GormRepository) find(db *gorm.DB, tenantID string, id types.ID) (*Protocol, error) {
	p := Protocol{}
	if err := db.Where("id = ? AND tenant_id = ?", id, tenantID).First(&p).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, bizerror.NotFound("protocol", id.String())
		}
		return nil, err
	}
	return &p, nil
}

func (r *GormRepository) History(ctx context.Context, tenantID string, id types.ID) ([]HistoryEntry, error) {
	db := r.dataSource.GormDB(ctx)
	if _, err := r.find(db, tenantID, id); err != nil {
		return nil, err
	}
	var entries []HistoryEntry
	if err := db.Where(&HistoryEntry{ProtocolID: id}).Order("timestamp ASC, id ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *GormRepository) Commit(ctx context.Context, p *Protocol, expectedVersion int64, entry *HistoryEntry) error {
	err := r.dataSource.GormDB(ctx).Transaction(func(tx *gorm.DB) error {
		db := tx.Model(&Protocol{}).Where("id = ? AND tenant_id = ? AND version = ?", p.ID, p.TenantID, expectedVersion).
			Updates(map[string]interface{}{
				"current_stage":     p.CurrentStage,
				"priority":          p.Priority,
				"concluded_at":      p.ConcludedAt,
				"assigned_user_ref": p.AssignedUserRef,
				"version":           expectedVersion + 1,
			})
		if db.Error != nil {
			return db.Error
		}
		if db.RowsAffected != 1 {
			return bizerror.ErrConflict
		}
		return tx.Create(entry).Error
	})
	if err != nil {
		return err
	}
	p.Version = expectedVersion + 1
	return nil
}

func (r *GormRepository) List(ctx context.Context, q Query) ([]Protocol, error) {
	db := r.dataSource.GormDB(ctx).Where("tenant_id = ?", q.TenantID)
	if q.ModuleType != "" {
		db = db.Where("module_type = ?", q.ModuleType)
	}
	if len(q.Stages) > 0 {
		db = db.Where("current_stage IN (?)", q.Stages)
	}
	if q.DepartmentRef != "" {
		db = db.Where("department_ref = ?", q.DepartmentRef)
	}
	if q.AssignedUserRef != "" {
		db = db.Where("assigned_user_ref = ?", q.AssignedUserRef)
	}
	if q.CitizenRef != "" {
		db = db.Where("citizen_ref = ?", q.CitizenRef)
	}
	if q.OpenOnly {
		db = db.Where("concluded_at IS NULL")
	}
	protocols := []Protocol{}
	if err := db.Order("id ASC").Find(&protocols).Error; err != nil {
		return nil, err
	}
	return protocols, nil
}

// NextSequence consumes the next number of tenantID in year with a compare-and-swap on the current value.
func (r *GormRepository) NextSequence(ctx context.Context, tenantID string, year int) (int64, error) {
	var lastErr error
	for attempt := 0; attempt < sequenceAttempts; attempt++ {
		var next int64
		err := r.dataSource.GormDB(ctx).Transaction(func(tx *gorm.DB) error {
			seq := ProtocolSequence{}
			err := tx.Where(&ProtocolSequence{TenantID: tenantID, Year: year}).First(&seq).Error
			if gorm.IsRecordNotFoundError(err) {
				next = 1
				return tx.Create(&ProtocolSequence{TenantID: tenantID, Year: year, Consumed: next}).Error
			}
			if err != nil {
				return err
			}

			next = seq.Consumed + 1
			db := tx.Model(&ProtocolSequence{}).Where(&ProtocolSequence{TenantID: tenantID, Year: year, Consumed: seq.Consumed}).
				Update("consumed", next)
			if db.Error != nil {
				return db.Error
			}
			if db.RowsAffected != 1 {
				return bizerror.ErrConflict
			}
			return nil
		})
		if err == nil {
			return next, nil
		}
		lastErr = err
	}
	return 0, lastErr
}

func (r *GormRepository) Scan(ctx context.Context, batchSize int, visit func([]Protocol) error) error {
	batchSize = normalizeBatchSize(batchSize)
	var lastID types.ID
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch := []Protocol{}
		if err := r.dataSource.GormDB(ctx).Where("id > ?", lastID).Order("id ASC").Limit(batchSize).Find(&batch).Error; err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		if err := visit(batch); err != nil {
			return err
		}
		lastID = batch[len(batch)-1].ID
	}
}

func normalizeBatchSize(batchSize int) int {
	if batchSize <= 0 {
		return 500
	}
	return batchSize
}

