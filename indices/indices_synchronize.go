package indices

import (
	"context"
	"fmt"
	"protocolo/common"
	"protocolo/domain/protocol"
	"protocolo/event"
	"protocolo/idgen"
	"protocolo/indices/indexlog"
	"protocolo/session"
	"sync"

	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var (
	ProtocolIndexEventHandlerName = "protocolIndexer"
	indexRobot                    = &session.Session{Identity: session.Identity{ID: 10, Name: "index-robot"}}

	lock    sync.Mutex
	running bool

	IndicesFullSyncFunc         = IndicesFullSync
	ScheduleNewSyncRunFunc      = ScheduleNewSyncRun
	IndexlogRecoveryRoutineFunc = IndexlogRecoveryRoutine

	FindProtocolFunc  func(ctx context.Context, tenantID string, id types.ID) (*protocol.Protocol, error)
	ScanProtocolsFunc func(ctx context.Context, batchSize int, visit func([]protocol.Protocol) error) error
	// PendingIndexLogs is nil when the storage backend is not relational.
	PendingIndexLogs *indexlog.Store

	SyncBatchSize = 500
	// SyncLimiter throttles full sync batches to spare the search cluster.
	SyncLimiter = rate.NewLimiter(rate.Limit(10), 1)

	idWorker = idgen.NewWorker()
)

// Bind wires the protocol storage into the indexer.
func Bind(repo protocol.Repository, logs *indexlog.Store) {
	FindProtocolFunc = repo.Find
	ScanProtocolsFunc = repo.Scan
	PendingIndexLogs = logs
}

// ScheduleNewSyncRun starts a full sync in background, false when one is already running.
func ScheduleNewSyncRun(s *session.Session) (bool, error) {
	lock.Lock()
	if running {
		lock.Unlock()
		return false, nil
	}
	running = true
	lock.Unlock()

	logrus.WithField("tenant", s.TenantID).WithField("actor", s.ActorRef()).Info("indices full sync scheduled")

	waitRunning := sync.WaitGroup{}
	waitRunning.Add(1)
	go func() {
		waitRunning.Done()
		defer func() {
			lock.Lock()
			running = false
			lock.Unlock()
		}()
		if err := IndicesFullSyncFunc(); err != nil {
			logrus.Errorf("indices full sync: %v", err)
		}
	}()
	waitRunning.Wait()
	return true, nil
}

// IndicesFullSync reindexes every protocol of every tenant, failed batches are logged and skipped.
func IndicesFullSync() (err error) {
	defer func() {
		if ret := recover(); ret != nil {
			e, ok := ret.(error)
			if ok {
				err = e
			} else {
				err = fmt.Errorf("error on indices full sync: %v", ret)
			}
		}
	}()

	ctx := context.Background()
	batch := 0
	indexed := 0
	err = ScanProtocolsFunc(ctx, SyncBatchSize, func(protocols []protocol.Protocol) error {
		batch++
		if err := SyncLimiter.Wait(ctx); err != nil {
			return err
		}
		if err := IndexProtocols(protocols, indexRobot); err != nil {
			logrus.Warnf("indices full sync: error on index protocols(batch = %d, size = %d): %v", batch, len(protocols), err)
			return nil
		}
		indexed += len(protocols)
		return nil
	})
	logrus.Infof("indices full sync: %d protocols indexed in %d batches", indexed, batch)
	return err
}

func IndexProtocolEventHandle(e *event.EventRecord) *event.EventHandleResult {
	if e.SourceType != event.SourceTypeProtocol {
		return nil
	}

	var log *indexlog.IndexLogRecord
	if PendingIndexLogs != nil {
		log = &indexlog.IndexLogRecord{ID: idgen.NextID(idWorker), SourceType: e.SourceType, SourceId: e.SourceId,
			SourceDesc: e.SourceDesc, TenantID: e.TenantID, Timestamp: e.Timestamp}
		if err := PendingIndexLogs.Create(context.Background(), log); err != nil {
			logrus.Warnf("create index log of protocol %d: %v", e.SourceId, err)
			log = nil
		}
	}

	if err := indexSource(e.TenantID, e.SourceId); err != nil {
		return &event.EventHandleResult{
			Message:           fmt.Sprintf("index protocol %d, %v", e.SourceId, err),
			HandlerIdentifier: ProtocolIndexEventHandlerName,
		}
	}
	if log != nil {
		if err := PendingIndexLogs.Finish(context.Background(), log.ID, common.NowFunc()); err != nil {
			logrus.Warnf("finish index log %d: %v", log.ID, err)
		}
	}
	return &event.EventHandleResult{Success: true, HandlerIdentifier: ProtocolIndexEventHandlerName}
}

func indexSource(tenantID string, id types.ID) error {
	p, err := FindProtocolFunc(context.Background(), tenantID, id)
	if err != nil {
		return fmt.Errorf("find: %w", err)
	}
	tenantRobot := indexRobot.Clone()
	tenantRobot.TenantID = tenantID
	return IndexProtocols([]protocol.Protocol{*p}, &tenantRobot)
}

// IndexlogRecoveryRoutine reindexes the sources of pending index logs.
func IndexlogRecoveryRoutine(s *session.Session) error {
	if PendingIndexLogs == nil {
		return nil
	}
	ctx := s.Ctx()
	recovered := 0
	for {
		// finished logs leave the pending set, so the first page is always the next one
		records, err := PendingIndexLogs.LoadPending(ctx, 1, SyncBatchSize)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			break
		}
		progress := 0
		for _, record := range records {
			if err := indexSource(record.TenantID, record.SourceId); err != nil {
				logrus.Warnf("recover index log %d of protocol %d: %v", record.ID, record.SourceId, err)
				continue
			}
			if err := PendingIndexLogs.Finish(ctx, record.ID, common.NowFunc()); err != nil {
				return err
			}
			progress++
		}
		recovered += progress
		if progress == 0 {
			break
		}
	}
	logrus.Infof("index log recovery: %d protocols reindexed", recovered)
	return nil
}
