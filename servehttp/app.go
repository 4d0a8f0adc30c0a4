package servehttp

import (
	"context"
	"fmt"
	"net/http"
	"protocolo/bizerror"
	"protocolo/client/es"
	"protocolo/common"
	"protocolo/config"
	"protocolo/domain/flow"
	"protocolo/domain/protocol"
	"protocolo/domain/sla"
	"protocolo/event"
	"protocolo/indices"
	"protocolo/indices/indexlog"
	"protocolo/indices/search"
	"protocolo/infra/tracing"
	"protocolo/persistence"
	"protocolo/session"

	"github.com/gin-gonic/gin"
	cron "github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// App is the wired service: storage, workflow registries, the protocol engine and its REST surface.
type App struct {
	Engine     *gin.Engine
	Manager    *protocol.ProtocolManager
	Workflows  *flow.TenantRegistries
	Repository protocol.Repository

	closers []func()
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Build connects the configured backends and registers every route.
func Build(ctx context.Context, c *config.Config) (_ *App, err error) {
	app := &App{}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	var ds *persistence.DataSourceManager
	if c.Storage.Backend == config.BackendGorm {
		if ds, err = startDatabase(c); err != nil {
			return nil, err
		}
		app.closers = append(app.closers, ds.Stop)
	}

	var logs *indexlog.Store
	switch c.Storage.Backend {
	case config.BackendGorm:
		repo := protocol.NewGormRepository(ds)
		if err = repo.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("database migration failed: %w", err)
		}
		logs = indexlog.NewStore(ds)
		if err = logs.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("database migration failed: %w", err)
		}
		app.Repository = repo
	case config.BackendRedis:
		rdb, e := protocol.NewRedisClient(c.Redis)
		if e != nil {
			return nil, fmt.Errorf("redis connection failed: %w", e)
		}
		app.closers = append(app.closers, func() { _ = rdb.Close() })
		app.Repository = protocol.NewRedisRepository(rdb, c.Redis.Prefix)
	default:
		app.Repository = protocol.NewMemoryRepository()
	}

	source, err := workflowSource(ctx, c, ds)
	if err != nil {
		return nil, err
	}
	app.Workflows = flow.NewTenantRegistries(source, c.Workflows.CacheTTL())
	if err = app.Workflows.Preload(ctx, c.Workflows.Preload...); err != nil {
		return nil, err
	}

	calculator, err := sla.NewCalculator(c.SLA)
	if err != nil {
		return nil, err
	}
	app.Manager = protocol.NewProtocolManager(app.Repository, app.Workflows, calculator, c.Protocol.Options())

	event.EventHandlers = []event.EventHandler{event.NotificationEventHandle}
	if c.Search.Enabled {
		if _, err = es.CreateClient(c.Search.Client()); err != nil {
			return nil, fmt.Errorf("elasticsearch client: %w", err)
		}
		indices.Bind(app.Repository, logs)
		event.EventHandlers = append(event.EventHandlers, indices.IndexProtocolEventHandle)
		var crontab *cron.Cron
		if crontab, err = indices.StartCron(c.Search.SyncSchedule); err != nil {
			return nil, fmt.Errorf("indices sync schedule: %w", err)
		}
		app.closers = append(app.closers, func() { crontab.Stop() })
	}

	app.Engine = NewEngine(app.Manager, app.Workflows, c.Search.Enabled)
	return app, nil
}

func NewEngine(manager protocol.ProtocolManagerTraits, workflows flow.RegistryProvider, searchEnabled bool) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Logger(), tracing.TracingIngress(), bizerror.ErrorHandling())
	engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, common.ServiceName)
	})

	identity := session.IdentityFilter()
	flow.RegisterWorkflowsRestAPI(engine, workflows, identity)
	protocol.RegisterProtocolsRestAPI(engine, manager, identity)
	if searchEnabled {
		indices.RegisterIndicesRestAPI(engine, identity)
		search.RegisterSearchRestAPI(engine, identity)
	}
	return engine
}

func startDatabase(c *config.Config) (*persistence.DataSourceManager, error) {
	// create database (no conflict)
	if c.Database.DriverType == "mysql" {
		if err := persistence.PrepareMysqlDatabase(c.Database.DriverArgs); err != nil {
			return nil, fmt.Errorf("failed to prepare database: %w", err)
		}
	}
	dbConfig := c.Database
	ds := &persistence.DataSourceManager{DatabaseConfig: &dbConfig, LogSQL: c.Log.SQL}
	if err := ds.Start(); err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	persistence.ActiveDataSourceManager = ds
	return ds, nil
}

func workflowSource(ctx context.Context, c *config.Config, ds *persistence.DataSourceManager) (flow.Source, error) {
	switch c.Workflows.Source {
	case config.WorkflowSourceDir:
		return flow.DirSource{Dir: c.Workflows.Dir}, nil
	case config.WorkflowSourceDB:
		if err := ds.GormDB(ctx).AutoMigrate(&flow.WorkflowDefinitionRecord{}).Error; err != nil {
			return nil, fmt.Errorf("database migration failed: %w", err)
		}
		return flow.DBSource{DS: ds}, nil
	default:
		logrus.Info("serving the embedded workflow definitions")
		return flow.EmbeddedSource{}, nil
	}
}
