package flow

import (
	"context"
	"embed"
	"encoding/json"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"protocolo/bizerror"
	"protocolo/persistence"
	"sort"
	"strings"
	"time"

	"github.com/jinzhu/gorm"
)

//go:embed seeds/*.json
var seedFS embed.FS

// Source supplies the raw workflow definitions of a tenant.
type Source interface {
	Load(ctx context.Context, tenantID string) ([]ModuleWorkflow, error)
}

// EmbeddedSource serves the built-in seed definitions to every tenant.
type EmbeddedSource struct{}

func (EmbeddedSource) Load(ctx context.Context, tenantID string) ([]ModuleWorkflow, error) {
	return loadFS(seedFS, "seeds")
}

// DirSource reads <Dir>/<tenant>/*.json when the tenant has its own directory, <Dir>/*.json otherwise.
type DirSource struct {
	Dir string
}

func (s DirSource) Load(ctx context.Context, tenantID string) ([]ModuleWorkflow, error) {
	dir := s.Dir
	if tenantID != "" {
		tenantDir := filepath.Join(s.Dir, tenantID)
		if info, err := os.Stat(tenantDir); err == nil && info.IsDir() {
			dir = tenantDir
		}
	}
	return LoadDir(dir)
}

func LoadDir(dir string) ([]ModuleWorkflow, error) {
	return loadFS(os.DirFS(dir), ".")
}

func LoadFile(file string) ([]ModuleWorkflow, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return parseNamed(file, data)
}

func loadFS(fsys fs.FS, dir string) ([]ModuleWorkflow, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	names := []string{}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	all := []ModuleWorkflow{}
	for _, name := range names {
		data, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, err
		}
		defs, err := parseNamed(name, data)
		if err != nil {
			return nil, err
		}
		all = append(all, defs...)
	}
	return all, nil
}

func parseNamed(name string, data []byte) ([]ModuleWorkflow, error) {
	defs, err := ParseWorkflows(data)
	if err != nil {
		return nil, &bizerror.ErrWorkflowInvalid{ModuleType: name, Problems: []string{"malformed definition: " + err.Error()}}
	}
	return defs, nil
}

// WorkflowDefinitionRecord keeps one seeded definition as its json document.
type WorkflowDefinitionRecord struct {
	TenantID   string    `json:"tenantId"   gorm:"primary_key;type:varchar(64)"`
	ModuleType string    `json:"moduleType" gorm:"primary_key;type:varchar(128)"`
	Definition string    `json:"definition" sql:"type:TEXT"`
	UpdateTime time.Time `json:"updateTime" gorm:"precision:3"`
}

func (r *WorkflowDefinitionRecord) TableName() string {
	return "workflow_definitions"
}

// DBSource loads the definitions seeded into the workflow_definitions table.
type DBSource struct {
	DS *persistence.DataSourceManager
}

func (s DBSource) Load(ctx context.Context, tenantID string) ([]ModuleWorkflow, error) {
	var records []WorkflowDefinitionRecord
	if err := s.DS.GormDB(ctx).Where(&WorkflowDefinitionRecord{TenantID: tenantID}).
		Order("module_type ASC").Find(&records).Error; err != nil {
		return nil, bizerror.Internal(err)
	}
	defs := make([]ModuleWorkflow, 0, len(records))
	for _, r := range records {
		def := ModuleWorkflow{}
		if err := json.Unmarshal([]byte(r.Definition), &def); err != nil {
			return nil, &bizerror.ErrWorkflowInvalid{ModuleType: r.ModuleType, Problems: []string{"malformed definition: " + err.Error()}}
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// SeedWorkflows replaces the definitions of tenantID; nothing is written unless all of them are valid.
func SeedWorkflows(db *gorm.DB, tenantID string, defs []ModuleWorkflow, now time.Time) error {
	if _, err := NewRegistry(defs); err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		for _, def := range defs {
			doc, err := json.Marshal(def)
			if err != nil {
				return err
			}
			record := WorkflowDefinitionRecord{TenantID: tenantID, ModuleType: def.ModuleType, Definition: string(doc), UpdateTime: now}
			if err := tx.Save(&record).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
