package flow_test

import (
	"context"
	"os"
	"path/filepath"
	"protocolo/bizerror"
	"protocolo/domain/flow"
	"protocolo/testinfra"
	"testing"
	"time"

	. "github.com/onsi/gomega"
)

func TestEmbeddedSource(t *testing.T) {
	RegisterTestingT(t)

	t.Run("seeded workflows should all be valid", func(t *testing.T) {
		defs, err := flow.EmbeddedSource{}.Load(context.Background(), "any")
		Expect(err).To(BeNil())
		r, err := flow.NewRegistry(defs)
		Expect(err).To(BeNil())
		Expect(r.Len()).To(Equal(5))

		wf, err := r.GetWorkflow("ATENDIMENTOS_SAUDE")
		Expect(err).To(BeNil())
		Expect(wf.DefaultSLA).To(Equal(5))
		Expect(wf.InitialStage().ID).To(Equal("novo"))
		s, _ := wf.FindStage("em_analise")
		Expect(s.AllowedNextStages).To(Equal([]string{"pendente_documentacao", "agendado", "concluido", "reprovado"}))
	})
}

func writeDefinition(t *testing.T, dir, name, moduleType string) {
	Expect(os.MkdirAll(dir, 0755)).To(Succeed())
	doc := `{"moduleType":"` + moduleType + `","name":"n","stages":[
		{"id":"novo","name":"Novo","order":1,"allowedNextStages":["concluido"]},
		{"id":"concluido","name":"Concluído","order":2,"allowedNextStages":[]}],"defaultSLA":2}`
	Expect(os.WriteFile(filepath.Join(dir, name), []byte(doc), 0644)).To(Succeed())
}

func TestDirSource(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should prefer the tenant directory", func(t *testing.T) {
		dir := t.TempDir()
		writeDefinition(t, dir, "shared.json", "SHARED")
		writeDefinition(t, filepath.Join(dir, "t1"), "own.json", "OWN")
		Expect(os.WriteFile(filepath.Join(dir, "README.md"), []byte("skip"), 0644)).To(Succeed())

		defs, err := flow.DirSource{Dir: dir}.Load(context.Background(), "t1")
		Expect(err).To(BeNil())
		Expect(len(defs)).To(Equal(1))
		Expect(defs[0].ModuleType).To(Equal("OWN"))

		defs, err = flow.DirSource{Dir: dir}.Load(context.Background(), "t2")
		Expect(err).To(BeNil())
		Expect(len(defs)).To(Equal(1))
		Expect(defs[0].ModuleType).To(Equal("SHARED"))
	})

	t.Run("should report malformed files", func(t *testing.T) {
		dir := t.TempDir()
		Expect(os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{"moduleType":`), 0644)).To(Succeed())
		defs, err := flow.LoadDir(dir)
		Expect(defs).To(BeNil())
		Expect(err).To(BeAssignableToTypeOf(&bizerror.ErrWorkflowInvalid{}))
		Expect(err.(*bizerror.ErrWorkflowInvalid).ModuleType).To(Equal("bad.json"))

		_, err = flow.LoadFile(filepath.Join(dir, "missing.json"))
		Expect(os.IsNotExist(err)).To(BeTrue())
	})
}

func TestDBSource(t *testing.T) {
	RegisterTestingT(t)

	var testDatabase *testinfra.TestDatabase
	setup := func() {
		testDatabase = testinfra.StartTestDatabase("protocolo")
		Expect(testDatabase.DS.GormDB(context.Background()).AutoMigrate(&flow.WorkflowDefinitionRecord{}).Error).To(BeNil())
	}
	teardown := func() {
		testinfra.StopTestDatabase(testDatabase)
	}

	t.Run("should load seeded definitions of the tenant only", func(t *testing.T) {
		setup()
		defer teardown()

		db := testDatabase.DS.GormDB(context.Background())
		Expect(flow.SeedWorkflows(db, "t1", []flow.ModuleWorkflow{saudeWorkflow()}, time.Now())).To(Succeed())
		other := saudeWorkflow()
		other.ModuleType = "VACINACAO"
		Expect(flow.SeedWorkflows(db, "t2", []flow.ModuleWorkflow{other}, time.Now())).To(Succeed())

		defs, err := flow.DBSource{DS: testDatabase.DS}.Load(context.Background(), "t1")
		Expect(err).To(BeNil())
		Expect(defs).To(Equal([]flow.ModuleWorkflow{saudeWorkflow()}))

		// reseed replaces the definition
		changed := saudeWorkflow()
		changed.DefaultSLA = 9
		Expect(flow.SeedWorkflows(db, "t1", []flow.ModuleWorkflow{changed}, time.Now())).To(Succeed())
		defs, err = flow.DBSource{DS: testDatabase.DS}.Load(context.Background(), "t1")
		Expect(err).To(BeNil())
		Expect(len(defs)).To(Equal(1))
		Expect(defs[0].DefaultSLA).To(Equal(9))
	})

	t.Run("should write nothing when any definition is invalid", func(t *testing.T) {
		setup()
		defer teardown()

		broken := saudeWorkflow()
		broken.ModuleType = "BROKEN"
		broken.Stages = nil
		db := testDatabase.DS.GormDB(context.Background())
		err := flow.SeedWorkflows(db, "t1", []flow.ModuleWorkflow{saudeWorkflow(), broken}, time.Now())
		Expect(err).To(BeAssignableToTypeOf(&bizerror.ErrWorkflowInvalid{}))

		defs, err := flow.DBSource{DS: testDatabase.DS}.Load(context.Background(), "t1")
		Expect(err).To(BeNil())
		Expect(defs).To(BeEmpty())
	})
}
