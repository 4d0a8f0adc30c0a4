package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"protocolo/common"
	"protocolo/domain/flow"
	"protocolo/persistence"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newWorkflowsCommand(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflows",
		Short: "inspect and seed module workflow definitions",
	}
	cmd.AddCommand(newValidateCommand(), newShowCommand(), newSeedCommand(load))
	return cmd
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <dir|file>",
		Short: "validate definition files, every error is reported",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := loadRegistry(args[0])
			if err != nil {
				return err
			}
			renderWorkflows(cmd.OutOrStdout(), registry.List())
			return nil
		},
	}
}

func newShowCommand() *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "show <moduleType>",
		Short: "show the stages of a module workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := loadRegistry(from)
			if err != nil {
				return err
			}
			wf, err := registry.GetWorkflow(args[0])
			if err != nil {
				return err
			}
			renderStages(cmd.OutOrStdout(), wf)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "definition directory or file, the embedded seeds when empty")
	return cmd
}

func newSeedCommand(load configLoader) *cobra.Command {
	var from string
	var tenants []string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "store definitions into the workflow_definitions table of the configured database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(tenants) == 0 {
				return errors.New("at least one --tenant is required")
			}
			c, err := load()
			if err != nil {
				return err
			}
			registry, err := loadRegistry(from)
			if err != nil {
				return err
			}
			defs := make([]flow.ModuleWorkflow, 0, registry.Len())
			for _, wf := range registry.List() {
				defs = append(defs, wf.ModuleWorkflow)
			}

			ds := &persistence.DataSourceManager{DatabaseConfig: &c.Database, LogSQL: c.Log.SQL}
			if err := ds.Start(); err != nil {
				return fmt.Errorf("database connection failed: %w", err)
			}
			defer ds.Stop()
			db := ds.GormDB(context.Background())
			if err := db.AutoMigrate(&flow.WorkflowDefinitionRecord{}).Error; err != nil {
				return err
			}
			for _, tenant := range tenants {
				if err := flow.SeedWorkflows(db, tenant, defs, common.NowFunc()); err != nil {
					return fmt.Errorf("seed tenant %s: %w", tenant, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d workflows for tenant %s\n", len(defs), tenant)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "definition directory or file, the embedded seeds when empty")
	cmd.Flags().StringArrayVar(&tenants, "tenant", nil, "tenant to seed, repeatable")
	return cmd
}

func loadRegistry(from string) (*flow.Registry, error) {
	var defs []flow.ModuleWorkflow
	var err error
	switch info, statErr := os.Stat(from); {
	case from == "":
		defs, err = flow.EmbeddedSource{}.Load(context.Background(), "")
	case statErr != nil:
		return nil, statErr
	case info.IsDir():
		defs, err = flow.LoadDir(from)
	default:
		defs, err = flow.LoadFile(from)
	}
	if err != nil {
		return nil, err
	}
	return flow.NewRegistry(defs)
}

func renderWorkflows(out io.Writer, workflows []*flow.Workflow) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Module Type", "Name", "Stages", "Initial", "Terminal", "SLA Days"})
	for _, wf := range workflows {
		terminal := []string{}
		for _, s := range wf.StateMachine().TerminalStages() {
			terminal = append(terminal, s.ID)
		}
		t.AppendRow(table.Row{wf.ModuleType, wf.Name, len(wf.Stages), wf.InitialStage().ID, strings.Join(terminal, ", "), wf.DefaultSLA})
	}
	t.Render()
}

func renderStages(out io.Writer, wf *flow.Workflow) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle(fmt.Sprintf("%s (%s), SLA %d days", wf.ModuleType, wf.Name, wf.DefaultSLA))
	t.AppendHeader(table.Row{"Order", "Stage", "Name", "Next Stages"})
	for _, s := range wf.Stages {
		next := strings.Join(s.AllowedNextStages, ", ")
		if s.IsTerminal() {
			next = "(terminal)"
		}
		t.AppendRow(table.Row{s.Order, s.ID, s.Name, next})
	}
	t.Render()
}
