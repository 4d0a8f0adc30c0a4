package protocol_test

import (
	"context"
	"protocolo/domain/flow"
	"time"
)

func utc(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func seededWorkflows() *flow.TenantRegistries {
	return flow.NewTenantRegistries(flow.EmbeddedSource{}, 0)
}

func saude() *flow.Workflow {
	wf, err := seededWorkflows().GetWorkflow(context.Background(), "t1", "ATENDIMENTOS_SAUDE")
	if err != nil {
		panic(err)
	}
	return wf
}
