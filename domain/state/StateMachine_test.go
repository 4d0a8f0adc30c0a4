package state_test

import (
	"protocolo/bizerror"
	"protocolo/domain/state"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("StateMachine", func() {
	var (
		stateMachine *state.StateMachine
	)

	BeforeEach(func() {
		//              novo   em_analise   pendente   concluido   cancelado
		// novo          -        V            X          X           V
		// em_analise    X        -            V          V           X
		// pendente      X        V            -          X           V
		// concluido / cancelado are terminal
		stateMachine = state.NewStateMachine("ATENDIMENTOS_SAUDE", []state.Stage{
			{ID: "concluido", Name: "Concluído", Order: 4},
			{ID: "em_analise", Name: "Em Análise", Order: 2, AllowedNextStages: []string{"pendente", "concluido"}},
			{ID: "novo", Name: "Novo", Order: 1, AllowedNextStages: []string{"em_analise", "cancelado"}},
			{ID: "pendente", Name: "Pendente", Order: 3, AllowedNextStages: []string{"em_analise", "cancelado"}},
			{ID: "cancelado", Name: "Cancelado", Order: 5},
		})
	})

	Describe("NewStateMachine", func() {
		It("should sort stages by order", func() {
			ids := []string{}
			for _, s := range stateMachine.Stages {
				ids = append(ids, s.ID)
			}
			Expect(ids).To(Equal([]string{"novo", "em_analise", "pendente", "concluido", "cancelado"}))
			Expect(stateMachine.Name).To(Equal("ATENDIMENTOS_SAUDE"))
		})

		It("should not share the stage slice with the caller", func() {
			stages := []state.Stage{{ID: "a", Order: 1, AllowedNextStages: []string{"b"}}, {ID: "b", Order: 2}}
			sm := state.NewStateMachine("X", stages)
			stages[0].ID = "changed"
			_, found := sm.FindStage("a")
			Expect(found).To(BeTrue())
		})
	})

	Describe("InitialStage and TerminalStages", func() {
		It("should expose the lowest order stage and the stages without next stages", func() {
			initial, found := stateMachine.InitialStage()
			Expect(found).To(BeTrue())
			Expect(initial.ID).To(Equal("novo"))

			terminals := stateMachine.TerminalStages()
			Expect(len(terminals)).To(Equal(2))
			Expect(terminals[0].ID).To(Equal("concluido"))
			Expect(terminals[1].ID).To(Equal("cancelado"))
			Expect(stateMachine.IsTerminal("concluido")).To(BeTrue())
			Expect(stateMachine.IsTerminal("novo")).To(BeFalse())
			Expect(stateMachine.IsTerminal("unknown")).To(BeFalse())
		})

		It("should report no initial stage for empty workflows", func() {
			_, found := state.NewStateMachine("EMPTY", nil).InitialStage()
			Expect(found).To(BeFalse())
		})
	})

	Describe("AvailableTransitions", func() {
		It("should return availableTransitions as expected", func() {
			next := stateMachine.AvailableTransitions("novo")
			Expect(len(next)).To(Equal(2))
			Expect(next[0].ID).To(Equal("em_analise"))
			Expect(next[1].ID).To(Equal("cancelado"))

			Expect(stateMachine.AvailableTransitions("concluido")).To(BeEmpty())
			Expect(stateMachine.AvailableTransitions("UNKNOWN")).To(BeNil())
		})
	})

	Describe("CheckTransition", func() {
		It("should accept moves listed in allowedNextStages", func() {
			Expect(stateMachine.CheckTransition("novo", "em_analise")).To(Succeed())
			Expect(stateMachine.CheckTransition("em_analise", "concluido")).To(Succeed())
			Expect(stateMachine.CheckTransition("pendente", "em_analise")).To(Succeed())
		})

		It("should reject moves not listed in allowedNextStages", func() {
			err := stateMachine.CheckTransition("novo", "concluido")
			Expect(err).To(Equal(&bizerror.ErrIllegalTransition{
				FromStage: "novo", ToStage: "concluido", Allowed: []string{"em_analise", "cancelado"}}))
		})

		It("should reject self transitions unless listed", func() {
			err := stateMachine.CheckTransition("novo", "novo")
			Expect(err).To(BeAssignableToTypeOf(&bizerror.ErrIllegalTransition{}))

			loop := state.NewStateMachine("LOOP", []state.Stage{
				{ID: "novo", Order: 1, AllowedNextStages: []string{"novo", "fim"}}, {ID: "fim", Order: 2},
			})
			Expect(loop.CheckTransition("novo", "novo")).To(Succeed())
		})

		It("should reject unknown targets", func() {
			err := stateMachine.CheckTransition("novo", "arquivado")
			Expect(err).To(Equal(&bizerror.ErrInvalidTarget{ModuleType: "ATENDIMENTOS_SAUDE", TargetStage: "arquivado"}))
		})

		It("should reject any move from terminal stages", func() {
			for _, target := range []string{"novo", "em_analise", "arquivado", "concluido"} {
				err := stateMachine.CheckTransition("concluido", target)
				Expect(err).To(Equal(&bizerror.ErrTerminalState{Stage: "concluido"}))
			}
		})

		It("should report unknown origin stages as not found", func() {
			err := stateMachine.CheckTransition("arquivado", "novo")
			Expect(err).To(MatchError(bizerror.ErrNotFound))
		})
	})

	Describe("Reachable", func() {
		It("should walk the graph from a stage", func() {
			Expect(stateMachine.Reachable("pendente")).To(Equal(map[string]bool{
				"pendente": true, "em_analise": true, "concluido": true, "cancelado": true}))
			Expect(stateMachine.Reachable("unknown")).To(BeEmpty())
		})
	})

	Describe("Problems", func() {
		It("should accept a well formed graph", func() {
			Expect(stateMachine.Problems()).To(BeEmpty())
		})

		It("should accept a single terminal stage workflow", func() {
			single := state.NewStateMachine("AVISO", []state.Stage{{ID: "registrado", Order: 1}})
			Expect(single.Problems()).To(BeEmpty())
		})

		It("should report every structural defect", func() {
			broken := state.NewStateMachine("BROKEN", []state.Stage{
				{ID: "novo", Order: 1, AllowedNextStages: []string{"fantasma"}},
				{ID: "novo", Order: 2, AllowedNextStages: []string{"novo"}},
				{ID: "fim", Order: 2, AllowedNextStages: []string{"novo"}},
			})
			Expect(broken.Problems()).To(Equal([]string{
				"stage id novo is duplicated",
				"stages novo and fim share order 2",
				"stage novo allows unknown stage fantasma",
				"workflow has no terminal stage",
			}))
		})

		It("should reject terminal initial stages", func() {
			sm := state.NewStateMachine("X", []state.Stage{
				{ID: "fim", Order: 1}, {ID: "novo", Order: 2, AllowedNextStages: []string{"fim"}},
			})
			Expect(sm.Problems()).To(Equal([]string{"initial stage fim is terminal"}))
		})

		It("should reject graphs whose terminal stages are unreachable", func() {
			sm := state.NewStateMachine("X", []state.Stage{
				{ID: "novo", Order: 1, AllowedNextStages: []string{"analise"}},
				{ID: "analise", Order: 2, AllowedNextStages: []string{"novo"}},
				{ID: "fim", Order: 3},
			})
			Expect(sm.Problems()).To(Equal([]string{"no terminal stage is reachable from initial stage novo"}))
		})

		It("should reject empty workflows", func() {
			Expect(state.NewStateMachine("X", nil).Problems()).To(Equal([]string{"workflow has no stage"}))
		})
	})
})
