package idgen_test

import (
	"protocolo/idgen"
	"testing"

	. "github.com/onsi/gomega"
)

func TestNextID(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should generate increasing ids", func(t *testing.T) {
		worker := idgen.NewWorker()
		id1 := idgen.NextID(worker)
		id2 := idgen.NextID(worker)
		Expect(id1).ToNot(BeZero())
		Expect(id2 > id1).To(BeTrue())
	})
}
