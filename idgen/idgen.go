package idgen

import (
	"github.com/fundwit/go-commons/types"
	"github.com/sony/sonyflake"
)

// NewWorker falls back to a fixed machine id when no private address is available (containers, CI).
func NewWorker() *sonyflake.Sonyflake {
	worker := sonyflake.NewSonyflake(sonyflake.Settings{})
	if worker == nil {
		worker = sonyflake.NewSonyflake(sonyflake.Settings{MachineID: func() (uint16, error) { return 1, nil }})
	}
	return worker
}

func NextID(idWorker *sonyflake.Sonyflake) types.ID {
	id, err := idWorker.NextID()
	if err != nil {
		panic(err)
	}
	return types.ID(id)
}
