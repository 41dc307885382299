package common

import (
	"hash/fnv"
	"os"

	"github.com/fundwit/go-commons/types"
	"github.com/sony/sonyflake"
)

// NewIdWorker build a sonyflake id worker. The machine id is derived from host name and pid,
// sonyflake's default (private IPv4 address) is not available in every container network.
func NewIdWorker() *sonyflake.Sonyflake {
	return sonyflake.NewSonyflake(sonyflake.Settings{
		MachineID: func() (uint16, error) {
			h := fnv.New32a()
			hostname, _ := os.Hostname()
			_, _ = h.Write([]byte(hostname))
			return uint16(h.Sum32()) ^ uint16(os.Getpid()), nil
		},
	})
}

func NextId(idWorker *sonyflake.Sonyflake) types.ID {
	id, err := idWorker.NextID()
	if err != nil {
		panic(err)
	}
	return types.ID(id)
}
