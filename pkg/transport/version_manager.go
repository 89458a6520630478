package transport

import (
	"sync"
	"sync/atomic"

	"opcrdt/pkg/structs"
)

// Version identifies one message sent by a replica.
type Version struct {
	ReplicaID string `json:"replica"`
	Sequence  uint64 `json:"seq"`
}

// VersionManager numbers outgoing messages and remembers which messages of
// every replica were already delivered.
type VersionManager struct {
	mutex  sync.Mutex
	nodeID string
	seq    atomic.Uint64
	// contiguous — максимальный номер, до которого все сообщения получены
	contiguous map[string]uint64
	// ahead — номера, полученные с разрывом
	ahead map[string]structs.Set[uint64]
}

func NewVersionManager(nodeID string) *VersionManager {
	return &VersionManager{
		nodeID:     nodeID,
		contiguous: make(map[string]uint64),
		ahead:      make(map[string]structs.Set[uint64]),
	}
}

// Advance returns the version of the next local message.
func (vm *VersionManager) Advance() Version {
	return Version{ReplicaID: vm.nodeID, Sequence: vm.seq.Add(1)}
}

// Observe records v and reports whether it was seen for the first time.
func (vm *VersionManager) Observe(v Version) bool {
	vm.mutex.Lock()
	defer vm.mutex.Unlock()

	done := vm.contiguous[v.ReplicaID]
	if v.Sequence <= done {
		return false
	}
	pending := vm.ahead[v.ReplicaID]
	if pending == nil {
		pending = structs.NewSet[uint64]()
		vm.ahead[v.ReplicaID] = pending
	}
	if pending.Contains(v.Sequence) {
		return false
	}
	pending.Add(v.Sequence)

	// сдвигаем непрерывный префикс
	for pending.Contains(done + 1) {
		done++
		pending.Remove(done)
	}
	vm.contiguous[v.ReplicaID] = done
	return true
}

// Delivered returns the highest sequence of replicaID up to which every
// message was observed.
func (vm *VersionManager) Delivered(replicaID string) uint64 {
	vm.mutex.Lock()
	defer vm.mutex.Unlock()
	return vm.contiguous[replicaID]
}
