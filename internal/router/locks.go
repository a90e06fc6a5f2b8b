package router

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 64

// roomLocks serializes participant mutations per room. Rooms are
// independent, so a striped set of mutexes keyed by room id is enough;
// reads never take a lock.
type roomLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *roomLocks) forRoom(roomId string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(roomId))
	return &l.stripes[h.Sum32()%lockStripes]
}
