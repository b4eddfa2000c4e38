package service

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 64

// stripedMutex maps keys onto a fixed set of mutexes so work on one vehicle
// is serialized without a global lock.
type stripedMutex [lockStripes]sync.Mutex

func (s *stripedMutex) get(key string) *sync.Mutex {
	f := fnv.New32a()
	_, _ = f.Write([]byte(key))
	return &s[f.Sum32()%lockStripes]
}

// lockAll takes every stripe in index order.
func (s *stripedMutex) lockAll() {
	for i := range s {
		s[i].Lock()
	}
}

func (s *stripedMutex) unlockAll() {
	for i := len(s) - 1; i >= 0; i-- {
		s[i].Unlock()
	}
}
