// Package internal provides the definition required for defining TLB.
package internal

import (
	"sort"

	"github.com/sarchlab/kmem/mem/vm"
)

// A Set holds a certain number of cached translations and evicts the least
// recently used one when full.
type Set interface {
	Lookup(vpn uint64) (wayID int, pte vm.PTE, found bool)
	Update(wayID int, vpn uint64, pte vm.PTE)
	Evict() (wayID int, ok bool)
	Visit(wayID int)
}

// NewSet creates a new TLB set.
func NewSet(numWays int) Set {
	s := &setImpl{}
	s.blocks = make([]*block, numWays)
	s.visitList = make([]*block, 0, numWays)
	s.vpnWayIDMap = make(map[uint64]int)

	for i := range s.blocks {
		b := &block{}
		s.blocks[i] = b
		b.wayID = i
		s.Visit(i)
	}

	return s
}

type block struct {
	vpn       uint64
	pte       vm.PTE
	valid     bool
	wayID     int
	lastVisit uint64
}

type setImpl struct {
	blocks      []*block
	vpnWayIDMap map[uint64]int
	visitList   []*block
	visitCount  uint64
}

func (s *setImpl) Lookup(vpn uint64) (
	wayID int,
	pte vm.PTE,
	found bool,
) {
	wayID, ok := s.vpnWayIDMap[vpn]
	if !ok {
		return 0, vm.PTE{}, false
	}

	b := s.blocks[wayID]

	return b.wayID, b.pte, true
}

func (s *setImpl) Update(wayID int, vpn uint64, pte vm.PTE) {
	b := s.blocks[wayID]
	if b.valid {
		delete(s.vpnWayIDMap, b.vpn)
	}

	b.vpn = vpn
	b.pte = pte
	b.valid = true
	s.vpnWayIDMap[vpn] = wayID
}

func (s *setImpl) Evict() (wayID int, ok bool) {
	if len(s.visitList) == 0 {
		return 0, false
	}

	wayID = s.visitList[0].wayID
	s.visitList = s.visitList[1:]

	return wayID, true
}

func (s *setImpl) Visit(wayID int) {
	b := s.blocks[wayID]

	for i, visited := range s.visitList {
		if visited.wayID == wayID {
			s.visitList = append(s.visitList[:i], s.visitList[i+1:]...)
			break
		}
	}

	s.visitCount++
	b.lastVisit = s.visitCount

	index := sort.Search(len(s.visitList), func(i int) bool {
		return s.visitList[i].lastVisit > b.lastVisit
	})

	s.visitList = append(s.visitList, nil)
	copy(s.visitList[index+1:], s.visitList[index:])
	s.visitList[index] = b
}
