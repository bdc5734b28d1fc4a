// Package tlb provides the translation cache that sits in front of the page
// tables of the active address space.
package tlb

import (
	"github.com/sarchlab/kmem/mem/vm"
	"github.com/sarchlab/kmem/mem/vm/tlb/internal"
)

// Stats summarizes how the TLB has been used since it was built.
type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Flushes uint64 `json:"flushes"`
}

// Comp is a cache(TLB) that maintains recently used page-table entries.
type Comp struct {
	name         string
	numSets      int
	numWays      int
	log2PageSize uint64

	Sets []internal.Set

	stats Stats
}

// Name returns the name of the TLB.
func (c *Comp) Name() string {
	return c.name
}

// reset sets all the entries in the TLB to be invalid
func (c *Comp) reset() {
	c.Sets = newSets(c.numSets, c.numWays)
}

func (c *Comp) vpnOf(vAddr uint64) uint64 {
	return vAddr >> c.log2PageSize
}

func (c *Comp) setOf(vpn uint64) internal.Set {
	return c.Sets[vpn%uint64(c.numSets)]
}

// Lookup returns the cached entry of the page that contains vAddr.
func (c *Comp) Lookup(vAddr uint64) (vm.PTE, bool) {
	vpn := c.vpnOf(vAddr)
	set := c.setOf(vpn)

	wayID, pte, found := set.Lookup(vpn)
	if !found {
		c.stats.Misses++
		return vm.PTE{}, false
	}

	set.Visit(wayID)
	c.stats.Hits++

	return pte, true
}

// Insert caches the entry of the page that contains vAddr, evicting the least
// recently used entry of the set if needed. Entries that are not present are
// never cached.
func (c *Comp) Insert(vAddr uint64, pte vm.PTE) {
	if !pte.Present {
		return
	}

	vpn := c.vpnOf(vAddr)
	set := c.setOf(vpn)

	wayID, _, found := set.Lookup(vpn)
	if !found {
		var ok bool
		wayID, ok = set.Evict()
		if !ok {
			return
		}
	}

	set.Update(wayID, vpn, pte)
	set.Visit(wayID)
}

// Flush drops every cached translation.
func (c *Comp) Flush() {
	c.reset()
	c.stats.Flushes++
}

// Invalidate drops every cached translation. It makes the TLB usable where a
// translation-cache invalidator is expected.
func (c *Comp) Invalidate() {
	c.Flush()
}

// Stats returns the usage counters of the TLB.
func (c *Comp) Stats() Stats {
	return c.stats
}
