package volume

import (
	"github.com/marmos91/dittofuse/internal/logger"
)

// PruneNode evicts the resident, unreferenced descendants of nid, deepest
// first. Dirty nodes are written back before they leave the cache; a node
// whose write-back fails stays resident.
//
// It returns how many nodes were evicted and how many descendants are
// still resident.
func (v *Volume) PruneNode(nid uint64) (uint64, uint64, error) {
	if _, err := v.load(nid); err != nil {
		return 0, 0, err
	}

	var pruned, remaining uint64
	var firstErr error

	var walk func(pnid uint64)
	walk = func(pnid uint64) {
		for _, child := range v.reg.Children(pnid) {
			walk(child)

			n, ok := v.reg.Lookup(child)
			if !ok {
				continue
			}
			if n.Refs() > 0 {
				remaining++
				continue
			}
			if st, ok := v.inodes[child]; ok {
				if err := v.flushState(child, st); err != nil {
					if firstErr == nil {
						firstErr = err
					}
					remaining++
					continue
				}
			}
			if v.reg.Evict(child) {
				pruned++
			} else {
				remaining++
			}
		}
	}
	walk(nid)

	logger.Debug("Pruned nid=%d: %d evicted, %d remaining", nid, pruned, remaining)
	return pruned, remaining, firstErr
}
