package l2

import (
	rbt "github.com/emirpasic/gods/v2/trees/redblacktree"
)

// quantizedSnapshot buckets every resting price on a side into buckets of
// width scale and aggregates their public/current depth, returning up to
// step buckets ordered the way the side itself is ordered (bid buckets
// descending, ask buckets ascending). A red-black tree orders the bucket
// ids so that per-request snapshot building stays O(n log n) regardless
// of how sparse the live price set is, mirroring the bucketed-tree
// approach used for dense order-book scans.
func (b *Book) quantizedSnapshot(isBid bool, scale uint64, step int) []SnapshotRow {
	if scale == 0 {
		return nil
	}
	s := b.sideFor(isBid)
	if !s.scales[scale] {
		return nil
	}

	var cmp func(a, b uint64) int
	if isBid {
		cmp = func(a, b uint64) int {
			switch {
			case a > b:
				return -1
			case a < b:
				return 1
			default:
				return 0
			}
		}
	} else {
		cmp = func(a, b uint64) int {
			switch {
			case a < b:
				return -1
			case a > b:
				return 1
			default:
				return 0
			}
		}
	}

	buckets := rbt.NewWith[uint64, *SnapshotRow](cmp)
	for price, cur := range s.current {
		bucketID := (price / scale) * scale
		row, found := buckets.Get(bucketID)
		if !found {
			row = &SnapshotRow{Price: bucketID}
			buckets.Put(bucketID, row)
		}
		row.Pqty += s.public[price]
		row.Cqty += cur
	}

	out := make([]SnapshotRow, 0, step)
	it := buckets.Iterator()
	for it.Next() {
		if len(out) >= step {
			break
		}
		out = append(out, *it.Value())
	}
	return out
}
