package main

// Production records a modifier crafted from a subset of a combo.
type Production struct {
	ID     ModifierID
	Recipe []ModifierID // ids of the claimed combo entries, in combo order
}

// subsetOrder lists position bitmasks for combos of length 0..QueueLength,
// ordered by ascending subset size and then lexicographically by positions.
var subsetOrder = func() [QueueLength + 1][]uint8 {
	var out [QueueLength + 1][]uint8
	for n := 0; n <= QueueLength; n++ {
		for size := 1; size <= n; size++ {
			out[n] = appendCombinations(out[n], n, size, 0, 0)
		}
	}
	return out
}()

func appendCombinations(dst []uint8, n, size, start int, mask uint8) []uint8 {
	if size == 0 {
		return append(dst, mask)
	}
	for i := start; i <= n-size; i++ {
		dst = appendCombinations(dst, n, size-1, i+1, mask|1<<i)
	}
	return dst
}

// Produce greedily matches subsets of combo against known recipes. Subsets
// are tried smallest first, then in position order; a subset is accepted
// only if none of its positions were claimed by an earlier match. Overlapping
// recipes therefore resolve to whichever is enumerated first.
func Produce(c *Catalog, combo []ModifierID) []Production {
	if len(combo) > QueueLength {
		panic("combo longer than the queue")
	}
	var out []Production
	var used uint8
	ids := make([]ModifierID, 0, QueueLength)
	for _, mask := range subsetOrder[len(combo)] {
		if mask&used != 0 {
			continue
		}
		ids = ids[:0]
		for i := range combo {
			if mask&(1<<i) != 0 {
				ids = append(ids, combo[i])
			}
		}
		id, ok := c.ByRecipe(ids)
		if !ok {
			continue
		}
		out = append(out, Production{ID: id, Recipe: append([]ModifierID(nil), ids...)})
		used |= mask
	}
	return out
}

// ProducedIDs returns the set of modifiers produced by combo.
func ProducedIDs(c *Catalog, combo []ModifierID) map[ModifierID]bool {
	out := make(map[ModifierID]bool)
	for _, p := range Produce(c, combo) {
		out[p.ID] = true
	}
	return out
}
