package vector

import "sort"

// TopK returns the indices of the k highest scores, best first. Equal scores
// keep ascending index order.
func TopK(scores []float64, k int) []int {
	if k <= 0 || len(scores) == 0 {
		return nil
	}
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return scores[idx[i]] > scores[idx[j]]
	})
	if k > len(idx) {
		k = len(idx)
	}
	return idx[:k]
}
