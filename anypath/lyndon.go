package anypath

import "sort"

// lyndonWords lists the Lyndon words over an alphabet of
// the given size with length at most maxLen.
//
// Words are ordered by length, then lexicographically.
func lyndonWords(alphabet, maxLen int) [][]int {
	var res [][]int
	w := []int{-1}
	for len(w) > 0 {
		w[len(w)-1]++
		res = append(res, append([]int{}, w...))
		m := len(w)
		for len(w) < maxLen {
			w = append(w, w[len(w)-m])
		}
		for len(w) > 0 && w[len(w)-1] == alphabet-1 {
			w = w[:len(w)-1]
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		return len(res[i]) < len(res[j])
	})
	return res
}

// LogSigChannels returns the number of log-signature
// coefficients for a path with the given channel count,
// truncated at depth.
func LogSigChannels(channels, depth int) int {
	var total int
	for k := 1; k <= depth; k++ {
		var sum int
		for d := 1; d <= k; d++ {
			if k%d == 0 {
				sum += mobius(d) * intPow(channels, k/d)
			}
		}
		total += sum / k
	}
	return total
}

func mobius(n int) int {
	res := 1
	for p := 2; p*p <= n; p++ {
		if n%p == 0 {
			n /= p
			if n%p == 0 {
				return 0
			}
			res = -res
		}
	}
	if n > 1 {
		res = -res
	}
	return res
}

func intPow(x, n int) int {
	res := 1
	for i := 0; i < n; i++ {
		res *= x
	}
	return res
}
