package fn

// Map applies f to each element.
func Map[T, U any](items []T, f func(T) U) []U {
	out := make([]U, len(items))
	for i, v := range items {
		out[i] = f(v)
	}
	return out
}

// Chunk splits items into consecutive groups of at most n. Returns nil if n <= 0.
func Chunk[T any](items []T, n int) [][]T {
	if n <= 0 {
		return nil
	}
	var out [][]T
	for i := 0; i < len(items); i += n {
		end := min(i+n, len(items))
		out = append(out, items[i:end])
	}
	return out
}

// Duplicates returns the keys that occur more than once, in first-repeat order.
func Duplicates[T any, K comparable](items []T, key func(T) K) []K {
	seen := make(map[K]int, len(items))
	var out []K
	for _, v := range items {
		k := key(v)
		seen[k]++
		if seen[k] == 2 {
			out = append(out, k)
		}
	}
	return out
}
