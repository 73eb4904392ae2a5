// Package matching selects a maximum-weight set of disjoint pairs from a
// candidate pool. It is a pure function of the pool and a symmetric score
// function: no I/O, no clock, no randomness, so identical input always
// produces the identical pairing.
package matching

import (
	"math/bits"
	"sort"
)

// exactLimit is the largest pool solved with the exact subset DP. Above it
// the deterministic greedy with local search takes over. Exact cost is
// O(2^n * n), so 16 keeps the worst bucket around a million steps.
const exactLimit = 16

// scoreEpsilon bounds float comparison noise when ranking pairings.
const scoreEpsilon = 1e-9

// Candidate is one slot competing in a pool.
type Candidate struct {
	SlotID string
	UserID string
}

// Pair is a selected pairing of two candidates by index, with its score.
// A < B always holds.
type Pair struct {
	A     int
	B     int
	Score float64
}

// Result is the selected pairing for one pool.
type Result struct {
	Pairs    []Pair
	Leftover []int // candidate indices left unmatched
	Total    float64
}

// Select computes the maximum-weight disjoint pairing over candidates.
// score must be symmetric; candidates must already be in canonical order
// (sorted by user id) so the lexicographic tie-break is meaningful.
//
// Ranking between equal-weight pairings: more candidates covered first, then
// the lexicographically smallest pair list. Pairs with a negative combined
// score are never preferred over leaving both candidates unmatched.
func Select(candidates []Candidate, score func(i, j int) float64) Result {
	n := len(candidates)
	if n < 2 {
		return Result{Leftover: identity(n)}
	}

	w := make([][]float64, n)
	for i := range w {
		w[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			s := score(i, j)
			w[i][j] = s
			w[j][i] = s
		}
	}

	var pairs []Pair
	if n <= exactLimit {
		pairs = exact(n, w)
	} else {
		pairs = greedy(n, w)
	}

	return finalize(n, pairs)
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func finalize(n int, pairs []Pair) Result {
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].A < pairs[j].A })

	used := make([]bool, n)
	total := 0.0
	for _, p := range pairs {
		used[p.A] = true
		used[p.B] = true
		total += p.Score
	}
	var leftover []int
	for i := 0; i < n; i++ {
		if !used[i] {
			leftover = append(leftover, i)
		}
	}
	return Result{Pairs: pairs, Leftover: leftover, Total: total}
}

// solution is a dp cell: score, coverage and the pair list for tie-breaks.
type solution struct {
	score float64
	pairs [][2]int
}

// better reports whether a beats b under the ranking rules.
func better(a, b solution) bool {
	switch {
	case a.score > b.score+scoreEpsilon:
		return true
	case b.score > a.score+scoreEpsilon:
		return false
	case len(a.pairs) != len(b.pairs):
		return len(a.pairs) > len(b.pairs)
	default:
		return lexLess(a.pairs, b.pairs)
	}
}

// lexLess compares two sorted pair lists elementwise.
func lexLess(a, b [][2]int) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i][0] != b[i][0] {
			return a[i][0] < b[i][0]
		}
		if a[i][1] != b[i][1] {
			return a[i][1] < b[i][1]
		}
	}
	return len(a) < len(b)
}

// exact solves maximum-weight matching by DP over candidate subsets.
// dp[mask] is the best pairing using exactly the candidates in mask; the
// lowest set bit is either left unmatched or paired with another member.
func exact(n int, w [][]float64) []Pair {
	size := 1 << n
	dp := make([]solution, size)

	for mask := 1; mask < size; mask++ {
		i := lowestBit(mask)
		// Leave i unmatched.
		best := dp[mask&^(1<<i)]

		rest := mask &^ (1 << i)
		for m := rest; m != 0; m &= m - 1 {
			j := lowestBit(m)
			if w[i][j] < -scoreEpsilon {
				// A negative pair can never beat leaving both out.
				continue
			}
			prev := dp[mask&^(1<<i)&^(1<<j)]
			cand := solution{
				score: prev.score + w[i][j],
				pairs: appendPair(prev.pairs, i, j),
			}
			if better(cand, best) {
				best = cand
			}
		}
		dp[mask] = best
	}

	final := dp[size-1]
	out := make([]Pair, 0, len(final.pairs))
	for _, p := range final.pairs {
		out = append(out, Pair{A: p[0], B: p[1], Score: w[p[0]][p[1]]})
	}
	return out
}

func lowestBit(mask int) int {
	return bits.TrailingZeros(uint(mask))
}

// appendPair inserts (i, j) keeping the list sorted for lex comparison.
func appendPair(pairs [][2]int, i, j int) [][2]int {
	out := make([][2]int, 0, len(pairs)+1)
	inserted := false
	for _, p := range pairs {
		if !inserted && (i < p[0] || (i == p[0] && j < p[1])) {
			out = append(out, [2]int{i, j})
			inserted = true
		}
		out = append(out, p)
	}
	if !inserted {
		out = append(out, [2]int{i, j})
	}
	return out
}

// greedy builds an initial pairing from the heaviest edges, then applies a
// strictly-improving local search (pair rewiring and unmatched swaps) until
// a fixpoint. Deterministic: fixed edge order, strict improvement only.
func greedy(n int, w [][]float64) []Pair {
	type edge struct{ i, j int }
	var edges []edge
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if w[i][j] >= -scoreEpsilon {
				edges = append(edges, edge{i, j})
			}
		}
	}
	sort.Slice(edges, func(a, b int) bool {
		ea, eb := edges[a], edges[b]
		if diff := w[ea.i][ea.j] - w[eb.i][eb.j]; diff > scoreEpsilon || diff < -scoreEpsilon {
			return diff > 0
		}
		if ea.i != eb.i {
			return ea.i < eb.i
		}
		return ea.j < eb.j
	})

	mate := make([]int, n)
	for i := range mate {
		mate[i] = -1
	}
	for _, e := range edges {
		if mate[e.i] == -1 && mate[e.j] == -1 {
			mate[e.i] = e.j
			mate[e.j] = e.i
		}
	}

	improveLocal(n, w, mate)

	var out []Pair
	for i := 0; i < n; i++ {
		if j := mate[i]; j > i {
			out = append(out, Pair{A: i, B: j, Score: w[i][j]})
		}
	}
	return out
}

// improveLocal repeatedly tries two moves until neither improves the total:
//   - rewire two pairs (a,b),(c,d) into (a,c),(b,d) or (a,d),(b,c)
//   - swap a matched candidate for an unmatched one in its pair
//
// The iteration cap guards against float-noise cycling.
func improveLocal(n int, w [][]float64, mate []int) {
	maxRounds := n * n
	for round := 0; round < maxRounds; round++ {
		improved := false

		for a := 0; a < n; a++ {
			b := mate[a]
			if b <= a {
				continue
			}
			// Swap with an unmatched candidate.
			for u := 0; u < n; u++ {
				if mate[u] != -1 || u == a || u == b {
					continue
				}
				if w[a][u] > w[a][b]+scoreEpsilon && w[a][u] >= -scoreEpsilon {
					mate[b] = -1
					mate[a], mate[u] = u, a
					improved = true
					break
				}
				if w[b][u] > w[a][b]+scoreEpsilon && w[b][u] >= -scoreEpsilon {
					mate[a] = -1
					mate[b], mate[u] = u, b
					improved = true
					break
				}
			}
			if improved {
				break
			}

			// Rewire against a second pair.
			for c := a + 1; c < n; c++ {
				d := mate[c]
				if d <= c || c == a || c == b {
					continue
				}
				cur := w[a][b] + w[c][d]
				if w[a][c] >= -scoreEpsilon && w[b][d] >= -scoreEpsilon && w[a][c]+w[b][d] > cur+scoreEpsilon {
					mate[a], mate[c] = c, a
					mate[b], mate[d] = d, b
					improved = true
					break
				}
				if w[a][d] >= -scoreEpsilon && w[b][c] >= -scoreEpsilon && w[a][d]+w[b][c] > cur+scoreEpsilon {
					mate[a], mate[d] = d, a
					mate[b], mate[c] = c, b
					improved = true
					break
				}
			}
			if improved {
				break
			}
		}

		if !improved {
			// Pick up any newly freed non-negative edge before settling.
			if !pairFree(n, w, mate) {
				return
			}
		}
	}
}

// pairFree matches remaining free candidates on their best non-negative edge.
func pairFree(n int, w [][]float64, mate []int) bool {
	changed := false
	for i := 0; i < n; i++ {
		if mate[i] != -1 {
			continue
		}
		bestJ := -1
		for j := 0; j < n; j++ {
			if j == i || mate[j] != -1 || w[i][j] < -scoreEpsilon {
				continue
			}
			if bestJ == -1 || w[i][j] > w[i][bestJ]+scoreEpsilon {
				bestJ = j
			}
		}
		if bestJ != -1 {
			mate[i], mate[bestJ] = bestJ, i
			changed = true
		}
	}
	return changed
}
