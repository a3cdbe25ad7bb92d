// Package cluster groups expense categories into spending cohorts with
// a small, deterministic K-Means over per-category features.
package cluster

import (
	"math"
	"math/rand"
	"sort"

	"pisopatrol/internal/core"
)

const (
	// DefaultK is the number of cohorts requested.
	DefaultK = 3
	// DefaultSeed fixes centroid initialization so the same ledger
	// always yields the same cohorts.
	DefaultSeed = 1

	maxIterations = 100
)

// Cohort names derive from the sign pattern of a cohort's standardized
// centroid (mean amount, transaction count).
const (
	CohortLargeFixed     = "Large & Fixed"
	CohortSmallFrequent  = "Small & Frequent"
	CohortMajorRecurring = "Major Recurring"
	CohortOccasional     = "Occasional"
)

// Features are the per-category inputs to clustering, in original
// units. Stored for display; clustering runs on standardized values.
type Features struct {
	Category string
	// MeanAmount is the average expense amount for the category.
	MeanAmount core.Money
	// Count is the number of expense transactions.
	Count int
	// StdDev is the population standard deviation of amounts, in
	// currency units.
	StdDev float64
}

// Assignment binds one category to its cohort.
type Assignment struct {
	Features Features
	Cohort   string
}

// Result is a complete clustering run.
type Result struct {
	Assignments []Assignment
	// K is the effective cluster count, after any reduction.
	K int
	// Degenerate reports that fewer categories than requested clusters
	// existed, so K was reduced to the category count.
	Degenerate bool
}

// Options tune a clustering run. Zero values select the defaults.
type Options struct {
	K    int
	Seed int64
}

// Run clusters the ledger's expense categories. Categories are ordered
// by name before anything else so the run is a pure function of the
// ledger contents.
func Run(txs []core.Transaction, opts Options) Result {
	k := opts.K
	if k <= 0 {
		k = DefaultK
	}
	seed := opts.Seed
	if seed == 0 {
		seed = DefaultSeed
	}

	feats := extractFeatures(txs)
	res := Result{K: k}
	if len(feats) == 0 {
		res.K = 0
		res.Degenerate = true
		return res
	}
	if len(feats) < k {
		res.K = len(feats)
		res.Degenerate = true
		k = len(feats)
	}

	points := standardize(feats)
	labels := kmeans(points, k, rand.New(rand.NewSource(seed)))

	centroids := recompute(points, labels, k)
	res.Assignments = make([]Assignment, len(feats))
	for i, f := range feats {
		res.Assignments[i] = Assignment{
			Features: f,
			Cohort:   cohortName(centroids[labels[i]]),
		}
	}
	return res
}

type point [3]float64 // standardized mean amount, count, std dev

// extractFeatures computes per-category statistics over expense rows,
// sorted by category name.
func extractFeatures(txs []core.Transaction) []Features {
	type acc struct {
		sum   float64
		sumSq float64
		n     int
	}
	byCat := make(map[string]*acc)
	for _, tx := range txs {
		if tx.Type != core.Expense {
			continue
		}
		a, ok := byCat[tx.Category]
		if !ok {
			a = &acc{}
			byCat[tx.Category] = a
		}
		amt := tx.Amount.Amount()
		a.sum += amt
		a.sumSq += amt * amt
		a.n++
	}
	names := make([]string, 0, len(byCat))
	for name := range byCat {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Features, 0, len(names))
	for _, name := range names {
		a := byCat[name]
		mean := a.sum / float64(a.n)
		variance := a.sumSq/float64(a.n) - mean*mean
		if variance < 0 {
			variance = 0
		}
		out = append(out, Features{
			Category:   name,
			MeanAmount: core.Money{Cents: int64(math.Round(mean * 100))},
			Count:      a.n,
			StdDev:     math.Sqrt(variance),
		})
	}
	return out
}

// standardize z-scores each feature dimension so amount scale does not
// dominate count. A dimension with zero spread maps to all zeros.
func standardize(feats []Features) []point {
	raw := make([]point, len(feats))
	for i, f := range feats {
		raw[i] = point{f.MeanAmount.Amount(), float64(f.Count), f.StdDev}
	}
	for dim := 0; dim < 3; dim++ {
		var sum float64
		for _, p := range raw {
			sum += p[dim]
		}
		mean := sum / float64(len(raw))
		var sq float64
		for _, p := range raw {
			d := p[dim] - mean
			sq += d * d
		}
		sd := math.Sqrt(sq / float64(len(raw)))
		for i := range raw {
			if sd == 0 {
				raw[i][dim] = 0
			} else {
				raw[i][dim] = (raw[i][dim] - mean) / sd
			}
		}
	}
	return raw
}

// kmeans runs Lloyd's algorithm with centroids seeded from distinct
// points chosen by rng, returning a label per point.
func kmeans(points []point, k int, rng *rand.Rand) []int {
	centroids := make([]point, k)
	for i, idx := range rng.Perm(len(points))[:k] {
		centroids[i] = points[idx]
	}

	labels := make([]int, len(points))
	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for i, p := range points {
			best := nearest(p, centroids)
			if best != labels[i] {
				labels[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}
		centroids = recompute(points, labels, k)
	}
	return labels
}

func nearest(p point, centroids []point) int {
	best, bestDist := 0, math.Inf(1)
	for i, c := range centroids {
		d := sqDist(p, c)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func sqDist(a, b point) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// recompute averages member points per label. An emptied cluster keeps
// a zero centroid, which names it from the origin's sign pattern.
func recompute(points []point, labels []int, k int) []point {
	sums := make([]point, k)
	counts := make([]int, k)
	for i, p := range points {
		l := labels[i]
		for dim := range p {
			sums[l][dim] += p[dim]
		}
		counts[l]++
	}
	for l := range sums {
		if counts[l] == 0 {
			continue
		}
		for dim := range sums[l] {
			sums[l][dim] /= float64(counts[l])
		}
	}
	return sums
}

// cohortName maps the standardized centroid's (amount, count) signs to
// a label: above-average amount with below-average frequency is
// "Large & Fixed", and so on.
func cohortName(c point) string {
	highAmount := c[0] >= 0
	highCount := c[1] >= 0
	switch {
	case highAmount && !highCount:
		return CohortLargeFixed
	case !highAmount && highCount:
		return CohortSmallFrequent
	case highAmount && highCount:
		return CohortMajorRecurring
	default:
		return CohortOccasional
	}
}
