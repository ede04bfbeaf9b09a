package sim

import (
	"errors"
	"math"
	"sort"

	"github.com/xtding233/marble-bag/internal/marble"
)

// TrialGoal selects what the simulation measures per trial.
type TrialGoal string

const (
	// Draws until Target first comes out.
	GoalFirstHit TrialGoal = "first_hit"
	// Longest run of draws without Target within a fixed budget.
	GoalMaxDrought TrialGoal = "max_drought"
)

var ErrSimParams = errors.New("invalid simulation params")

// SimParams describes the mechanics for one simulation run.
type SimParams struct {
	Size     int             // marbles in the bag
	Target   int             // value whose streaks are measured, in [0, Size)
	Strategy marble.Strategy // selection strategy of the bag

	// Independent draws with replacement instead of using the bag,
	// the baseline the bag is compared against.
	Independent bool

	// Seed makes the run replicable; nil means time seeded.
	Seed *uint64
}

// SimBudget controls the number of draws used in GoalMaxDrought.
type SimBudget struct {
	NumDraws int // number of draws in one trial
}

// Stats summarizes simulation results.
type Stats struct {
	Mean   float64
	Var    float64
	StdDev float64
	P50    float64
	P90    float64
	P99    float64
	// Optional: raw samples if caller needs histograms/exports
	Samples []int `json:"-"`
}

func (p SimParams) validate() error {
	if p.Size < 1 || p.Target < 0 || p.Target >= p.Size {
		return ErrSimParams
	}
	return nil
}

// calcStats computes mean/variance/percentiles for integer samples.
func calcStats(xs []int) Stats {
	n := len(xs)
	if n == 0 {
		return Stats{}
	}
	// mean
	var sum float64
	for _, v := range xs {
		sum += float64(v)
	}
	mean := sum / float64(n)

	// variance (population)
	var acc float64
	for _, v := range xs {
		d := float64(v) - mean
		acc += d * d
	}
	variance := acc / float64(n)

	// percentiles
	cp := append([]int(nil), xs...)
	sort.Ints(cp)
	percentile := func(p float64) float64 {
		if n == 1 || p <= 0 {
			return float64(cp[0])
		}
		if p >= 1 {
			return float64(cp[n-1])
		}
		pos := p * float64(n-1)
		i := int(math.Floor(pos))
		f := pos - float64(i)
		if i+1 >= n {
			return float64(cp[i])
		}
		return float64(cp[i])*(1-f) + float64(cp[i+1])*f
	}

	return Stats{
		Mean:    mean,
		Var:     variance,
		StdDev:  math.Sqrt(variance),
		P50:     percentile(0.50),
		P90:     percentile(0.90),
		P99:     percentile(0.99),
		Samples: xs,
	}
}

// drawer yields one value per call; the bag auto resets so it never runs dry.
type drawer func() int

func newDrawer(p SimParams, rng marble.RandomSource) (drawer, error) {
	if p.Independent {
		return func() int { return rng.IntN(p.Size) }, nil
	}
	bag, err := marble.New(p.Size, &marble.Config{AutoReset: true, Strategy: p.Strategy}, rng)
	if err != nil {
		return nil, err
	}
	return bag.Draw, nil
}

// simulateOne returns the metric of one trial for goal.
func simulateOne(p SimParams, goal TrialGoal, budget *SimBudget, rng marble.RandomSource) (int, error) {
	draw, err := newDrawer(p, rng)
	if err != nil {
		return 0, err
	}

	switch goal {
	case GoalFirstHit:
		draws := 0
		for {
			draws++
			if draw() == p.Target {
				return draws, nil
			}
		}

	case GoalMaxDrought:
		if budget == nil || budget.NumDraws <= 0 {
			return 0, nil
		}
		longest, current := 0, 0
		for i := 0; i < budget.NumDraws; i++ {
			if draw() == p.Target {
				current = 0
				continue
			}
			current++
			if current > longest {
				longest = current
			}
		}
		return longest, nil
	}

	return 0, nil
}

// RunMonteCarlo repeats trials and returns summary stats.
// goal determines what metric is recorded per trial.
func RunMonteCarlo(p SimParams, goal TrialGoal, trials int, budget *SimBudget) (Stats, error) {
	if err := p.validate(); err != nil {
		return Stats{}, err
	}
	if trials <= 0 {
		return Stats{}, nil
	}
	var rng marble.RandomSource
	if p.Seed != nil {
		rng = marble.NewSeededRNG(*p.Seed)
	} else {
		rng = marble.DefaultRNG()
	}

	samples := make([]int, trials)
	for i := 0; i < trials; i++ {
		v, err := simulateOne(p, goal, budget, rng)
		if err != nil {
			return Stats{}, err
		}
		samples[i] = v
	}
	return calcStats(samples), nil
}
