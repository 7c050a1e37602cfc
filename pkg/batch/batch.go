// Package batch fans independent dataset-pair comparisons across a
// bounded worker pool. Pairs share no mutable state, so the pool needs no
// locking beyond the job and result plumbing, and one pair's failure is
// recorded in its own result without aborting the others.
package batch

import (
	"fmt"
	"runtime"
	"sync"

	"turbustat/internal/models"
	"turbustat/pkg/statistic"
)

// Pair is one unit of work: two datasets to compare under every
// registered statistic.
type Pair struct {
	// Name labels the pair in results, e.g. the simulation directory.
	Name string

	Data1 *models.Dataset
	Data2 *models.Dataset
}

// Result holds the per-statistic distances for one pair, or the error
// that stopped it.
type Result struct {
	Pair      string
	Distances map[string]float64
	Err       error
}

// Run compares every pair under every statistic using at most workers
// goroutines. Results are returned in pair order. A failing pair yields a
// Result with Err set; sibling pairs always run to completion.
func Run(pairs []Pair, stats []statistic.Statistic, workers int) []Result {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(pairs) {
		workers = len(pairs)
	}

	results := make([]Result, len(pairs))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = comparePair(pairs[idx], stats)
			}
		}()
	}
	for idx := range pairs {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()
	return results
}

func comparePair(p Pair, stats []statistic.Statistic) Result {
	res := Result{Pair: p.Name, Distances: make(map[string]float64, len(stats))}
	for _, s := range stats {
		d, err := s.Between(p.Data1, p.Data2)
		if err != nil {
			res.Err = fmt.Errorf("%s: %w", s.Name(), err)
			return res
		}
		res.Distances[s.Name()] = d
	}
	return res
}
