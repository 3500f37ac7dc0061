package mlopt

import (
	"golang.org/x/sync/errgroup"
)

// Scheduler runs independent jobs on a bounded number of goroutines.
// Jobs write their results into slots of their own index, so the
// outcome does not depend on the number of workers.
type Scheduler struct {
	Workers int
}

// NewScheduler creates a scheduler with the given number of workers.
func NewScheduler(workers int) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{Workers: workers}
}

// Map calls f for every index in 0..n-1 exactly once and waits for
// all of the calls. If some calls fail, the error for the lowest index
// is returned.
func (s *Scheduler) Map(n int, f func(i int) error) error {
	errs := make([]error, n)
	if s.Workers <= 1 {
		for i := 0; i < n; i++ {
			errs[i] = f(i)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(s.Workers)
		for i := 0; i < n; i++ {
			i := i
			g.Go(func() error {
				errs[i] = f(i)
				return nil
			})
		}
		// jobs keep their errors in errs and always return nil
		_ = g.Wait()
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
