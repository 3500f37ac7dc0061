package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"bitbucket.org/Davydov/jati/mlopt"
)

// writeString writes s followed by a newline to a new file.
func writeString(fn, s string) error {
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(s + "\n"); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeLogL writes the log-likelihood after each iteration.
func writeLogL(fn string, res *mlopt.Result) error {
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "iteration\tlnL\tdelta")
	for _, rec := range res.Trace {
		fmt.Fprintf(w, "%d\t%f\t%g\n", rec.Iteration, rec.LnL, rec.Delta)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeJSON writes the summary in json format.
func writeJSON(fn string, summary *CallSummary) error {
	j, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	log.Debug(string(j))
	return os.WriteFile(fn, j, 0644)
}

// plotTrace plots the log-likelihood against the iteration.
func plotTrace(fn string, res *mlopt.Result) error {
	if len(res.Trace) == 0 {
		log.Warning("Nothing to plot")
		return nil
	}
	p := plot.New()
	p.Title.Text = "Optimization trace"
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = "lnL"

	pts := make(plotter.XYs, 0, len(res.Trace)+1)
	if first := res.Trace[0]; first.Iteration == 1 {
		pts = append(pts, plotter.XY{X: 0, Y: first.LnL - first.Delta})
	}
	for _, rec := range res.Trace {
		pts = append(pts, plotter.XY{X: float64(rec.Iteration), Y: rec.LnL})
	}
	if err := plotutil.AddLinePoints(p, "lnL", pts); err != nil {
		return err
	}
	return p.Save(4*vg.Inch, 4*vg.Inch, fn)
}

// writeOutputs writes the final tree, the log-likelihood trace and the
// optional plot. Errors are logged.
func writeOutputs(cfg *Config, res *mlopt.Result) {
	if err := writeString(cfg.OutTree, res.State.Tree.Newick(-1)); err != nil {
		log.Error("Error writing tree:", err)
	}
	if err := writeLogL(cfg.OutLogL, res); err != nil {
		log.Error("Error writing log-likelihood trace:", err)
	}
	if cfg.OutPlot != "" {
		if err := plotTrace(cfg.OutPlot, res); err != nil {
			log.Error("Error plotting trace:", err)
		}
	}
}
