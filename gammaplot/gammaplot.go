// Gammaplot plots the discrete gamma rate categories used for rate
// variation among sites (jati --ncatg) for one or more shapes.
package main

import (
	"fmt"
	"os"

	"github.com/op/go-logging"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gopkg.in/alecthomas/kingpin.v2"

	"bitbucket.org/Davydov/jati/dist"
)

var log = logging.MustGetLogger("gammaplot")

var (
	app       = kingpin.New("gammaplot", "plot discrete gamma rate categories")
	alphas    = app.Flag("alpha", "gamma shape, can be repeated").Default("1").Float64List()
	k         = app.Flag("ncat", "number of categories").Default("4").Int()
	useMedian = app.Flag("median", "use median instead of mean").Bool()
	output    = app.Flag("out", "output image").Short('o').Default("gamma.png").String()
)

// gammaPoints returns the cumulative category proportion against the
// category rate.
func gammaPoints(alpha float64, k int, median bool) plotter.XYs {
	r := dist.DiscreteGamma(alpha, alpha, k, median, nil, nil)
	pts := make(plotter.XYs, k)
	for i, v := range r {
		pts[i].X = v
		pts[i].Y = float64(i+1) / float64(k)
	}
	return pts
}

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))
	if *k < 1 {
		log.Fatal("number of categories should be positive")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Discrete gamma, %d categories", *k)
	p.X.Label.Text = "rate"
	p.Y.Label.Text = "cumulative proportion"

	var lines []interface{}
	for _, a := range *alphas {
		if a <= 0 {
			log.Fatalf("invalid shape %v", a)
		}
		pts := gammaPoints(a, *k, *useMedian)
		fmt.Printf("alpha=%v rates=%v\n", a, dist.DiscreteGamma(a, a, *k, *useMedian, nil, nil))
		lines = append(lines, fmt.Sprintf("alpha=%v", a), pts)
	}
	if err := plotutil.AddLinePoints(p, lines...); err != nil {
		log.Fatal(err)
	}
	if err := p.Save(4*vg.Inch, 4*vg.Inch, *output); err != nil {
		log.Fatal(err)
	}
}
