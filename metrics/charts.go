package metrics

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	chart "github.com/wcharczuk/go-chart"
)

// RenderCurves writes one PNG learning curve per recorded metric into dir.
// Metrics with a single observation are skipped until they have a curve.
func RenderCurves(ledger Ledger, dir string) error {
	for _, metric := range ledger.Metrics() {
		if err := renderCurve(ledger, metric, dir); err != nil {
			return err
		}
	}
	return nil
}

func renderCurve(ledger Ledger, metric, dir string) error {
	iterations, values := ledger.Series(metric)
	if len(iterations) < 2 {
		return nil
	}
	xs := make([]float64, len(iterations))
	for i, it := range iterations {
		xs[i] = float64(it)
	}

	graph := chart.Chart{
		Title:      metric,
		TitleStyle: chart.StyleShow(),
		XAxis: chart.XAxis{
			Name:      "meta-iteration",
			NameStyle: chart.StyleShow(),
			Style:     chart.StyleShow(),
		},
		YAxis: chart.YAxis{
			Name:      metric,
			NameStyle: chart.StyleShow(),
			Style:     chart.StyleShow(),
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    metric,
				XValues: xs,
				YValues: values,
				Style: chart.Style{
					Show:        true,
					StrokeColor: chart.GetAlternateColor(0),
				},
			},
		},
	}
	graph.Elements = []chart.Renderable{
		chart.Legend(&graph),
	}

	path := filepath.Join(dir, chartFileName(metric))
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	if err := graph.Render(chart.PNG, f); err != nil {
		f.Close()
		return errors.Wrapf(err, "rendering %s", metric)
	}
	return f.Close()
}

func chartFileName(metric string) string {
	return strings.ReplaceAll(metric, "/", "-") + ".png"
}
