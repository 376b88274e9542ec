// Package charts renders the monthly category breakdown as a PNG pie chart.
package charts

import (
	"bytes"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"

	"tally/internal/report"
)

// CategoryPie renders one slice per category share. Returns nil bytes when
// the month has no spending, so callers can skip the image entirely.
func CategoryPie(summary report.Summary) ([]byte, error) {
	if summary.Total.Cents == 0 || len(summary.Shares) == 0 {
		return nil, nil
	}

	values := make([]chart.Value, 0, len(summary.Shares))
	for _, share := range summary.Shares {
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s: %s (%.1f%%)", share.Category, share.Amount.Decimal(), share.Percent),
			Value: float64(share.Amount.Cents),
			Style: chart.Style{
				FontSize:  12,
				FontColor: chart.ColorBlack,
			},
		})
	}

	pie := chart.PieChart{
		Width:  600,
		Height: 600,
		Values: values,
		Background: chart.Style{
			Padding: chart.Box{
				Top:    30,
				Left:   30,
				Right:  30,
				Bottom: 30,
			},
			FillColor: chart.ColorWhite,
		},
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := pie.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("render category pie chart: %w", err)
	}
	return buffer.Bytes(), nil
}
