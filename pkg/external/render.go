package external

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yourusername/bsengine/pkg/engine"
)

// renderGrid draws a width x height grid with x across and y down.
// Columns are right aligned to the widest cell or index.
func renderGrid(width, height int, cell func(x, y int) string) string {
	cells := make([][]string, width)
	colWidth := len(strconv.Itoa(width - 1))
	for x := 0; x < width; x++ {
		cells[x] = make([]string, height)
		for y := 0; y < height; y++ {
			cells[x][y] = cell(x, y)
			colWidth = max(colWidth, len(cells[x][y]))
		}
	}
	rowWidth := len(strconv.Itoa(height - 1))

	var sb strings.Builder
	sb.WriteString(strings.Repeat(" ", rowWidth))
	for x := 0; x < width; x++ {
		fmt.Fprintf(&sb, " %*d", colWidth, x)
	}
	sb.WriteByte('\n')
	for y := 0; y < height; y++ {
		fmt.Fprintf(&sb, "%*d", rowWidth, y)
		for x := 0; x < width; x++ {
			fmt.Fprintf(&sb, " %*s", colWidth, cells[x][y])
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// RenderStates draws the square states using their one-character symbols.
func RenderStates(states [][]engine.SquareState) string {
	if len(states) == 0 {
		return ""
	}
	return renderGrid(len(states), len(states[0]), func(x, y int) string {
		return string(states[x][y].Symbol())
	})
}

// RenderCounts draws placement counts.
func RenderCounts(counts [][]int) string {
	if len(counts) == 0 {
		return ""
	}
	return renderGrid(len(counts), len(counts[0]), func(x, y int) string {
		return strconv.Itoa(counts[x][y])
	})
}

// RenderProbability draws probabilities as whole percentages.
// Known squares are shown with their state symbol instead.
func RenderProbability(prob [][]float64, states [][]engine.SquareState) string {
	if len(prob) == 0 {
		return ""
	}
	return renderGrid(len(prob), len(prob[0]), func(x, y int) string {
		if states != nil && states[x][y] != engine.Open {
			return string(states[x][y].Symbol())
		}
		return strconv.FormatFloat(prob[x][y]*100, 'f', 0, 64)
	})
}
