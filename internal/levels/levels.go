// Package levels holds the pressure-level table and layer bounds used for vertical integration.
package levels

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/target/ivt-chain/internal/errors"
)

// Bound is a layer's [lower level, upper level] pressure pair in Pa. Lower is the higher pressure.
type Bound [2]float64

// Table pairs pressure levels with their layer bounds, ordered from the surface upwards.
type Table struct {
	Plev   []float64
	Bounds []Bound
}

// Default returns the 8-level table used by the IVT workflow.
func Default() Table {
	return Table{
		Plev: []float64{100000, 92500, 85000, 70000, 60000, 50000, 40000, 30000},
		Bounds: []Bound{
			{101325, 96250},
			{96250, 88750},
			{88750, 72500},
			{72500, 65000},
			{65000, 55000},
			{55000, 45000},
			{45000, 35000},
			{35000, 25000},
		},
	}
}

// Validate checks that every level has bounds, each layer's bounds descend and
// adjacent layers share an edge.
func (t Table) Validate() error {
	if len(t.Plev) == 0 {
		return apperrors.ValidationField("plev", "no pressure levels")
	}
	if len(t.Plev) != len(t.Bounds) {
		return apperrors.ValidationField("plev_bounds",
			fmt.Sprintf("%d levels but %d bounds", len(t.Plev), len(t.Bounds)))
	}
	for i, b := range t.Bounds {
		if b[0] <= b[1] {
			return apperrors.ValidationField("plev_bounds",
				fmt.Sprintf("layer %d bounds [%g, %g] do not descend", i, b[0], b[1]))
		}
		if i > 0 && t.Bounds[i-1][1] != b[0] {
			return apperrors.ValidationField("plev_bounds",
				fmt.Sprintf("layer %d starts at %g but layer %d ends at %g", i, b[0], i-1, t.Bounds[i-1][1]))
		}
		if i > 0 && t.Plev[i] >= t.Plev[i-1] {
			return apperrors.ValidationField("plev",
				fmt.Sprintf("level %d (%g) is not above level %d (%g)", i, t.Plev[i], i-1, t.Plev[i-1]))
		}
	}
	return nil
}

// CheckRow compares one level against the midpoint of its bounds.
type CheckRow struct {
	Plev     float64
	Midpoint float64
	Diff     float64
}

// Check returns, per level, the midpoint of its bounds and the absolute difference from the level.
func (t Table) Check() []CheckRow {
	n := min(len(t.Plev), len(t.Bounds))
	rows := make([]CheckRow, n)
	for i := range n {
		mid := (t.Bounds[i][0] + t.Bounds[i][1]) / 2
		rows[i] = CheckRow{Plev: t.Plev[i], Midpoint: mid, Diff: math.Abs(mid - t.Plev[i])}
	}
	return rows
}

// WriteCheck prints Check rows in a fixed-width report.
func WriteCheck(w io.Writer, rows []CheckRow) error {
	bw := bufio.NewWriter(w)
	for _, r := range rows {
		if _, err := fmt.Fprintf(bw, "plev: %8.1f | midpoint: %8.1f | diff: %6.1f\n", r.Plev, r.Midpoint, r.Diff); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteCDL renders the table as CDL for `ncgen -3 -o level_bounds.nc`.
func (t Table) WriteCDL(w io.Writer, created time.Time) error {
	if err := t.Validate(); err != nil {
		return err
	}

	plev := make([]string, len(t.Plev))
	for i, p := range t.Plev {
		plev[i] = formatValue(p)
	}
	bounds := make([]string, len(t.Bounds))
	for i, b := range t.Bounds {
		bounds[i] = formatValue(b[0]) + ", " + formatValue(b[1])
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "netcdf level_bounds {")
	fmt.Fprintln(bw, "dimensions:")
	fmt.Fprintf(bw, "\tplev = %d ;\n", len(t.Plev))
	fmt.Fprintln(bw, "\tbnds = 2 ;")
	fmt.Fprintln(bw, "variables:")
	fmt.Fprintln(bw, "\tdouble plev(plev) ;")
	fmt.Fprintln(bw, "\t\tplev:standard_name = \"air_pressure\" ;")
	fmt.Fprintln(bw, "\t\tplev:long_name = \"Pressure Level\" ;")
	fmt.Fprintln(bw, "\t\tplev:units = \"Pa\" ;")
	fmt.Fprintln(bw, "\t\tplev:positive = \"down\" ;")
	fmt.Fprintln(bw, "\t\tplev:axis = \"Z\" ;")
	fmt.Fprintln(bw, "\t\tplev:_CoordinateAxisType = \"Pressure\" ;")
	fmt.Fprintln(bw, "\t\tplev:bounds = \"plev_bounds\" ;")
	fmt.Fprintln(bw, "\tdouble plev_bounds(plev, bnds) ;")
	fmt.Fprintln(bw, "")
	fmt.Fprintln(bw, "// global attributes:")
	fmt.Fprintf(bw, "\t\t:history = \"Created by ivt-admin level-bounds on %s\" ;\n", created.UTC().Format("2006-01-02"))
	fmt.Fprintln(bw, "data:")
	fmt.Fprintln(bw, "")
	fmt.Fprintf(bw, " plev = %s ;\n", strings.Join(plev, ", "))
	fmt.Fprintln(bw, "")
	fmt.Fprintf(bw, " plev_bounds =\n  %s ;\n", strings.Join(bounds, ",\n  "))
	fmt.Fprintln(bw, "}")
	return bw.Flush()
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
