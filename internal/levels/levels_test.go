package levels

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/target/ivt-chain/internal/errors"
)

func TestDefaultIsValid(t *testing.T) {
	tbl := Default()
	require.NoError(t, tbl.Validate())
	assert.Len(t, tbl.Plev, 8)
	assert.Equal(t, Bound{101325, 96250}, tbl.Bounds[0])
	assert.Equal(t, Bound{35000, 25000}, tbl.Bounds[7])
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name  string
		tbl   Table
		field string
	}{
		{"empty", Table{}, "plev"},
		{"length mismatch", Table{Plev: []float64{100000, 92500}, Bounds: []Bound{{101325, 96250}}}, "plev_bounds"},
		{"ascending bounds", Table{Plev: []float64{100000}, Bounds: []Bound{{96250, 101325}}}, "plev_bounds"},
		{
			"gap between layers",
			Table{Plev: []float64{100000, 92500}, Bounds: []Bound{{101325, 96250}, {96000, 88750}}},
			"plev_bounds",
		},
		{
			"levels not descending",
			Table{Plev: []float64{92500, 100000}, Bounds: []Bound{{101325, 96250}, {96250, 88750}}},
			"plev",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tbl.Validate()
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.Equal(t, tt.field, apperrors.GetField(err))
		})
	}
}

func TestCheck(t *testing.T) {
	rows := Default().Check()
	require.Len(t, rows, 8)
	assert.Equal(t, CheckRow{Plev: 100000, Midpoint: 98787.5, Diff: 1212.5}, rows[0])
	assert.Equal(t, CheckRow{Plev: 92500, Midpoint: 92500, Diff: 0}, rows[1])
	assert.Equal(t, CheckRow{Plev: 85000, Midpoint: 80625, Diff: 4375}, rows[2])

	var buf bytes.Buffer
	require.NoError(t, WriteCheck(&buf, rows[:2]))
	assert.Equal(t,
		"plev: 100000.0 | midpoint:  98787.5 | diff: 1212.5\n"+
			"plev:  92500.0 | midpoint:  92500.0 | diff:    0.0\n",
		buf.String())
}

func TestWriteCDL(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Default().WriteCDL(&buf, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)))
	out := buf.String()

	for _, want := range []string{
		"netcdf level_bounds {",
		"\tplev = 8 ;",
		"\tbnds = 2 ;",
		"\tdouble plev(plev) ;",
		"plev:standard_name = \"air_pressure\" ;",
		"plev:units = \"Pa\" ;",
		"plev:positive = \"down\" ;",
		"plev:axis = \"Z\" ;",
		"plev:bounds = \"plev_bounds\" ;",
		"\tdouble plev_bounds(plev, bnds) ;",
		"on 2026-01-02",
		" plev = 100000, 92500, 85000, 70000, 60000, 50000, 40000, 30000 ;",
		"  101325, 96250,\n  96250, 88750,",
		"  35000, 25000 ;",
	} {
		assert.Contains(t, out, want)
	}
	assert.True(t, strings.HasSuffix(out, "}\n"))
}

func TestWriteCDLRejectsInvalidTable(t *testing.T) {
	var buf bytes.Buffer
	err := Table{}.WriteCDL(&buf, time.Now())
	require.Error(t, err)
	assert.Empty(t, buf.String())
}
