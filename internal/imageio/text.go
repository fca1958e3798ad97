package imageio

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/banshee-data/flowfield/field"
	"github.com/banshee-data/flowfield/piv"
)

// SaveText writes a result as whitespace-separated columns, one grid cell
// per line in row-major order.
func SaveText(path string, res *piv.Result) error {
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create result file: %w", err)
	}
	defer fh.Close()

	w := bufio.NewWriter(fh)
	fmt.Fprintln(w, "# x y u v flags mask")
	for r := 0; r < res.U.Rows; r++ {
		for c := 0; c < res.U.Cols; c++ {
			fmt.Fprintf(w, "%10.4f %10.4f %10.4f %10.4f %d %d\n",
				res.X.At(r, c), res.Y.At(r, c),
				res.U.At(r, c), res.V.At(r, c),
				boolInt(res.Flags.At(r, c)), boolInt(res.GridMask.At(r, c)))
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return fh.Close()
}

// LoadText reads a file written by SaveText back into a result. The grid
// shape is recovered from the x column, which cycles once per row.
func LoadText(path string) (*piv.Result, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open result file: %w", err)
	}
	defer fh.Close()

	type record struct {
		x, y, u, v   float64
		flag, masked bool
	}
	var recs []record

	sc := bufio.NewScanner(fh)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) != 6 {
			return nil, fmt.Errorf("bad result line %q", line)
		}
		var rec record
		var vals [4]float64
		for i := 0; i < 4; i++ {
			if vals[i], err = strconv.ParseFloat(parts[i], 64); err != nil {
				return nil, fmt.Errorf("bad result line %q: %v", line, err)
			}
		}
		rec.x, rec.y, rec.u, rec.v = vals[0], vals[1], vals[2], vals[3]
		if rec.flag, err = parseBool(parts[4]); err != nil {
			return nil, fmt.Errorf("bad result line %q: %v", line, err)
		}
		if rec.masked, err = parseBool(parts[5]); err != nil {
			return nil, fmt.Errorf("bad result line %q: %v", line, err)
		}
		recs = append(recs, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("no data rows in %s", path)
	}

	cols := len(recs)
	for i := 1; i < len(recs); i++ {
		if recs[i].x == recs[0].x {
			cols = i
			break
		}
	}
	if len(recs)%cols != 0 {
		return nil, fmt.Errorf("ragged grid in %s: %d cells over %d columns", path, len(recs), cols)
	}
	rows := len(recs) / cols

	res := &piv.Result{
		X: field.New(rows, cols), Y: field.New(rows, cols),
		U: field.New(rows, cols), V: field.New(rows, cols),
		Flags:    field.NewMask(rows, cols),
		GridMask: field.NewMask(rows, cols),
	}
	for i, rec := range recs {
		res.X.Data[i] = rec.x
		res.Y.Data[i] = rec.y
		res.U.Data[i] = rec.u
		res.V.Data[i] = rec.v
		res.Flags.Data[i] = rec.flag
		res.GridMask.Data[i] = rec.masked
	}
	return res, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseBool(s string) (bool, error) {
	switch s {
	case "0":
		return false, nil
	case "1":
		return true, nil
	}
	return false, fmt.Errorf("expected 0 or 1, got %q", s)
}
