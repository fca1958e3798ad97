package piv

import (
	"errors"
	"testing"
)

func TestBuildGridShape(t *testing.T) {
	cases := []struct {
		name               string
		frameR, frameC     int
		window, overlap    int
		wantRows, wantCols int
	}{
		{"256 window 32 half overlap", 256, 256, 32, 16, 15, 15},
		{"256 window 16 half overlap", 256, 256, 16, 8, 31, 31},
		{"exact single window", 64, 64, 64, 0, 1, 1},
		{"rectangular frame", 128, 256, 32, 16, 7, 15},
		{"no overlap", 100, 100, 25, 0, 4, 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g, err := BuildGrid(tc.frameR, tc.frameC, tc.window, tc.overlap)
			if err != nil {
				t.Fatalf("BuildGrid: %v", err)
			}
			if g.Rows() != tc.wantRows || g.Cols() != tc.wantCols {
				t.Fatalf("grid shape = %dx%d, want %dx%d", g.Rows(), g.Cols(), tc.wantRows, tc.wantCols)
			}
			if g.X.Rows != tc.wantRows || g.X.Cols != tc.wantCols || !g.X.SameShape(g.Y) {
				t.Fatalf("mesh shapes disagree with axis vectors")
			}
		})
	}
}

func TestBuildGridWindowsStayInside(t *testing.T) {
	g, err := BuildGrid(250, 250, 32, 20) // step 12 does not divide evenly
	if err != nil {
		t.Fatalf("BuildGrid: %v", err)
	}
	half := 16.0
	for _, y := range g.Ys {
		if y-half < 0 || y+half > 250 {
			t.Errorf("row center %v puts window outside frame", y)
		}
	}
	for _, x := range g.Xs {
		if x-half < 0 || x+half > 250 {
			t.Errorf("col center %v puts window outside frame", x)
		}
	}
	if got := g.Ys[0]; got != 16 {
		t.Errorf("first center = %v, want 16", got)
	}
	if got := g.Ys[1] - g.Ys[0]; got != 12 {
		t.Errorf("step = %v, want 12", got)
	}
}

func TestBuildGridRejectsBadParameters(t *testing.T) {
	cases := []struct {
		name            string
		window, overlap int
	}{
		{"overlap equals window", 32, 32},
		{"overlap exceeds window", 32, 40},
		{"negative overlap", 32, -1},
		{"zero window", 0, 0},
		{"window exceeds frame", 300, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := BuildGrid(256, 256, tc.window, tc.overlap)
			if !errors.Is(err, ErrInvalidParameter) {
				t.Fatalf("error = %v, want ErrInvalidParameter", err)
			}
		})
	}
}
