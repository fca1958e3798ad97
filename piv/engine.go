package piv

import (
	"context"
	"fmt"
	"log"

	"github.com/banshee-data/flowfield/correlate"
	"github.com/banshee-data/flowfield/field"
	"github.com/banshee-data/flowfield/spline"
	"github.com/banshee-data/flowfield/validate"
	"github.com/banshee-data/flowfield/warp"
)

// Correlator scores every interrogation window of two equal-shape frames.
// correlate.FFT is the default implementation.
type Correlator interface {
	Correlate(a, b *field.Field, p correlate.Params) (*correlate.Result, error)
}

// Smoother smooths a whole displacement component between passes.
type Smoother interface {
	Smooth(f *field.Field) *field.Field
}

// Validator flags implausible vectors (true = invalid). Cells set in
// exclude are outside the analysis and must be neither flagged nor used as
// statistics sources.
type Validator interface {
	Validate(u, v, snr *field.Field, exclude *field.Mask) *field.Mask
}

// Repairer fills flagged cells of u and v in place from their valid
// neighborhood. Cells it cannot reach keep their flags.
type Repairer interface {
	Replace(u, v *field.Field, flags, exclude *field.Mask) validate.RepairStats
}

// Engine runs the multi-pass window-deformation analysis for one frame
// pair. Engines are safe for sequential reuse across pairs; concurrent
// pairs each get their own Engine (or share one, since Run keeps all state
// on the stack).
type Engine struct {
	settings Settings

	corr      Correlator
	deformer  warp.Deformer
	smoother  Smoother
	validator Validator
	repairer  Repairer
}

// Option overrides one of the engine's collaborators.
type Option func(*Engine)

// WithCorrelator replaces the default FFT correlator.
func WithCorrelator(c Correlator) Option { return func(e *Engine) { e.corr = c } }

// WithDeformer replaces the default tiled image deformer.
func WithDeformer(d warp.Deformer) Option { return func(e *Engine) { e.deformer = d } }

// WithSmoother replaces the default Gaussian field smoother.
func WithSmoother(s Smoother) Option { return func(e *Engine) { e.smoother = s } }

// WithValidator replaces the default threshold validator.
func WithValidator(v Validator) Option { return func(e *Engine) { e.validator = v } }

// WithRepairer replaces the default kernel-interpolation repairer.
func WithRepairer(r Repairer) Option { return func(e *Engine) { e.repairer = r } }

// New validates the settings and builds an engine with default
// collaborators, then applies the options.
func New(s Settings, opts ...Option) (*Engine, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		settings:  s,
		corr:      correlate.FFT{},
		deformer:  warp.Tiled{},
		smoother:  validate.GaussianSmoother{Sigma: s.SmoothnStrength},
		validator: defaultValidator{cfg: s.Validation},
		repairer: defaultRepairer{
			method:  s.FilterMethod,
			maxIter: s.FilterMaxIterations,
			kernel:  s.FilterKernelSize,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

type defaultValidator struct{ cfg validate.Config }

func (d defaultValidator) Validate(u, v, snr *field.Field, exclude *field.Mask) *field.Mask {
	return validate.Displacement(u, v, snr, exclude, d.cfg)
}

type defaultRepairer struct {
	method  validate.FilterMethod
	maxIter int
	kernel  int
}

func (d defaultRepairer) Replace(u, v *field.Field, flags, exclude *field.Mask) validate.RepairStats {
	return validate.ReplaceOutliers(u, v, flags, exclude, d.method, d.maxIter, d.kernel)
}

// Result is the finalized output of one run. All arrays share the final
// pass's grid shape. The row axis is flipped and both displacement
// components negated relative to the engine's internal image convention, so
// u is positive rightward and v positive upward (physical Y-up);
// displacement units are pixels per frame interval.
type Result struct {
	X, Y     *field.Field // window-center coordinates, pixels
	U, V     *field.Field
	Flags    *field.Mask // true = failed validation (unrepaired on the last pass)
	GridMask *field.Mask // true = window center inside a masked image region
}

// passState is the per-iteration bundle the engine carries from one pass to
// the next. It is replaced wholesale each pass; at most the current and
// previous pass are alive at once.
type passState struct {
	grid     *Grid
	u, v     *field.Field
	snr      *field.Field
	flags    *field.Mask
	gridMask *field.Mask
}

// passConfig is the immutable per-pass snapshot of everything a single pass
// needs. Any "adjust for this pass" decision (search area, disabling snr
// scoring) is resolved here, once, instead of mutating shared settings
// mid-run.
type passConfig struct {
	index   int // zero-based
	last    bool
	window  int
	overlap int
	params  correlate.Params

	validateEnabled bool
	repairEnabled   bool
	smoothEnabled   bool
}

func (e *Engine) passConfig(i int) passConfig {
	s := &e.settings
	last := i == s.NumIterations-1

	// Scoring is kept on intermediate passes only when the snr floor
	// criterion consumes it; the first and last passes always score when
	// a method is configured.
	snrMethod := s.SignalToNoiseMethod
	if !s.Validation.SNRFloor && i > 0 && !last {
		snrMethod = correlate.SNRNone
	}

	search := s.WindowSizes[i]
	if i == 0 {
		search = s.searchArea()
	}

	repair := false
	switch {
	case !last:
		repair = true
	case s.NumIterations == 1:
		repair = s.ReplaceVectors
	}

	return passConfig{
		index:   i,
		last:    last,
		window:  s.WindowSizes[i],
		overlap: s.Overlaps[i],
		params: correlate.Params{
			WindowSize:     s.WindowSizes[i],
			Overlap:        s.Overlaps[i],
			SearchAreaSize: search,
			Method:         s.CorrelationMethod,
			Normalized:     s.NormalizedCorrelation,
			Subpixel:       s.SubpixelMethod,
			SNR:            snrMethod,
			SNRMaskWidth:   s.SignalToNoiseMask,
		},
		validateEnabled: i > 0 || s.ValidationEnabledFirstPass,
		repairEnabled:   repair,
		smoothEnabled:   s.SmoothnEnabled && !last,
	}
}

// Run computes the displacement field between frameA and frameB. The
// context is checked at the top of every refinement iteration, never
// mid-pass.
func (e *Engine) Run(ctx context.Context, frameA, frameB *field.Field) (*Result, error) {
	fa, fb, imgMask, err := prepareFrames(frameA, frameB, &e.settings)
	if err != nil {
		return nil, err
	}

	st, err := e.firstPass(fa, fb, imgMask)
	if err != nil {
		return nil, err
	}

	for i := 1; i < e.settings.NumIterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		st, err = e.refinePass(i, fa, fb, imgMask, st)
		if err != nil {
			return nil, err
		}
	}

	return finalize(st), nil
}

func (e *Engine) firstPass(fa, fb *field.Field, imgMask *field.Mask) (*passState, error) {
	cfg := e.passConfig(0)
	grid, err := BuildGrid(fa.Rows, fa.Cols, cfg.window, cfg.overlap)
	if err != nil {
		return nil, err
	}

	res, err := e.corr.Correlate(fa, fb, cfg.params)
	if err != nil {
		return nil, fmt.Errorf("first pass: %w", err)
	}
	st, err := e.newPassState(grid, res, imgMask)
	if err != nil {
		return nil, err
	}
	log.Printf("[Engine] pass 1/%d window=%d overlap=%d grid=%dx%d search=%d",
		e.settings.NumIterations, cfg.window, cfg.overlap, grid.Rows(), grid.Cols(), cfg.params.SearchAreaSize)

	if err := e.finishPass(cfg, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (e *Engine) refinePass(i int, fa, fb *field.Field, imgMask *field.Mask, prev *passState) (*passState, error) {
	cfg := e.passConfig(i)
	grid, err := BuildGrid(fa.Rows, fa.Cols, cfg.window, cfg.overlap)
	if err != nil {
		return nil, err
	}

	uPre, vPre, err := resampleToGrid(prev, grid, e.settings.fieldOrder())
	if err != nil {
		return nil, fmt.Errorf("pass %d resample: %w", i+1, err)
	}

	// The deformer samples output (r, c) from (r - v, c + u), so the
	// vertical pre-displacement flips sign to pull B back toward A.
	deformed, err := e.deformer.Deform(warp.Request{
		Frame:      fb,
		GridY:      grid.Ys,
		GridX:      grid.Xs,
		U:          uPre,
		V:          vPre.Clone().Negate(),
		FieldOrder: e.settings.fieldOrder(),
		ImageOrder: e.settings.ImageDeformationOrder,
	})
	if err != nil {
		return nil, fmt.Errorf("pass %d deform: %w", i+1, err)
	}

	res, err := e.corr.Correlate(fa, deformed, cfg.params)
	if err != nil {
		return nil, fmt.Errorf("pass %d: %w", i+1, err)
	}
	st, err := e.newPassState(grid, res, imgMask)
	if err != nil {
		return nil, err
	}

	// Deformation removed the bulk motion; the correlation found only the
	// residual. The pass total is residual plus the resampled guess.
	st.u.Add(uPre)
	st.v.Add(vPre)

	log.Printf("[Engine] pass %d/%d window=%d overlap=%d grid=%dx%d",
		i+1, e.settings.NumIterations, cfg.window, cfg.overlap, grid.Rows(), grid.Cols())

	if err := e.finishPass(cfg, st); err != nil {
		return nil, err
	}
	return st, nil
}

// newPassState reshapes the flat correlation result onto the grid and seeds
// the flags with degenerate windows, which count as correlation failures
// but never abort the pass.
func (e *Engine) newPassState(grid *Grid, res *correlate.Result, imgMask *field.Mask) (*passState, error) {
	rows, cols := grid.Rows(), grid.Cols()
	if res.Rows != rows || res.Cols != cols {
		return nil, fmt.Errorf("correlator returned %dx%d results for a %dx%d grid",
			res.Rows, res.Cols, rows, cols)
	}
	st := &passState{
		grid:     grid,
		u:        field.FromSlice(rows, cols, res.U),
		v:        field.FromSlice(rows, cols, res.V),
		snr:      field.FromSlice(rows, cols, res.SNR),
		flags:    field.NewMask(rows, cols),
		gridMask: gridMask(imgMask, grid),
	}
	for i, bad := range res.Degenerate {
		if bad {
			st.flags.Data[i] = true
		}
	}
	return st, nil
}

// finishPass runs the smoothing, validation, and repair stages of one pass
// and reapplies the grid mask, per the pass snapshot. The first pass smooths
// the raw field before validating; refinement passes validate and repair
// first so the smoother never spreads an outlier into its neighbors, and the
// next pass deforms against a smoothed, repaired field.
func (e *Engine) finishPass(cfg passConfig, st *passState) error {
	smooth := func() {
		st.u = e.smoother.Smooth(st.u)
		st.v = e.smoother.Smooth(st.v)
	}
	if cfg.smoothEnabled && cfg.index == 0 {
		smooth()
	}

	if cfg.validateEnabled {
		st.flags.Or(e.validator.Validate(st.u, st.v, st.snr, st.gridMask))
	}
	if invalidEverywhere(st.flags, st.gridMask) {
		return fmt.Errorf("%w: pass %d of %d", ErrValidationExhausted, cfg.index+1, e.settings.NumIterations)
	}

	if cfg.repairEnabled && st.flags.Count() > 0 {
		stats := e.repairer.Replace(st.u, st.v, st.flags, st.gridMask)
		if stats.Remaining > 0 {
			log.Printf("[Engine] pass %d repair: %d cells left unresolved after %d iterations",
				cfg.index+1, stats.Remaining, stats.Iterations)
		} else if stats.Repaired > 0 {
			log.Printf("[Engine] pass %d repair: %d cells filled in %d iterations",
				cfg.index+1, stats.Repaired, stats.Iterations)
		}
	}

	if cfg.smoothEnabled && cfg.index > 0 {
		smooth()
	}

	// Masked cells carry no measurement; pin them to zero so they cannot
	// leak into the next pass's spline fit.
	for i, masked := range st.gridMask.Data {
		if masked {
			st.u.Data[i] = 0
			st.v.Data[i] = 0
		}
	}
	return nil
}

// invalidEverywhere reports whether every cell is either flagged or masked.
func invalidEverywhere(flags, mask *field.Mask) bool {
	if len(flags.Data) == 0 {
		return false
	}
	for i, bad := range flags.Data {
		if !bad && !mask.Data[i] {
			return false
		}
	}
	return true
}

// resampleToGrid interpolates the previous pass's displacement onto the new
// grid, extrapolating where the finer grid extends past the coarse one near
// the frame borders.
func resampleToGrid(prev *passState, grid *Grid, order int) (uPre, vPre *field.Field, err error) {
	uPre, err = resampleField(prev.grid, prev.u, grid, order)
	if err != nil {
		return nil, nil, err
	}
	vPre, err = resampleField(prev.grid, prev.v, grid, order)
	if err != nil {
		return nil, nil, err
	}
	return uPre, vPre, nil
}

func resampleField(from *Grid, f *field.Field, to *Grid, order int) (*field.Field, error) {
	return spline.Resample(from.Ys, from.Xs, f, to.Ys, to.Xs, order, spline.Extrapolate)
}

// finalize converts the last pass's state into the output convention:
// masked cells zero-filled, row axis flipped, both components negated
// (image-row-major to physical Y-up). Validation flags from the last pass
// stay visible and unrepaired.
func finalize(st *passState) *Result {
	u := st.u.Clone()
	v := st.v.Clone()
	for i, masked := range st.gridMask.Data {
		if masked {
			u.Data[i] = 0
			v.Data[i] = 0
		}
	}
	return &Result{
		X:        st.grid.X.Clone().FlipRows(),
		Y:        st.grid.Y.Clone().FlipRows(),
		U:        u.FlipRows().Negate(),
		V:        v.FlipRows().Negate(),
		Flags:    st.flags.Clone().FlipRows(),
		GridMask: st.gridMask.Clone().FlipRows(),
	}
}
