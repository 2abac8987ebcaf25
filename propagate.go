package optix

import (
	"math"

	"github.com/alitto/pond"
	"github.com/samber/lo"
)

// Pool lets a caller opt a System into parallel ray propagation; the
// propagation of independent rays over a single chain is
// embarrassingly parallel. Impact
// buffer writes under the pool go through a per-chunk localRecorder
// (see dispatchForward) rather than straight into SurfaceData.Impacts,
// so ordering equal to source-emission order is preserved across
// chunks even though chunks themselves run concurrently.
type Pool struct {
	pool *pond.WorkerPool
	size int
}

// NewPool builds a bounded worker pool of the given size for Radiate/
// WaveRadiate to dispatch ray propagation onto.
func NewPool(size int) *Pool {
	return &Pool{pool: pond.New(size, size*4), size: size}
}

func (p *Pool) StopAndWait() {
	if p != nil && p.pool != nil {
		p.pool.StopAndWait()
	}
}

// localRecorder accumulates impacts recorded while a single pool chunk
// is processed, keyed by the element they belong to. A chunk is one
// goroutine processing a contiguous, source-order sub-slice of rays
// sequentially, so a localRecorder's per-element slice is itself in
// source-emission order; dispatchForward then merges recorders back
// into the real SurfaceData.Impacts buffers in chunk order, so the
// final buffer is in source-emission order overall.
type localRecorder struct {
	buf map[*SurfaceData][]Ray
}

func newLocalRecorder() *localRecorder {
	return &localRecorder{buf: make(map[*SurfaceData][]Ray)}
}

// recordImpact appends r for el, either straight into the shared
// buffer (rec == nil, the unpooled path) or into rec's local,
// unlocked per-chunk buffer.
func recordImpact(rec *localRecorder, el *SurfaceData, r Ray) {
	if rec == nil {
		el.RecordImpact(r)
		return
	}
	rec.buf[el] = append(rec.buf[el], r)
}

// processAt walks a copy of r through el (translate, intercept,
// aperture and error checks, then the transmit/reflect/diffract
// branch), returning both the outgoing ray and its
// pre-interaction state at the intercept (for RecordOnEntry), without
// touching any impact buffer. propagateOne wraps this with recording
// and forwarding; diagnostics.go's chief-ray replay uses it directly
// to walk a single ray to an arbitrary element with no side effects.
func (sys *System) processAt(el *SurfaceData, r Ray) (out, pre Ray) {
	// step 1: into el's local frame, relative to the previous element's
	// exit point.
	r.Translate(el.TranslationFromPrevious.Scale(-1))

	if !r.Alive {
		return r, r
	}

	// step 3: into surface-definition coordinates.
	r.ApplyAffine(el.SurfaceInverse)

	// step 4: intercept.
	pos, normal, err := el.Shape.Intercept(&r)
	if err != nil {
		r.Alive = false
		r.ApplyAffine(el.SurfaceDirect)
		return r, r
	}
	r.Origin = pos
	r.Distance = 0

	// step 5: aperture.
	if sys.ApertureEnabled && el.ApertureEnabled && el.ApertureRegion != nil {
		if !el.ApertureRegion.Contains(pos.X, pos.Y) {
			r.Alive = false
		}
	}

	// step 6: surface errors.
	if r.Alive && sys.ErrorsEnabled && el.ErrorMap != nil {
		h, gx, gy := el.ErrorMap.heightAndGradient(pos.X, pos.Y)
		switch el.ErrorMethod {
		case ErrorApplyDisplace:
			pos = pos.Add(normal.Scale(h))
			normal = Vec3{normal.X - gx, normal.Y - gy, normal.Z}.Unit()
			r.Origin = pos
		case ErrorApplyTiltOnly:
			normal = Vec3{normal.X - gx, normal.Y - gy, normal.Z}.Unit()
		}
	}

	// step 7: back to local frame.
	r.ApplyAffine(el.SurfaceDirect)
	labNormal := el.SurfaceDirect.Rotation.MulVec(normal).Unit()
	pre = r

	// step 8: branch.
	if r.Alive {
		switch {
		case el.Kind == KindGrating:
			nUse := el.paramOr("order_use", 1)
			gSurf := el.Pattern.LineDensityAt(pos, normal).Scale(nUse * r.Lambda)
			gLocal := el.SurfaceDirect.Rotation.MulVec(gSurf)
			if newDir, ok := Diffract(r.Direction, labNormal, gLocal, el.Transmissive); ok {
				r.Direction = newDir
			} else {
				r.Alive = false
			}
		case el.Transmissive:
			if sys.ReflectivityEnabled && el.CoatingTable != "" && sys.Coating != nil {
				incidence := math.Acos(clamp(math.Abs(r.Direction.Dot(labNormal)), -1, 1))
				if rs, rp, ok := sys.Coating.Reflectivity(el.CoatingTable, el.CoatingEntry, r.Lambda, incidence); ok {
					r.AmpS *= rs
					r.AmpP *= rp
				}
			}
		default:
			r.Direction = Reflect(r.Direction, labNormal)
		}
	}

	return r, pre
}

// propagateOne walks ray through el and its successors, recording as
// the element's mode dictates. It mutates a local copy of
// the ray at each step; recordImpact is the only point that touches
// shared state, so this method is safe to invoke concurrently for
// distinct rays over the same chain as long as each concurrent caller
// passes its own localRecorder (see dispatchForward).
func (sys *System) propagateOne(el *SurfaceData, r Ray, rec *localRecorder) {
	enteredAlive := r.Alive
	out, pre := sys.processAt(el, r)

	switch {
	case !enteredAlive:
		// step 2: already dead on arrival; record the loss at this
		// surface if it watches its entrance, then hand the corpse on
		// so any later surface can record it too.
		if el.Mode == RecordOnEntry {
			recordImpact(rec, el, el.toEntranceFrame(out))
		}
	case el.Mode == RecordOnEntry:
		// the pre-interaction state at the intercept, in the entrance
		// frame; a ray killed by the intercept itself is still recorded
		// here, keeping per-surface loss accounting intact.
		recordImpact(rec, el, el.toEntranceFrame(pre))
	case out.Alive && el.Mode == RecordOnExit:
		// step 9: record on exit, in the aligned exit frame.
		recordImpact(rec, el, el.toExitFrame(out))
	}

	// step 10: forward.
	sys.forward(el, out, rec)
}

// chiefRayAt replays sourceName's index-0 impact (its chief ray)
// through the chain up to and including
// targetName, with no recording, for the caustic diagnostic's
// reference ray.
func (sys *System) chiefRayAt(sourceName, targetName string) (Ray, error) {
	src, ok := sys.byName[sourceName]
	if !ok {
		return Ray{}, newErr(ErrInvalidHandle, sourceName, "", "unknown element")
	}
	if len(src.Impacts) == 0 {
		return Ray{}, newErr(ErrInvalidArgument, sourceName, "", "source has no impacts; radiate first")
	}
	r := emitToLab(src, src.Impacts[0])
	cur := src
	for {
		next, ok := sys.byID[cur.Next]
		if !ok {
			return Ray{}, newErr(ErrInvalidHandle, targetName, "", "target element is not downstream of source")
		}
		r, _ = sys.processAt(next, r)
		if next.Name == targetName {
			// impacts on the target are recorded in its exit frame;
			// express the reference ray the same way.
			return next.toExitFrame(r), nil
		}
		cur = next
	}
}

// emitToLab rotates a ray generated in the source's own aligned frame
// into lab orientation before it enters the chain; for a chain-head
// source this is the identity.
func emitToLab(src *SurfaceData, r Ray) Ray {
	r.Origin = src.ExitFrame.Rotation.MulVec(r.Origin)
	r.Direction = src.ExitFrame.Rotation.MulVec(r.Direction)
	r.SRef = src.ExitFrame.Rotation.MulVec(r.SRef)
	return r
}

func (sys *System) forward(el *SurfaceData, r Ray, rec *localRecorder) {
	next, ok := sys.byID[el.Next]
	if !ok {
		return
	}
	sys.propagateOne(next, r, rec)
}

// Radiate generates sourceName's ray ensemble at the given wavelength
// and polarisation, then propagates every ray into the chain. If pool
// is non-nil the per-ray propagation is dispatched across it.
func (sys *System) Radiate(sourceName string, wavelength float64, polar byte, pool *Pool) error {
	src, ok := sys.byName[sourceName]
	if !ok {
		return newErr(ErrInvalidHandle, sourceName, "", "unknown element")
	}
	if src.Kind != KindSource {
		return newErr(ErrInvalidParameter, sourceName, "", "element is not a source")
	}
	before := len(src.Impacts)
	if err := src.Generate(wavelength, polar); err != nil {
		return err
	}
	sys.dispatchForward(src, src.Impacts[before:], pool)
	return nil
}

// WaveRadiate is Radiate's counterpart for the wavefront/PSF grid
// sampling mode.
func (sys *System) WaveRadiate(sourceName string, wavelength, thetaX, thetaY float64, nx, ny int, polar byte, pool *Pool) error {
	src, ok := sys.byName[sourceName]
	if !ok {
		return newErr(ErrInvalidHandle, sourceName, "", "unknown element")
	}
	if src.Kind != KindSource {
		return newErr(ErrInvalidParameter, sourceName, "", "element is not a source")
	}
	before := len(src.Impacts)
	if err := src.WaveRadiate(wavelength, thetaX, thetaY, nx, ny, polar); err != nil {
		return err
	}
	sys.dispatchForward(src, src.Impacts[before:], pool)
	return nil
}

// dispatchForward forwards rays into the chain starting at src.Next,
// either sequentially (pool == nil) or, under a pool, by splitting
// rays into contiguous chunks with lo.Chunk and dispatching one chunk
// per pool task. Each task processes its chunk
// sequentially into its own localRecorder, so records within a chunk
// stay in source-emission order; after every chunk completes, the
// recorders are merged back into the real impact buffers in chunk
// order, which preserves source-emission order across the whole
// ensemble.
func (sys *System) dispatchForward(src *SurfaceData, rays []Ray, pool *Pool) {
	next, ok := sys.byID[src.Next]
	if !ok {
		return
	}
	if pool == nil || pool.pool == nil {
		for _, r := range rays {
			sys.propagateOne(next, emitToLab(src, r), nil)
		}
		return
	}

	workers := pool.size
	if workers < 1 {
		workers = 1
	}
	size := len(rays) / workers
	if size < 1 {
		size = 1
	}
	chunks := lo.Chunk(rays, size)
	recorders := make([]*localRecorder, len(chunks))

	group := pool.pool.Group()
	for i, chunk := range chunks {
		i, chunk := i, chunk
		rec := newLocalRecorder()
		recorders[i] = rec
		group.Submit(func() {
			for _, r := range chunk {
				sys.propagateOne(next, emitToLab(src, r), rec)
			}
		})
	}
	group.Wait()

	for _, rec := range recorders {
		for el, buf := range rec.buf {
			el.impactsMu.Lock()
			el.Impacts = append(el.Impacts, buf...)
			el.impactsMu.Unlock()
		}
	}
}
