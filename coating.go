package optix

import "sort"

// LinearCoatingTable is an in-memory CoatingTable implementation that
// bilinearly interpolates (rs, rp) over a (wavelength, angle) grid per
// coating entry. It stands in for the external reflectivity library,
// just enough to drive the transmissive Fresnel-update branch.
type LinearCoatingTable struct {
	entries map[string]*coatingEntry
}

type coatingEntry struct {
	wavelengths []float64
	angles      []float64
	rs, rp      []complex128 // row-major over (wavelength, angle), same length as wavelengths*angles
}

func NewLinearCoatingTable() *LinearCoatingTable {
	return &LinearCoatingTable{entries: make(map[string]*coatingEntry)}
}

func key(table, entry string) string { return table + "/" + entry }

// AddEntry installs (or replaces) the reflectivity grid for a
// table/entry pair. wavelengths and angles must be sorted ascending.
func (t *LinearCoatingTable) AddEntry(table, entry string, wavelengths, angles []float64, rs, rp []complex128) {
	t.entries[key(table, entry)] = &coatingEntry{
		wavelengths: wavelengths,
		angles:      angles,
		rs:          rs,
		rp:          rp,
	}
}

func (t *LinearCoatingTable) Reflectivity(table, entryName string, wavelength, incidenceAngle float64) (complex128, complex128, bool) {
	e, ok := t.entries[key(table, entryName)]
	if !ok {
		return 0, 0, false
	}
	wi := bracket(e.wavelengths, wavelength)
	ai := bracket(e.angles, incidenceAngle)
	nAngles := len(e.angles)

	idx := func(wi, ai int) int { return wi*nAngles + ai }

	w0, w1 := e.wavelengths[wi], e.wavelengths[wi+1]
	a0, a1 := e.angles[ai], e.angles[ai+1]
	fw := frac(wavelength, w0, w1)
	fa := frac(incidenceAngle, a0, a1)

	rs := bilerpC(e.rs[idx(wi, ai)], e.rs[idx(wi, ai+1)], e.rs[idx(wi+1, ai)], e.rs[idx(wi+1, ai+1)], fw, fa)
	rp := bilerpC(e.rp[idx(wi, ai)], e.rp[idx(wi, ai+1)], e.rp[idx(wi+1, ai)], e.rp[idx(wi+1, ai+1)], fw, fa)
	return rs, rp, true
}

func bracket(xs []float64, v float64) int {
	i := sort.SearchFloat64s(xs, v)
	if i == 0 {
		return 0
	}
	if i >= len(xs) {
		return len(xs) - 2
	}
	return i - 1
}

func frac(v, lo, hi float64) float64 {
	if hi == lo {
		return 0
	}
	return clamp((v-lo)/(hi-lo), 0, 1)
}

func bilerpC(c00, c01, c10, c11 complex128, fw, fa float64) complex128 {
	top := c00*complex(1-fa, 0) + c01*complex(fa, 0)
	bot := c10*complex(1-fa, 0) + c11*complex(fa, 0)
	return top*complex(1-fw, 0) + bot*complex(fw, 0)
}
