// Package legacyimport reads the Solemio legacy ray-trace data format:
// a tag-identified sequence of ≈27 element kinds, each with a
// fixed-length parameter vector, followed by a coating block.
// Unsupported kinds are skipped with a "NOT IMPLEMENTED" log line
// rather than aborting the whole file.
package legacyimport

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"reflect"
	"strconv"
	"strings"

	"github.com/dennetiere/optix-go"
	stgpsr "github.com/yuin/stagparser"
)

// Solemio element type tags.
const (
	tagFilm                           = 1
	tagPlan                           = 2
	tagCylindre                       = 3
	tagTorus                          = 4
	tagSphere                         = 5
	tagEllipse                        = 6
	tagReseauxOLPlanDevConst          = 7
	tagReseauxVLSPlanDevConst         = 8
	tagSorgenteSimp                   = 9
	tagFente                          = 10
	tagSorgenteRandomGaussiana        = 11
	tagTorusDeformed                  = 12
	tagSorgenteRandomGaussianaDivLin  = 13
	tagSurfPol                        = 14
	tagReseauxOLPlanDevConstAngle     = 15
	tagReseauxOLSpherDevConstAngle    = 16
	tagReseauxVLSSpherDevConstAngle   = 17
	tagFilmSphere                     = 18
	tagReseauxOLVLSSpherDevConstAngle = 19
	tagReseauxOLTorusDevConstAngle    = 20
	tagReseauxOLSphereTransm          = 21
	tagSurfaceCopie                   = 22
	tagReseauxOLVLSSpherTransm        = 23
	tagCono                           = 24
	tagSorgenteOnduleurGaussiana      = 25
	tagSystemGlobalParameters         = 26
	tagSourceAimant                   = 27
)

// numParameters gives the per-kind parameter-vector length (index ==
// Solemio type tag).
var numParameters = []int{
	0, 5, 2, 3, 4, 3, 5, 14, 9, 12, 3, 7, 8, 7, 28, 14, 12, 10, 2, 7, 13, 13, 0, 7, 3, 9, 8, 9,
}

// Record is one decoded Solemio surface: its raw tag, the
// numParameters[type] (value, varMax, varMin) triples, and the two
// medium names read after them.
type Record struct {
	Type             int
	Params           []float64
	VarMax, VarMin   []float64
	Medium1, Medium2 string
	CoatingSet       int
}

// ReadSolemio tokenises r (whitespace-delimited) into a version number
// and a sequence of Records, one per surface in file order.
func ReadSolemio(r io.Reader) (version int, records []Record, err error) {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	tok := func() (string, bool) {
		if !sc.Scan() {
			return "", false
		}
		return sc.Text(), true
	}
	tokF := func() (float64, error) {
		s, ok := tok()
		if !ok {
			return 0, io.ErrUnexpectedEOF
		}
		return strconv.ParseFloat(s, 64)
	}
	tokI := func() (int, error) {
		s, ok := tok()
		if !ok {
			return 0, io.ErrUnexpectedEOF
		}
		return strconv.Atoi(s)
	}

	if version, err = tokI(); err != nil {
		return 0, nil, fmt.Errorf("legacyimport: reading version: %w", err)
	}
	if version < 19 {
		return version, nil, fmt.Errorf("legacyimport: file version %d not implemented", version)
	}

	for {
		typeTok, ok := tok()
		if !ok {
			break
		}
		typ, err := strconv.Atoi(typeTok)
		if err != nil {
			return version, records, fmt.Errorf("legacyimport: bad type tag %q: %w", typeTok, err)
		}
		if typ < 0 || typ >= len(numParameters) {
			return version, records, fmt.Errorf("legacyimport: type tag %d out of range", typ)
		}
		n := numParameters[typ]
		rec := Record{Type: typ, Params: make([]float64, n), VarMax: make([]float64, n), VarMin: make([]float64, n)}
		for i := 0; i < n; i++ {
			if rec.Params[i], err = tokF(); err != nil {
				return version, records, err
			}
			if rec.VarMax[i], err = tokF(); err != nil {
				return version, records, err
			}
			if rec.VarMin[i], err = tokF(); err != nil {
				return version, records, err
			}
		}
		if rec.Medium1, ok = tok(); !ok {
			return version, records, io.ErrUnexpectedEOF
		}
		if rec.Medium2, ok = tok(); !ok {
			return version, records, io.ErrUnexpectedEOF
		}
		if rec.CoatingSet, err = tokI(); err != nil {
			return version, records, err
		}
		records = append(records, rec)
	}
	return version, records, nil
}

// Import decodes records into sys, creating one optix element per
// supported record in order and naming them "legacyN". Unsupported
// kinds are skipped and logged.
func Import(sys *optix.System, records []Record) error {
	for i, rec := range records {
		name := fmt.Sprintf("legacy%d", i)
		var (
			sd  *optix.SurfaceData
			err error
		)
		switch rec.Type {
		case tagFilm:
			sd, err = sys.CreateElement(name, "Film<Plane>")
		case tagFilmSphere:
			sd, err = sys.CreateElement(name, "Film<Sphere>")
			if err == nil {
				err = applyTagged(sys, name, rec.Params, &curvatureFields{})
			}
		case tagPlan:
			sd, err = sys.CreateElement(name, "Mirror<Plane>")
		case tagCylindre:
			sd, err = sys.CreateElement(name, "Mirror<Cylinder>")
			if err == nil {
				err = applyTagged(sys, name, rec.Params, &curvatureFields{})
			}
		case tagSphere:
			sd, err = sys.CreateElement(name, "Mirror<Sphere>")
			if err == nil {
				err = applyTagged(sys, name, rec.Params, &curvatureFields{})
			}
		case tagTorus:
			sd, err = sys.CreateElement(name, "Mirror<Toroid>")
			if err == nil {
				err = applyTagged(sys, name, rec.Params, &toroidFields{})
			}
		case tagTorusDeformed:
			sd, err = sys.CreateElement(name, "Mirror<Toroid>")
			if err == nil {
				err = applyTagged(sys, name, rec.Params, &toroidFields{})
			}
		case tagSorgenteSimp, tagFente:
			sd, err = sys.CreateElement(name, "Source<XY,Grid>")
		case tagSorgenteRandomGaussiana:
			sd, err = sys.CreateElement(name, "Source<Gaussian>")
			if err == nil {
				err = applyTagged(sys, name, rec.Params, &gaussianFields{})
			}
		case tagSorgenteRandomGaussianaDivLin:
			sd, err = sys.CreateElement(name, "Source<Astigmatic,Gaussian>")
			if err == nil {
				err = applyTagged(sys, name, rec.Params, &gaussianFields{})
			}
		case tagSorgenteOnduleurGaussiana:
			sd, err = sys.CreateElement(name, "Source<BMtype,Gaussian>")
			if err == nil {
				err = applyTagged(sys, name, rec.Params, &gaussianFields{})
			}
		default:
			log.Printf("legacyimport: type %d (%s): NOT IMPLEMENTED", rec.Type, solemioName(rec.Type))
			continue
		}
		if err != nil {
			return fmt.Errorf("legacyimport: element %s: %w", name, err)
		}
		if rec.Medium1 != "" && rec.Medium1 != "-" && sd != nil {
			sd.SetCoating(rec.Medium1, rec.Medium2)
		}
	}
	return nil
}

// invOrZero converts a Solemio radius (or 0, meaning flat/unset) into
// the engine's curvature (inverse-distance) parameter convention.
func invOrZero(radius float64) float64 {
	if radius == 0 {
		return 0
	}
	return 1 / radius
}

// curvatureFields, toroidFields and gaussianFields describe the
// Solemio parameter-vector layout for the record kinds that carry a
// single curvature, a major/minor curvature pair, or the four
// gaussian-source sigmas, as stagparser-tagged structs: the tag names
// which Solemio parameter index feeds which engine Parameter, with an
// optional unit conversion.
type curvatureFields struct {
	Curvature float64 `optix:"param=curvature,index=0,conv=inv"`
}

type toroidFields struct {
	MajorCurvature float64 `optix:"param=majorCurvature,index=0,conv=inv"`
	MinorCurvature float64 `optix:"param=minorCurvature,index=1,conv=inv"`
}

type gaussianFields struct {
	SigmaX    float64 `optix:"param=sigmaX,index=0"`
	SigmaXdiv float64 `optix:"param=sigmaXdiv,index=1"`
	SigmaY    float64 `optix:"param=sigmaY,index=2"`
	SigmaYdiv float64 `optix:"param=sigmaYdiv,index=3"`
}

// applyTagged walks spec's "optix"-tagged fields via stagparser,
// reading each field's Solemio parameter index (and optional unit
// conversion) and setting the corresponding engine parameter from
// params.
func applyTagged(sys *optix.System, name string, params []float64, spec any) error {
	defs, err := stgpsr.ParseStruct(spec, "optix")
	if err != nil {
		return fmt.Errorf("legacyimport: parsing field tags: %w", err)
	}
	t := reflect.TypeOf(spec)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	for i := 0; i < t.NumField(); i++ {
		fieldDefs := defs[t.Field(i).Name]
		var pname, conv string
		idx := -1
		for _, d := range fieldDefs {
			switch d.Name() {
			case "param":
				if v, ok := d.Attribute("param"); ok {
					pname, _ = v.(string)
				}
			case "index":
				if v, ok := d.Attribute("index"); ok {
					if n, ok := v.(int64); ok {
						idx = int(n)
					}
				}
			case "conv":
				if v, ok := d.Attribute("conv"); ok {
					conv, _ = v.(string)
				}
			}
		}
		if pname == "" || idx < 0 || idx >= len(params) {
			continue
		}
		val := params[idx]
		if conv == "inv" {
			val = invOrZero(val)
		}
		if err := sys.SetParameter(name, pname, val); err != nil {
			return err
		}
	}
	return nil
}

var solemioNames = []string{
	"invalide", "Film", "Plan", "Cylindre", "Tore", "Sphere", "Ellipse",
	"Reseau holo. plan cst dev def delta cos", "Reseau VLS plan cst. dev. def delta cos",
	"Source simple", "Fente", "Source aleatoire gaussienne", "Tore deforme",
	"Source aleatoire gaussienne a divergence lineaire", "Surface Poly",
	"Reseau holo. plan cst dev def angles", "Reseau holo. sphere cst dev def angles",
	"Reseau VLS. sphere cst dev def angles", "film sphere", "Reseau holo VLS sphere cst. dev. def delta cos",
	"Reseau holo. tore cst dev def angles", "Reseau holo. sphere transmission", "Copie surface",
	"Reseau holo. VLS Sphere transmission", "Cone", "Source Onduleur gaussienne",
	"Systeme de parametres globaux", "Source aimant",
}

func solemioName(tag int) string {
	if tag < 0 || tag >= len(solemioNames) {
		return "unknown"
	}
	return solemioNames[tag]
}

// ParseUndulatorTCL recovers the undulator geometry embedded as TCL
// `set name value` statements, scanning them into a dictionary without
// pulling in a real TCL interpreter.
func ParseUndulatorTCL(r io.Reader) (map[string]float64, error) {
	out := make(map[string]float64)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "set ") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		v, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			continue
		}
		out[fields[1]] = v
	}
	return out, sc.Err()
}
