package optix

import "github.com/soniakeys/unit"

// ParameterUnit tags the physical dimension of a Parameter's value.
type ParameterUnit uint32

const (
	UnitNone ParameterUnit = iota
	UnitAngle
	UnitDistance
	UnitInverseDistance
	UnitInverseDistanceSquared
	UnitInverseDistanceCubed
)

// ParameterGroup tags which conceptual bucket a Parameter belongs to.
type ParameterGroup uint32

const (
	GroupBasic ParameterGroup = iota
	GroupShape
	GroupSource
	GroupGrating
)

// ParameterFlags are bit flags on a Parameter.
type ParameterFlags uint32

const (
	FlagNotOptimisable ParameterFlags = 1 << iota
	FlagArrayData
)

// ParameterValue is a tagged union: a Parameter is either a scalar with
// optimisation bounds and a display multiplier, or an array with
// row/column dimensions and a flattened column-major buffer.
type ParameterValue struct {
	IsArray bool

	// Scalar fields.
	Value float64
	Min   float64
	Max   float64
	Mult  float64

	// Array fields: Data is column-major, length Rows*Cols.
	Rows, Cols int
	Data       []float64
}

// ScalarValue constructs a scalar ParameterValue with the given bounds
// and a unit display multiplier of 1.
func ScalarValue(v, min, max float64) ParameterValue {
	return ParameterValue{Value: v, Min: min, Max: max, Mult: 1}
}

// ArrayValue constructs an array ParameterValue, copying data defensively.
func ArrayValue(rows, cols int, data []float64) ParameterValue {
	cp := make([]float64, len(data))
	copy(cp, data)
	return ParameterValue{IsArray: true, Rows: rows, Cols: cols, Data: cp}
}

// At returns the (row, col) entry of a column-major array value.
func (pv ParameterValue) At(row, col int) float64 {
	return pv.Data[col*pv.Rows+row]
}

// Clone performs the deep copy array parameters require on assignment.
func (pv ParameterValue) Clone() ParameterValue {
	out := pv
	if pv.IsArray {
		out.Data = make([]float64, len(pv.Data))
		copy(out.Data, pv.Data)
	}
	return out
}

// Parameter is a named, typed value in an Element's parameter dictionary.
// Unit, Group and the scalar-vs-array kind are fixed at creation: Set
// cannot overwrite them.
type Parameter struct {
	Value ParameterValue
	Unit  ParameterUnit
	Group ParameterGroup
	Flags ParameterFlags
}

func NewScalarParameter(v, min, max float64, unit ParameterUnit, group ParameterGroup, flags ParameterFlags) *Parameter {
	return &Parameter{Value: ScalarValue(v, min, max), Unit: unit, Group: group, Flags: flags}
}

func NewArrayParameter(rows, cols int, data []float64, unit ParameterUnit, group ParameterGroup) *Parameter {
	return &Parameter{Value: ArrayValue(rows, cols, data), Unit: unit, Group: group, Flags: FlagArrayData}
}

// AsAngle reinterprets a UnitAngle scalar parameter as a soniakeys/unit
// Angle, giving the angle unit tag a concrete Go type rather than a
// bare-float convention. The alignment solve reads every
// theta/phi/psi-family parameter through this.
func (p *Parameter) AsAngle() unit.Angle {
	return unit.Angle(p.Value.Value)
}

// Dictionary is an insertion-order-irrelevant mapping from a short
// string key to a Parameter.
type Dictionary struct {
	params map[string]*Parameter
}

func NewDictionary() *Dictionary {
	return &Dictionary{params: make(map[string]*Parameter)}
}

// Define inserts a new Parameter under name, overwriting any prior
// definition (used only at element-construction time; runtime mutation
// goes through Set).
func (d *Dictionary) Define(name string, p *Parameter) {
	d.params[name] = p
}

func (d *Dictionary) Get(name string) (*Parameter, bool) {
	p, ok := d.params[name]
	return p, ok
}

// Set assigns a new scalar value, returning ErrInvalidParameter if name
// is unknown or refers to an array parameter.
func (d *Dictionary) Set(name string, value float64) error {
	p, ok := d.params[name]
	if !ok {
		return newErr(ErrInvalidParameter, "", name, "unknown parameter")
	}
	if p.Value.IsArray {
		return newErr(ErrInvalidParameter, "", name, "parameter is an array, not a scalar")
	}
	p.Value.Value = value
	return nil
}

// SetArray assigns new array data, which must match the existing
// dimensions exactly.
func (d *Dictionary) SetArray(name string, rows, cols int, data []float64) error {
	p, ok := d.params[name]
	if !ok {
		return newErr(ErrInvalidParameter, "", name, "unknown parameter")
	}
	if !p.Value.IsArray {
		return newErr(ErrInvalidParameter, "", name, "parameter is a scalar, not an array")
	}
	if rows != p.Value.Rows || cols != p.Value.Cols {
		return newErr(ErrInvalidParameter, "", name, "array dimension mismatch")
	}
	p.Value = ArrayValue(rows, cols, data)
	return nil
}

// Names returns the defined parameter keys.
func (d *Dictionary) Names() []string {
	names := make([]string, 0, len(d.params))
	for k := range d.params {
		names = append(names, k)
	}
	return names
}

// standardAlignmentParams installs the alignment parameter set every
// element exposes at minimum.
func standardAlignmentParams(d *Dictionary) {
	d.Define("distance", NewScalarParameter(0, 0, 1e12, UnitDistance, GroupBasic, 0))
	d.Define("theta", NewScalarParameter(0, -3.141592653589793, 3.141592653589793, UnitAngle, GroupBasic, 0))
	d.Define("phi", NewScalarParameter(0, -3.141592653589793, 3.141592653589793, UnitAngle, GroupBasic, 0))
	d.Define("psi", NewScalarParameter(0, -3.141592653589793, 3.141592653589793, UnitAngle, GroupBasic, 0))
	d.Define("Dtheta", NewScalarParameter(0, -1, 1, UnitAngle, GroupBasic, 0))
	d.Define("Dphi", NewScalarParameter(0, -1, 1, UnitAngle, GroupBasic, 0))
	d.Define("Dpsi", NewScalarParameter(0, -1, 1, UnitAngle, GroupBasic, 0))
	d.Define("DX", NewScalarParameter(0, -1, 1, UnitDistance, GroupBasic, 0))
	d.Define("DY", NewScalarParameter(0, -1, 1, UnitDistance, GroupBasic, 0))
	d.Define("DZ", NewScalarParameter(0, -1, 1, UnitDistance, GroupBasic, 0))
}
