// Package diagbackend stores optix Diagram values (spot, caustic and
// impact diagrams) as dense TileDB arrays, with the summary statistics
// carried as JSON array metadata. Wavefront fits and focal stacks are
// not stored.
package diagbackend

import (
	"encoding/json"
	"errors"
	"fmt"

	tiledb "github.com/TileDB-Inc/TileDB-Go"

	"github.com/dennetiere/optix-go"
)

var (
	ErrCreateSchema = errors.New("diagbackend: error creating TileDB schema")
	ErrOpenArray    = errors.New("diagbackend: error opening TileDB array")
	ErrWriteArray   = errors.New("diagbackend: error writing TileDB array")
	ErrReadArray    = errors.New("diagbackend: error reading TileDB array")
)

// diagramMeta is the JSON-serialised sidecar written as TileDB array
// metadata.
type diagramMeta struct {
	Dim   int       `json:"dim"`
	Min   []float64 `json:"min"`
	Max   []float64 `json:"max"`
	Mean  []float64 `json:"mean"`
	Sigma []float64 `json:"sigma"`
	Count int       `json:"count"`
	Lost  int       `json:"lost"`
}

// NewContext opens a TileDB context from configURI, or a generic
// default config when configURI is empty.
func NewContext(configURI string) (*tiledb.Context, error) {
	var (
		config *tiledb.Config
		err    error
	)
	if configURI == "" {
		config, err = tiledb.NewConfig()
	} else {
		config, err = tiledb.LoadConfig(configURI)
	}
	if err != nil {
		return nil, err
	}
	defer config.Free()

	return tiledb.NewContext(config)
}

// zstdAttr builds a float64 attribute with a zstd compression filter.
func zstdAttr(ctx *tiledb.Context, name string, level int32) (*tiledb.Attribute, error) {
	attr, err := tiledb.NewAttribute(ctx, name, tiledb.TILEDB_FLOAT64)
	if err != nil {
		return nil, errors.Join(ErrCreateSchema, err)
	}
	filt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_ZSTD)
	if err != nil {
		attr.Free()
		return nil, errors.Join(ErrCreateSchema, err)
	}
	defer filt.Free()
	if err := filt.SetOption(tiledb.TILEDB_COMPRESSION_LEVEL, level); err != nil {
		attr.Free()
		return nil, errors.Join(ErrCreateSchema, err)
	}
	filtList, err := tiledb.NewFilterList(ctx)
	if err != nil {
		attr.Free()
		return nil, errors.Join(ErrCreateSchema, err)
	}
	defer filtList.Free()
	if err := filtList.AddFilter(filt); err != nil {
		attr.Free()
		return nil, errors.Join(ErrCreateSchema, err)
	}
	if err := attr.SetFilterList(filtList); err != nil {
		attr.Free()
		return nil, errors.Join(ErrCreateSchema, err)
	}
	return attr, nil
}

// CreateDiagramArray creates a dense 2D (component x spot) float64
// TileDB array at uri sized for dim components over count spots, the
// storage shape for a spot, caustic or impact Diagram.
func CreateDiagramArray(ctx *tiledb.Context, uri string, dim, count int) error {
	if dim <= 0 || count <= 0 {
		return fmt.Errorf("%w: dim=%d count=%d", ErrCreateSchema, dim, count)
	}
	domain, err := tiledb.NewDomain(ctx)
	if err != nil {
		return errors.Join(ErrCreateSchema, err)
	}
	defer domain.Free()

	compDim, err := tiledb.NewDimension(ctx, "component", tiledb.TILEDB_INT32, []int32{0, int32(dim - 1)}, int32(dim))
	if err != nil {
		return errors.Join(ErrCreateSchema, err)
	}
	spotDim, err := tiledb.NewDimension(ctx, "spot", tiledb.TILEDB_INT32, []int32{0, int32(count - 1)}, int32(count))
	if err != nil {
		return errors.Join(ErrCreateSchema, err)
	}
	if err := domain.AddDimensions(compDim, spotDim); err != nil {
		return errors.Join(ErrCreateSchema, err)
	}

	schema, err := tiledb.NewArraySchema(ctx, tiledb.TILEDB_DENSE)
	if err != nil {
		return errors.Join(ErrCreateSchema, err)
	}
	defer schema.Free()
	if err := schema.SetDomain(domain); err != nil {
		return errors.Join(ErrCreateSchema, err)
	}
	if err := schema.SetCellOrder(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return errors.Join(ErrCreateSchema, err)
	}
	if err := schema.SetTileOrder(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return errors.Join(ErrCreateSchema, err)
	}

	attr, err := zstdAttr(ctx, "value", 5)
	if err != nil {
		return err
	}
	defer attr.Free()
	if err := schema.AddAttributes(attr); err != nil {
		return errors.Join(ErrCreateSchema, err)
	}

	array, err := tiledb.NewArray(ctx, uri)
	if err != nil {
		return errors.Join(ErrCreateSchema, err)
	}
	defer array.Free()
	if err := array.Create(schema); err != nil {
		return errors.Join(ErrCreateSchema, err)
	}
	return nil
}

// WriteDiagram writes d's spot-major Data buffer into a dense array at
// uri (creating the schema first) and stashes the summary statistics
// as JSON array metadata under the "optix_diagram" key.
func WriteDiagram(ctx *tiledb.Context, uri string, d optix.Diagram) error {
	if err := CreateDiagramArray(ctx, uri, d.Dim, d.Count); err != nil {
		return err
	}

	array, err := tiledb.NewArray(ctx, uri)
	if err != nil {
		return errors.Join(ErrOpenArray, err)
	}
	defer array.Free()
	if err := array.Open(tiledb.TILEDB_WRITE); err != nil {
		return errors.Join(ErrOpenArray, err)
	}
	defer array.Close()

	query, err := tiledb.NewQuery(ctx, array)
	if err != nil {
		return errors.Join(ErrWriteArray, err)
	}
	defer query.Free()
	if err := query.SetLayout(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return errors.Join(ErrWriteArray, err)
	}

	// d.Data is already spot-major (component-fastest per spot); the
	// array's row-major layout over (component, spot) wants
	// component-major, so transpose into a scratch buffer first.
	buf := make([]float64, len(d.Data))
	for spot := 0; spot < d.Count; spot++ {
		for c := 0; c < d.Dim; c++ {
			buf[c*d.Count+spot] = d.Data[spot*d.Dim+c]
		}
	}
	if _, err := query.SetDataBuffer("value", buf); err != nil {
		return errors.Join(ErrWriteArray, err)
	}
	if err := query.Submit(); err != nil {
		return errors.Join(ErrWriteArray, err)
	}

	meta := diagramMeta{Dim: d.Dim, Min: d.Min, Max: d.Max, Mean: d.Mean, Sigma: d.Sigma, Count: d.Count, Lost: d.Lost}
	jsn, err := json.Marshal(meta)
	if err != nil {
		return errors.Join(ErrWriteArray, err)
	}
	if err := array.PutMetadata("optix_diagram", jsn); err != nil {
		return errors.Join(ErrWriteArray, err)
	}
	return nil
}

// ReadDiagram reads back a Diagram previously written by WriteDiagram.
func ReadDiagram(ctx *tiledb.Context, uri string) (optix.Diagram, error) {
	array, err := tiledb.NewArray(ctx, uri)
	if err != nil {
		return optix.Diagram{}, errors.Join(ErrOpenArray, err)
	}
	defer array.Free()
	if err := array.Open(tiledb.TILEDB_READ); err != nil {
		return optix.Diagram{}, errors.Join(ErrOpenArray, err)
	}
	defer array.Close()

	_, _, mdRaw, err := array.GetMetadata("optix_diagram")
	if err != nil {
		return optix.Diagram{}, errors.Join(ErrReadArray, err)
	}
	var mdBytes []byte
	switch v := mdRaw.(type) {
	case []byte:
		mdBytes = v
	case string:
		mdBytes = []byte(v)
	default:
		return optix.Diagram{}, fmt.Errorf("%w: unexpected metadata type %T", ErrReadArray, mdRaw)
	}
	var meta diagramMeta
	if err := json.Unmarshal(mdBytes, &meta); err != nil {
		return optix.Diagram{}, errors.Join(ErrReadArray, err)
	}

	query, err := tiledb.NewQuery(ctx, array)
	if err != nil {
		return optix.Diagram{}, errors.Join(ErrReadArray, err)
	}
	defer query.Free()
	if err := query.SetLayout(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return optix.Diagram{}, errors.Join(ErrReadArray, err)
	}

	buf := make([]float64, meta.Dim*meta.Count)
	if _, err := query.SetDataBuffer("value", buf); err != nil {
		return optix.Diagram{}, errors.Join(ErrReadArray, err)
	}
	if err := query.Submit(); err != nil {
		return optix.Diagram{}, errors.Join(ErrReadArray, err)
	}

	data := make([]float64, len(buf))
	for c := 0; c < meta.Dim; c++ {
		for spot := 0; spot < meta.Count; spot++ {
			data[spot*meta.Dim+c] = buf[c*meta.Count+spot]
		}
	}

	return optix.Diagram{
		Dim:   meta.Dim,
		Data:  data,
		Min:   meta.Min,
		Max:   meta.Max,
		Mean:  meta.Mean,
		Sigma: meta.Sigma,
		Count: meta.Count,
		Lost:  meta.Lost,
	}, nil
}
