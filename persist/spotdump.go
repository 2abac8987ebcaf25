package persist

import (
	"encoding/binary"
	"io"

	"github.com/dennetiere/optix-go"
)

// SaveSpotDiagram writes a diagram in the legacy binary dump layout:
// four int32 (dim, reserved, count, lost), four dim-length
// float64 arrays (min, max, mean, sigma), then dim*count float64 spot
// values, all little-endian.
func SaveSpotDiagram(w io.Writer, d optix.Diagram) error {
	header := [4]int32{int32(d.Dim), 0, int32(d.Count), int32(d.Lost)}
	if err := binary.Write(w, binary.LittleEndian, header[:]); err != nil {
		return err
	}
	for _, stats := range [][]float64{d.Min, d.Max, d.Mean, d.Sigma} {
		if err := binary.Write(w, binary.LittleEndian, stats); err != nil {
			return err
		}
	}
	return binary.Write(w, binary.LittleEndian, d.Data)
}

// LoadSpotDiagram reads a diagram previously written by SaveSpotDiagram.
func LoadSpotDiagram(r io.Reader) (optix.Diagram, error) {
	var header [4]int32
	if err := binary.Read(r, binary.LittleEndian, header[:]); err != nil {
		return optix.Diagram{}, newIOErr("spot diagram header: " + err.Error())
	}
	dim, count, lost := int(header[0]), int(header[2]), int(header[3])
	if dim < 1 || count < 0 || lost < 0 {
		return optix.Diagram{}, newIOErr("malformed spot diagram header")
	}
	d := optix.Diagram{Dim: dim, Count: count, Lost: lost}
	for _, stats := range []*[]float64{&d.Min, &d.Max, &d.Mean, &d.Sigma} {
		*stats = make([]float64, dim)
		if err := binary.Read(r, binary.LittleEndian, *stats); err != nil {
			return optix.Diagram{}, newIOErr("spot diagram statistics: " + err.Error())
		}
	}
	d.Data = make([]float64, dim*count)
	if err := binary.Read(r, binary.LittleEndian, d.Data); err != nil {
		return optix.Diagram{}, newIOErr("spot diagram data: " + err.Error())
	}
	return d, nil
}
