package persist

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dennetiere/optix-go"
)

// xmlSystem, xmlElement and xmlParam mirror the XML persistence format
// directly as encoding/xml struct tags.
type xmlSystem struct {
	XMLName  xml.Name     `xml:"system"`
	Version  int          `xml:"version,attr"`
	Elements []xmlElement `xml:"element"`
}

type xmlElement struct {
	Name   string     `xml:"name,attr"`
	Class  string     `xml:"class,attr"`
	Next   string     `xml:"next,attr,omitempty"`
	Trans  string     `xml:"trans,attr,omitempty"`
	Rec    string     `xml:"rec,attr,omitempty"`
	Params []xmlParam `xml:"param"`
}

type xmlParam struct {
	Name  string    `xml:"name,attr"`
	Min   *string   `xml:"min,attr,omitempty"`
	Max   *string   `xml:"max,attr,omitempty"`
	Mult  *string   `xml:"mult,attr,omitempty"`
	Value string    `xml:",chardata"`
	Array *xmlArray `xml:"array,omitempty"`
}

type xmlArray struct {
	Dims string `xml:"dims,attr"`
	Text string `xml:",chardata"`
}

// SaveXML writes sys to w as a <system> document. Unlike the text
// format, the XML form records chain membership
// only via each element's next attribute (the previous link is
// recoverable from it), matching the format description exactly.
func SaveXML(w io.Writer, sys *optix.System) error {
	doc := xmlSystem{Version: formatVersion}
	for _, name := range sys.Names() {
		sd, _ := sys.Get(name)
		_, next, err := sys.NeighborNames(name)
		if err != nil {
			return err
		}
		el := xmlElement{Name: name, Class: sd.Class, Next: next}
		if sd.Transmissive {
			el.Trans = "true"
		}
		if sd.Mode != optix.RecordNone {
			el.Rec = strconv.Itoa(int(sd.Mode))
		}
		for _, pname := range sortedNames(sd.Params) {
			p, _ := sd.Params.Get(pname)
			xp := xmlParam{Name: pname}
			if p.Value.IsArray {
				xp.Array = &xmlArray{
					Dims: fmt.Sprintf("%d, %d", p.Value.Rows, p.Value.Cols),
					Text: rowMajorCSV(p.Value),
				}
			} else {
				xp.Value = formatFloat(p.Value.Value)
				if p.Value.Min != 0 {
					s := formatFloat(p.Value.Min)
					xp.Min = &s
				}
				if p.Value.Max != 0 {
					s := formatFloat(p.Value.Max)
					xp.Max = &s
				}
				if p.Value.Mult != 1 {
					s := formatFloat(p.Value.Mult)
					xp.Mult = &s
				}
			}
			el.Params = append(el.Params, xp)
		}
		doc.Elements = append(doc.Elements, el)
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	return enc.Encode(doc)
}

// rowMajorCSV flattens v's column-major Data into the row-major
// (column index fastest) comma-separated text <array> children carry.
func rowMajorCSV(v optix.ParameterValue) string {
	parts := make([]string, 0, len(v.Data))
	for row := 0; row < v.Rows; row++ {
		for col := 0; col < v.Cols; col++ {
			parts = append(parts, formatFloat(v.At(row, col)))
		}
	}
	return strings.Join(parts, ",")
}

// LoadXML reads a document written by SaveXML, creating every element
// via CreateElement in document order and then linking next/prev in a
// second pass, so a next attribute may name an element appearing
// anywhere in the document.
func LoadXML(r io.Reader, sys *optix.System) error {
	var doc xmlSystem
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return newIOErr("xml parse error: " + err.Error())
	}
	if doc.Version != formatVersion {
		return newIOErr(fmt.Sprintf("unsupported format version %d", doc.Version))
	}

	for _, el := range doc.Elements {
		sd, err := sys.CreateElement(el.Name, el.Class)
		if err != nil {
			return err
		}
		if el.Rec != "" {
			n, err := strconv.Atoi(el.Rec)
			if err != nil {
				return newIOErr("bad rec attribute for " + el.Name + ": " + err.Error())
			}
			sd.Mode = optix.RecordMode(n)
		}
		for _, xp := range el.Params {
			p, ok := sd.Params.Get(xp.Name)
			if !ok {
				return newIOErr("unknown parameter " + xp.Name + " for element " + el.Name)
			}
			if xp.Array != nil {
				rows, cols, err := parseDims(xp.Array.Dims)
				if err != nil {
					return err
				}
				data, err := columnMajorFromCSV(xp.Array.Text, rows, cols)
				if err != nil {
					return err
				}
				if err := sd.Params.SetArray(xp.Name, rows, cols, data); err != nil {
					return err
				}
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(xp.Value), 64)
			if err != nil {
				return newIOErr("bad param value for " + xp.Name + ": " + err.Error())
			}
			p.Value.Value = v
			if xp.Min != nil {
				if p.Value.Min, err = strconv.ParseFloat(*xp.Min, 64); err != nil {
					return err
				}
			}
			if xp.Max != nil {
				if p.Value.Max, err = strconv.ParseFloat(*xp.Max, 64); err != nil {
					return err
				}
			}
			if xp.Mult != nil {
				if p.Value.Mult, err = strconv.ParseFloat(*xp.Mult, 64); err != nil {
					return err
				}
			}
		}
		// resync the concrete geometry from the freshly loaded dictionary
		// values, as SetParameter would have.
		optix.RefreshShape(sd.Element)
		optix.RefreshPattern(sd.Element)
	}
	for _, el := range doc.Elements {
		if el.Next != "" {
			if err := sys.Link(el.Name, el.Next); err != nil {
				return err
			}
		}
	}
	return nil
}

func parseDims(dims string) (rows, cols int, err error) {
	parts := strings.Split(dims, ",")
	if len(parts) != 2 {
		return 0, 0, newIOErr("malformed array dims: " + dims)
	}
	rows, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	cols, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	return rows, cols, err
}

func columnMajorFromCSV(text string, rows, cols int) ([]float64, error) {
	fields := strings.Split(strings.TrimSpace(text), ",")
	if len(fields) != rows*cols {
		return nil, newIOErr(fmt.Sprintf("array element count mismatch: got %d want %d", len(fields), rows*cols))
	}
	out := make([]float64, rows*cols)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(fields[row*cols+col]), 64)
			if err != nil {
				return nil, err
			}
			out[col*rows+row] = v
		}
	}
	return out, nil
}
