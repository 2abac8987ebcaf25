// Package persist implements the text and XML persistence formats:
// sequential field parsing into a typed in-memory record, one exported
// function per direction.
package persist

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dennetiere/optix-go"
)

// formatVersion is stamped on every saved text/XML file and checked on
// load; a mismatch surfaces as an IOFailure.
const formatVersion = 1

const fieldSep = "\x00"

// SaveText writes every element of sys to w in the legacy line-based,
// null-separated format: runtime-class, name,
// previous-name-or-empty, next-name-or-empty, then (name, record) pairs
// terminated by a lone null and newline. Parameter record fields are
// value, min, max, mult, unit, group, flags.
func SaveText(w io.Writer, sys *optix.System) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d\n", formatVersion)
	for _, name := range sys.Names() {
		sd, _ := sys.Get(name)
		prev, next, err := sys.NeighborNames(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(bw, "%s%s%s%s%s%s%s\n", sd.Class, fieldSep, name, fieldSep, prev, fieldSep, next)
		for _, pname := range sortedNames(sd.Params) {
			p, _ := sd.Params.Get(pname)
			if p.Value.IsArray {
				writeArrayRecord(bw, pname, p)
				continue
			}
			fmt.Fprintf(bw, "%s%s%s%s%s%s%s%s%s%s%d%s%d%s%d\n",
				pname, fieldSep,
				formatFloat(p.Value.Value), fieldSep,
				formatFloat(p.Value.Min), fieldSep,
				formatFloat(p.Value.Max), fieldSep,
				formatFloat(p.Value.Mult), fieldSep,
				uint32(p.Unit), fieldSep,
				uint32(p.Group), fieldSep,
				uint32(p.Flags))
		}
		fmt.Fprintf(bw, "%s\n", fieldSep)
	}
	return bw.Flush()
}

func writeArrayRecord(bw *bufio.Writer, name string, p *optix.Parameter) {
	fmt.Fprintf(bw, "%s%s%d%sx%d%s", name, fieldSep, p.Value.Rows, fieldSep, p.Value.Cols, fieldSep)
	parts := make([]string, len(p.Value.Data))
	for i, v := range p.Value.Data {
		parts[i] = formatFloat(v)
	}
	fmt.Fprintln(bw, strings.Join(parts, ","))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func sortedNames(d *optix.Dictionary) []string {
	names := d.Names()
	// stable, deterministic order for reproducible saves; the dictionary
	// is insertion-order-irrelevant, so any total order works.
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j-1] > names[j]; j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
	return names
}

// elementRecord is the two-pass intermediate materialised while
// reading: first every element with its raw neighbour names, then the
// chain links are re-established once every name is known to exist.
type elementRecord struct {
	class, name, prev, next string
	params                  map[string]paramRecord
	order                   []string
}

type paramRecord struct {
	isArray               bool
	value, min, max, mult float64
	unit, group, flags    uint32
	rows, cols            int
	data                  []float64
}

// LoadText reads a file written by SaveText, creating elements in sys
// via CreateElement and then re-linking the chain in a second pass.
func LoadText(r io.Reader, sys *optix.System) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	if !sc.Scan() {
		return newIOErr("empty text file")
	}
	version, err := strconv.Atoi(strings.TrimSpace(sc.Text()))
	if err != nil {
		return newIOErr("missing format version line")
	}
	if version != formatVersion {
		return newIOErr(fmt.Sprintf("unsupported format version %d", version))
	}

	var records []elementRecord
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, fieldSep)
		if len(fields) < 4 {
			return newIOErr("malformed element header: " + line)
		}
		rec := elementRecord{class: fields[0], name: fields[1], prev: fields[2], next: fields[3], params: map[string]paramRecord{}}
		for sc.Scan() {
			pline := sc.Text()
			if pline == fieldSep || pline == "" {
				break
			}
			pfields := strings.Split(pline, fieldSep)
			if len(pfields) < 2 {
				return newIOErr("malformed parameter line: " + pline)
			}
			name := pfields[0]
			if len(pfields) >= 4 && strings.HasPrefix(pfields[2], "x") {
				pr, perr := parseArrayRecord(pfields)
				if perr != nil {
					return perr
				}
				rec.params[name] = pr
				rec.order = append(rec.order, name)
				continue
			}
			pr, perr := parseScalarRecord(pfields)
			if perr != nil {
				return perr
			}
			rec.params[name] = pr
			rec.order = append(rec.order, name)
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return err
	}

	// pass 1: materialise elements and parameter values.
	for _, rec := range records {
		sd, err := sys.CreateElement(rec.name, rec.class)
		if err != nil {
			return err
		}
		for _, pname := range rec.order {
			pr := rec.params[pname]
			p, ok := sd.Params.Get(pname)
			if !ok {
				return newIOErr("unknown parameter " + pname + " for element " + rec.name)
			}
			if pr.isArray {
				if err := sd.Params.SetArray(pname, pr.rows, pr.cols, pr.data); err != nil {
					return err
				}
			} else {
				p.Value.Value = pr.value
				p.Value.Min = pr.min
				p.Value.Max = pr.max
				p.Value.Mult = pr.mult
			}
		}
		// resync the concrete geometry from the freshly loaded dictionary
		// values, as SetParameter would have.
		optix.RefreshShape(sd.Element)
		optix.RefreshPattern(sd.Element)
	}
	// pass 2: re-establish chain links now every name exists.
	for _, rec := range records {
		if rec.next != "" {
			if err := sys.Link(rec.name, rec.next); err != nil {
				return err
			}
		}
	}
	return nil
}

func parseScalarRecord(fields []string) (paramRecord, error) {
	if len(fields) < 8 {
		return paramRecord{}, newIOErr("short scalar parameter record")
	}
	var pr paramRecord
	var err error
	if pr.value, err = strconv.ParseFloat(fields[1], 64); err != nil {
		return pr, err
	}
	if pr.min, err = strconv.ParseFloat(fields[2], 64); err != nil {
		return pr, err
	}
	if pr.max, err = strconv.ParseFloat(fields[3], 64); err != nil {
		return pr, err
	}
	if pr.mult, err = strconv.ParseFloat(fields[4], 64); err != nil {
		return pr, err
	}
	u, err := strconv.ParseUint(fields[5], 10, 32)
	if err != nil {
		return pr, err
	}
	pr.unit = uint32(u)
	g, err := strconv.ParseUint(fields[6], 10, 32)
	if err != nil {
		return pr, err
	}
	pr.group = uint32(g)
	f, err := strconv.ParseUint(fields[7], 10, 32)
	if err != nil {
		return pr, err
	}
	pr.flags = uint32(f)
	return pr, nil
}

func parseArrayRecord(fields []string) (paramRecord, error) {
	pr := paramRecord{isArray: true}
	rows, err := strconv.Atoi(fields[1])
	if err != nil {
		return pr, err
	}
	cols, err := strconv.Atoi(strings.TrimPrefix(fields[2], "x"))
	if err != nil {
		return pr, err
	}
	pr.rows, pr.cols = rows, cols
	values := strings.Split(fields[3], ",")
	pr.data = make([]float64, len(values))
	for i, v := range values {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return pr, err
		}
		pr.data[i] = f
	}
	return pr, nil
}
