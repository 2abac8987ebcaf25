// Package config parses the indentation-defined beamline configuration
// format: DBASEPATH/DATABASE/INDEXTABLE/COATINGTABLE/BEAMLINE/CHAIN
// top-level keywords, nested blocks by indentation, and the
// INV(x)/DEGREE(x) numeric macros.
package config

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ParamValue is one "name value [min max]" entry inside a BEAMLINE
// element block.
type ParamValue struct {
	Name     string
	Value    float64
	HasRange bool
	Min, Max float64
}

// ElementConfig is one entry nested under BEAMLINE.
type ElementConfig struct {
	Name, Class string
	Params      []ParamValue
	Aperture    map[string]float64
	Coating     map[string]string
}

// CoatingEntry is one coating nested under a COATINGTABLE, itself
// holding per-layer parameter rows.
type CoatingEntry struct {
	Name   string
	Layers []map[string]string
}

// CoatingTable is a COATINGTABLE block.
type CoatingTable struct {
	Name        string
	AngleRange  [2]float64
	EnergyRange [2]float64
	Coatings    []CoatingEntry
}

// IndexTable is an INDEXTABLE block: nested "<db> <material>" entries.
type IndexTable struct {
	Name    string
	Entries map[string]string
}

// Config is the parsed top-level document.
type Config struct {
	DBasePath string
	Database  string
	Index     []IndexTable
	Coatings  []CoatingTable
	Beamline  []ElementConfig
	Chains    [][]string
}

type line struct {
	indent int
	fields []string
}

// Parse reads r into a Config. Indentation is measured in leading tab
// or space runs (mixed consistently per nesting level); blank lines
// and lines whose
// first non-blank rune is '#' are skipped.
func Parse(r io.Reader) (*Config, error) {
	lines, err := tokenize(r)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	i := 0
	for i < len(lines) {
		l := lines[i]
		if l.indent != 0 {
			return nil, fmt.Errorf("config: unexpected indent at top level: %v", l.fields)
		}
		switch strings.ToUpper(l.fields[0]) {
		case "DBASEPATH":
			cfg.DBasePath = l.fields[1]
			i++
		case "DATABASE":
			cfg.Database = l.fields[1]
			i++
		case "INDEXTABLE":
			var tbl IndexTable
			tbl.Name = l.fields[1]
			tbl.Entries = map[string]string{}
			i++
			for i < len(lines) && lines[i].indent > l.indent {
				f := lines[i].fields
				if len(f) >= 2 {
					tbl.Entries[f[0]] = f[1]
				}
				i++
			}
			cfg.Index = append(cfg.Index, tbl)
		case "COATINGTABLE":
			tbl, next, err := parseCoatingTable(lines, i)
			if err != nil {
				return nil, err
			}
			cfg.Coatings = append(cfg.Coatings, tbl)
			i = next
		case "BEAMLINE":
			elems, next, err := parseBeamline(lines, i)
			if err != nil {
				return nil, err
			}
			cfg.Beamline = append(cfg.Beamline, elems...)
			i = next
		case "CHAIN":
			cfg.Chains = append(cfg.Chains, append([]string{}, l.fields[1:]...))
			i++
		default:
			return nil, fmt.Errorf("config: unknown top-level keyword %q", l.fields[0])
		}
	}
	return cfg, nil
}

func parseCoatingTable(lines []line, i int) (CoatingTable, int, error) {
	base := lines[i].indent
	var tbl CoatingTable
	tbl.Name = lines[i].fields[1]
	i++
	for i < len(lines) && lines[i].indent > base {
		l := lines[i]
		switch strings.ToUpper(l.fields[0]) {
		case "ANGLERANGE":
			lo, err := Eval(l.fields[1])
			if err != nil {
				return tbl, i, err
			}
			hi, err := Eval(l.fields[2])
			if err != nil {
				return tbl, i, err
			}
			tbl.AngleRange = [2]float64{lo, hi}
			i++
		case "ENERGYRANGE":
			lo, err := Eval(l.fields[1])
			if err != nil {
				return tbl, i, err
			}
			hi, err := Eval(l.fields[2])
			if err != nil {
				return tbl, i, err
			}
			tbl.EnergyRange = [2]float64{lo, hi}
			i++
		default:
			// a coating entry: name, then nested layer rows.
			entry := CoatingEntry{Name: l.fields[0]}
			entryIndent := l.indent
			i++
			for i < len(lines) && lines[i].indent > entryIndent {
				layer := map[string]string{}
				for j := 0; j+1 < len(lines[i].fields); j += 2 {
					layer[lines[i].fields[j]] = lines[i].fields[j+1]
				}
				entry.Layers = append(entry.Layers, layer)
				i++
			}
			tbl.Coatings = append(tbl.Coatings, entry)
		}
	}
	return tbl, i, nil
}

func parseBeamline(lines []line, i int) ([]ElementConfig, int, error) {
	base := lines[i].indent
	i++
	var elems []ElementConfig
	for i < len(lines) && lines[i].indent > base {
		l := lines[i]
		if len(l.fields) < 2 {
			return nil, i, fmt.Errorf("config: malformed beamline element: %v", l.fields)
		}
		el := ElementConfig{Name: l.fields[0], Class: l.fields[1]}
		elemIndent := l.indent
		i++
		for i < len(lines) && lines[i].indent > elemIndent {
			f := lines[i].fields
			switch strings.ToUpper(f[0]) {
			case "APERTURE":
				el.Aperture = map[string]float64{}
				apIndent := lines[i].indent
				i++
				for i < len(lines) && lines[i].indent > apIndent {
					if len(lines[i].fields) >= 2 {
						v, err := Eval(lines[i].fields[1])
						if err != nil {
							return nil, i, err
						}
						el.Aperture[lines[i].fields[0]] = v
					}
					i++
				}
			case "COATING":
				el.Coating = map[string]string{}
				coIndent := lines[i].indent
				i++
				for i < len(lines) && lines[i].indent > coIndent {
					if len(lines[i].fields) >= 2 {
						el.Coating[lines[i].fields[0]] = lines[i].fields[1]
					}
					i++
				}
			default:
				pv := ParamValue{Name: f[0]}
				v, err := Eval(f[1])
				if err != nil {
					return nil, i, err
				}
				pv.Value = v
				if len(f) >= 4 {
					pv.HasRange = true
					if pv.Min, err = Eval(f[2]); err != nil {
						return nil, i, err
					}
					if pv.Max, err = Eval(f[3]); err != nil {
						return nil, i, err
					}
				}
				el.Params = append(el.Params, pv)
				i++
			}
		}
		elems = append(elems, el)
	}
	return elems, i, nil
}

func tokenize(r io.Reader) ([]line, error) {
	sc := bufio.NewScanner(r)
	var out []line
	for sc.Scan() {
		raw := sc.Text()
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		indent := 0
		for _, r := range raw {
			if r == ' ' || r == '\t' {
				indent++
			} else {
				break
			}
		}
		out = append(out, line{indent: indent, fields: strings.Fields(trimmed)})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Eval resolves a config numeric literal, including the INV(x) and
// DEGREE(x) macros.
func Eval(tok string) (float64, error) {
	switch {
	case strings.HasPrefix(tok, "INV(") && strings.HasSuffix(tok, ")"):
		inner, err := Eval(tok[len("INV(") : len(tok)-1])
		if err != nil {
			return 0, err
		}
		if inner == 0 {
			return 0, fmt.Errorf("config: INV(0) is undefined")
		}
		return 1 / inner, nil
	case strings.HasPrefix(tok, "DEGREE(") && strings.HasSuffix(tok, ")"):
		inner, err := Eval(tok[len("DEGREE(") : len(tok)-1])
		if err != nil {
			return 0, err
		}
		return inner * math.Pi / 180, nil
	default:
		return strconv.ParseFloat(tok, 64)
	}
}
