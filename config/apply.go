// Apply materialises cfg's BEAMLINE and CHAIN blocks into sys: one
// CreateElement + SetParameter call per element entry, then Link calls
// walking each CHAIN list in order, mirroring the two-pass
// element-then-links shape persist.LoadText/LoadXML already use for
// the text/XML formats.
package config

import (
	"fmt"

	"github.com/dennetiere/optix-go"
)

func Apply(cfg *Config, sys *optix.System) error {
	for _, el := range cfg.Beamline {
		sd, err := sys.CreateElement(el.Name, el.Class)
		if err != nil {
			return fmt.Errorf("config: creating %s: %w", el.Name, err)
		}
		for _, pv := range el.Params {
			if err := sys.SetParameter(el.Name, pv.Name, pv.Value); err != nil {
				return fmt.Errorf("config: setting %s.%s: %w", el.Name, pv.Name, err)
			}
		}
		if el.Aperture != nil {
			sd.ApertureEnabled = true
			if hw, ok := el.Aperture["halfWidth"]; ok {
				sd.ApertureRegion = optix.RectAperture{HalfWidth: hw, HalfHeight: el.Aperture["halfHeight"]}
			} else if sx, ok := el.Aperture["semiX"]; ok {
				sd.ApertureRegion = optix.EllipseAperture{SemiX: sx, SemiY: el.Aperture["semiY"]}
			}
		}
		if el.Coating != nil {
			sd.SetCoating(el.Coating["table"], el.Coating["entry"])
		}
	}
	for _, chain := range cfg.Chains {
		for i := 0; i+1 < len(chain); i++ {
			if err := sys.Link(chain[i], chain[i+1]); err != nil {
				return fmt.Errorf("config: linking %s->%s: %w", chain[i], chain[i+1], err)
			}
		}
	}
	return nil
}
