// optixcli is a thin CLI driver: a urfave/cli app whose subcommands
// map directly onto the core package's exported operations, with an
// optional pond worker pool for radiate.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/dennetiere/optix-go"
	"github.com/dennetiere/optix-go/config"
	"github.com/dennetiere/optix-go/persist"
)

// loadSystem reads a beamline description from either a config-file
// (--config) or a persisted XML/text file (--xml / --text).
func loadSystem(cCtx *cli.Context) (*optix.System, error) {
	sys := optix.NewSystem()
	switch {
	case cCtx.String("config") != "":
		f, err := os.Open(cCtx.String("config"))
		if err != nil {
			return nil, err
		}
		defer f.Close()
		cfg, err := config.Parse(f)
		if err != nil {
			return nil, err
		}
		if err := config.Apply(cfg, sys); err != nil {
			return nil, err
		}
	case cCtx.String("xml") != "":
		f, err := os.Open(cCtx.String("xml"))
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if err := persist.LoadXML(f, sys); err != nil {
			return nil, err
		}
	case cCtx.String("text") != "":
		f, err := os.Open(cCtx.String("text"))
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if err := persist.LoadText(f, sys); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("one of --config, --xml or --text is required")
	}
	return sys, nil
}

var inputFlags = []cli.Flag{
	&cli.StringFlag{Name: "config", Usage: "path to a beamline configuration file"},
	&cli.StringFlag{Name: "xml", Usage: "path to a persisted XML system"},
	&cli.StringFlag{Name: "text", Usage: "path to a persisted text system"},
}

func main() {
	app := &cli.App{
		Name:  "optixcli",
		Usage: "synchrotron-beamline ray-tracing test driver",
		Commands: []*cli.Command{
			{
				Name:  "align",
				Usage: "align every chain head in a loaded system",
				Flags: append(append([]cli.Flag{}, inputFlags...),
					&cli.Float64Flag{Name: "wavelength", Required: true, Usage: "alignment wavelength, metres"}),
				Action: func(cCtx *cli.Context) error {
					sys, err := loadSystem(cCtx)
					if err != nil {
						return err
					}
					for _, head := range sys.Heads() {
						log.Println("Aligning chain from", head.Name)
						if err := sys.AlignFromHere(head.Name, cCtx.Float64("wavelength")); err != nil {
							return err
						}
					}
					return nil
				},
			},
			{
				Name:  "radiate",
				Usage: "align then radiate a named source through its chain",
				Flags: append(append([]cli.Flag{}, inputFlags...),
					&cli.StringFlag{Name: "source", Required: true},
					&cli.Float64Flag{Name: "wavelength", Required: true},
					&cli.StringFlag{Name: "polar", Value: "S", Usage: "polarisation: S, P, R or L"},
					&cli.IntFlag{Name: "workers", Value: 0, Usage: "pond worker pool size; 0 disables pooling"},
				),
				Action: func(cCtx *cli.Context) error {
					sys, err := loadSystem(cCtx)
					if err != nil {
						return err
					}
					if err := sys.AlignFromHere(cCtx.String("source"), cCtx.Float64("wavelength")); err != nil {
						return err
					}

					var pool *optix.Pool
					if n := cCtx.Int("workers"); n > 0 {
						pool = optix.NewPool(n)
						defer pool.StopAndWait()
					}

					log.Println("Radiating", cCtx.String("source"))
					return sys.Radiate(cCtx.String("source"), cCtx.Float64("wavelength"), []byte(cCtx.String("polar"))[0], pool)
				},
			},
			{
				Name:  "spot",
				Usage: "print the spot-diagram summary for a named element",
				Flags: append(append([]cli.Flag{}, inputFlags...),
					&cli.StringFlag{Name: "element", Required: true},
					&cli.Float64Flag{Name: "z", Value: 0, Usage: "offset along the ray direction, metres"},
					&cli.StringFlag{Name: "dump", Usage: "write the diagram as a binary spot dump to this path"},
				),
				Action: func(cCtx *cli.Context) error {
					sys, err := loadSystem(cCtx)
					if err != nil {
						return err
					}
					d, err := sys.SpotDiagram(cCtx.String("element"), cCtx.Float64("z"))
					if err != nil {
						return err
					}
					fmt.Printf("spots=%d lost=%d\n", d.Count, d.Lost)
					for i := 0; i < d.Dim; i++ {
						fmt.Printf("  component %d: min=%g max=%g mean=%g sigma=%g\n", i, d.Min[i], d.Max[i], d.Mean[i], d.Sigma[i])
					}
					if out := cCtx.String("dump"); out != "" {
						f, err := os.Create(out)
						if err != nil {
							return err
						}
						defer f.Close()
						return persist.SaveSpotDiagram(f, d)
					}
					return nil
				},
			},
			{
				Name:  "save",
				Usage: "save a loaded system as XML or text",
				Flags: append(append([]cli.Flag{}, inputFlags...),
					&cli.StringFlag{Name: "out", Required: true},
					&cli.StringFlag{Name: "format", Value: "xml", Usage: "xml or text"},
				),
				Action: func(cCtx *cli.Context) error {
					sys, err := loadSystem(cCtx)
					if err != nil {
						return err
					}
					f, err := os.Create(cCtx.String("out"))
					if err != nil {
						return err
					}
					defer f.Close()
					if cCtx.String("format") == "text" {
						return persist.SaveText(f, sys)
					}
					return persist.SaveXML(f, sys)
				},
			},
			{
				Name:  "load",
				Usage: "load a system and print its element names",
				Flags: inputFlags,
				Action: func(cCtx *cli.Context) error {
					sys, err := loadSystem(cCtx)
					if err != nil {
						return err
					}
					for _, name := range sys.Names() {
						sd, _ := sys.Get(name)
						fmt.Println(name, sd.Class)
					}
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
