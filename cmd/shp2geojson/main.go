// Command shp2geojson prepares the state and district boundary documents of the
// geodata service from shapefiles. Only the label attributes are kept.
package main

import (
	"flag"
	"fmt"
	"log"

	"fraatlas/pkg/geodata"
)

func main() {
	inputPath := flag.String("input", "", "Path to input .shp file")
	outDir := flag.String("out-dir", "data", "Directory the documents are written to")
	level := flag.String("level", "states", "Boundary level of the input: states or districts")
	stateField := flag.String("state-field", "ST_NM", "Attribute holding the state name")
	districtField := flag.String("district-field", "DISTRICT", "Attribute holding the district name")
	flag.Parse()

	if *inputPath == "" {
		flag.Usage()
		log.Fatal("Input path is required")
	}

	if err := run(*inputPath, *outDir, *level, *stateField, *districtField); err != nil {
		log.Fatal(err)
	}
}

func run(inputPath, outDir, level, stateField, districtField string) error {
	columns := []Column{{Source: stateField, Target: geodata.PropState}}

	switch level {
	case "states":
		fc, err := readShapefile(inputPath, columns)
		if err != nil {
			return err
		}
		path, err := writeStates(fc, outDir)
		if err != nil {
			return err
		}
		fmt.Printf("Successfully converted %d states to %s\n", len(fc.Features), path)

	case "districts":
		columns = append(columns, Column{Source: districtField, Target: geodata.PropDistrict})
		fc, err := readShapefile(inputPath, columns)
		if err != nil {
			return err
		}
		states, err := writeDistricts(fc, outDir)
		if err != nil {
			return err
		}
		fmt.Printf("Successfully converted %d districts of %d states to %s\n", len(fc.Features), len(states), outDir)

	default:
		return fmt.Errorf("unknown level %q: want states or districts", level)
	}
	return nil
}
