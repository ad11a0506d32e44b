// rotcheck builds a rotation-equivariant classifier body, feeds it a
// synthetic image and reports how far the invariant features drift across
// the 8 rotated copies of the input. Optionally dumps the pipeline graph
// and an animated GIF of the orbit.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/lilujunai/e2cnn"
	gifenc "github.com/lilujunai/e2cnn/encoding/gif"
)

var (
	full    = flag.Bool("full", false, "use the full reference network instead of the small preset")
	seed    = flag.Int64("seed", 1337, "seed for the synthetic input")
	gifPath = flag.String("gif", "", "write an animated GIF of the input orbit to this file")
	dotPath = flag.String("dot", "", "write the pipeline graph in dot format to this file")
	csvPath = flag.String("csv", "", "append the per-element drift to this CSV file")
)

func main() {
	flag.Parse()

	conf := e2cnn.SmallConf()
	if *full {
		conf = e2cnn.DefaultConf()
	}
	log.Printf("Building C%d model (blocks %v)", conf.Order, conf.Blocks)
	m := e2cnn.New(conf)
	m.SetTesting()

	ds := e2cnn.NewSyntheticDataset(conf.ImageSize, *seed)
	img, label, err := ds.Next()
	if err != nil {
		log.Fatalf("dataset: %v", err)
	}
	log.Printf("Synthetic input with %d rings, %d invariant features", label, m.OutSize())

	reports, err := e2cnn.CheckEquivariance(m, img)
	if err != nil {
		log.Fatalf("%+v", err)
	}
	fmt.Print(e2cnn.FormatReports(reports))

	if *csvPath != "" {
		stats := e2cnn.MakeStatistics()
		stats.Update(reports)
		if err := stats.Dump(*csvPath); err != nil {
			log.Fatalf("writing %s: %v", *csvPath, err)
		}
	}

	if *dotPath != "" {
		if err := os.WriteFile(*dotPath, []byte(m.Body().ToDot()), 0644); err != nil {
			log.Fatalf("writing %s: %v", *dotPath, err)
		}
	}

	if *gifPath != "" {
		f, err := os.Create(*gifPath)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		enc := gifenc.NewEncoder(f)
		frames, err := e2cnn.Orbit(m, img)
		if err != nil {
			log.Fatalf("%+v", err)
		}
		for _, fr := range frames {
			if err := enc.Encode(fr); err != nil {
				log.Fatal(err)
			}
		}
		if err := enc.Flush(); err != nil {
			log.Fatal(err)
		}
		log.Printf("Wrote %s", *gifPath)
	}
}
