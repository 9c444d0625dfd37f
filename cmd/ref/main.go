package main

import (
	"flag"
	"fmt"
	"math/rand"

	log "github.com/sirupsen/logrus"

	"github.com/submersibletoaster/captcha"
	"github.com/submersibletoaster/captcha/examine"
	"github.com/submersibletoaster/captcha/glyph"
	"github.com/submersibletoaster/captcha/internal/config"
	"github.com/submersibletoaster/captcha/recognize"
)

var level = flag.String("d", "simple", "Difficulty each symbol is rendered at before matching")
var seed = flag.Int64("seed", 1, "Random seed")
var top = flag.Int("top", 3, "Matches shown per edge case")
var verbose = flag.Bool("v", false, "Verbose logging")

// ref renders every symbol alone and checks that the template set built from
// the same font ranks it first.
func main() {
	flag.Parse()
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	config.LoadEnvFile(".env")
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	d, err := captcha.ParseDifficulty(*level)
	if err != nil {
		log.Fatal(err)
	}

	g := captcha.NewGenerator(cfg.GeneratorOptions(), rand.New(rand.NewSource(*seed)))
	defer g.Close()
	set := recognize.BuildTemplates(g.Renderer())
	fmt.Printf("%d templates from %s (%s)\n", set.Len(), g.Renderer().Source(), g.Renderer().Kind())

	perfect := 0
	edge := 0
	lost := 0
	for _, c := range glyph.Alphabet {
		shot, err := g.GenerateText(d, string(c))
		if err != nil {
			log.Fatal(err)
		}
		segs := examine.Characters(shot.Image, examine.DefaultOptions())
		if len(segs) == 0 {
			lost++
			fmt.Printf("'%s'\tnot segmented\n", string(c))
			continue
		}
		r := set.Query(segs[0].Image)
		best, _ := r.Best()
		if best.Rune == c && best.Score > recognize.DefaultThreshold {
			perfect++
			continue
		}
		edge++
		fmt.Printf("'%s'\t", string(c))
		for _, v := range r[:min(*top, len(r))] {
			fmt.Printf("%.5f,'%s',%d\t", v.Score, string(v.Rune), v.Distance)
		}
		fmt.Println()
	}

	log.Infof("Perfect 1st match %d , edge cases %d , unsegmented %d\n", perfect, edge, lost)
}
