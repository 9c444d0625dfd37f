package main

import (
	"bufio"
	"flag"
	"fmt"
	"image"
	"image/draw"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/cheggaaa/pb/v3"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/joshdk/preview"
	log "github.com/sirupsen/logrus"

	"github.com/submersibletoaster/captcha"
	"github.com/submersibletoaster/captcha/internal/config"
)

var workers = flag.Int("w", 0, "Number of worker routines (0 uses CAPTCHA_WORKERS)")
var count = flag.Int("n", 36, "Number of captchas")
var length = flag.Int("len", 5, "Characters per captcha")
var level = flag.String("d", "hard", "Difficulty: simple, medium or hard")
var outDir = flag.String("o", "sheet", "Output directory for the images and labels.txt")
var cols = flag.Int("cols", 0, "Contact sheet columns (0 for a square sheet)")
var seed = flag.Int64("seed", 0, "Base random seed")
var show = flag.Bool("preview", false, "Show the contact sheet in the terminal")
var verbose = flag.Bool("v", false, "Verbose logging")

func main() {
	flag.Parse()
	config.LoadEnvFile(".env")
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.ApplyLogLevel()
	if *verbose {
		log.Info("Setting verbose logging")
		log.SetLevel(log.DebugLevel)
	}
	if *workers <= 0 {
		*workers = cfg.Workers
	}
	if *seed == 0 {
		*seed = cfg.Seed
	}
	d, err := captcha.ParseDifficulty(*level)
	if err != nil {
		log.Fatal(err)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatal(err)
	}

	jobs := make(chan uint, *workers)
	go func() {
		for i := 0; i < *count; i++ {
			jobs <- uint(i)
		}
		close(jobs)
	}()

	labels, err := os.Create(filepath.Join(*outDir, "labels.txt"))
	if err != nil {
		log.Fatal(err)
	}
	defer labels.Close()
	lw := bufio.NewWriter(labels)
	defer lw.Flush()

	var made []RenderOut
	bar := pb.StartNew(*count)
	Workers(uint(*workers), cfg.GeneratorOptions(), d, jobs, func(o RenderOut) {
		bar.Increment()
		if o.Err != nil {
			log.WithError(o.Err).WithField("n", o.Nth).Warn("generation failed")
			return
		}
		name := o.ID + ".png"
		if err := imaging.Save(o.Captcha.Image, filepath.Join(*outDir, name)); err != nil {
			log.WithError(err).Warn("save failed")
			return
		}
		fmt.Fprintf(lw, "%s\t%s\t%s\n", name, o.Captcha.Text, o.Captcha.Difficulty)
		made = append(made, o)
	})
	bar.Finish()

	sheet := contactSheet(made, *cols)
	if sheet != nil {
		if err := imaging.Save(sheet, filepath.Join(*outDir, "sheet.png")); err != nil {
			log.Fatal(err)
		}
		if *show {
			preview.Image(sheet)
		}
	}
	log.Infof("%d captchas written to %s", len(made), *outDir)
}

// Workers fans jobs out to n goroutines, each with its own generator seeded
// from the base seed and its worker number, and hands results to emit in
// job order.
func Workers(n uint, opts captcha.Options, d captcha.Difficulty, jobs <-chan uint, emit func(RenderOut)) {
	mid := make(chan RenderOut, n)
	wait := sync.WaitGroup{}
	for i := uint(0); i < n; i++ {
		wait.Add(1)
		go func(worker uint) {
			defer wait.Done()
			g := captcha.NewGenerator(opts, rand.New(rand.NewSource(*seed+int64(worker)+1)))
			defer g.Close()
			for nth := range jobs {
				c, err := g.Generate(d, *length)
				mid <- RenderOut{Nth: nth, ID: uuid.New().String(), Captcha: c, Err: err}
			}
		}(i)
	}
	go func() {
		wait.Wait()
		close(mid)
	}()

	// Sort the output from mid to emit in job order
	nextOut := uint(0)
	buffer := make(RenderBuff, 0)
	for o := range mid {
		buffer = append(buffer, o)
		sort.Sort(buffer)

		for len(buffer) != 0 && (buffer[0].Nth == nextOut) {
			emit(buffer[0])
			nextOut++
			buffer = buffer[1:]
		}
	}
}

type RenderOut struct {
	Nth     uint
	ID      string
	Captcha *captcha.Captcha
	Err     error
}

// RenderBuff - Sortable collection of RenderOut
type RenderBuff []RenderOut

func (r RenderBuff) Len() int {
	return len(r)
}
func (r RenderBuff) Less(i, j int) bool {
	return r[i].Nth < r[j].Nth
}
func (r RenderBuff) Swap(i, j int) {
	r[i], r[j] = r[j], r[i]
}

// contactSheet tiles the captchas in a grid with a 2px gutter.
func contactSheet(made []RenderOut, cols int) *image.RGBA {
	if len(made) == 0 {
		return nil
	}
	if cols <= 0 {
		cols = int(math.Ceil(math.Sqrt(float64(len(made)))))
	}
	rows := (len(made) + cols - 1) / cols
	cell := made[0].Captcha.Image.Bounds().Size().Add(image.Pt(2, 2))
	sheet := image.NewRGBA(image.Rect(0, 0, cols*cell.X, rows*cell.Y))
	draw.Draw(sheet, sheet.Bounds(), image.Black, image.Point{}, draw.Src)
	for i, o := range made {
		at := image.Pt((i%cols)*cell.X+1, (i/cols)*cell.Y+1)
		img := o.Captcha.Image
		draw.Draw(sheet, img.Bounds().Sub(img.Bounds().Min).Add(at), img, img.Bounds().Min, draw.Src)
	}
	return sheet
}
