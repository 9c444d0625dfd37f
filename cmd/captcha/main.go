package main

import (
	"errors"
	"flag"
	"fmt"
	"image/color"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/joshdk/preview"
	log "github.com/sirupsen/logrus"

	"github.com/submersibletoaster/captcha"
	"github.com/submersibletoaster/captcha/examine"
	"github.com/submersibletoaster/captcha/failure"
	"github.com/submersibletoaster/captcha/internal/config"
	"github.com/submersibletoaster/captcha/learn"
	"github.com/submersibletoaster/captcha/recognize"
)

const usage = `usage: captcha <command> [flags]

commands:
  generate   render a captcha and save it
  recognize  read captcha images with ocr, template or ml
  eval       generate captchas and measure a recognizer
  train      fit a classifier on a dataset directory
  templates  render one template per symbol
  dataset    generate labelled character crops
  validate   compare an answer with the expected text
`

var cfg *config.Config

func main() {
	config.LoadEnvFile(".env")
	var err error
	cfg, err = config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.ApplyLogLevel()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	commands := map[string]func([]string) error{
		"generate":  cmdGenerate,
		"recognize": cmdRecognize,
		"eval":      cmdEval,
		"train":     cmdTrain,
		"templates": cmdTemplates,
		"dataset":   cmdDataset,
		"validate":  cmdValidate,
	}
	run, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err := run(os.Args[2:]); err != nil {
		log.Errorf("%s: %v", os.Args[1], err)
		if code := failure.CodeOf(err); code != "" {
			os.Exit(3)
		}
		os.Exit(1)
	}
}

func newFlags(name string) (*flag.FlagSet, *bool) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	verbose := fs.Bool("v", false, "Verbose logging")
	return fs, verbose
}

func setVerbose(v bool) {
	if v {
		log.SetLevel(log.DebugLevel)
	}
}

func newGenerator(seed int64) *captcha.Generator {
	if seed == 0 {
		seed = cfg.Seed
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return captcha.NewGenerator(cfg.GeneratorOptions(), rand.New(rand.NewSource(seed)))
}

func cmdGenerate(args []string) error {
	fs, verbose := newFlags("generate")
	level := fs.String("d", "hard", "Difficulty: simple, medium or hard")
	length := fs.Int("n", 5, "Number of characters")
	out := fs.String("o", "captcha.png", "Output image")
	seed := fs.Int64("seed", 0, "Random seed (0 uses CAPTCHA_SEED or the clock)")
	show := fs.Bool("preview", false, "Show the image in the terminal")
	fs.Parse(args)
	setVerbose(*verbose)

	d, err := captcha.ParseDifficulty(*level)
	if err != nil {
		return err
	}
	g := newGenerator(*seed)
	defer g.Close()
	c, err := g.Generate(d, *length)
	if err != nil {
		return err
	}
	if err := imaging.Save(c.Image, *out); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"font":   c.Font,
		"stages": c.Stages,
	}).Debug("generated")
	if *show {
		preview.Image(c.Image)
	}
	fmt.Println(c.Text)
	return nil
}

func cmdRecognize(args []string) error {
	fs, verbose := newFlags("recognize")
	method := fs.String("m", "template", "Method: ocr, template or ml")
	truth := fs.String("truth", "", "Expected text, to score the result")
	fs.Parse(args)
	setVerbose(*verbose)
	if fs.NArg() == 0 {
		return failure.New(failure.InvalidArgument, "no images given")
	}

	r, err := buildRecognizer(*method)
	if err != nil {
		return err
	}
	for _, path := range fs.Args() {
		img, err := imaging.Open(path)
		if err != nil {
			return failure.NewResourceMissing("image", path, err)
		}
		text, err := r.Recognize(img)
		if err != nil {
			log.WithError(err).WithField("file", path).Warn("not recognized")
			continue
		}
		if *truth == "" {
			fmt.Printf("%s\t%s\n", path, text)
			continue
		}
		fmt.Printf("%s\t", path)
		printCompared(text, *truth)
		fmt.Printf("\t%.0f%%\n", 100*recognize.Accuracy(text, *truth))
	}
	return nil
}

func cmdEval(args []string) error {
	fs, verbose := newFlags("eval")
	method := fs.String("m", "template", "Method: ocr, template or ml")
	level := fs.String("d", "simple", "Difficulty: simple, medium or hard")
	count := fs.Int("count", 50, "Number of captchas")
	length := fs.Int("n", 5, "Characters per captcha")
	seed := fs.Int64("seed", 0, "Random seed")
	fs.Parse(args)
	setVerbose(*verbose)

	d, err := captcha.ParseDifficulty(*level)
	if err != nil {
		return err
	}
	r, err := buildRecognizer(*method)
	if err != nil {
		return err
	}
	g := newGenerator(*seed)
	defer g.Close()

	exact, failed := 0, 0
	var chars float64
	bar := pb.StartNew(*count)
	for i := 0; i < *count; i++ {
		bar.Increment()
		c, err := g.Generate(d, *length)
		if err != nil {
			return err
		}
		text, err := r.Recognize(c.Image)
		if err != nil {
			failed++
			continue
		}
		if recognize.Validate(text, c.Text, false) {
			exact++
		}
		chars += recognize.Accuracy(text, c.Text)
	}
	bar.Finish()

	fmt.Printf("%s on %s: %d/%d exact, %.1f%% characters, %d errors\n",
		*method, d, exact, *count, 100*chars/float64(*count), failed)
	return nil
}

func cmdTrain(args []string) error {
	fs, verbose := newFlags("train")
	kind := fs.String("kind", cfg.ModelKind, "Classifier: knn, svm or forest")
	data := fs.String("data", cfg.DatasetDir, "Dataset directory, one folder per symbol")
	out := fs.String("o", cfg.ModelPath, "Model output")
	trees := fs.Int("trees", 100, "Forest size")
	fs.Parse(args)
	setVerbose(*verbose)

	k, err := learn.ParseKind(*kind)
	if err != nil {
		return err
	}
	samples, err := learn.LoadDataset(*data)
	if err != nil {
		return err
	}
	log.Infof("loaded %d samples from %s", len(samples), *data)

	opts := learn.DefaultOptions()
	opts.Trees = *trees
	opts.Workers = cfg.Workers
	var bar *pb.ProgressBar
	opts.Progress = func(stage string, done, total int) {
		if bar == nil {
			bar = pb.StartNew(total)
		}
		bar.SetCurrent(int64(done))
		if done == total {
			bar.Finish()
		}
	}

	m, acc, err := learn.Train(samples, k, opts)
	if err != nil {
		return err
	}
	if err := learn.SaveModel(*out, m); err != nil {
		return err
	}
	fmt.Printf("%s accuracy %.2f%%, saved to %s\n", k, 100*acc, *out)
	return nil
}

func cmdTemplates(args []string) error {
	fs, verbose := newFlags("templates")
	out := fs.String("o", cfg.TemplateDir, "Template directory")
	fs.Parse(args)
	setVerbose(*verbose)

	g := newGenerator(1)
	defer g.Close()
	set := recognize.BuildTemplates(g.Renderer())
	if err := recognize.SaveTemplates(*out, set); err != nil {
		return err
	}
	fmt.Printf("%d templates (%s font) written to %s\n", set.Len(), g.Renderer().Kind(), *out)
	return nil
}

// cmdDataset renders captchas and files every crop under its symbol. Images
// that do not segment into one crop per character are skipped, since their
// labels cannot be paired up.
func cmdDataset(args []string) error {
	fs, verbose := newFlags("dataset")
	out := fs.String("o", cfg.DatasetDir, "Dataset directory")
	level := fs.String("d", "hard", "Difficulty: simple, medium or hard")
	count := fs.Int("count", 500, "Number of captchas")
	length := fs.Int("n", 5, "Characters per captcha")
	seed := fs.Int64("seed", 0, "Random seed")
	fs.Parse(args)
	setVerbose(*verbose)

	d, err := captcha.ParseDifficulty(*level)
	if err != nil {
		return err
	}
	g := newGenerator(*seed)
	defer g.Close()

	saved, skipped := 0, 0
	bar := pb.StartNew(*count)
	for i := 0; i < *count; i++ {
		bar.Increment()
		c, err := g.Generate(d, *length)
		if err != nil {
			return err
		}
		segs := examine.Characters(c.Image, examine.DefaultOptions())
		if len(segs) != len(c.Text) {
			skipped++
			continue
		}
		for j, s := range segs {
			dir := filepath.Join(*out, string(c.Text[j]))
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			if err := imaging.Save(s.Image, filepath.Join(dir, uuid.New().String()+".png")); err != nil {
				return err
			}
			saved++
		}
	}
	bar.Finish()
	fmt.Printf("%d crops saved, %d captchas skipped\n", saved, skipped)
	return nil
}

func cmdValidate(args []string) error {
	fs, _ := newFlags("validate")
	cs := fs.Bool("case", false, "Case sensitive")
	fs.Parse(args)
	if fs.NArg() != 2 {
		return failure.New(failure.InvalidArgument, "validate needs <answer> <expected>")
	}
	ok := recognize.Validate(fs.Arg(0), fs.Arg(1), *cs)
	printCompared(fs.Arg(0), fs.Arg(1))
	fmt.Println()
	if !ok {
		return errors.New("answer does not match")
	}
	return nil
}

func buildRecognizer(method string) (recognize.Recognizer, error) {
	switch method {
	case "ocr":
		e, err := newOCREngine(cfg.TessLanguage)
		if err != nil {
			return nil, err
		}
		return recognize.NewOCR(e, cfg.Mode()), nil
	case "template":
		set, err := recognize.LoadTemplates(cfg.TemplateDir)
		if err != nil {
			if failure.Is(err, failure.ResourceMissing) {
				log.Warn("run `captcha templates` to create the template directory")
			}
			return nil, err
		}
		return recognize.NewTemplateMatcher(set), nil
	case "ml":
		r := recognize.NewML(nil)
		if err := r.Load(cfg.ModelPath); err != nil {
			return nil, err
		}
		return r, nil
	}
	return nil, failure.New(failure.InvalidArgument, "unknown method %q", method)
}

var (
	matchColor    = color.RGBA{0x20, 0xc0, 0x40, 0xff}
	mismatchColor = color.RGBA{0xe0, 0x30, 0x30, 0xff}
)
