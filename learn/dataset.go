package learn

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/disintegration/imaging"
	log "github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"

	"github.com/submersibletoaster/captcha/failure"
	"github.com/submersibletoaster/captcha/glyph"
)

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".webp": true}

// LoadDataset reads a labelled corpus laid out as one sub-directory per
// alphabet symbol, each holding character crops. Directories that do not
// name a symbol, and files that fail to decode, are skipped with a warning.
func LoadDataset(dir string) ([]Sample, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, failure.NewResourceMissing("dataset", dir, err)
	}
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	var out []Sample
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		r, _ := utf8.DecodeRuneInString(strings.ToUpper(e.Name()))
		label := glyph.Index(r)
		if label < 0 || utf8.RuneCountInString(e.Name()) != 1 {
			log.WithField("dir", e.Name()).Warn("dataset: not a symbol directory, skipped")
			continue
		}
		n, err := loadClass(filepath.Join(dir, e.Name()), label, &out)
		if err != nil {
			return nil, err
		}
		log.Debugf("dataset: %c has %d samples", r, n)
	}
	return out, nil
}

func loadClass(dir string, label int, out *[]Sample) (int, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read dataset class: %w", err)
	}
	n := 0
	for _, f := range files {
		if f.IsDir() || !imageExts[strings.ToLower(filepath.Ext(f.Name()))] {
			continue
		}
		path := filepath.Join(dir, f.Name())
		img, err := imaging.Open(path)
		if err != nil {
			log.WithError(err).WithField("file", path).Warn("dataset: unreadable image")
			continue
		}
		*out = append(*out, NewSample(img, label))
		n++
	}
	return n, nil
}
