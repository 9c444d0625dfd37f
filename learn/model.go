package learn

import (
	"bufio"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/submersibletoaster/captcha/failure"
)

// Kind names a classifier family.
type Kind int

const (
	KindKNN Kind = iota
	KindSVM
	KindForest
)

func (k Kind) String() string {
	switch k {
	case KindKNN:
		return "knn"
	case KindSVM:
		return "svm"
	case KindForest:
		return "forest"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "knn":
		return KindKNN, nil
	case "svm":
		return KindSVM, nil
	case "forest", "rf", "random_forest":
		return KindForest, nil
	}
	return 0, failure.New(failure.InvalidArgument, "unknown model kind %q", s)
}

// Model is a trained classifier. It is never modified after Train or
// LoadModel returns it, so one Model may serve concurrent predictions.
// Exactly one of KNN, SVM and Forest is set, matching Kind.
type Model struct {
	Kind Kind
	Dim  int

	KNN    *KNN
	SVM    *SVM
	Forest *Forest
}

// Predict returns the label index and its probability estimate. A vector
// of the wrong length yields label -1.
func (m *Model) Predict(x []float64) (int, float64) {
	if len(x) != m.Dim {
		return -1, 0
	}
	switch {
	case m.KNN != nil:
		return m.KNN.Predict(x)
	case m.SVM != nil:
		return m.SVM.Predict(x)
	case m.Forest != nil:
		return m.Forest.Predict(x)
	}
	return -1, 0
}

const modelMagic = "captcha-model/1"

type envelope struct {
	Magic string
	Model *Model
}

func (m *Model) Encode(w io.Writer) error {
	return gob.NewEncoder(w).Encode(envelope{Magic: modelMagic, Model: m})
}

func Decode(r io.Reader) (*Model, error) {
	var env envelope
	if err := gob.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if env.Magic != modelMagic || env.Model == nil {
		return nil, fmt.Errorf("decode model: unexpected header %q", env.Magic)
	}
	return env.Model, nil
}

// SaveModel writes m to path, replacing any previous file.
func SaveModel(path string, m *Model) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := m.Encode(w); err != nil {
		f.Close()
		return fmt.Errorf("save model %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadModel reads a model written by SaveModel. A missing file is a
// RESOURCE_MISSING failure.
func LoadModel(path string) (*Model, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, failure.NewResourceMissing("model", path, err)
	}
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	defer f.Close()
	return Decode(bufio.NewReader(f))
}
