// Package artifact persists the fitted pipeline together with its metadata
// as a single zstd-compressed JSON document.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"sberauto/predictor/pipeline"
)

// ErrCorrupt is returned when a file cannot be decoded as an artifact.
var ErrCorrupt = errors.New("corrupt model artifact")

const (
	ModelName    = "Event action prediction for SberAuto subscription"
	ModelAuthor  = "Dmitry Vitkovskiy"
	ModelVersion = 4
	ModelType    = "XGBClassifier"
)

type Metadata struct {
	Name    string    `json:"name"`
	Author  string    `json:"author"`
	Version int       `json:"version"`
	Date    time.Time `json:"date"`
	Type    string    `json:"type"`
}

// NewMetadata returns the metadata record stamped at created.
func NewMetadata(created time.Time) Metadata {
	return Metadata{
		Name:    ModelName,
		Author:  ModelAuthor,
		Version: ModelVersion,
		Date:    created,
		Type:    ModelType,
	}
}

// Artifact is everything the service needs to answer predictions.
type Artifact struct {
	Model    *pipeline.Pipeline `json:"model"`
	Metadata Metadata           `json:"metadata"`
}

func Write(w io.Writer, a *Artifact) error {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(a); err != nil {
		enc.Close()
		return fmt.Errorf("failed to encode artifact: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to flush artifact: %w", err)
	}
	return nil
}

func Read(r io.Reader) (*Artifact, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer dec.Close()

	var a Artifact
	if err := json.NewDecoder(dec).Decode(&a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if a.Model == nil {
		return nil, fmt.Errorf("%w: no fitted model", ErrCorrupt)
	}
	if err := a.Model.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &a, nil
}

// Save writes the artifact to path through a temporary file so a failed
// run never leaves a truncated artifact behind.
func Save(path string, a *Artifact) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp artifact file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, a); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp artifact file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move artifact into place: %w", err)
	}
	return nil
}

func Load(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model artifact: %w", err)
	}
	defer f.Close()
	return Read(f)
}
