// Package seed loads catalog documents (business info, stores, stock) from
// YAML files so any backend can be initialised from the same data.
package seed

import (
	"fmt"
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/ireland-samantha/shopkeeper-bot/internal/domain"
)

// File is the YAML layout of a catalog seed file. Any section may be omitted.
type File struct {
	Path     string               `yaml:"-"`
	Business *domain.BusinessInfo `yaml:"business"`
	Stores   []domain.StoreInfo   `yaml:"stores"`
	Stock    []domain.StockItem   `yaml:"stock"`
}

// Load parses every file matching pattern (doublestar syntax, e.g.
// "seed/**/*.yaml"), in lexical order. An empty pattern loads nothing.
func Load(pattern string) ([]File, error) {
	if pattern == "" {
		return nil, nil
	}
	paths, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("seed: glob %q: %w", pattern, err)
	}

	files := make([]File, 0, len(paths))
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("seed: reading %s: %w", path, err)
		}
		f, err := Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("seed: parsing %s: %w", path, err)
		}
		f.Path = path
		files = append(files, f)
	}
	return files, nil
}

// Parse decodes one seed document.
func Parse(raw []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return File{}, err
	}
	for i, it := range f.Stock {
		if it.ID == "" {
			return File{}, fmt.Errorf("stock entry %d has no id", i)
		}
	}
	for i, s := range f.Stores {
		if s.ID == "" {
			return File{}, fmt.Errorf("store entry %d has no id", i)
		}
	}
	return f, nil
}
