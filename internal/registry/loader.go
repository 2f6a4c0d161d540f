package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"chatd/internal/common/fsutil"
	"chatd/pkg/types"
)

// quantPattern matches llama.cpp quantisation tags in file names,
// e.g. Q4_K_M, Q8_0, IQ3_XS, F16.
var quantPattern = regexp.MustCompile(`(?i)(?:^|[-_.])((?:I?Q\d+(?:_[A-Z0-9]+)*)|BF16|F16|F32)(?:[-_.]|$)`)

// GGUFScanner lists GGUF model files in a directory.
type GGUFScanner struct{}

// NewGGUFScanner returns a scanner for *.gguf files.
func NewGGUFScanner() *GGUFScanner { return &GGUFScanner{} }

// Scan returns the models in dir sorted by ID. ID and Name are the file
// name; Path is absolute.
func (s *GGUFScanner) Scan(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		m := types.Model{ID: name, Name: name, Path: filepath.Join(abs, name), Quant: Quant(name)}
		if info, err := e.Info(); err == nil {
			m.SizeBytes = info.Size()
		}
		models = append(models, m)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

// LoadDir scans dir with a GGUFScanner.
func LoadDir(dir string) ([]types.Model, error) {
	return NewGGUFScanner().Scan(dir)
}

// Quant extracts the quantisation tag from a model file name, upper-cased,
// or "" when none is present.
func Quant(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	m := quantPattern.FindAllStringSubmatch(stem, -1)
	if len(m) == 0 {
		return ""
	}
	return strings.ToUpper(m[len(m)-1][1])
}

// Find returns the model whose ID matches id.
func Find(models []types.Model, id string) (types.Model, bool) {
	for _, m := range models {
		if m.ID == id {
			return m, true
		}
	}
	return types.Model{}, false
}
