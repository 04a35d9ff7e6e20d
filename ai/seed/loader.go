// Package seed loads labeled intent samples and knowledge documents from YAML
// and writes them, embedded, into the vector store.
package seed

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// File is one seed file.
//
//	intents:
//	  ask_weather:
//	    - Thời tiết Đà Nẵng thế nào
//	documents:
//	  - province: da nang
//	    content: Bà Nà Hills mở cửa từ 7h đến 22h.
type File struct {
	Intents   map[string][]string `yaml:"intents"`
	Documents []Document          `yaml:"documents"`
}

// Document is a knowledge snippet to index.
type Document struct {
	Province string         `yaml:"province"`
	Content  string         `yaml:"content"`
	Metadata map[string]any `yaml:"metadata"`
}

// Loader reads seed files relative to a base directory.
type Loader struct {
	baseDir string
}

// NewLoader creates a loader rooted at baseDir.
func NewLoader(baseDir string) *Loader {
	return &Loader{baseDir: baseDir}
}

// Load reads a single YAML seed file.
func (l *Loader) Load(subPath string) (*File, error) {
	data, err := l.readFileWithFallback(subPath)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", subPath, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal YAML %s: %w", subPath, err)
	}
	return &f, nil
}

// LoadDir merges every .yaml/.yml file of subDir in name order.
func (l *Loader) LoadDir(subDir string) (*File, error) {
	dirPath := filepath.Join(l.baseDir, subDir)
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dirPath, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	merged := &File{Intents: make(map[string][]string)}
	for _, name := range names {
		f, err := l.Load(filepath.Join(subDir, name))
		if err != nil {
			return nil, err
		}
		merged.merge(f)
	}
	return merged, nil
}

// LoadPath loads a file or a directory, whichever path names.
func (l *Loader) LoadPath(path string) (*File, error) {
	info, err := os.Stat(filepath.Join(l.baseDir, path))
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return l.LoadDir(path)
	}
	return l.Load(path)
}

func (f *File) merge(other *File) {
	if f.Intents == nil {
		f.Intents = make(map[string][]string)
	}
	for code, samples := range other.Intents {
		f.Intents[code] = append(f.Intents[code], samples...)
	}
	f.Documents = append(f.Documents, other.Documents...)
}

// readFileWithFallback tries baseDir first, then the executable directory
// for packaged builds.
func (l *Loader) readFileWithFallback(path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.baseDir, path))
	if err == nil {
		return data, nil
	}
	execPath, execErr := os.Executable()
	if execErr != nil {
		return nil, err
	}
	data, fallbackErr := os.ReadFile(filepath.Join(filepath.Dir(execPath), l.baseDir, path))
	if fallbackErr != nil {
		return nil, err
	}
	return data, nil
}
