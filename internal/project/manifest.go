// Package project turns a host directory, described by a manifest, into
// the file map a sandbox mounts on boot.
package project

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// DefaultMaxFileSize caps individual files collected from disk.
const DefaultMaxFileSize = 1 << 20

var ErrUnsupportedFormat = errors.New("unsupported manifest format")

// Manifest describes which files to mount into a sandbox.
type Manifest struct {
	// Root is resolved relative to the manifest's directory.
	Root        string            `json:"root" yaml:"root" toml:"root"`
	Include     []string          `json:"include" yaml:"include" toml:"include"`
	Exclude     []string          `json:"exclude" yaml:"exclude" toml:"exclude"`
	MaxFileSize int64             `json:"max_file_size" yaml:"max_file_size" toml:"max_file_size"`
	Files       map[string]string `json:"files" yaml:"files" toml:"files"`
}

// LoadManifest reads a manifest from a .yaml, .yml, .toml or .json file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	m, err := ParseManifest(filepath.Ext(path), data)
	if err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	base := filepath.Dir(path)
	switch {
	case m.Root == "":
		m.Root = base
	case !filepath.IsAbs(m.Root):
		m.Root = filepath.Join(base, m.Root)
	}
	return m, nil
}

// ParseManifest decodes data according to the file extension ext.
func ParseManifest(ext string, data []byte) (*Manifest, error) {
	var m Manifest
	var err error
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &m)
	case ".toml":
		err = toml.Unmarshal(data, &m)
	case ".json":
		err = sonic.Unmarshal(data, &m)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Resolve collects the manifest's files from disk and overlays the inline
// Files entries.
func (m *Manifest) Resolve(ctx context.Context) (map[string]string, error) {
	files := map[string]string{}
	if m.Root != "" {
		collected, err := Collect(ctx, m.Root, Options{
			Include:     m.Include,
			Exclude:     m.Exclude,
			MaxFileSize: m.MaxFileSize,
		})
		if err != nil {
			return nil, err
		}
		files = collected
	}
	for name, content := range m.Files {
		files[name] = content
	}
	return files, nil
}
