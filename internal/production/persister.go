// Package production provides production integrations for a scheduler:
// snapshot persistence, trace publishing and visualization.
package production

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sugawarayuuta/sonnet"
	"gopkg.in/yaml.v3"

	"github.com/comalice/rtkernel"
)

// Persister stores scheduler snapshots by name.
type Persister interface {
	Save(ctx context.Context, snap rtkernel.Snapshot) error
	Load(ctx context.Context, name string) (rtkernel.Snapshot, error)
}

var (
	_ Persister = (*JSONPersister)(nil)
	_ Persister = (*YAMLPersister)(nil)
)

// codec is the encoding half of a file persister.
type codec struct {
	ext       string
	marshal   func(v any) ([]byte, error)
	unmarshal func(data []byte, v any) error
}

// filePersister writes one file per snapshot name into dir.
type filePersister struct {
	dir string
	codec
}

func newFilePersister(dir string, c codec) (filePersister, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return filePersister{}, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return filePersister{dir: dir, codec: c}, nil
}

func (p filePersister) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("snapshot name %q: %w", name, rtkernel.ErrInvalidObject)
	}
	return filepath.Join(p.dir, name+p.ext), nil
}

func (p filePersister) save(ctx context.Context, snap rtkernel.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fn, err := p.path(snap.Name)
	if err != nil {
		return err
	}
	data, err := p.marshal(snap)
	if err != nil {
		return fmt.Errorf("%s marshal: %w", p.ext[1:], err)
	}

	// Readers never see a partial file.
	tmp := fn + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, fn); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", fn, err)
	}
	return nil
}

func (p filePersister) load(ctx context.Context, name string) (rtkernel.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return rtkernel.Snapshot{}, err
	}
	fn, err := p.path(name)
	if err != nil {
		return rtkernel.Snapshot{}, err
	}
	data, err := os.ReadFile(fn)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return rtkernel.Snapshot{}, fmt.Errorf("snapshot %q: %w", name, os.ErrNotExist)
		}
		return rtkernel.Snapshot{}, fmt.Errorf("read %s: %w", fn, err)
	}

	var snap rtkernel.Snapshot
	if err := p.unmarshal(data, &snap); err != nil {
		return rtkernel.Snapshot{}, fmt.Errorf("%s unmarshal: %w", p.ext[1:], err)
	}
	snap.Name = name
	return snap, nil
}

// JSONPersister stores snapshots as indented JSON files.
type JSONPersister struct {
	fp filePersister
}

// NewJSONPersister creates a JSONPersister, ensuring the directory exists.
func NewJSONPersister(dir string) (*JSONPersister, error) {
	fp, err := newFilePersister(dir, codec{
		ext: ".json",
		marshal: func(v any) ([]byte, error) {
			return sonnet.MarshalIndent(v, "", "  ")
		},
		unmarshal: sonnet.Unmarshal,
	})
	if err != nil {
		return nil, err
	}
	return &JSONPersister{fp: fp}, nil
}

func (p *JSONPersister) Save(ctx context.Context, snap rtkernel.Snapshot) error {
	return p.fp.save(ctx, snap)
}

func (p *JSONPersister) Load(ctx context.Context, name string) (rtkernel.Snapshot, error) {
	return p.fp.load(ctx, name)
}

// YAMLPersister stores snapshots as YAML files. Load rejects snapshots whose
// embedded configuration no longer validates, or whose fingerprint does not
// match it.
type YAMLPersister struct {
	fp filePersister
}

// NewYAMLPersister creates a YAMLPersister, ensuring the directory exists.
func NewYAMLPersister(dir string) (*YAMLPersister, error) {
	fp, err := newFilePersister(dir, codec{
		ext:       ".yaml",
		marshal:   yaml.Marshal,
		unmarshal: yaml.Unmarshal,
	})
	if err != nil {
		return nil, err
	}
	return &YAMLPersister{fp: fp}, nil
}

func (p *YAMLPersister) Save(ctx context.Context, snap rtkernel.Snapshot) error {
	return p.fp.save(ctx, snap)
}

func (p *YAMLPersister) Load(ctx context.Context, name string) (rtkernel.Snapshot, error) {
	snap, err := p.fp.load(ctx, name)
	if err != nil {
		return rtkernel.Snapshot{}, err
	}
	if err := snap.Config.Validate(); err != nil {
		return rtkernel.Snapshot{}, fmt.Errorf("config validation after load: %w", err)
	}
	if got := snap.Config.Fingerprint(); snap.Fingerprint != got {
		return rtkernel.Snapshot{}, fmt.Errorf("snapshot %q: fingerprint %s does not match config %s: %w",
			name, snap.Fingerprint, got, rtkernel.ErrConfig)
	}
	return snap, nil
}
