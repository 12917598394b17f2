package storage

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/dmphub-lab/dmphub/internal/schema"
	"gopkg.in/yaml.v3"
)

// FileSystemRepository serves contracts laid out as
// {scope}/{contract}/v{version}.yaml or .proto. When both files exist for a
// version the YAML one wins. The repository is read-only: operators add
// contracts by dropping files in place.
type FileSystemRepository struct {
	fsys fs.FS
	root string
}

func NewFileSystemRepository(rootDir string) *FileSystemRepository {
	return &FileSystemRepository{fsys: os.DirFS(rootDir), root: rootDir}
}

// NewFSRepository serves contracts from fsys, e.g. an embed.FS.
func NewFSRepository(fsys fs.FS) *FileSystemRepository {
	return &FileSystemRepository{fsys: fsys, root: "."}
}

var extensions = []struct {
	ext    string
	format schema.Format
}{
	{".yaml", schema.FormatYaml},
	{".proto", schema.FormatProtobuf},
}

func (r *FileSystemRepository) Create(ctx context.Context, s *schema.Schema) error {
	ext := ".yaml"
	if s.Format == schema.FormatProtobuf {
		ext = ".proto"
	}
	return fmt.Errorf("contracts are read-only here: add %s/%s/%s/v%d%s instead", r.root, s.Scope, s.Contract, s.Version, ext)
}

func (r *FileSystemRepository) UpdateState(ctx context.Context, key schema.Key, state schema.State) error {
	return fmt.Errorf("contracts are read-only here: cannot mark %s v%d %s", key.Contract, key.Version, state)
}

func (r *FileSystemRepository) Get(ctx context.Context, key schema.Key) (*schema.Schema, error) {
	dir := path.Join(key.Scope, string(key.Contract))

	var found *schema.Schema
	for _, candidate := range extensions {
		name := path.Join(dir, fmt.Sprintf("v%d%s", key.Version, candidate.ext))
		content, err := fs.ReadFile(r.fsys, name)
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read contract %s: %w", name, err)
		}
		if found != nil {
			slog.Warn("Contract defined in both yaml and proto, using yaml",
				"scope", key.Scope, "contract", key.Contract, "version", key.Version)
			break
		}
		found = r.load(key, name, content, candidate.format)
	}
	if found == nil {
		return nil, schema.ErrNotFound
	}
	return found, nil
}

func (r *FileSystemRepository) load(key schema.Key, name string, content []byte, format schema.Format) *schema.Schema {
	s := &schema.Schema{
		ID:          fmt.Sprintf("%s-%s-%d", key.Scope, key.Contract, key.Version),
		Scope:       key.Scope,
		Contract:    key.Contract,
		Version:     key.Version,
		Format:      format,
		Definition:  content,
		Fingerprint: schema.ComputeFingerprint(content),
		State:       schema.StateActive,
		StrictMode:  strictness(content, format),
	}
	if info, err := fs.Stat(r.fsys, name); err == nil {
		s.CreatedAt = info.ModTime().UTC()
	}
	return s
}

// strictness reads the strictMode flag of a YAML contract. Protobuf contracts
// have no place to declare it and are strict.
func strictness(content []byte, format schema.Format) bool {
	if format != schema.FormatYaml {
		return true
	}
	var header struct {
		StrictMode bool `yaml:"strictMode"`
	}
	if err := yaml.Unmarshal(content, &header); err != nil {
		return false
	}
	return header.StrictMode
}

// List returns a scope's contracts ordered by contract name, then version.
func (r *FileSystemRepository) List(ctx context.Context, scope string, contract schema.Contract) ([]*schema.Schema, error) {
	names := []schema.Contract{contract}
	if contract == "" {
		entries, err := r.readDir(scope)
		if err != nil {
			return nil, err
		}
		names = names[:0]
		for _, entry := range entries {
			if entry.IsDir() {
				names = append(names, schema.Contract(entry.Name()))
			}
		}
	}

	out := []*schema.Schema{}
	for _, name := range names {
		versions, err := r.versions(scope, name)
		if err != nil {
			return nil, err
		}
		for _, version := range versions {
			s, err := r.Get(ctx, schema.Key{Scope: scope, Contract: name, Version: version})
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
	}

	slices.SortFunc(out, func(a, b *schema.Schema) int {
		return cmp.Or(cmp.Compare(a.Contract, b.Contract), cmp.Compare(a.Version, b.Version))
	})
	return out, nil
}

// versions lists the distinct version numbers with a contract file. Files
// not named v<N>.yaml or v<N>.proto are ignored.
func (r *FileSystemRepository) versions(scope string, contract schema.Contract) ([]int, error) {
	entries, err := r.readDir(path.Join(scope, string(contract)))
	if err != nil {
		return nil, err
	}

	var out []int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := path.Ext(name)
		if ext != ".yaml" && ext != ".proto" {
			continue
		}
		version, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSuffix(name, ext), "v"))
		if err != nil || version < 1 || !strings.HasPrefix(name, "v") {
			continue
		}
		if !slices.Contains(out, version) {
			out = append(out, version)
		}
	}
	return out, nil
}

func (r *FileSystemRepository) readDir(dir string) ([]fs.DirEntry, error) {
	entries, err := fs.ReadDir(r.fsys, dir)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list contracts in %s: %w", dir, err)
	}
	return entries, nil
}
