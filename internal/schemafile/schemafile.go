// Package schemafile loads entity schemas from YAML files.
//
// A file declares one entity: its tables, current version, the shape of
// every version migrations touch, the rename ledger and milestone hooks.
// Hooks support the copy, rename, coerce and fallback strategies; custom
// functions are only available to programs building a types.Schema
// directly.
package schemafile

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/strata/pkg/types"
)

// Strategy names accepted in hook declarations.
const (
	StrategyCopy     = "copy"
	StrategyRename   = "rename"
	StrategyCoerce   = "coerce"
	StrategyFallback = "fallback"
)

type schemaFile struct {
	Entity   string                  `yaml:"entity"`
	Tables   []string                `yaml:"tables"`
	Current  int                     `yaml:"current"`
	Versions []versionDecl           `yaml:"versions"`
	Renames  map[string][]renameDecl `yaml:"renames"`
	Hooks    map[int]hookDecl        `yaml:"hooks"`
}

type versionDecl struct {
	Version int         `yaml:"version"`
	Fields  []fieldDecl `yaml:"fields"`
}

type fieldDecl struct {
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"`
	Elem     string `yaml:"elem,omitempty"`
	Nullable bool   `yaml:"nullable,omitempty"`
	Unique   bool   `yaml:"unique,omitempty"`
	Default  any    `yaml:"default,omitempty"`
}

type renameDecl struct {
	From    string `yaml:"from"`
	To      string `yaml:"to,omitempty"`
	Version int    `yaml:"version"`
}

type hookDecl struct {
	Fields map[string]transformDecl `yaml:"fields"`
}

type transformDecl struct {
	Strategy string `yaml:"strategy"`
	From     string `yaml:"from,omitempty"`
	Value    any    `yaml:"value,omitempty"`
}

// Load reads and parses the schema file at path.
func Load(path string) (*types.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse builds a validated schema from YAML. When current is omitted it
// defaults to the highest declared version; tables default to one table
// named after the entity.
func Parse(data []byte) (*types.Schema, error) {
	var f schemaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing schema: %w", err)
	}

	s := &types.Schema{
		Entity:  f.Entity,
		Tables:  f.Tables,
		Current: f.Current,
		Shapes:  make(map[int]types.Shape, len(f.Versions)),
		Renames: make(types.RenameLedger, len(f.Renames)),
		Hooks:   make(map[int]*types.Hook, len(f.Hooks)),
	}
	if len(s.Tables) == 0 && s.Entity != "" {
		s.Tables = []string{s.Entity}
	}

	for _, vd := range f.Versions {
		if _, dup := s.Shapes[vd.Version]; dup {
			return nil, fmt.Errorf("version %d declared twice: %w", vd.Version, types.ErrInvalidShape)
		}
		sh := types.Shape{Name: f.Entity, Version: vd.Version}
		for _, fd := range vd.Fields {
			fld, err := fd.field()
			if err != nil {
				return nil, fmt.Errorf("version %d: %w", vd.Version, err)
			}
			sh.Fields = append(sh.Fields, fld)
		}
		s.Shapes[vd.Version] = sh
		if f.Current == 0 && vd.Version > s.Current {
			s.Current = vd.Version
		}
	}

	for name, decls := range f.Renames {
		history := make([]types.RenameRecord, len(decls))
		for i, rd := range decls {
			history[i] = types.RenameRecord{From: rd.From, To: rd.To, Version: rd.Version}
		}
		sort.SliceStable(history, func(i, j int) bool { return history[i].Version > history[j].Version })
		s.Renames[name] = history
	}

	for version, hd := range f.Hooks {
		sh, ok := s.Shapes[version]
		if !ok {
			return nil, fmt.Errorf("hook for version %d: %w", version, types.ErrShapeMissing)
		}
		hook := &types.Hook{Fields: make(map[string]types.Transform, len(hd.Fields))}
		for name, td := range hd.Fields {
			target, ok := sh.Field(name)
			if !ok {
				return nil, fmt.Errorf("hook for version %d: field %q not in shape: %w", version, name, types.ErrInvalidShape)
			}
			t, err := td.transform(target)
			if err != nil {
				return nil, fmt.Errorf("hook for version %d field %q: %w", version, name, err)
			}
			hook.Fields[name] = t
		}
		s.Hooks[version] = hook
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (fd fieldDecl) field() (types.Field, error) {
	kind, err := types.ParseKind(fd.Kind)
	if err != nil {
		return types.Field{}, fmt.Errorf("field %q: %w", fd.Name, err)
	}
	fld := types.Field{Name: fd.Name, Kind: kind, Nullable: fd.Nullable, Unique: fd.Unique}
	if fd.Elem != "" {
		if fld.Elem, err = types.ParseKind(fd.Elem); err != nil {
			return types.Field{}, fmt.Errorf("field %q element: %w", fd.Name, err)
		}
	}
	if fd.Default != nil {
		if fld.Default, err = types.FromAny(fld.Kind, fld.Elem, fd.Default); err != nil {
			return types.Field{}, fmt.Errorf("field %q default: %w", fd.Name, err)
		}
	}
	return fld, nil
}

func (td transformDecl) transform(target types.Field) (types.Transform, error) {
	switch td.Strategy {
	case StrategyCopy:
		return types.Copy(), nil
	case StrategyRename:
		if td.From == "" {
			return types.Transform{}, fmt.Errorf("rename needs from: %w", types.ErrInvalidShape)
		}
		return types.RenameFrom(td.From), nil
	case StrategyCoerce, "":
		return types.Coerce(), nil
	case StrategyFallback:
		v, err := types.FromAny(target.Kind, target.Elem, td.Value)
		if err != nil {
			return types.Transform{}, fmt.Errorf("fallback value: %w", err)
		}
		if !target.Accepts(v) {
			return types.Transform{}, fmt.Errorf("fallback value %#v for %s: %w", v, target.Kind, types.ErrTypeMismatch)
		}
		return types.Fallback(v), nil
	default:
		return types.Transform{}, fmt.Errorf("unknown strategy %q: %w", td.Strategy, types.ErrInvalidShape)
	}
}
