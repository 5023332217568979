package world

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"
)

//go:embed content/*.yaml
var contentFS embed.FS

type worldDoc struct {
	Home      LocationID        `yaml:"home"`
	Start     Start             `yaml:"start"`
	Payloads  map[string]string `yaml:"payloads"`
	Chant     Chant             `yaml:"chant"`
	Locations []*Location       `yaml:"locations"`
}

type regionsDoc struct {
	Regions []*Region `yaml:"regions"`
}

type storyDoc struct {
	Steps []*StoryStep `yaml:"steps"`
}

// Load parses the embedded content tables into a validated World.
func Load() (*World, error) {
	return LoadFS(contentFS, "content")
}

// LoadFS parses world content from dir within fsys. Split out from Load so
// tests can feed crafted content.
func LoadFS(fsys fs.FS, dir string) (*World, error) {
	var wd worldDoc
	if err := decodeStrict(fsys, dir+"/world.yaml", &wd); err != nil {
		return nil, err
	}
	var rd regionsDoc
	if err := decodeStrict(fsys, dir+"/regions.yaml", &rd); err != nil {
		return nil, err
	}
	var sd storyDoc
	if err := decodeStrict(fsys, dir+"/story.yaml", &sd); err != nil {
		return nil, err
	}

	w := &World{
		Home:      wd.Home,
		Start:     wd.Start,
		Payloads:  wd.Payloads,
		Chant:     wd.Chant,
		Locations: make(map[LocationID]*Location, len(wd.Locations)),
		Regions:   rd.Regions,
		Steps:     sd.Steps,
	}
	for _, loc := range wd.Locations {
		if _, dup := w.Locations[loc.ID]; dup {
			return nil, fmt.Errorf("world content: duplicate location %q", loc.ID)
		}
		w.Locations[loc.ID] = loc
	}
	w.Index()

	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

func decodeStrict(fsys fs.FS, path string, target any) error {
	raw, err := fs.ReadFile(fsys, path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// Validate checks referential integrity across the content tables:
// every link, discover target, region member, gating location, and payload
// key must resolve, and every flag token must be in the vocabulary.
func (w *World) Validate() error {
	var issues []error
	bad := func(format string, args ...any) {
		issues = append(issues, fmt.Errorf(format, args...))
	}

	if _, ok := w.Locations[w.Home]; !ok {
		bad("home location %q does not exist", w.Home)
	}
	for _, id := range w.Start.Discovered {
		if _, ok := w.Locations[id]; !ok {
			bad("start discovered %q does not exist", id)
		}
	}
	unlockedSeed := make(map[LocationID]bool)
	for _, id := range w.Start.Unlocked {
		unlockedSeed[id] = true
		if _, ok := w.Locations[id]; !ok {
			bad("start unlocked %q does not exist", id)
		}
	}
	discoveredSeed := make(map[LocationID]bool)
	for _, id := range w.Start.Discovered {
		discoveredSeed[id] = true
	}
	for id := range unlockedSeed {
		if !discoveredSeed[id] {
			bad("start unlocked %q is not in start discovered", id)
		}
	}
	if _, ok := w.Region(w.Start.Region); !ok {
		bad("start region %q does not exist", w.Start.Region)
	}

	if w.Chant.Phrase == "" {
		bad("chant phrase is empty")
	}
	if len(w.Steps) == 0 {
		bad("story has no steps")
	}

	for id, loc := range w.Locations {
		if loc.ID != id {
			bad("location %q indexed under %q", loc.ID, id)
		}
		if loc.Title == "" {
			bad("location %q has no title", id)
		}
		for _, link := range loc.Links {
			if _, ok := w.Locations[link]; !ok {
				bad("location %q links to unknown %q", id, link)
			}
		}
		for i, lock := range loc.Locks {
			if !lock.Kind.IsValid() {
				bad("location %q lock %d has invalid kind %q", id, i, lock.Kind)
			}
			if lock.Value == "" {
				bad("location %q lock %d has no value", id, i)
			}
			if lock.Kind == AnswerComputed {
				if _, ok := w.Payloads[lock.Value]; !ok {
					bad("location %q lock %d references unknown payload %q", id, i, lock.Value)
				}
			}
		}
		for name, file := range loc.Files {
			if !file.Type.IsValid() {
				bad("location %q file %q has invalid type %q", id, name, file.Type)
			}
			switch file.Type {
			case FileItem:
				if file.Item == "" {
					bad("location %q item file %q names no item", id, name)
				}
			case FileUpgrade:
				if file.Upgrade == "" {
					bad("location %q upgrade file %q names no upgrade", id, name)
				}
			case FileScript:
				if file.Content == "" {
					bad("location %q script file %q is empty", id, name)
				}
			}
			if len(file.Grants) > 0 && !file.Cipher {
				bad("location %q file %q grants flags but is not ciphered", id, name)
			}
			for _, f := range file.Grants {
				if !KnownFlag(f) {
					bad("location %q file %q grants unknown flag %q", id, name, f)
				}
			}
		}
		for _, d := range loc.OnEnter.Discover {
			if _, ok := w.Locations[d]; !ok {
				bad("location %q on_enter discovers unknown %q", id, d)
			}
		}
		for _, f := range loc.OnEnter.Flags {
			if !KnownFlag(f) {
				bad("location %q on_enter mints unknown flag %q", id, f)
			}
		}
		for _, f := range loc.Requires.Flags {
			if !KnownFlag(f) {
				bad("location %q requires unknown flag %q", id, f)
			}
		}
		if loc.Requires.Trust < 0 || loc.Requires.Trust > 4 {
			bad("location %q trust requirement %d out of range", id, loc.Requires.Trust)
		}
	}

	seenRegion := make(map[RegionID]bool)
	owner := make(map[LocationID]RegionID)
	for _, r := range w.Regions {
		if seenRegion[r.ID] {
			bad("duplicate region %q", r.ID)
		}
		seenRegion[r.ID] = true
		if r.Name == "" {
			bad("region %q has no name", r.ID)
		}
		for _, m := range r.Members {
			if _, ok := w.Locations[m]; !ok {
				bad("region %q member %q does not exist", r.ID, m)
			}
			if prev, taken := owner[m]; taken {
				bad("location %q belongs to both %q and %q", m, prev, r.ID)
			}
			owner[m] = r.ID
		}
		for _, req := range r.Unlock.Requires {
			if _, ok := w.Region(req); !ok {
				bad("region %q requires unknown region %q", r.ID, req)
			}
		}
		for _, f := range r.Unlock.Flags {
			if !KnownFlag(f) {
				bad("region %q predicate uses unknown flag %q", r.ID, f)
			}
		}
		for _, f := range r.Unlock.FlagsAny {
			if !KnownFlag(f) {
				bad("region %q predicate uses unknown flag %q", r.ID, f)
			}
		}
		for _, n := range r.Unlock.Nodes {
			if _, ok := w.Locations[n]; !ok {
				bad("region %q predicate uses unknown node %q", r.ID, n)
			}
		}
		if r.Unlock.Story != "" && w.StepIndex(r.Unlock.Story) < 0 {
			bad("region %q predicate gates on unknown step %q", r.ID, r.Unlock.Story)
		}
	}

	seenStep := make(map[StepID]bool)
	for _, s := range w.Steps {
		if seenStep[s.ID] {
			bad("duplicate story step %q", s.ID)
		}
		seenStep[s.ID] = true
		if s.Cue == "" {
			bad("story step %q has no cue", s.ID)
		}
		if !s.Concern.IsValid() {
			bad("story step %q has invalid concern %q", s.ID, s.Concern)
		}
		for _, g := range s.Gating {
			if _, ok := w.Locations[g]; !ok {
				bad("story step %q gates on unknown location %q", s.ID, g)
			}
		}
	}

	return errors.Join(issues...)
}
