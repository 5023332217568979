// Package world holds the static content tables DriftShell plays on: the
// location graph with its lock-stacks and files, the region partition with
// unlock predicates, the ordered story steps, and the closed flag
// vocabulary. Content is immutable after Load.
package world

// LocationID names a node in the world graph.
type LocationID string

// ItemID names an inventory item.
type ItemID string

// FlagID is an opaque fact token. See flags.go for the vocabulary.
type FlagID string

// UpgradeID names a deck upgrade.
type UpgradeID string

// RegionID names a region of the graph.
type RegionID string

// StepID names a story step.
type StepID string

// AnswerKind selects how a lock's expected answer is produced.
type AnswerKind string

const (
	// AnswerLiteral compares against the lock's value verbatim
	// (case-insensitive, trimmed).
	AnswerLiteral AnswerKind = "literal"
	// AnswerComputed resolves the lock's value as a payload key and
	// expects the handle-bound checksum of that payload.
	AnswerComputed AnswerKind = "computed"
)

// IsValid reports whether k is a known answer kind.
func (k AnswerKind) IsValid() bool {
	return k == AnswerLiteral || k == AnswerComputed
}

// Lock is one challenge in a location's ordered lock-stack.
type Lock struct {
	Prompt string     `yaml:"prompt"`
	Kind   AnswerKind `yaml:"kind"`
	Value  string     `yaml:"value"`
	Hint   string     `yaml:"hint,omitempty"`
}

// Requirements gate a breach attempt before the lock-stack is even offered.
type Requirements struct {
	Items []ItemID `yaml:"items,omitempty"`
	Flags []FlagID `yaml:"flags,omitempty"`
	Trust int      `yaml:"trust,omitempty"` // 0 means no trust gate
}

// Empty reports whether the requirements gate nothing.
func (r Requirements) Empty() bool {
	return len(r.Items) == 0 && len(r.Flags) == 0 && r.Trust == 0
}

// FileType classifies a file entry on a host.
type FileType string

const (
	FileText    FileType = "text"
	FileItem    FileType = "item"
	FileScript  FileType = "script"
	FileUpgrade FileType = "upgrade"
)

// IsValid reports whether t is a known file type.
func (t FileType) IsValid() bool {
	switch t {
	case FileText, FileItem, FileScript, FileUpgrade:
		return true
	}
	return false
}

// File is one entry in a location's file listing.
type File struct {
	Type    FileType  `yaml:"type"`
	Content string    `yaml:"content,omitempty"`
	Cipher  bool      `yaml:"cipher,omitempty"`
	Item    ItemID    `yaml:"item,omitempty"`
	Upgrade UpgradeID `yaml:"upgrade,omitempty"`
	// Grants are flags minted the first time a ciphered file is decoded.
	Grants []FlagID `yaml:"grants,omitempty"`
}

// Effects are location side effects fired when a breach completes.
type Effects struct {
	Discover []LocationID `yaml:"discover,omitempty"`
	Flags    []FlagID     `yaml:"flags,omitempty"`
	Notice   []string     `yaml:"notice,omitempty"`
}

// Location is a node in the world graph.
type Location struct {
	ID       LocationID      `yaml:"id"`
	Title    string          `yaml:"title"`
	Desc     []string        `yaml:"desc,omitempty"`
	Requires Requirements    `yaml:"requires,omitempty"`
	Locks    []Lock          `yaml:"locks,omitempty"`
	Links    []LocationID    `yaml:"links,omitempty"`
	Files    map[string]File `yaml:"files,omitempty"`
	OnEnter  Effects         `yaml:"on_enter,omitempty"`
	Anchor   bool            `yaml:"anchor,omitempty"`
	Boss     bool            `yaml:"boss,omitempty"`
}

// Predicate is a region's unlock condition. All listed pieces must hold;
// empty pieces hold trivially. FlagsAny needs at least one of its flags,
// Nodes at least one unlocked-or-discovered member.
type Predicate struct {
	Requires []RegionID   `yaml:"requires,omitempty"`
	Flags    []FlagID     `yaml:"flags,omitempty"`
	FlagsAny []FlagID     `yaml:"flags_any,omitempty"`
	Nodes    []LocationID `yaml:"nodes,omitempty"`
	Story    StepID       `yaml:"story,omitempty"`
}

// Region is a named partition of locations layered over per-location
// requirements. A location belongs to at most one region.
type Region struct {
	ID      RegionID     `yaml:"id"`
	Name    string       `yaml:"name"`
	Members []LocationID `yaml:"members"`
	Unlock  Predicate    `yaml:"unlock,omitempty"`
	Entry   []string     `yaml:"entry,omitempty"`
}

// StepConcern marks which classified event, if any, advances a story step.
type StepConcern string

const (
	ConcernNone       StepConcern = ""
	ConcernChant      StepConcern = "chant"
	ConcernCorruption StepConcern = "corruption"
	ConcernFragments  StepConcern = "fragments"
	ConcernCore       StepConcern = "core"
)

// IsValid reports whether c is a known concern.
func (c StepConcern) IsValid() bool {
	switch c {
	case ConcernNone, ConcernChant, ConcernCorruption, ConcernFragments, ConcernCore:
		return true
	}
	return false
}

// StoryStep is one beat in the fixed story order. Breaching any gating
// location while the step is current advances the story; Concern names the
// non-breach event the step reacts to instead.
type StoryStep struct {
	ID      StepID       `yaml:"id"`
	Gating  []LocationID `yaml:"gating,omitempty"`
	Cue     string       `yaml:"cue"`
	Concern StepConcern  `yaml:"concern,omitempty"`
}

// Chant is the fragment-reconstruction puzzle: ciphered fragment files
// scattered across hosts assemble into one exact phrase.
type Chant struct {
	Phrase string `yaml:"phrase"`
}

// Start seeds a fresh session.
type Start struct {
	Discovered []LocationID `yaml:"discovered"`
	Unlocked   []LocationID `yaml:"unlocked"`
	Region     RegionID     `yaml:"region"`
}

// World is the full immutable content table.
type World struct {
	Home      LocationID
	Start     Start
	Payloads  map[string]string
	Chant     Chant
	Locations map[LocationID]*Location
	Regions   []*Region
	Steps     []*StoryStep

	regionOf  map[LocationID]RegionID
	stepIndex map[StepID]int
}

// Location returns the location for id, if present.
func (w *World) Location(id LocationID) (*Location, bool) {
	loc, ok := w.Locations[id]
	return loc, ok
}

// Region returns the region for id, if present.
func (w *World) Region(id RegionID) (*Region, bool) {
	for _, r := range w.Regions {
		if r.ID == id {
			return r, true
		}
	}
	return nil, false
}

// RegionFor returns the region owning the location, if any.
func (w *World) RegionFor(id LocationID) (*Region, bool) {
	rid, ok := w.regionOf[id]
	if !ok {
		return nil, false
	}
	return w.Region(rid)
}

// StepIndex returns the position of a step in story order, or -1.
func (w *World) StepIndex(id StepID) int {
	i, ok := w.stepIndex[id]
	if !ok {
		return -1
	}
	return i
}

// Step returns the story step for id, if present.
func (w *World) Step(id StepID) (*StoryStep, bool) {
	i := w.StepIndex(id)
	if i < 0 {
		return nil, false
	}
	return w.Steps[i], true
}

// FirstStep returns the opening story step.
func (w *World) FirstStep() *StoryStep {
	if len(w.Steps) == 0 {
		return nil
	}
	return w.Steps[0]
}

// LastStep returns the final story step.
func (w *World) LastStep() *StoryStep {
	if len(w.Steps) == 0 {
		return nil
	}
	return w.Steps[len(w.Steps)-1]
}

// NextStep returns the step after id, staying on the last step at the end.
func (w *World) NextStep(id StepID) *StoryStep {
	i := w.StepIndex(id)
	if i < 0 {
		return w.FirstStep()
	}
	if i+1 < len(w.Steps) {
		return w.Steps[i+1]
	}
	return w.Steps[i]
}

// Payload resolves a computed-lock payload key.
func (w *World) Payload(key string) (string, bool) {
	text, ok := w.Payloads[key]
	return text, ok
}

// Index rebuilds the derived lookup tables. Call after constructing a
// World by hand; Load does it automatically.
func (w *World) Index() {
	w.regionOf = make(map[LocationID]RegionID)
	for _, r := range w.Regions {
		for _, m := range r.Members {
			w.regionOf[m] = r.ID
		}
	}
	w.stepIndex = make(map[StepID]int)
	for i, s := range w.Steps {
		w.stepIndex[s.ID] = i
	}
}
