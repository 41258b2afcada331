package models

import "fmt"

// OutputClass represents one detection label.
type OutputClass struct {
	// The integer index returned by the model.
	Index int `json:"index" yaml:"index"`
	// The human-readable label.
	Name string `json:"name" yaml:"name"`
}

// OutputClassSet ties a style to its full, ordered list of labels.
//
// The order must match the label order the model was trained with. A mismatch is not detectable
// at runtime and silently mislabels every detection.
type OutputClassSet struct {
	// Class set identifier.
	Style ModelFamily
	// Classes that are supported and mappable.
	Classes []OutputClass
	// nameToIdx for fast lookup by name
	nameToIdx map[string]int
}

// NewOutputClassSet builds a class set from names in index order.
//
// Arguments:
//   - style: The class set identifier.
//   - names: Label names, the i-th name belongs to class index i.
//
// Returns:
//   - *OutputClassSet: The class set with its name index built.
func NewOutputClassSet(style ModelFamily, names ...string) *OutputClassSet {
	set := &OutputClassSet{Style: style, Classes: make([]OutputClass, len(names))}
	for i, name := range names {
		set.Classes[i] = OutputClass{Index: i, Name: name}
	}
	set.BuildNameIndexMap()
	return set
}

// BuildNameIndexMap builds or rebuilds the name->index map.
func (s *OutputClassSet) BuildNameIndexMap() {
	s.nameToIdx = make(map[string]int, len(s.Classes))
	for _, c := range s.Classes {
		s.nameToIdx[c.Name] = c.Index
	}
}

// Len returns the number of classes in the set.
func (s *OutputClassSet) Len() int {
	return len(s.Classes)
}

// Name returns the label for a class index.
//
// Arguments:
//   - idx: The class index reported by the model.
//
// Returns:
//   - string: The label.
//   - error: An error if idx is out of range.
func (s *OutputClassSet) Name(idx int) (string, error) {
	if idx < 0 || idx >= len(s.Classes) {
		return "", fmt.Errorf("index %d out of range for style %q", idx, s.Style)
	}
	return s.Classes[idx].Name, nil
}

// Index returns the class index for a label.
//
// Arguments:
//   - name: The label to look up.
//
// Returns:
//   - int: The class index, -1 when not found.
//   - error: An error if the label is not part of the set.
func (s *OutputClassSet) Index(name string) (int, error) {
	if s.nameToIdx == nil {
		s.BuildNameIndexMap()
	}
	idx, ok := s.nameToIdx[name]
	if !ok {
		return -1, fmt.Errorf("name %q not found in style %q", name, s.Style)
	}
	return idx, nil
}

// Names returns the labels in index order.
func (s *OutputClassSet) Names() []string {
	names := make([]string, len(s.Classes))
	for i, c := range s.Classes {
		names[i] = c.Name
	}
	return names
}

// ClassManager holds all registered class sets.
type ClassManager struct {
	sets map[ModelFamily]*OutputClassSet
}

// NewClassManager initializes and registers the given sets.
func NewClassManager(allSets ...*OutputClassSet) *ClassManager {
	mgr := &ClassManager{sets: make(map[ModelFamily]*OutputClassSet)}
	for _, set := range allSets {
		set.BuildNameIndexMap()
		mgr.sets[set.Style] = set
	}
	return mgr
}

// Get returns the class set registered for a style.
func (m *ClassManager) Get(style ModelFamily) (*OutputClassSet, error) {
	set, ok := m.sets[style]
	if !ok {
		return nil, fmt.Errorf("style %q not registered", style)
	}
	return set, nil
}

// GetName returns the class name for a given style and index.
func (m *ClassManager) GetName(style ModelFamily, idx int) (string, error) {
	set, err := m.Get(style)
	if err != nil {
		return "", err
	}
	return set.Name(idx)
}

// GetIndex returns the class index for a given style and name.
func (m *ClassManager) GetIndex(style ModelFamily, name string) (int, error) {
	set, err := m.Get(style)
	if err != nil {
		return -1, err
	}
	return set.Index(name)
}

// MahjongTiles is the tile catalog in the label order of the shipped detection model: the
// numbered suits interleaved by rank (man, pin, sou), then the honour tiles alphabetically.
var MahjongTiles = NewOutputClassSet(ModelFamilyMahjong,
	"1m", "1p", "1s",
	"2m", "2p", "2s",
	"3m", "3p", "3s",
	"4m", "4p", "4s",
	"5m", "5p", "5s",
	"6m", "6p", "6s",
	"7m", "7p", "7s",
	"8m", "8p", "8s",
	"9m", "9p", "9s",
	"chun", "haku", "hatsu", "nan", "pe", "sha", "tou",
)

// DefaultClassManager knows every class set shipped with this module.
var DefaultClassManager = NewClassManager(MahjongTiles)
