package editor

import "sync"

// MarkerSeverity is the host editor's severity scale for document markers.
// The values match the widget's marker model, not the wire protocol.
type MarkerSeverity int

const (
	MarkerSeverityHint    MarkerSeverity = 1
	MarkerSeverityInfo    MarkerSeverity = 2
	MarkerSeverityWarning MarkerSeverity = 4
	MarkerSeverityError   MarkerSeverity = 8
)

// String returns a human-readable severity name.
func (s MarkerSeverity) String() string {
	switch s {
	case MarkerSeverityHint:
		return "hint"
	case MarkerSeverityInfo:
		return "info"
	case MarkerSeverityWarning:
		return "warning"
	case MarkerSeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// MarkerTag carries extra presentation hints for a marker.
type MarkerTag string

const (
	MarkerTagUnnecessary MarkerTag = "unnecessary"
	MarkerTagDeprecated  MarkerTag = "deprecated"
)

// MarkerRelated points at another location that explains a marker.
type MarkerRelated struct {
	Location Location
	Message  string
}

// Marker is one annotation the host editor renders in a document, typically
// a squiggle in the text plus an entry in the problems gutter.
type Marker struct {
	Range    Range
	Severity MarkerSeverity
	Code     string
	Source   string
	Message  string
	Tags     []MarkerTag
	Related  []MarkerRelated
}

type markerKey struct {
	uri   string
	owner string
}

// MarkerStore is the host's diagnostics sink. Markers are keyed by
// (uri, owner) so multiple producers never clobber each other; each Set
// replaces the full marker set for its key.
type MarkerStore struct {
	mu      sync.RWMutex
	markers map[markerKey][]Marker
}

// NewMarkerStore creates an empty marker store.
func NewMarkerStore() *MarkerStore {
	return &MarkerStore{markers: make(map[markerKey][]Marker)}
}

// Set replaces all markers for (uri, owner). An empty or nil slice clears
// the entry.
func (m *MarkerStore) Set(uri, owner string, markers []Marker) {
	key := markerKey{uri: uri, owner: owner}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(markers) == 0 {
		delete(m.markers, key)
		return
	}
	cp := make([]Marker, len(markers))
	copy(cp, markers)
	m.markers[key] = cp
}

// Get returns the markers for (uri, owner), or nil.
func (m *MarkerStore) Get(uri, owner string) []Marker {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.markers[markerKey{uri: uri, owner: owner}]
}

// ForURI returns all markers for a document across owners.
func (m *MarkerStore) ForURI(uri string) []Marker {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Marker
	for key, markers := range m.markers {
		if key.uri == uri {
			out = append(out, markers...)
		}
	}
	return out
}

// ClearOwner removes every marker set produced by one owner.
func (m *MarkerStore) ClearOwner(owner string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.markers {
		if key.owner == owner {
			delete(m.markers, key)
		}
	}
}
