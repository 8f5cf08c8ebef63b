package memory

import (
	"errors"
	"time"
)

// Tier denotes retention priority and inclusion frequency.
type Tier string

const (
	// TierCore is the small, curated set of essential identity facts.
	// Always eligible for inclusion; no automatic demotion.
	TierCore Tier = "core"

	// TierEpisodic is a bounded list of specific past interactions.
	// Oldest items by last access demote to archival on overflow.
	TierEpisodic Tier = "episodic"

	// TierArchival is the unbounded long-term store, included only when
	// explicitly relevant to a query. Items arrive here by demotion,
	// never by direct add.
	TierArchival Tier = "archival"
)

var (
	// ErrInvalidUserID is raised when an operation is attempted without a
	// user namespace. Proceeding would risk cross-user data leakage, so
	// this is surfaced instead of defaulting to a shared namespace.
	ErrInvalidUserID = errors.New("memory: user id is required")

	// ErrInvalidTier is raised for adds targeting archival (demotion-only)
	// or an unknown tier.
	ErrInvalidTier = errors.New("memory: items can only be added to core or episodic")

	// ErrCoreFull is raised when the curated core set is at capacity.
	ErrCoreFull = errors.New("memory: core tier is full")

	// ErrNotFound is raised when a memory id does not exist for the user.
	ErrNotFound = errors.New("memory: item not found")
)

// Item is one durable memory used for prompt grounding.
type Item struct {
	ID           string
	Content      string
	CreatedAt    time.Time
	LastAccessed time.Time
}

// Result groups the items selected for one retrieval, per tier.
type Result struct {
	Core     []Item
	Episodic []Item
	Archival []Item
}

// Empty reports whether nothing was selected.
func (r Result) Empty() bool {
	return len(r.Core) == 0 && len(r.Episodic) == 0 && len(r.Archival) == 0
}

// Caps bounds tier sizes and per-retrieval selection counts.
type Caps struct {
	// Core is the storage cap for the curated core set.
	Core int `yaml:"core"`
	// Episodic is the storage cap before FIFO demotion to archival.
	Episodic int `yaml:"episodic"`

	// RetrieveCore/RetrieveEpisodic/RetrieveArchival bound how many items
	// each tier contributes to one retrieval. Core >= episodic >= archival.
	RetrieveCore     int `yaml:"retrieve_core"`
	RetrieveEpisodic int `yaml:"retrieve_episodic"`
	RetrieveArchival int `yaml:"retrieve_archival"`
}

// Floors are per-tier minimum relevance scores. Below the floor a tier
// returns nothing even if its retrieval cap is unmet. Archival is strictest.
type Floors struct {
	Core     float64 `yaml:"core"`
	Episodic float64 `yaml:"episodic"`
	Archival float64 `yaml:"archival"`
}

// DefaultCaps are the shipped tier bounds.
var DefaultCaps = Caps{
	Core:             7,
	Episodic:         100,
	RetrieveCore:     3,
	RetrieveEpisodic: 2,
	RetrieveArchival: 1,
}

// DefaultFloors are the shipped per-tier score floors.
var DefaultFloors = Floors{
	Core:     0.1,
	Episodic: 0.2,
	Archival: 0.35,
}
