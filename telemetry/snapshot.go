package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds the grasp state of every actor and graspable at one tick.
type Snapshot struct {
	Version int    `json:"version"`
	RunID   string `json:"run_id,omitempty"`
	Level   string `json:"level"`
	RNGSeed int64  `json:"rng_seed"`

	Tick int32 `json:"tick"`

	Actors     []ActorState     `json:"actors"`
	Graspables []GraspableState `json:"graspables"`

	Bookmark *Bookmark `json:"bookmark,omitempty"`
}

// ActorState holds one grasper's position and scan state.
type ActorState struct {
	ID      uint32  `json:"id"`
	Name    string  `json:"name"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Z       float64 `json:"z"`
	Heading float64 `json:"heading"`
	NetMode string  `json:"net_mode"`

	// Scan task
	State      string `json:"state"`
	Paused     bool   `json:"paused"`
	WaitReason string `json:"wait_reason,omitempty"`

	// Current grant
	Holder    string   `json:"holder,omitempty"`
	Abilities []string `json:"abilities,omitempty"`

	Lifetime *LifetimeStats `json:"lifetime,omitempty"`
}

// GraspableState holds one graspable box's placement and liveness.
type GraspableState struct {
	ID   uint32             `json:"id"`
	Name string             `json:"name"`
	Data string             `json:"data"`
	X    float64            `json:"x"`
	Y    float64            `json:"y"`
	Z    float64            `json:"z"`
	Dead bool               `json:"dead"`
	Vars map[string]float64 `json:"vars,omitempty"`
}

// SaveSnapshot writes a snapshot to disk.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	name := fmt.Sprintf("snapshot_%d", snapshot.Tick)
	if snapshot.Bookmark != nil {
		sanitized := strings.ReplaceAll(string(snapshot.Bookmark.Type), " ", "_")
		name = fmt.Sprintf("snapshot_%d_%s", snapshot.Tick, sanitized)
	}
	name += ".json"

	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snapshot.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snapshot.Version, SnapshotVersion)
	}

	return &snapshot, nil
}
