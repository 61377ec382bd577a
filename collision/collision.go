// Package collision describes the query-only collision bodies graspables expose to
// the scan backend, and the project-wide defaults applied to them.
package collision

import (
	"fmt"

	"github.com/pthm-cable/grasp/config"
)

// Channel names a collision channel or object type.
type Channel string

const (
	ChannelWorldStatic  Channel = "world_static"
	ChannelWorldDynamic Channel = "world_dynamic"
	ChannelPawn         Channel = "pawn"
)

// Response is how a body reacts to a channel.
type Response uint8

const (
	Ignore Response = iota
	Overlap
	Block
)

// Enabled selects which collision work a body takes part in.
type Enabled uint8

const (
	NoCollision Enabled = iota
	QueryOnly
	PhysicsOnly
	QueryAndPhysics
)

// Body holds the collision configuration of one shape.
type Body struct {
	Profile    string
	ObjectType Channel
	Enabled    Enabled

	defaultResponse Response
	responses       map[Channel]Response
}

// NewGraspableBody returns the body a graspable shape starts with: query only,
// world dynamic, ignoring every channel. The shape exists solely for scans.
func NewGraspableBody() Body {
	b := Body{ObjectType: ChannelWorldDynamic, Enabled: QueryOnly}
	b.SetResponseToAllChannels(Ignore)
	return b
}

// SetResponseToAllChannels resets every channel response to r.
func (b *Body) SetResponseToAllChannels(r Response) {
	b.defaultResponse = r
	b.responses = nil
}

// SetResponseToChannel overrides the response for one channel.
func (b *Body) SetResponseToChannel(c Channel, r Response) {
	if b.responses == nil {
		b.responses = make(map[Channel]Response)
	}
	b.responses[c] = r
}

// ResponseToChannel returns the response for c.
func (b *Body) ResponseToChannel(c Channel) Response {
	if r, ok := b.responses[c]; ok {
		return r
	}
	return b.defaultResponse
}

// Mode selects how defaults are applied.
type Mode uint8

const (
	ModeProfile Mode = iota
	ModeObjectType
	ModeDisabled
)

func (m Mode) String() string {
	switch m {
	case ModeProfile:
		return "profile"
	case ModeObjectType:
		return "object_type"
	default:
		return "disabled"
	}
}

// ParseMode parses a config mode name.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "profile":
		return ModeProfile, nil
	case "object_type":
		return ModeObjectType, nil
	case "disabled":
		return ModeDisabled, nil
	default:
		return ModeDisabled, fmt.Errorf("collision: unknown mode %q", s)
	}
}

// Settings are the defaults applied to every graspable body at construction.
type Settings struct {
	Mode              Mode
	Profile           string
	ObjectType        Channel
	OverlapChannel    Channel
	SetOverlapChannel bool
}

// SettingsFromConfig converts the loaded collision config.
func SettingsFromConfig(cfg config.CollisionConfig) (Settings, error) {
	mode, err := ParseMode(cfg.Mode)
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		Mode:              mode,
		Profile:           cfg.Profile,
		ObjectType:        Channel(cfg.ObjectType),
		OverlapChannel:    Channel(cfg.OverlapChannel),
		SetOverlapChannel: cfg.SetOverlapChannel,
	}, nil
}

// Apply applies the defaults to b and reports whether anything changed.
func Apply(s Settings, b *Body) bool {
	switch s.Mode {
	case ModeProfile:
		if b.Profile != s.Profile {
			b.Profile = s.Profile
			return true
		}
	case ModeObjectType:
		changed := false
		if b.ObjectType != s.ObjectType {
			b.ObjectType = s.ObjectType
			changed = true
		}
		if s.SetOverlapChannel && b.ResponseToChannel(s.OverlapChannel) != Overlap {
			b.SetResponseToChannel(s.OverlapChannel, Overlap)
			changed = true
		}
		return changed
	}
	return false
}
