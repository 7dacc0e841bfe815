// Package broadcast turns a successful mutation's diff into a WorldUpdate
// and fans it out to every subscriber of the owning experience (shared
// model) or player (isolated model). The in-memory broadcaster is the
// default so the reference filesystem deployment needs no external
// broker; the NATS broadcaster covers multi-process deployments.
package broadcast

import (
	"time"

	"github.com/aeonia-ai/gaia-runtime/internal/worldstate"
)

// WorldUpdate is the payload delivered to every subscriber after a
// successful mutating command; it is also the body of the gateway's
// `world_update` server message.
type WorldUpdate struct {
	Experience   string                   `json:"experience"`
	Version      int                      `json:"version"`
	Changes      []worldstate.WorldChange `json:"changes"`
	OriginPlayer string                   `json:"origin_player,omitempty"`
	Timestamp    time.Time                `json:"timestamp"`
}

// ExperienceSubject is the broadcast subject for a shared-model experience:
// every connection subscribed to the experience receives every update.
func ExperienceSubject(experienceID string) string {
	return "experience." + experienceID + ".updates"
}

// PlayerSubject is the broadcast subject for one player's isolated world,
// so only that player's own connections receive it.
func PlayerSubject(experienceID, playerID string) string {
	return "experience." + experienceID + ".player." + playerID + ".updates"
}
