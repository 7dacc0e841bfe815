package fastpath

import (
	"context"

	"github.com/aeonia-ai/gaia-runtime/internal/apperr"
	"github.com/aeonia-ai/gaia-runtime/internal/worldstate"
)

// AdminResetHandler implements @reset experience [CONFIRM]. Without
// CONFIRM it returns the ConfirmationRequired preview produced by
// worldstate.Manager.ResetExperience; CONFIRM performs the reset.
type AdminResetHandler struct{}

func (h *AdminResetHandler) Name() string { return "@reset" }

func (h *AdminResetHandler) Execute(ctx context.Context, mgr *worldstate.Manager, req Request) (*Result, error) {
	if !req.Admin {
		return nil, apperr.New(apperr.PermissionDenied, "@reset requires an admin session")
	}
	confirmed := optionalStringArg(req.Args, "confirm") == "CONFIRM"

	summary, err := mgr.ResetExperience(req.ExperienceID, !confirmed)
	if err != nil {
		return nil, err
	}

	// A world-scoped marker so a confirmed reset broadcasts like every
	// other mutating admin action: subscribers get one WorldUpdate
	// announcing the restored state rather than silence.
	var changes []worldstate.WorldChange
	version := 0
	if summary.Performed {
		version = summary.CurrentVersion + 1
		changes = []worldstate.WorldChange{{
			Path:      "",
			Operation: worldstate.OpSet,
			Value: map[string]any{
				"reset":             true,
				"player_view_count": summary.PlayerViewCount,
				"backup_path":       summary.BackupPath,
			},
		}}
	}

	return &Result{
		Success: true,
		Message: "Experience reset.",
		Metadata: map[string]any{
			"player_view_count": summary.PlayerViewCount,
			"current_version":   summary.CurrentVersion,
			"backup_path":       summary.BackupPath,
		},
		Changes: changes,
		Version: version,
	}, nil
}
