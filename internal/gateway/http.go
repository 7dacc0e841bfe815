package gateway

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aeonia-ai/gaia-runtime/internal/apperr"
	"github.com/aeonia-ai/gaia-runtime/internal/history"
)

// interactRequest is the non-streaming HTTP alternative's request body:
// POST /experience/interact {message, experience?, force_experience_selection?}.
type interactRequest struct {
	Message                  string `json:"message" binding:"required"`
	Experience                string `json:"experience,omitempty"`
	ForceExperienceSelection bool   `json:"force_experience_selection,omitempty"`
}

// interactResponse is the endpoint's {success, narrative, experience,
// state_updates?, available_actions, metadata} reply shape.
type interactResponse struct {
	Success          bool           `json:"success"`
	Narrative        string         `json:"narrative"`
	Experience       string         `json:"experience"`
	StateUpdates     any            `json:"state_updates,omitempty"`
	AvailableActions []string       `json:"available_actions"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// RegisterRoutes mounts the gateway's HTTP surface (the WebSocket upgrade
// route and the non-streaming interact endpoint) on a gin engine.
func (g *Gateway) RegisterRoutes(router gin.IRouter) {
	router.GET("/ws", func(c *gin.Context) {
		g.ServeWS(c.Writer, c.Request)
	})
	router.POST("/experience/interact", g.handleInteract)
}

func (g *Gateway) handleInteract(c *gin.Context) {
	identity, err := g.verifier.Verify(c.Request.Context(), bearerToken(c.Request))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
		return
	}

	var req interactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	experienceID := req.Experience
	if experienceID == "" && !req.ForceExperienceSelection {
		current, err := g.manager.GetCurrentExperience(identity.PlayerID)
		if err == nil {
			experienceID = current
		}
	}
	if experienceID == "" {
		respondError(c, apperr.New(apperr.NotInitialized, "no experience selected; pass experience or force_experience_selection"))
		return
	}
	if _, err := g.manager.EnsurePlayerInitialized(experienceID, identity.PlayerID); err != nil {
		respondError(c, err)
		return
	}
	if _, err := g.manager.SetCurrentExperience(identity.PlayerID, experienceID); err != nil {
		respondError(c, err)
		return
	}

	action, payload := parseMessage(req.Message)
	hist := history.New(maxHistorySize)
	hist.AddPlayerAction(req.Message)

	result, err := g.dispatcher.Dispatch(c.Request.Context(), experienceID, identity.PlayerID, identity.Admin, action, payload, req.Message, hist)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, interactResponse{
		Success:          result.Success,
		Narrative:        result.Message,
		Experience:       experienceID,
		StateUpdates:     result.Changes,
		AvailableActions: result.AvailableActions,
		Metadata:         result.Metadata,
	})
}

func respondError(c *gin.Context, err error) {
	status := http.StatusUnprocessableEntity
	switch apperr.KindOf(err) {
	case apperr.NotFound, apperr.NpcNotFound, apperr.UnknownDestination:
		status = http.StatusNotFound
	case apperr.PermissionDenied:
		status = http.StatusForbidden
	case apperr.MalformedInput, apperr.UnknownCommand, apperr.ConfigInvalid:
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"success": false, "error": err.Error(), "kind": string(apperr.KindOf(err))})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	return strings.TrimPrefix(auth, "Bearer ")
}

// parseMessage splits a free-text chat message into a verb (the reserved
// structured action name, if it matches one, or the command invocation
// token otherwise) and a generic argument payload. Every fast-path handler
// that takes one positional argument reads it under a different key
// (destination, instance_id, object_id, ...); populating all of them from
// the same trailing text lets a plain-text client drive any handler
// without knowing its individual schema.
func parseMessage(message string) (string, map[string]any) {
	fields := strings.Fields(message)
	if len(fields) == 0 {
		return "", nil
	}
	action := strings.ToLower(fields[0])
	rest := strings.TrimSpace(strings.TrimPrefix(message, fields[0]))
	if rest == "" {
		return action, nil
	}
	return action, map[string]any{
		"destination":    rest,
		"instance_id":    rest,
		"target_npc_id":  rest,
		"object_id":      rest,
		"text":           rest,
	}
}
