package api

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"
)

// placerResolveTimeout bounds the identity lookup on /api/placer.
const placerResolveTimeout = 5 * time.Second

// Handler methods for routerHandlers.
// These are used by both the standalone router (for testing) and the full Server.

func (h *routerHandlers) handleInitialize(w http.ResponseWriter, r *http.Request) {
	userID, loggedIn := parseUserParam(r)

	resp := map[string]interface{}{
		"loggedIn":  loggedIn,
		"banned":    false,
		"moderator": false,
		"cooldown":  0,
		"settings":  h.canvas.Settings(),
	}
	if loggedIn {
		resp["banned"] = h.roles.IsBanned(userID)
		resp["moderator"] = h.roles.IsPrivileged(userID)
		resp["cooldown"] = h.canvas.Cooldown(userID)
	}
	writeJSON(w, resp)
}

func (h *routerHandlers) handleGetCanvas(w http.ResponseWriter, r *http.Request) {
	raster := h.canvas.Export()
	RecordRasterServed(len(raster))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(raster)
}

func (h *routerHandlers) handleGetCanvasPNG(w http.ResponseWriter, r *http.Request) {
	scale := 1
	if s, err := strconv.Atoi(r.URL.Query().Get("scale")); err == nil && s > 0 && s <= 8 {
		scale = s
	}

	w.Header().Set("Content-Type", "image/png")
	if err := h.canvas.RenderPNG(w, scale); err != nil {
		writeError(w, "Render failed", http.StatusInternalServerError)
	}
}

func (h *routerHandlers) handlePlace(w http.ResponseWriter, r *http.Request) {
	var req struct {
		X     float64 `json:"x"`
		Y     float64 `json:"y"`
		Color uint32  `json:"color"`
		User  string  `json:"user"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	userID, err := strconv.ParseUint(req.User, 10, 64)
	if err != nil {
		writeError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	if h.roles.IsBanned(userID) {
		writeError(w, "Banned", http.StatusForbidden)
		return
	}

	// Fractional coordinates are a validation rejection, not a fault.
	if req.X != math.Trunc(req.X) || req.Y != math.Trunc(req.Y) {
		RecordPlacement("rejected")
		writeJSON(w, map[string]bool{"placed": false})
		return
	}

	placed, err := h.canvas.Place(int(req.X), int(req.Y), req.Color, userID, h.roles.IsPrivileged(userID))
	if err != nil {
		// System fault: the pixel was NOT placed and the client should
		// retry, distinctly from a routine rejection.
		RecordPlacement("fault")
		writeError(w, "Placement failed", http.StatusInternalServerError)
		return
	}

	if placed {
		RecordPlacement("placed")
	} else {
		RecordPlacement("rejected")
	}
	writeJSON(w, map[string]bool{"placed": placed})
}

func (h *routerHandlers) handlePlacer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if req.X != math.Trunc(req.X) || req.Y != math.Trunc(req.Y) {
		writeJSON(w, map[string]string{"username": ""})
		return
	}

	info := h.canvas.CellInfo(int(req.X), int(req.Y))
	if !info.Placed {
		writeJSON(w, map[string]string{"username": ""})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), placerResolveTimeout)
	defer cancel()

	name, err := h.resolver.Resolve(ctx, info.UserID)
	if err != nil {
		name = ""
	}
	writeJSON(w, map[string]string{"username": name})
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	snap := h.stats.Snapshot()

	resp := map[string]interface{}{
		"global": map[string]interface{}{
			"userCount":          h.connected(),
			"pixelCount":         h.canvas.HistoryLen(),
			"uniqueUserCount":    snap.UniqueUserCount,
			"colorCounts":        snap.ColorCounts,
			"topPlacers":         snap.TopPlacers,
			"topPlacersDay":      snap.TopPlacersDay,
			"userCountOverTime":  snap.UserCountOverTime,
			"pixelCountOverTime": snap.PixelCountOverTime,
		},
	}

	if userID, ok := parseUserParam(r); ok {
		resp["personal"] = map[string]interface{}{
			"pixelEvents": h.stats.PersonalHistory(userID),
		}
	}

	writeJSON(w, resp)
}

func (h *routerHandlers) handleCooldown(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserParam(r)
	if !ok {
		writeError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	writeJSON(w, map[string]int{"cooldown": h.canvas.Cooldown(userID)})
}

// parseUserParam reads the externally authenticated user ID from the
// query string. Session handling lives outside this service; callers
// pass the resolved ID through.
func parseUserParam(r *http.Request) (uint64, bool) {
	raw := r.URL.Query().Get("user")
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
