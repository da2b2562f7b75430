package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"cybersensei-service/internal/app"
	"cybersensei-service/internal/domain"
)

// API wires the core services to the JSON surface.
type API struct {
	profiles    *app.ProfileService
	progression *app.ProgressionService
	attempts    *app.AttemptService
	stats       *app.StatsService
	friends     *app.FriendService
	board       *app.Scoreboard
	verifier    *TokenVerifier
}

func NewAPI(
	profiles *app.ProfileService,
	progression *app.ProgressionService,
	attempts *app.AttemptService,
	stats *app.StatsService,
	friends *app.FriendService,
	board *app.Scoreboard,
	verifier *TokenVerifier,
) *API {
	return &API{
		profiles:    profiles,
		progression: progression,
		attempts:    attempts,
		stats:       stats,
		friends:     friends,
		board:       board,
		verifier:    verifier,
	}
}

// Router builds the HTTP mux. Everything under /api and /ws requires a
// verified identity.
func (a *API) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	authed := http.NewServeMux()
	authed.HandleFunc("POST /api/profile", a.handleEnsureProfile)
	authed.HandleFunc("GET /api/overview", a.handleOverview)
	authed.HandleFunc("POST /api/missions/{id}/attempts", a.handleStartAttempt)
	authed.HandleFunc("POST /api/attempts/{id}/answer", a.handleSubmitAnswer)
	authed.HandleFunc("GET /api/attempts", a.handleListAttempts)
	authed.HandleFunc("GET /api/missions/{id}/next", a.handleNextMission)
	authed.HandleFunc("GET /api/stats", a.handleStats)
	authed.HandleFunc("GET /api/badges", a.handleBadges)
	authed.HandleFunc("GET /api/friends", a.handleRelations)
	authed.HandleFunc("POST /api/friends/requests", a.handleSendRequest)
	authed.HandleFunc("POST /api/friends/requests/{requesterId}/respond", a.handleRespond)
	authed.HandleFunc("DELETE /api/friends/{otherId}", a.handleRemoveFriend)
	authed.HandleFunc("GET /api/friends/search", a.handleSearch)
	authed.HandleFunc("GET /api/leaderboard", a.handleLeaderboard)
	authed.HandleFunc("GET /ws/leaderboard", NewWSHandler(a.board).ServeBoard)

	mux.Handle("/api/", a.verifier.Middleware(authed))
	mux.Handle("/ws/", a.verifier.Middleware(authed))
	return mux
}

func (a *API) handleEnsureProfile(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Username == "" {
		http.Error(w, "missing username", http.StatusBadRequest)
		return
	}
	userID := currentUser(r.Context())
	if err := a.profiles.Ensure(r.Context(), userID, body.Username); err != nil {
		writeError(w, err)
		return
	}
	profile, err := a.profiles.Get(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (a *API) handleOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := a.progression.Overview(r.Context(), currentUser(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (a *API) handleStartAttempt(w http.ResponseWriter, r *http.Request) {
	attempt, err := a.attempts.Start(r.Context(), currentUser(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, attempt)
}

func (a *API) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ChoiceID string `json:"choiceId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ChoiceID == "" {
		http.Error(w, "missing choiceId", http.StatusBadRequest)
		return
	}
	result, err := a.attempts.SubmitAnswer(r.Context(), currentUser(r.Context()), r.PathValue("id"), body.ChoiceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleListAttempts(w http.ResponseWriter, r *http.Request) {
	filter := app.AttemptFilter{MissionID: r.URL.Query().Get("missionId")}
	if raw := r.URL.Query().Get("level"); raw != "" {
		level, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid level", http.StatusBadRequest)
			return
		}
		filter.Level = level
	}
	attempts, err := a.attempts.List(r.Context(), currentUser(r.Context()), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempts)
}

func (a *API) handleNextMission(w http.ResponseWriter, r *http.Request) {
	mission, err := a.progression.NextMission(r.Context(), currentUser(r.Context()), r.PathValue("id"))
	if errors.Is(err, domain.ErrPathComplete) {
		// Terminal success: the learner finished the available content.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mission)
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.stats.Aggregate(r.Context(), currentUser(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleBadges(w http.ResponseWriter, r *http.Request) {
	badges, err := a.stats.Badges(r.Context(), currentUser(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, badges)
}

func (a *API) handleRelations(w http.ResponseWriter, r *http.Request) {
	relations, err := a.friends.Relations(r.Context(), currentUser(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, relations)
}

func (a *API) handleSendRequest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ReceiverID string `json:"receiverId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ReceiverID == "" {
		http.Error(w, "missing receiverId", http.StatusBadRequest)
		return
	}
	if err := a.friends.SendRequest(r.Context(), currentUser(r.Context()), body.ReceiverID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (a *API) handleRespond(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Accept bool `json:"accept"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	err := a.friends.Respond(r.Context(), r.PathValue("requesterId"), currentUser(r.Context()), body.Accept)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleRemoveFriend(w http.ResponseWriter, r *http.Request) {
	if err := a.friends.Remove(r.Context(), currentUser(r.Context()), r.PathValue("otherId")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "missing q", http.StatusBadRequest)
		return
	}
	candidates, err := a.friends.SearchCandidates(r.Context(), query, currentUser(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, candidates)
}

func (a *API) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := a.board.Top(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrMissionNotFound),
		errors.Is(err, domain.ErrAttemptNotFound),
		errors.Is(err, domain.ErrEdgeNotFound),
		errors.Is(err, domain.ErrProfileNotFound),
		errors.Is(err, domain.ErrChoiceNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrLevelLocked):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrDuplicateRequest):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
