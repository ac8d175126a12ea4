// Package api implements the /v2 HTTP surface: the write endpoints
// (/v2/vote, /v2/user, /v2/live-activity/*) that are the vote aggregator's
// and user store's only inbound path, plus thin read-only handlers wired
// straight to the registry and the derived-collection store. Routing is a
// plain *http.ServeMux using Go's method+path pattern syntax.
package api

import (
	"net/http"
	"time"

	jsoncodec "github.com/goccy/go-json"

	"github.com/hanssonlabs/puckline/internal/aggregate"
	"github.com/hanssonlabs/puckline/internal/listener"
	"github.com/hanssonlabs/puckline/internal/model"
	"github.com/hanssonlabs/puckline/internal/registry"
	"github.com/hanssonlabs/puckline/internal/store"
	"github.com/hanssonlabs/puckline/internal/telemetry"
	"github.com/hanssonlabs/puckline/internal/userstore"
	"github.com/hanssonlabs/puckline/internal/votes"
	"github.com/hanssonlabs/puckline/internal/ws"
)

const teamsCollection = "v2_teams"
const statusCollection = "v2_status"

// Server holds every dependency the v2 handlers read from or write to.
type Server struct {
	registry *registry.Registry
	st       *store.Store
	votes    *votes.Aggregator
	users    *userstore.Store
	ws       *ws.Server
	apiKey   string
}

func New(reg *registry.Registry, st *store.Store, va *votes.Aggregator, us *userstore.Store, wss *ws.Server, apiKey string) *Server {
	return &Server{registry: reg, st: st, votes: va, users: us, ws: wss, apiKey: apiKey}
}

// Routes wires every v2 endpoint onto mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v2/games/{season}", s.handleGames)
	mux.HandleFunc("GET /v2/game/{uuid}", s.handleGame)
	mux.HandleFunc("GET /v2/standings/{season}", s.handleStandings)
	mux.HandleFunc("GET /v2/playoffs/{season}", s.handlePlayoffs)
	mux.HandleFunc("GET /v2/teams", s.handleTeams)
	mux.HandleFunc("GET /v2/players/{season}/{team}", s.handlePlayers)
	mux.HandleFunc("GET /v2/player/{player_id}", s.handlePlayer)
	mux.HandleFunc("POST /v2/user", s.handleUser)
	mux.HandleFunc("POST /v2/live-activity/start", s.handleLiveActivityStart)
	mux.HandleFunc("POST /v2/live-activity/end", s.handleLiveActivityEnd)
	mux.HandleFunc("POST /v2/vote", s.handleVote)
	mux.HandleFunc("GET /v2/ws", s.ws.HandleWS)
	mux.HandleFunc("GET /v2/status", s.handleStatus)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := jsoncodec.Marshal(v)
	if err != nil {
		telemetry.Warnf("api: encode response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleGames implements GET /v2/games/{season}: current projected games.
func (s *Server) handleGames(w http.ResponseWriter, r *http.Request) {
	season := r.PathValue("season")
	writeJSON(w, http.StatusOK, s.registry.ReadSeason(season))
}

// gameDetail is the composed per-game response. Votes ride along on
// Game.Votes; Stats is the game's boxscore line-up, keyed by player, so it
// doubles as the roster view.
type gameDetail struct {
	Game   model.Game             `json:"game"`
	Events []model.Event          `json:"events"`
	Stats  []model.PlayerStatLine `json:"stats"`
}

// handleGame implements GET /v2/game/{uuid}.
func (s *Server) handleGame(w http.ResponseWriter, r *http.Request) {
	uuid := r.PathValue("uuid")
	game, ok := s.registry.ReadGame(uuid)
	if !ok {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}

	var events []model.Event
	prefix := uuid + ":"
	s.st.ReadAll(listener.EventsRawCollection, func(key string, data []byte) {
		if len(key) < len(prefix) || key[:len(prefix)] != prefix {
			return
		}
		var e model.Event
		if err := jsoncodec.Unmarshal(data, &e); err != nil {
			return
		}
		events = append(events, e)
	})

	stats, _ := aggregate.ReadGameBoxscore(s.st, uuid)

	writeJSON(w, http.StatusOK, gameDetail{Game: game, Events: events, Stats: stats})
}

// standingsResponse groups one season's standings per league.
type standingsResponse struct {
	SHL []model.StandingsRow `json:"SHL"`
	HA  []model.StandingsRow `json:"HA"`
}

func (s *Server) handleStandings(w http.ResponseWriter, r *http.Request) {
	season := r.PathValue("season")
	var resp standingsResponse
	s.st.Read("v2_standings", "SHL_"+season, &resp.SHL)
	s.st.Read("v2_standings", "HA_"+season, &resp.HA)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePlayoffs(w http.ResponseWriter, r *http.Request) {
	season := r.PathValue("season")
	var entries []model.PlayoffEntry
	if !s.st.Read("v2_playoffs", season, &entries) {
		entries = aggregate.DefaultBracketTemplate()
	}
	writeJSON(w, http.StatusOK, entries)
}

// teamRecord is one /v2/teams catalog entry.
type teamRecord struct {
	TeamCode string `json:"team_code"`
	League   string `json:"league"`
}

func (s *Server) handleTeams(w http.ResponseWriter, _ *http.Request) {
	var teams []teamRecord
	s.st.ReadAll(teamsCollection, func(key string, data []byte) {
		var t teamRecord
		if err := jsoncodec.Unmarshal(data, &t); err != nil {
			return
		}
		teams = append(teams, t)
	})
	writeJSON(w, http.StatusOK, teams)
}

func (s *Server) handlePlayers(w http.ResponseWriter, r *http.Request) {
	season, team := r.PathValue("season"), r.PathValue("team")
	var rows []model.PlayerSeasonStat
	s.st.Read("v2_api_team_players", aggregate.RosterKey(season, team), &rows)
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request) {
	playerID := r.PathValue("player_id")
	var career model.PlayerCareerStat
	if !s.st.Read("v2_api_player_career", playerID, &career) {
		writeError(w, http.StatusNotFound, "player not found")
		return
	}
	writeJSON(w, http.StatusOK, career)
}

// upsertUserRequest is POST /v2/user's body. Omitted device_token /
// muted_games / explicit_games leave the stored value unchanged.
type upsertUserRequest struct {
	UserID          string   `json:"user_id"`
	SubscribedTeams []string `json:"subscribed_teams"`
	DeviceToken     *string  `json:"device_token,omitempty"`
	MutedGames      []string `json:"muted_games,omitempty"`
	ExplicitGames   []string `json:"explicit_games,omitempty"`
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	var req upsertUserRequest
	if err := jsoncodec.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	u := s.users.AddUser(req.UserID, req.SubscribedTeams, req.DeviceToken, req.MutedGames, req.ExplicitGames)
	writeJSON(w, http.StatusOK, u)
}

type liveActivityRequest struct {
	UserID        string `json:"user_id"`
	GameUUID      string `json:"game_uuid"`
	ActivityToken string `json:"activity_token,omitempty"`
}

func (s *Server) handleLiveActivityStart(w http.ResponseWriter, r *http.Request) {
	var req liveActivityRequest
	if err := jsoncodec.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.GameUUID == "" {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	s.users.StartLiveActivity(req.UserID, req.GameUUID, req.ActivityToken)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleLiveActivityEnd(w http.ResponseWriter, r *http.Request) {
	var req liveActivityRequest
	if err := jsoncodec.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.GameUUID == "" {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	s.users.EndLiveActivity(req.UserID, req.GameUUID)
	w.WriteHeader(http.StatusOK)
}

type voteRequest struct {
	GameUUID string `json:"game_uuid"`
	UserID   string `json:"user_id"`
	TeamCode string `json:"team_code"`
}

// handleVote implements POST /v2/vote: requires X-API-Key, 400 on unknown
// game/team/wrong-status, 200 with the resulting percentages.
func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-API-Key") != s.apiKey {
		writeError(w, http.StatusUnauthorized, "invalid api key")
		return
	}

	var req voteRequest
	if err := jsoncodec.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	summary, err := s.votes.Record(model.Vote{GameUUID: req.GameUUID, UserID: req.UserID, TeamCode: req.TeamCode})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// statusBanner is what the orchestrator's poll loop persists to v2_status
// after each cycle.
type statusBanner struct {
	OK              bool      `json:"ok"`
	LastPollAt      time.Time `json:"last_poll_at"`
	ActiveListeners int       `json:"active_listeners"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var banner statusBanner
	if !s.st.Read(statusCollection, "current", &banner) {
		writeJSON(w, http.StatusOK, statusBanner{OK: false})
		return
	}
	writeJSON(w, http.StatusOK, banner)
}
