package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"metabuild/internal/build"
	"metabuild/internal/items"
	"metabuild/internal/logging"
	"metabuild/internal/metacache"
	"metabuild/internal/notify"
	"metabuild/internal/opendota"
	"metabuild/internal/picker"
	"metabuild/internal/validation"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
)

const (
	defaultMetaItems    = 6
	defaultRefreshItems = 6
	maxBodyBytes        = 64 << 10
)

// RecommendRequest is the body of /recommend, /coach/ask and live frames
type RecommendRequest struct {
	HeroID       int                  `json:"hero_id" validate:"gt=0"`
	Pos          int                  `json:"pos" validate:"gte=1,lte=5"`
	Facet        string               `json:"facet" validate:"max=80"`
	TimeS        int                  `json:"time_s" validate:"gte=0"`
	CurrentItems []string             `json:"current_items" validate:"dive,min=1"`
	Allies       []string             `json:"allies" validate:"dive,min=1"`
	Enemies      []string             `json:"enemies" validate:"dive,min=1"`
	EnemyItems   []build.ItemSnapshot `json:"enemy_items"`
	AllyItems    []build.ItemSnapshot `json:"ally_items"`
	Mode         string               `json:"mode" validate:"omitempty,oneof=magic tank utility greed"`
	Question     string               `json:"question" validate:"max=500"`
}

// MatchContext converts the request into the builder's input
func (r RecommendRequest) MatchContext() build.MatchContext {
	return build.MatchContext{
		HeroID:       r.HeroID,
		Pos:          r.Pos,
		TimeS:        r.TimeS,
		Facet:        r.Facet,
		CurrentItems: r.CurrentItems,
		Allies:       r.Allies,
		Enemies:      r.Enemies,
		EnemyItems:   r.EnemyItems,
		AllyItems:    r.AllyItems,
	}
}

// mode prefers the explicit mode, then one named in the question
func (r RecommendRequest) mode() string {
	if r.Mode != "" {
		return r.Mode
	}
	return picker.ExtractMode(r.Question)
}

type metaQuery struct {
	HeroID int `json:"hero_id" validate:"gt=0"`
	Max    int `json:"max" validate:"gte=1,lte=10"`
}

// handleHealth pings the store
func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := a.store.Ping(ctx); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("[Health] Store ping failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": "Database unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleMeta returns the cached popular build for a hero
func (a *App) handleMeta(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var details []validation.Detail

	query := metaQuery{Max: defaultMetaItems}
	heroID, err := strconv.Atoi(q.Get("hero_id"))
	if err != nil {
		details = append(details, validation.Detail{Path: "hero_id", Message: "must be an integer"})
	}
	query.HeroID = heroID
	if raw := q.Get("max"); raw != "" {
		query.Max, err = strconv.Atoi(raw)
		if err != nil {
			details = append(details, validation.Detail{Path: "max", Message: "must be an integer"})
		}
	}
	if details == nil {
		if verr := validation.ValidateStruct(query); verr != nil {
			details = verr.Details
		}
	}
	if details != nil {
		writeValidationError(w, details)
		return
	}

	force, _ := strconv.ParseBool(q.Get("force"))
	meta, err := a.cache.GetHeroMeta(r.Context(), query.HeroID, query.Max, force)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// handleRecommend builds the rule-adjusted build plus the picker's choice
func (a *App) handleRecommend(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRecommend(w, r)
	if !ok {
		return
	}

	rec, err := a.builder.Recommend(r.Context(), req.MatchContext(), req.mode())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleCoachAsk answers a build question with the stat coach
func (a *App) handleCoachAsk(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRecommend(w, r)
	if !ok {
		return
	}

	_, answer, err := a.builder.Ask(r.Context(), req.MatchContext(), req.Question)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

// handleItemPurpose returns the purpose of a known item
func (a *App) handleItemPurpose(w http.ResponseWriter, r *http.Request) {
	name := items.Normalize(chi.URLParam(r, "name"))
	purpose, ok := items.Purpose(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "NotFound", "message": "no purpose known for item"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"item": name, "purpose": purpose})
}

// handleCronRefresh refreshes every hot hero and reports failures to Discord
func (a *App) handleCronRefresh(w http.ResponseWriter, r *http.Request) {
	max := defaultRefreshItems
	if raw := r.URL.Query().Get("max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 10 {
			writeValidationError(w, []validation.Detail{{Path: "max", Message: "must be an integer between 1 and 10"}})
			return
		}
		max = n
	}

	results, err := a.cache.RefreshHotHeroes(r.Context(), max)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	if failures := refreshFailures(results); len(failures) > 0 && a.notifier.Enabled() {
		if err := a.notifier.HotRefreshFailed(r.Context(), failures, len(results)); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("[Cron] Failed to send refresh failure notification")
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "results": results})
}

// handleCronPatch re-scrapes the patch page
func (a *App) handleCronPatch(w http.ResponseWriter, r *http.Request) {
	state, changed, err := a.tracker.Refresh(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "patch": state, "changed": changed})
}

func refreshFailures(results []metacache.HotRefreshResult) []notify.Failure {
	var failures []notify.Failure
	for _, res := range results {
		if res.Status != metacache.StatusOK {
			failures = append(failures, notify.Failure{HeroID: res.HeroID, Error: res.Error})
		}
	}
	return failures
}

// decodeRecommend reads and validates a request body, writing the 400 itself
func decodeRecommend(w http.ResponseWriter, r *http.Request) (RecommendRequest, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeValidationError(w, []validation.Detail{{Path: "", Message: "request body too large or unreadable"}})
		return RecommendRequest{}, false
	}

	req, details := parseRecommend(body)
	if details != nil {
		writeValidationError(w, details)
		return RecommendRequest{}, false
	}
	return req, true
}

// parseRecommend decodes and validates one recommend payload
func parseRecommend(body []byte) (RecommendRequest, []validation.Detail) {
	var req RecommendRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return req, []validation.Detail{{Path: "", Message: "invalid JSON: " + err.Error()}}
	}
	if verr := validation.ValidateStruct(req); verr != nil {
		return req, verr.Details
	}
	return req, nil
}

// writeError maps provider failures to 503 and everything else to 500
func (a *App) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, opendota.ErrUnavailable) {
		logging.Ctx(r.Context()).Warn().Err(err).Str("path", r.URL.Path).Msg("[HTTP] Provider unavailable")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "ProviderUnavailable", "message": err.Error()})
		return
	}
	logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("[HTTP] Request failed")
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "InternalServerError", "message": err.Error()})
}

func writeValidationError(w http.ResponseWriter, details []validation.Detail) {
	writeJSON(w, http.StatusBadRequest, map[string]any{"error": "ValidationError", "details": details})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn().Err(err).Msg("[HTTP] Failed to encode response")
	}
}
