// Package server exposes the operator control surface over JSON/HTTP:
// manual sweep triggers, extraction test runs, cron reconfiguration and
// price-history queries.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/cenownik/pricewatch/internal/domain/history"
	"github.com/cenownik/pricewatch/internal/notify"
	"github.com/cenownik/pricewatch/internal/repository/postgres"
	"github.com/cenownik/pricewatch/internal/sched"
	"github.com/cenownik/pricewatch/internal/scrape"
)

var supportedStores = []string{"morele.net", "x-kom.pl"}

type Control struct {
	sched    *sched.Service
	registry *scrape.Registry
	history  history.Repo
	discord  *notify.DiscordChannel
	mailer   *notify.Mailer
	log      *zap.Logger
}

func NewControl(
	s *sched.Service,
	registry *scrape.Registry,
	hist history.Repo,
	discord *notify.DiscordChannel,
	mailer *notify.Mailer,
	log *zap.Logger,
) *Control {
	return &Control{
		sched:    s,
		registry: registry,
		history:  hist,
		discord:  discord,
		mailer:   mailer,
		log:      log.With(zap.String("component", "server.control")),
	}
}

func (c *Control) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /scraper/run", c.handleRun)
	mux.HandleFunc("POST /scraper/run/{id}", c.handleRunOne)
	mux.HandleFunc("POST /scraper/test", c.handleTestExtract)
	mux.HandleFunc("GET /scraper/cron", c.handleGetCron)
	mux.HandleFunc("PUT /scraper/cron", c.handleSetCron)
	mux.HandleFunc("GET /scraper/stores", c.handleStores)
	mux.HandleFunc("GET /scraper/history/{id}", c.handleHistory)
	mux.HandleFunc("GET /scraper/target-reached", c.handleTargetReached)
	mux.HandleFunc("POST /notifications/webhook/validate", c.handleValidateWebhook)
	mux.HandleFunc("GET /notifications/email/status", c.handleEmailStatus)
	return mux
}

func (c *Control) handleRun(w http.ResponseWriter, _ *http.Request) {
	c.sched.TriggerSweep()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sweep started"})
}

func (c *Control) handleRunOne(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid offer id")
		return
	}
	if err := c.sched.ProcessOffer(r.Context(), id); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			writeError(w, http.StatusNotFound, "offer not found")
			return
		}
		c.log.Warn("process offer", zap.Int64("offer_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (c *Control) handleTestExtract(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	res, err := c.registry.Extract(r.Context(), req.URL)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (c *Control) handleGetCron(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"expression": c.sched.CronExpression()})
}

func (c *Control) handleSetCron(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Expression string `json:"expression"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	if err := c.sched.SetCronExpression(r.Context(), req.Expression); err != nil {
		var verr *sched.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		c.log.Error("set cron expression", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"expression": req.Expression})
}

func (c *Control) handleStores(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"stores": supportedStores})
}

func (c *Control) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid offer id")
		return
	}
	obs, err := c.history.List(r.Context(), history.Filter{OfferID: &id})
	if err != nil {
		c.log.Warn("query history", zap.Int64("offer_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, obs)
}

func (c *Control) handleTargetReached(w http.ResponseWriter, r *http.Request) {
	f := history.Filter{TargetReachedOnly: true}
	if raw := r.URL.Query().Get("offerId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "invalid offerId")
			return
		}
		f.OfferID = &id
	}
	obs, err := c.history.List(r.Context(), f)
	if err != nil {
		c.log.Warn("query target-reached history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, obs)
}

func (c *Control) handleValidateWebhook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	valid, message := c.discord.Validate(r.Context(), req.URL)
	writeJSON(w, http.StatusOK, map[string]any{"valid": valid, "message": message})
}

func (c *Control) handleEmailStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ready":    c.mailer.Ready(),
		"authType": c.mailer.AuthType(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// BootstrapControlServer starts the control listener in the background and
// hands the server back for graceful shutdown.
func BootstrapControlServer(addr string, h http.Handler, l *zap.Logger) *http.Server {
	srv := &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
	go func() {
		l.Info("control listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("control server error", zap.Error(err))
		}
	}()
	return srv
}
