package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"netwatch/internal/collector"
	"netwatch/internal/db"
	"netwatch/internal/history"
	"netwatch/internal/models"
	"netwatch/internal/monitor"
)

const (
	defaultInterval = 1000
	maxBodyBytes    = 1 << 16
)

type Server struct {
	mon        *monitor.Monitor
	repo       *db.Repository
	ws         http.Handler
	interfaces func() ([]models.NetworkInterface, error)
	log        *slog.Logger
}

func NewServer(mon *monitor.Monitor, repo *db.Repository, ws http.Handler, logger *slog.Logger) *Server {
	return &Server{
		mon:        mon,
		repo:       repo,
		ws:         ws,
		interfaces: collector.ListInterfaces,
		log:        logger,
	}
}

func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.Use(metricsMiddleware)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/network/interfaces", s.handleInterfaces).Methods(http.MethodGet)
	api.HandleFunc("/network/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/network/stats/history", s.handleStatsHistory).Methods(http.MethodGet)
	api.HandleFunc("/network/speed/history", s.handleSpeedHistory).Methods(http.MethodGet)

	api.HandleFunc("/alert/thresholds", s.handleSetThreshold).Methods(http.MethodPost)
	api.HandleFunc("/alert/thresholds", s.handleThresholds).Methods(http.MethodGet)
	api.HandleFunc("/alert/thresholds/{interface}", s.handleThreshold).Methods(http.MethodGet)
	api.HandleFunc("/alert/thresholds/{interface}", s.handleRemoveThreshold).Methods(http.MethodDelete)
	api.HandleFunc("/alert/alerts", s.handleAlerts).Methods(http.MethodGet)
	api.HandleFunc("/alert/journal", s.handleJournal).Methods(http.MethodGet)
	api.HandleFunc("/alert/notifications", s.handleNotifications).Methods(http.MethodGet)

	api.HandleFunc("/monitor/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/monitor/start", s.handleStart).Methods(http.MethodPost)
	api.HandleFunc("/monitor/stop", s.handleStop).Methods(http.MethodPost)

	if s.ws != nil {
		r.Handle("/ws", s.ws).Methods(http.MethodGet)
	}
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReadyz).Methods(http.MethodGet)
	return logMiddleware(r, s.log)
}

func (s *Server) handleInterfaces(w http.ResponseWriter, r *http.Request) {
	ifaces, err := s.interfaces()
	if err != nil {
		s.log.Error("list interfaces", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list network interfaces")
		return
	}
	writeJSON(w, ifaces)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, _, ok := s.mon.Latest()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no samples yet")
		return
	}
	writeJSON(w, stats)
}

func (s *Server) handleStatsHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	d, err := parseDuration(q.Get("duration"))
	if err != nil {
		s.fail(w, err)
		return
	}
	stats, err := s.mon.StatsHistory(q.Get("interface"), d)
	if err != nil {
		s.fail(w, err)
		return
	}
	if v := strings.TrimSpace(q.Get("step")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.fail(w, &models.ValidationError{Field: "step", Reason: "must be a positive integer"})
			return
		}
		writeJSON(w, history.Step(stats, n))
		return
	}
	writeJSON(w, stats)
}

func (s *Server) handleSpeedHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	d, err := parseDuration(q.Get("duration"))
	if err != nil {
		s.fail(w, err)
		return
	}
	speeds, err := s.mon.SpeedHistory(q.Get("interface"), d)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, speeds)
}

// thresholdRequest treats a missing "enabled" as true.
type thresholdRequest struct {
	Interface        string  `json:"interface"`
	RxSpeedThreshold float64 `json:"rx_speed_threshold"`
	TxSpeedThreshold float64 `json:"tx_speed_threshold"`
	Enabled          *bool   `json:"enabled"`
}

func (s *Server) handleSetThreshold(w http.ResponseWriter, r *http.Request) {
	var req thresholdRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, err)
		return
	}
	t := models.AlertThreshold{
		Interface:        req.Interface,
		RxSpeedThreshold: req.RxSpeedThreshold,
		TxSpeedThreshold: req.TxSpeedThreshold,
		Enabled:          req.Enabled == nil || *req.Enabled,
	}
	if err := s.mon.SetThreshold(t); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "message": "threshold saved"})
}

func (s *Server) handleThresholds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.mon.Thresholds())
}

func (s *Server) handleThreshold(w http.ResponseWriter, r *http.Request) {
	t, ok := s.mon.Threshold(mux.Vars(r)["interface"])
	if !ok {
		writeError(w, http.StatusNotFound, "threshold not found")
		return
	}
	writeJSON(w, t)
}

func (s *Server) handleRemoveThreshold(w http.ResponseWriter, r *http.Request) {
	if err := s.mon.RemoveThreshold(mux.Vars(r)["interface"]); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "message": "threshold removed"})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.mon.Alerts(r.URL.Query().Get("resolved") == "true"))
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.repo.RecentAlertEvents(r.Context(), limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, entries)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := s.repo.RecentNotificationEvents(r.Context(), limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, events)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.mon.Status())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Interval *int64 `json:"interval"`
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.fail(w, &models.ValidationError{Field: "body", Reason: err.Error()})
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			s.fail(w, &models.ValidationError{Field: "body", Reason: err.Error()})
			return
		}
	}
	ms := int64(defaultInterval)
	if req.Interval != nil {
		ms = *req.Interval
	}
	interval, err := models.MillisToDuration(ms)
	if err != nil {
		s.fail(w, err)
		return
	}
	if err := s.mon.Start(interval); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, s.mon.Status())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.mon.Stop()
	writeJSON(w, s.mon.Status())
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		http.Error(w, "journal not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// fail maps validation errors to 400 and everything else to 500.
func (s *Server) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, models.ErrValidation) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.log.Error("request failed", "err", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return &models.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// parseDuration accepts plain seconds ("300") or a Go duration ("5m").
// Empty means the default window.
func parseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return history.DefaultDuration, nil
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		switch {
		case math.IsNaN(secs) || math.IsInf(secs, 0):
			return 0, &models.ValidationError{Field: "duration", Reason: "must be a finite number"}
		case secs < 0:
			return 0, &models.ValidationError{Field: "duration", Reason: "must not be negative"}
		case secs >= float64(math.MaxInt64)/float64(time.Second):
			return time.Duration(math.MaxInt64), nil
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, &models.ValidationError{Field: "duration", Reason: "expected seconds or a duration like 5m"}
	}
	if d < 0 {
		return 0, &models.ValidationError{Field: "duration", Reason: "must not be negative"}
	}
	return d, nil
}
