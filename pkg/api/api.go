// Package api exposes health, trading state, the trade journal and metrics
// over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/igolaizola/pocketbot/pkg/control"
	"github.com/igolaizola/pocketbot/pkg/trade"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type Server struct {
	addr     string
	state    *control.State
	commands *control.Handler
	store    trade.Store
	log      zerolog.Logger
	boot     time.Time
}

func NewServer(addr string, state *control.State, commands *control.Handler, store trade.Store, log zerolog.Logger) *Server {
	return &Server{
		addr:     addr,
		state:    state,
		commands: commands,
		store:    store,
		log:      log,
		boot:     time.Now(),
	}
}

func (s *Server) Router() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/health", s.getHealth).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/state", s.getState).Methods("GET")
	api.HandleFunc("/state/{command:start|stop}", s.postState).Methods("POST")
	api.HandleFunc("/trades", s.getTrades).Methods("GET")
	return router
}

// Run serves until the context is done.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errC := make(chan error, 1)
	go func() {
		errC <- srv.ListenAndServe()
	}()
	s.log.Info().Str("addr", s.addr).Msg("api server listening")

	select {
	case err := <-errC:
		return fmt.Errorf("api: couldn't serve: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api: couldn't shutdown: %w", err)
	}
	return nil
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	s.write(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.boot).Round(time.Second).String(),
	})
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	s.write(w, http.StatusOK, map[string]bool{"active": s.state.Active()})
}

func (s *Server) postState(w http.ResponseWriter, r *http.Request) {
	cmd := "/" + mux.Vars(r)["command"]
	s.commands.OnCommand(cmd)
	s.write(w, http.StatusOK, map[string]bool{"active": s.state.Active()})
}

func (s *Server) getTrades(w http.ResponseWriter, r *http.Request) {
	since := 24 * time.Hour
	if v := r.URL.Query().Get("since"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			s.write(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid since %q", v)})
			return
		}
		since = d
	}
	now := time.Now()
	trades, err := s.store.List(now.Add(-since), now)
	if err != nil {
		s.log.Error().Err(err).Msg("couldn't list trades")
		s.write(w, http.StatusInternalServerError, map[string]string{"error": "couldn't list trades"})
		return
	}
	if trades == nil {
		trades = []*trade.Trade{}
	}
	s.write(w, http.StatusOK, map[string]interface{}{
		"trades":  trades,
		"summary": trade.Summarize(trades),
	})
}

func (s *Server) write(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("couldn't encode response")
	}
}
