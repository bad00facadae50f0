package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// StatusRouter serves the counters of the running workers.
func (s *Server) StatusRouter() chi.Router {
	router := chi.NewRouter()

	router.Get("/", s.status())
	router.Get("/workers/{worker}", s.workerStatus())

	return router
}

func (s *Server) status() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		SendResponse(w, true, StatusModel{
			Build:   s.build,
			RunID:   s.RunID(),
			Totals:  s.registry.Totals(),
			Workers: s.registry.Snapshot(),
		}, "", 0)
	}
}

func (s *Server) workerStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(chi.URLParam(r, "worker"))
		if err != nil {
			SendResponse(w, false, nil, "worker must be a number", http.StatusBadRequest)
			return
		}
		for _, stats := range s.registry.Snapshot() {
			if stats.Worker == index {
				SendResponse(w, true, stats, "", 0)
				return
			}
		}
		SendResponse(w, false, nil, fmt.Sprintf("no worker %d in this process", index), http.StatusNotFound)
	}
}
