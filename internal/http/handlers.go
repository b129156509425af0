package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	st, _, err := s.storeFor(r)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "resolve store", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	category := strings.TrimSpace(r.URL.Query().Get("category"))
	if category != "" && category != store.FilterAll && !core.IsCategory(category) {
		writeError(w, http.StatusBadRequest, "unknown category")
		return
	}

	writeJSON(w, http.StatusOK, st.List(category))
}

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	st, ownerID, err := s.storeFor(r)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "resolve store", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var candidate store.Candidate
	if err := json.NewDecoder(r.Body).Decode(&candidate); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	added, err := st.Add(r.Context(), candidate)
	if err != nil {
		var verr *store.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		s.logger.ErrorContext(r.Context(), "add transaction", "error", err, "owner_id", ownerID)
		writeError(w, http.StatusInternalServerError, "could not save transaction")
		return
	}

	s.stats.bump(ownerID)
	writeJSON(w, http.StatusCreated, added)
}

func (s *Server) handleRemoveTransaction(w http.ResponseWriter, r *http.Request) {
	st, ownerID, err := s.storeFor(r)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "resolve store", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	if err := st.Remove(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "transaction not found")
			return
		}
		s.logger.ErrorContext(r.Context(), "remove transaction", "error", err, "id", id, "owner_id", ownerID)
		writeError(w, http.StatusInternalServerError, "could not remove transaction")
		return
	}

	s.stats.bump(ownerID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, ownerID, err := s.storeFor(r)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "resolve store", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// The generation is read before the list snapshot: if a mutation
	// lands in between, this aggregate is cached under the old key and
	// the next read recomputes.
	today := core.Today()
	gen := s.stats.generation(ownerID)
	if cached, ok := s.stats.get(ownerID, gen, today); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	stats := core.Aggregate(st.List(store.FilterAll), today)
	s.stats.set(ownerID, gen, today, stats)
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, core.Rules())
}

type saveStatusResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleSaveStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, saveStatusResponse{Status: s.local.Status().String()})
}
