package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"toursapp/internal/auth"
	"toursapp/internal/reviews"
)

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	tourID := chi.URLParam(r, "tourId")

	result, err := s.Reviews.List(r.Context(), tourID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"results": len(result),
		"data": map[string]interface{}{
			"reviews": result,
		},
	})
}

type reviewRequest struct {
	TourID  string `json:"tour"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if user == nil {
		s.fail(w, r, unauthorized("You are not logged in! Please log in to get access."))
		return
	}

	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, badRequest("Invalid request body"))
		return
	}

	// Nested route wins over the body for the tour id.
	tourID := chi.URLParam(r, "tourId")
	if tourID == "" {
		tourID = req.TourID
	}
	if tourID == "" {
		s.fail(w, r, badRequest("A review must belong to a tour"))
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		s.fail(w, r, badRequest("Rating must be between 1 and 5"))
		return
	}
	if req.Comment == "" {
		s.fail(w, r, badRequest("A review cannot be empty"))
		return
	}

	tour, err := s.Tours.FindByID(r.Context(), tourID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if tour == nil {
		s.fail(w, r, notFound("No tour for that ID"))
		return
	}

	created, err := s.Reviews.Create(r.Context(), reviews.Review{
		TourID:  tourID,
		UserID:  user.ID,
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"review": created,
		},
	})
}

func (s *Server) handleGetReview(w http.ResponseWriter, r *http.Request) {
	rev, err := s.Reviews.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if rev == nil {
		s.fail(w, r, notFound("No review for that ID"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"review": rev,
		},
	})
}

func (s *Server) handleUpdateReview(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if user == nil {
		s.fail(w, r, unauthorized("You are not logged in! Please log in to get access."))
		return
	}

	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, badRequest("Invalid request body"))
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		s.fail(w, r, badRequest("Rating must be between 1 and 5"))
		return
	}
	if req.Comment == "" {
		s.fail(w, r, badRequest("A review cannot be empty"))
		return
	}

	id := chi.URLParam(r, "id")
	existing, err := s.Reviews.FindByID(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if existing == nil {
		s.fail(w, r, notFound("No review for that ID"))
		return
	}
	if existing.UserID != user.ID && user.Role != auth.RoleAdmin {
		s.fail(w, r, forbidden("You do not have permission to perform this action"))
		return
	}

	updated, err := s.Reviews.Update(r.Context(), id, req.Rating, req.Comment)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if updated == nil {
		s.fail(w, r, notFound("No review for that ID"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"review": updated,
		},
	})
}

func (s *Server) handleDeleteReview(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if user == nil {
		s.fail(w, r, unauthorized("You are not logged in! Please log in to get access."))
		return
	}

	id := chi.URLParam(r, "id")
	existing, err := s.Reviews.FindByID(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if existing == nil {
		s.fail(w, r, notFound("No review for that ID"))
		return
	}
	if existing.UserID != user.ID && user.Role != auth.RoleAdmin {
		s.fail(w, r, forbidden("You do not have permission to perform this action"))
		return
	}

	if _, err := s.Reviews.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
