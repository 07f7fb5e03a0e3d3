package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"toursapp/internal/tours"
)

func (s *Server) handleListTours(w http.ResponseWriter, r *http.Request) {
	q, err := tours.ParseListQuery(r.URL.Query())
	if err != nil {
		s.fail(w, r, badRequest(err.Error()))
		return
	}
	s.listTours(w, r, q)
}

// handleTopFiveTours is the preset "best value" listing: top ratings
// first, cheapest first within a rating.
func (s *Server) handleTopFiveTours(w http.ResponseWriter, r *http.Request) {
	q := tours.ListQuery{
		Page:  1,
		Limit: 5,
		Sort: []tours.SortKey{
			{Column: "rating_average", Desc: true},
			{Column: "price"},
		},
		Fields: []string{"name", "price", "ratingAverage", "summary", "country"},
	}
	s.listTours(w, r, q)
}

func (s *Server) listTours(w http.ResponseWriter, r *http.Request, q tours.ListQuery) {
	result, err := s.Tours.List(r.Context(), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	payload := make([]interface{}, 0, len(result))
	for _, t := range result {
		payload = append(payload, tourView(t, q.Fields))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"results": len(payload),
		"data": map[string]interface{}{
			"tours": payload,
		},
	})
}

type tourRequest struct {
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Country     string  `json:"country"`
	Summary     string  `json:"summary"`
	Description string  `json:"description"`
	Duration    int     `json:"duration"`
	StartPoint  string  `json:"startPoint"`
	ImageCover  string  `json:"imageCover"`
	NumAdults   int     `json:"numOfAdults"`
	NumChildren int     `json:"numOfChildren"`
}

func (req *tourRequest) validate() error {
	switch {
	case req.Name == "":
		return errors.New("a tour must have a name")
	case len(req.Name) > 40:
		return errors.New("a tour name must have less than 40 characters")
	case req.Price <= 0:
		return errors.New("a tour must have a price")
	case req.Country == "":
		return errors.New("a tour must have a country")
	case req.Summary == "":
		return errors.New("a tour must have a summary")
	case req.Duration <= 0:
		return errors.New("a tour must have a duration")
	case req.StartPoint == "":
		return errors.New("a tour must have a start point")
	}
	return nil
}

func (s *Server) handleCreateTour(w http.ResponseWriter, r *http.Request) {
	var req tourRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, badRequest("Invalid request body"))
		return
	}
	if err := req.validate(); err != nil {
		s.fail(w, r, badRequest(err.Error()))
		return
	}

	numAdults := req.NumAdults
	if numAdults == 0 {
		numAdults = 2
	}

	created, err := s.Tours.Create(r.Context(), tours.Tour{
		Name:          req.Name,
		Price:         req.Price,
		Country:       req.Country,
		Summary:       req.Summary,
		Description:   req.Description,
		Duration:      req.Duration,
		StartPoint:    req.StartPoint,
		ImageCover:    req.ImageCover,
		NumAdults:     numAdults,
		NumChildren:   req.NumChildren,
		RatingAverage: 4.5,
	})
	if err != nil {
		if errors.Is(err, tours.ErrDuplicateName) {
			s.fail(w, r, conflict("A tour with this name already exists"))
			return
		}
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"tour": created,
		},
	})
}

func (s *Server) handleGetTour(w http.ResponseWriter, r *http.Request) {
	tour, err := s.Tours.FindByID(r.Context(), chi.URLParam(r, "tourId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if tour == nil {
		s.fail(w, r, notFound("No tour for that ID"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"tour": tour,
		},
	})
}

func (s *Server) handleUpdateTour(w http.ResponseWriter, r *http.Request) {
	var req tourRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, badRequest("Invalid request body"))
		return
	}
	if err := req.validate(); err != nil {
		s.fail(w, r, badRequest(err.Error()))
		return
	}

	updated, err := s.Tours.Update(r.Context(), tours.Tour{
		ID:          chi.URLParam(r, "tourId"),
		Name:        req.Name,
		Price:       req.Price,
		Country:     req.Country,
		Summary:     req.Summary,
		Description: req.Description,
		Duration:    req.Duration,
		StartPoint:  req.StartPoint,
		ImageCover:  req.ImageCover,
		NumAdults:   req.NumAdults,
		NumChildren: req.NumChildren,
	})
	if err != nil {
		if errors.Is(err, tours.ErrDuplicateName) {
			s.fail(w, r, conflict("A tour with this name already exists"))
			return
		}
		s.fail(w, r, err)
		return
	}
	if updated == nil {
		s.fail(w, r, notFound("No tour for that ID"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"tour": updated,
		},
	})
}

func (s *Server) handleDeleteTour(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.Tours.Delete(r.Context(), chi.URLParam(r, "tourId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !deleted {
		s.fail(w, r, notFound("No tour for that ID"))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// tourView applies a sparse fieldset when one was requested.
func tourView(t tours.Tour, fields []string) interface{} {
	if len(fields) == 0 {
		return t
	}
	m := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		switch f {
		case "name":
			m["name"] = t.Name
		case "price":
			m["price"] = t.Price
		case "country":
			m["country"] = t.Country
		case "summary":
			m["summary"] = t.Summary
		case "description":
			m["description"] = t.Description
		case "duration":
			m["duration"] = t.Duration
		case "startPoint":
			m["startPoint"] = t.StartPoint
		case "numOfAdults":
			m["numOfAdults"] = t.NumAdults
		case "numOfChildren":
			m["numOfChildren"] = t.NumChildren
		case "ratingAverage":
			m["ratingAverage"] = t.RatingAverage
		case "ratingQuantity":
			m["ratingQuantity"] = t.RatingQuantity
		}
	}
	return m
}
