package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/trailhead-travel/trailhead/internal/domain"
	"github.com/trailhead-travel/trailhead/internal/geo"
	"github.com/trailhead-travel/trailhead/internal/repository"
)

const maxRequestBody = 1 << 20 // 1 MiB

// defaultStatsMinRating matches the floor applied when no minRating filter is
// supplied to the difficulty stats pipeline.
const defaultStatsMinRating = 4.5

type errorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type geoPointPayload struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type tourCreateRequest struct {
	Name          string          `json:"name"`
	Duration      int             `json:"duration"`
	MaxGroupSize  int             `json:"maxGroupSize"`
	Difficulty    string          `json:"difficulty"`
	Price         float64         `json:"price"`
	Summary       string          `json:"summary"`
	Description   string          `json:"description"`
	StartLocation geoPointPayload `json:"startLocation"`
	StartDates    []time.Time     `json:"startDates"`
	Secret        bool            `json:"secret"`
}

type tourResponse struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Slug            string          `json:"slug"`
	Duration        int             `json:"duration"`
	MaxGroupSize    int             `json:"maxGroupSize"`
	Difficulty      string          `json:"difficulty"`
	RatingsAverage  float64         `json:"ratingsAverage"`
	RatingsQuantity int64           `json:"ratingsQuantity"`
	Price           float64         `json:"price"`
	Summary         string          `json:"summary,omitempty"`
	Description     string          `json:"description,omitempty"`
	StartLocation   geoPointPayload `json:"startLocation"`
	StartDates      []time.Time     `json:"startDates,omitempty"`
}

type tourListResponse struct {
	Results int            `json:"results"`
	Items   []tourResponse `json:"items"`
}

type tourDistanceResponse struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
}

type difficultyStatsResponse struct {
	Difficulty string  `json:"difficulty"`
	NumTours   int64   `json:"numTours"`
	NumRatings int64   `json:"numRatings"`
	AvgRating  float64 `json:"avgRating"`
	MinRating  float64 `json:"minRating"`
	MaxRating  float64 `json:"maxRating"`
	AvgPrice   float64 `json:"avgPrice"`
	MinPrice   float64 `json:"minPrice"`
	MaxPrice   float64 `json:"maxPrice"`
}

type monthlyPlanResponse struct {
	Month         int      `json:"month"`
	NumTourStarts int64    `json:"numTourStarts"`
	Tours         []string `json:"tours"`
}

func (s *Server) handleListTours(w http.ResponseWriter, r *http.Request) {
	filters, err := buildTourFilters(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	tours, err := s.repo.Tours.List(r.Context(), filters)
	if err != nil {
		s.respondQueryError(w, "list tours", err)
		return
	}
	s.respondJSON(w, http.StatusOK, toTourListResponse(tours))
}

func (s *Server) handleTopTours(w http.ResponseWriter, r *http.Request) {
	filters := repository.TourListFilters{
		Sort:  "-ratings_average,price",
		Limit: 5,
	}
	tours, err := s.repo.Tours.List(r.Context(), filters)
	if err != nil {
		s.respondQueryError(w, "top tours", err)
		return
	}
	s.respondJSON(w, http.StatusOK, toTourListResponse(tours))
}

func buildTourFilters(query url.Values) (repository.TourListFilters, error) {
	var filters repository.TourListFilters

	if val := strings.TrimSpace(query.Get("difficulty")); val != "" {
		if !domain.ValidDifficulty(val) {
			return filters, fmt.Errorf("invalid difficulty value")
		}
		filters.Difficulty = &val
	}
	if val := strings.TrimSpace(query.Get("minRating")); val != "" {
		minRating, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return filters, fmt.Errorf("invalid minRating value")
		}
		filters.MinRating = &minRating
	}
	if val := strings.TrimSpace(query.Get("maxPrice")); val != "" {
		maxPrice, err := strconv.ParseFloat(val, 64)
		if err != nil || maxPrice < 0 {
			return filters, fmt.Errorf("invalid maxPrice value")
		}
		filters.MaxPrice = &maxPrice
	}
	if val := strings.TrimSpace(query.Get("sort")); val != "" {
		filters.Sort = val
	}
	if val := strings.TrimSpace(query.Get("limit")); val != "" {
		limit, err := strconv.Atoi(val)
		if err != nil {
			return filters, fmt.Errorf("invalid limit value")
		}
		filters.Limit = limit
	}
	return filters, nil
}

func (s *Server) handleCreateTour(w http.ResponseWriter, r *http.Request) {
	if !s.verifyBearer(r.Header.Get("Authorization")) {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}

	var req tourCreateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required")
		return
	}
	if !domain.ValidDifficulty(req.Difficulty) {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "difficulty must be one of easy, medium, difficult")
		return
	}
	if req.Price <= 0 {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "price must be positive")
		return
	}
	if req.Duration <= 0 || req.MaxGroupSize <= 0 {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "duration and maxGroupSize must be positive")
		return
	}
	if req.StartLocation.Lat < -90 || req.StartLocation.Lat > 90 ||
		req.StartLocation.Lng < -180 || req.StartLocation.Lng > 180 {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "startLocation is out of range")
		return
	}

	tour, err := s.repo.Tours.Create(r.Context(), repository.TourCreateParams{
		Name:          strings.TrimSpace(req.Name),
		Duration:      req.Duration,
		MaxGroupSize:  req.MaxGroupSize,
		Difficulty:    req.Difficulty,
		Price:         req.Price,
		Summary:       strings.TrimSpace(req.Summary),
		Description:   strings.TrimSpace(req.Description),
		StartLocation: domain.GeoPoint{Lat: req.StartLocation.Lat, Lng: req.StartLocation.Lng},
		StartDates:    req.StartDates,
		Secret:        req.Secret,
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			s.respondError(w, http.StatusConflict, "CONFLICT", "A tour with that name already exists")
			return
		}
		s.logger.Printf("create tour error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create tour")
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/tours/%s", url.PathEscape(tour.ID)))
	s.respondJSON(w, http.StatusCreated, toTourResponse(tour))
}

// pathID extracts a uuid path parameter. A malformed id cannot name any
// resource, so it is reported as not found rather than as a store failure.
func (s *Server) pathID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	id := chi.URLParam(r, name)
	if uuid.Validate(id) != nil {
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
		return "", false
	}
	return id, true
}

func (s *Server) handleGetTour(w http.ResponseWriter, r *http.Request) {
	tourID, ok := s.pathID(w, r, "tourID")
	if !ok {
		return
	}

	tour, err := s.repo.Tours.GetByID(r.Context(), tourID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
			return
		}
		s.respondQueryError(w, "get tour", err)
		return
	}
	s.respondJSON(w, http.StatusOK, toTourResponse(tour))
}

func (s *Server) handleDifficultyStats(w http.ResponseWriter, r *http.Request) {
	minRating := defaultStatsMinRating
	if val := strings.TrimSpace(r.URL.Query().Get("minRating")); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid minRating value")
			return
		}
		minRating = parsed
	}

	stats, err := s.repo.Tours.DifficultyStats(r.Context(), minRating)
	if err != nil {
		s.respondQueryError(w, "difficulty stats", err)
		return
	}

	resp := make([]difficultyStatsResponse, 0, len(stats))
	for _, stat := range stats {
		resp = append(resp, difficultyStatsResponse(stat))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMonthlyPlan(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "year must be a 4-digit integer")
		return
	}

	plan, err := s.repo.Tours.MonthlyPlan(r.Context(), year)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidYear) {
			s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "year must be a 4-digit integer")
			return
		}
		s.respondQueryError(w, "monthly plan", err)
		return
	}

	resp := make([]monthlyPlanResponse, 0, len(plan))
	for _, entry := range plan {
		resp = append(resp, monthlyPlanResponse(entry))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleToursWithin(w http.ResponseWriter, r *http.Request) {
	center, err := geo.ParsePoint(chi.URLParam(r, "latlng"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	unit, err := geo.ParseUnit(chi.URLParam(r, "unit"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	distance, err := strconv.ParseFloat(chi.URLParam(r, "distance"), 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid distance value")
		return
	}
	angularRadius, err := geo.AngularRadius(distance, unit)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	tours, err := s.repo.Tours.WithinRadius(r.Context(), center, angularRadius)
	if err != nil {
		s.respondQueryError(w, "tours within", err)
		return
	}
	s.respondJSON(w, http.StatusOK, toTourListResponse(tours))
}

func (s *Server) handleDistances(w http.ResponseWriter, r *http.Request) {
	center, err := geo.ParsePoint(chi.URLParam(r, "latlng"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	unit, err := geo.ParseUnit(chi.URLParam(r, "unit"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	distances, err := s.repo.Tours.DistancesFrom(r.Context(), center, unit)
	if err != nil {
		s.respondQueryError(w, "tour distances", err)
		return
	}

	resp := make([]tourDistanceResponse, 0, len(distances))
	for _, d := range distances {
		resp = append(resp, tourDistanceResponse(d))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func toTourResponse(tour domain.Tour) tourResponse {
	return tourResponse{
		ID:              tour.ID,
		Name:            tour.Name,
		Slug:            tour.Slug,
		Duration:        tour.Duration,
		MaxGroupSize:    tour.MaxGroupSize,
		Difficulty:      tour.Difficulty,
		RatingsAverage:  tour.RatingsAverage,
		RatingsQuantity: tour.RatingsQuantity,
		Price:           tour.Price,
		Summary:         tour.Summary,
		Description:     tour.Description,
		StartLocation:   geoPointPayload{Lat: tour.StartLocation.Lat, Lng: tour.StartLocation.Lng},
		StartDates:      tour.StartDates,
	}
}

func toTourListResponse(tours []domain.Tour) tourListResponse {
	items := make([]tourResponse, 0, len(tours))
	for _, tour := range tours {
		items = append(items, toTourResponse(tour))
	}
	return tourListResponse{Results: len(items), Items: items}
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Printf("failed to encode response: %v", err)
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// respondQueryError distinguishes a transient store failure (retryable 503)
// from "no data found"; a failed query is never passed off as an empty result.
func (s *Server) respondQueryError(w http.ResponseWriter, op string, err error) {
	s.logger.Printf("%s error: %v", op, err)
	s.respondError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Temporary storage failure, please retry")
}

func (s *Server) respondDecodeError(w http.ResponseWriter, err error) {
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxError):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Malformed JSON payload")
	case errors.As(err, &typeError):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("Invalid value for field %s", typeError.Field))
	case errors.Is(err, io.EOF):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Request body cannot be empty")
	default:
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unable to parse request body")
	}
}

func (s *Server) verifyBearer(header string) bool {
	if header == "" {
		return false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token == s.cfg.AuthToken
}
