package httpserver

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/trailhead-travel/trailhead/internal/domain"
	"github.com/trailhead-travel/trailhead/internal/repository"
)

type reviewCreateRequest struct {
	Rating int    `json:"rating"`
	Review string `json:"review"`
}

type reviewUpdateRequest struct {
	Rating *int    `json:"rating"`
	Review *string `json:"review"`
}

type reviewResponse struct {
	ID        string    `json:"id"`
	TourID    string    `json:"tourId"`
	AuthorID  string    `json:"authorId"`
	Rating    int       `json:"rating"`
	Review    string    `json:"review"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (s *Server) handleListTourReviews(w http.ResponseWriter, r *http.Request) {
	tourID, ok := s.pathID(w, r, "tourID")
	if !ok {
		return
	}

	if _, err := s.repo.Tours.GetByID(r.Context(), tourID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
			return
		}
		s.respondQueryError(w, "list reviews", err)
		return
	}

	reviews, err := s.repo.Reviews.ListByTour(r.Context(), tourID)
	if err != nil {
		s.respondQueryError(w, "list reviews", err)
		return
	}

	resp := make([]reviewResponse, 0, len(reviews))
	for _, review := range reviews {
		resp = append(resp, toReviewResponse(review))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	tourID, ok := s.pathID(w, r, "tourID")
	if !ok {
		return
	}

	authorID := strings.TrimSpace(r.Header.Get("X-Author-Id"))
	if authorID == "" {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}

	var req reviewCreateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "rating must be an integer between 1 and 5")
		return
	}
	if strings.TrimSpace(req.Review) == "" {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "review can not be empty")
		return
	}

	review, err := s.repo.Reviews.Create(r.Context(), repository.ReviewCreateParams{
		TourID:   tourID,
		AuthorID: authorID,
		Rating:   req.Rating,
		Body:     strings.TrimSpace(req.Review),
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
		case errors.Is(err, repository.ErrConflict):
			s.respondError(w, http.StatusConflict, "CONFLICT", "You have already reviewed this tour")
		default:
			s.logger.Printf("create review error: %v", err)
			s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create review")
		}
		return
	}

	// The review is durable at this point; a failed recompute is already
	// logged by the aggregator and must not fail the request.
	if err := s.aggregator.OnReviewCreated(r.Context(), review); err != nil {
		s.logger.Printf("recompute after review create failed: %v", err)
	}

	s.respondJSON(w, http.StatusCreated, toReviewResponse(review))
}

func (s *Server) handleUpdateReview(w http.ResponseWriter, r *http.Request) {
	reviewID, ok := s.pathID(w, r, "reviewID")
	if !ok {
		return
	}

	var req reviewUpdateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if req.Rating != nil && (*req.Rating < 1 || *req.Rating > 5) {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "rating must be an integer between 1 and 5")
		return
	}
	if req.Review != nil && strings.TrimSpace(*req.Review) == "" {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "review can not be empty")
		return
	}

	// Two-phase capture: the tour id is read before the mutation so the
	// recompute does not depend on re-reading the mutated review.
	tourID, err := s.aggregator.OnReviewWillMutate(r.Context(), reviewID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
			return
		}
		s.respondQueryError(w, "capture review pre-image", err)
		return
	}

	review, updateErr := s.repo.Reviews.Update(r.Context(), reviewID, req.Rating, req.Review)

	// Recompute runs whether or not the mutation succeeded; a partially
	// applied mutation would otherwise leave the aggregate stale forever.
	if err := s.aggregator.RecomputeWithRetry(r.Context(), tourID); err != nil {
		s.logger.Printf("recompute after review update failed: %v", err)
	}

	if updateErr != nil {
		if errors.Is(updateErr, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
			return
		}
		s.logger.Printf("update review error: %v", updateErr)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update review")
		return
	}
	s.respondJSON(w, http.StatusOK, toReviewResponse(review))
}

func (s *Server) handleDeleteReview(w http.ResponseWriter, r *http.Request) {
	reviewID, ok := s.pathID(w, r, "reviewID")
	if !ok {
		return
	}

	tourID, err := s.aggregator.OnReviewWillMutate(r.Context(), reviewID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
			return
		}
		s.respondQueryError(w, "capture review pre-image", err)
		return
	}

	deleteErr := s.repo.Reviews.Delete(r.Context(), reviewID)

	if err := s.aggregator.RecomputeWithRetry(r.Context(), tourID); err != nil {
		s.logger.Printf("recompute after review delete failed: %v", err)
	}

	if deleteErr != nil {
		if errors.Is(deleteErr, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
			return
		}
		s.logger.Printf("delete review error: %v", deleteErr)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete review")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toReviewResponse(review domain.Review) reviewResponse {
	return reviewResponse{
		ID:        review.ID,
		TourID:    review.TourID,
		AuthorID:  review.AuthorID,
		Rating:    review.Rating,
		Review:    review.Body,
		CreatedAt: review.CreatedAt,
		UpdatedAt: review.UpdatedAt,
	}
}
