package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/snaptastic/snaptastic/internal/models"
	"github.com/snaptastic/snaptastic/internal/service"
)

// maxUploadBytes caps photo uploads at 10MB.
const maxUploadBytes = 10 * 1024 * 1024

var allowedImageTypes = map[string]bool{
	"image/jpeg":    true,
	"image/jpg":     true,
	"image/png":     true,
	"image/gif":     true,
	"image/webp":    true,
	"image/svg+xml": true,
}

func (s *Server) handleCredits(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)

	credits, err := s.credits.GetBalance(r.Context(), user.ID)
	if err != nil {
		s.internalError(w, "Failed to fetch credits", err)
		return
	}

	history, err := s.credits.History(r.Context(), user.ID, 10)
	if err != nil {
		s.internalError(w, "Failed to fetch credits", err)
		return
	}
	if history == nil {
		history = []models.CreditTransaction{}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"credits": credits,
		"history": history,
	})
}

type enhanceRequest struct {
	ImageURL string `json:"imageUrl"`
	PhotoID  string `json:"photoId"`
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	s.handleEnhance(w, r, enhanceAction{
		run:            s.enhance.Restore,
		resultField:    "restoredUrl",
		creditsMessage: "You need 1 credit to restore a photo",
		failureMessage: "Failed to restore photo",
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	s.handleEnhance(w, r, enhanceAction{
		run:            s.enhance.Export,
		resultField:    "upscaledUrl",
		creditsMessage: "You need 1 credit to export in 4K quality",
		failureMessage: "Failed to export photo",
	})
}

type enhanceAction struct {
	run            func(ctx context.Context, userID, imageURL string, photoID *string) (*service.EnhanceResult, error)
	resultField    string
	creditsMessage string
	failureMessage string
}

func (s *Server) handleEnhance(w http.ResponseWriter, r *http.Request, action enhanceAction) {
	user := userFromContext(r)

	var req enhanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid json")
		return
	}
	if req.ImageURL == "" {
		s.badRequest(w, "imageUrl is required")
		return
	}

	var photoID *string
	if req.PhotoID != "" {
		photoID = &req.PhotoID
	}

	result, err := action.run(r.Context(), user.ID, req.ImageURL, photoID)
	if err != nil {
		if errors.Is(err, service.ErrInsufficientCredits) {
			credits, berr := s.credits.GetBalance(r.Context(), user.ID)
			if berr != nil {
				s.log.Error("fetch balance for 402", "err", berr)
			}
			s.writeJSON(w, http.StatusPaymentRequired, map[string]any{
				"error":   "Insufficient credits",
				"message": action.creditsMessage,
				"credits": credits,
			})
			return
		}
		s.log.Error(action.failureMessage, "user_id", user.ID, "err", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   action.failureMessage,
			"message": err.Error(),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		action.resultField: result.ResultURL,
		"taskId":           result.TaskID,
		"creditsRemaining": result.CreditsRemaining,
	})
}

func (s *Server) handleListPhotos(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)

	photos, err := s.photos.List(r.Context(), user.ID)
	if err != nil {
		s.internalError(w, "Failed to fetch photos", err)
		return
	}
	if photos == nil {
		photos = []models.Photo{}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"photos": photos})
}

type createPhotoRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

func (s *Server) handleCreatePhoto(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)

	var req createPhotoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid json")
		return
	}
	if req.Name == "" || req.URL == "" || req.Size <= 0 {
		s.badRequest(w, "name, url, and size are required")
		return
	}

	photo := &models.Photo{
		ID:     req.ID,
		UserID: user.ID,
		Name:   req.Name,
		URL:    req.URL,
		Size:   req.Size,
	}
	if err := s.photos.Create(r.Context(), photo); err != nil {
		s.internalError(w, "Failed to create photo", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"photo": map[string]any{
			"id":       photo.ID,
			"name":     photo.Name,
			"url":      photo.URL,
			"size":     photo.Size,
			"restored": false,
			"exported": false,
		},
	})
}

func (s *Server) handleDeletePhoto(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)

	photoID := r.URL.Query().Get("id")
	if photoID == "" {
		s.badRequest(w, "Photo ID is required")
		return
	}

	// Ownership lives in the delete predicate; deleting someone else's
	// photo is a silent noop that still reports success.
	if err := s.photos.Delete(r.Context(), photoID, user.ID); err != nil {
		s.internalError(w, "Failed to delete photo", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+1024)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.badRequest(w, "File too large. Maximum size allowed is 10MB.")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.badRequest(w, "No file provided")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !allowedImageTypes[contentType] {
		s.badRequest(w, "Invalid file type. Only image files are allowed.")
		return
	}
	if header.Size > maxUploadBytes {
		s.badRequest(w, "File too large. Maximum size allowed is 10MB.")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.internalError(w, "Failed to process upload", err)
		return
	}

	url, err := s.uploader.Upload(r.Context(), data, contentType)
	if err != nil {
		s.internalError(w, "Failed to process upload", err)
		return
	}

	photo := &models.Photo{
		UserID: user.ID,
		Name:   header.Filename,
		URL:    url,
		Size:   header.Size,
	}
	if err := s.photos.Create(r.Context(), photo); err != nil {
		s.internalError(w, "Failed to process upload", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"url":  url,
		"id":   photo.ID,
		"name": photo.Name,
		"size": photo.Size,
	})
}

func (s *Server) handlePolarWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.badRequest(w, "read body error")
		return
	}
	if err := s.subscriptions.HandleWebhook(r.Context(), body); err != nil {
		s.log.Error("polar webhook", "err", err)
		s.badRequest(w, err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
