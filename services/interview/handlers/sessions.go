// Copyright (C) 2025 Elenchus AI (dev@elenchus.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/elenchus-ai/elenchus/services/interview/datatypes"
	"github.com/elenchus-ai/elenchus/services/interview/observability"
	"github.com/elenchus-ai/elenchus/services/interview/store"
)

type createSessionRequest struct {
	MaterialID string `json:"material_id" binding:"required"`
}

// CreateSession opens a new interview session against a registered
// material. The session starts in the preparing state; the first call to
// the step endpoint moves it to questioning.
func CreateSession(st store.Store, metrics *observability.InterviewMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "material_id is required"})
			return
		}
		if _, err := st.GetMaterial(c.Request.Context(), req.MaterialID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "material not found"})
				return
			}
			slog.Error("Failed to load material", "material_id", req.MaterialID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load material"})
			return
		}

		sess := &datatypes.InterviewSession{
			SessionID:  uuid.NewString(),
			MaterialID: req.MaterialID,
			Status:     datatypes.SessionPreparing,
			StartedAt:  time.Now().UTC(),
		}
		if err := st.PutSession(c.Request.Context(), sess); err != nil {
			slog.Error("Failed to store session", "session_id", sess.SessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store session"})
			return
		}
		if metrics != nil {
			metrics.SessionStarted()
		}

		slog.Info("Created interview session",
			"session_id", sess.SessionID, "material_id", req.MaterialID)
		c.JSON(http.StatusCreated, gin.H{
			"session_id":  sess.SessionID,
			"material_id": sess.MaterialID,
			"status":      sess.Status,
		})
	}
}

// ListSessions returns all sessions.
func ListSessions(sessions store.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		all, err := sessions.ListSessions(c.Request.Context())
		if err != nil {
			slog.Error("Failed to list sessions", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sessions"})
			return
		}
		if all == nil {
			all = []*datatypes.InterviewSession{}
		}
		c.JSON(http.StatusOK, gin.H{"sessions": all})
	}
}

// GetSession returns one session including its traversal state, so a
// client that lost its copy can resume.
func GetSession(sessions store.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("sessionId")
		sess, err := sessions.GetSession(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			slog.Error("Failed to load session", "session_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
			return
		}
		c.JSON(http.StatusOK, sess)
	}
}

// DeleteSession removes a session.
func DeleteSession(sessions store.SessionStore, metrics *observability.InterviewMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("sessionId")
		sess, err := sessions.GetSession(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			slog.Error("Failed to load session", "session_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
			return
		}
		if err := sessions.DeleteSession(c.Request.Context(), id); err != nil {
			slog.Error("Failed to delete session", "session_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete session"})
			return
		}
		if metrics != nil && sess.Status != datatypes.SessionCompleted {
			metrics.SessionEnded()
		}
		slog.Info("Deleted session", "session_id", id)
		c.JSON(http.StatusOK, gin.H{"status": "success", "deleted_session_id": id})
	}
}
