// Copyright (C) 2025 Elenchus AI (dev@elenchus.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/elenchus-ai/elenchus/services/interview/datatypes"
	"github.com/elenchus-ai/elenchus/services/interview/engine"
	"github.com/elenchus-ai/elenchus/services/interview/observability"
	"github.com/elenchus-ai/elenchus/services/interview/store"
	"github.com/elenchus-ai/elenchus/services/interview/tree"
)

// sessionLocks serializes turns per session. The engine mutates nothing
// shared, but two concurrent turns on one session would race on the
// persisted traversal state, so the second request is rejected outright.
type sessionLocks struct {
	mu    sync.Mutex
	inUse map[string]struct{}
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{inUse: make(map[string]struct{})}
}

func (l *sessionLocks) tryAcquire(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.inUse[id]; busy {
		return false
	}
	l.inUse[id] = struct{}{}
	return true
}

func (l *sessionLocks) release(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.inUse, id)
}

// HandleInterviewStep runs one interview turn.
//
// # Description
//
//	Resolves the session and material, reconstructs the tree index, and
//	hands the turn to the orchestrator. On success the updated traversal
//	state is persisted to the session before responding; on any failure
//	nothing is persisted and the stored state remains the system of
//	record, so the caller can re-submit the same turn.
//
// # Error mapping
//
//   - unknown session/material/node: 404
//   - inconsistent traversal state: 400
//   - oracle failure: 502
//   - concurrent turn on the same session: 409
func HandleInterviewStep(st store.Store, orch *engine.Orchestrator,
	metrics *observability.InterviewMetrics) gin.HandlerFunc {

	locks := newSessionLocks()
	return func(c *gin.Context) {
		var req datatypes.StepRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid step request: " + err.Error()})
			return
		}

		if !locks.tryAcquire(req.SessionID) {
			c.JSON(http.StatusConflict, gin.H{"error": "a turn for this session is already in flight"})
			return
		}
		defer locks.release(req.SessionID)

		start := time.Now()
		ctx := c.Request.Context()

		sess, err := st.GetSession(ctx, req.SessionID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			slog.Error("Failed to load session", "session_id", req.SessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
			return
		}
		if sess.MaterialID != req.MaterialID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session belongs to a different material"})
			return
		}
		if sess.Status == datatypes.SessionCompleted {
			c.JSON(http.StatusBadRequest, gin.H{"error": "interview already completed"})
			return
		}

		material, err := st.GetMaterial(ctx, req.MaterialID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "material not found"})
				return
			}
			slog.Error("Failed to load material", "material_id", req.MaterialID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load material"})
			return
		}
		tr, err := tree.New(material)
		if err != nil {
			// Materials are validated at registration, so this is corruption.
			slog.Error("Stored material failed tree validation",
				"material_id", material.ID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "stored material is invalid"})
			return
		}

		state := req.State()
		if req.FirstTurn() && sess.State.CurrentNodeID != "" {
			// Client lost its state; resume from the persisted copy.
			state = sess.State
		}

		res, err := orch.DetermineNextStep(ctx, engine.Turn{
			Tree:            tr,
			Chunks:          material.ChunkByID(),
			Answer:          req.UserAnswer,
			CurrentQuestion: req.PreviousQuestion,
			State:           state,
		})
		if err != nil {
			if metrics != nil {
				metrics.RecordTurn(observability.TurnError, time.Since(start).Seconds())
			}
			respondStepError(c, err)
			return
		}

		sess.State = res.State
		if res.Completed {
			now := time.Now().UTC()
			sess.Status = datatypes.SessionCompleted
			sess.EndedAt = &now
		} else {
			sess.Status = datatypes.SessionQuestioning
		}
		if err := st.PutSession(ctx, sess); err != nil {
			slog.Error("Failed to persist session state", "session_id", sess.SessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist session state"})
			return
		}

		if res.Completed {
			if metrics != nil {
				metrics.RecordTurn(observability.TurnCompleted, time.Since(start).Seconds())
				metrics.SessionEnded()
			}
			slog.Info("Interview completed", "session_id", sess.SessionID,
				"turns", len(res.State.History))
			c.JSON(http.StatusOK, datatypes.StepResponse{Status: datatypes.StatusCompleted})
			return
		}

		if metrics != nil {
			metrics.RecordTurn(observability.TurnInProgress, time.Since(start).Seconds())
		}
		c.JSON(http.StatusOK, datatypes.StepResponse{
			Status:                datatypes.StatusInProgress,
			InterviewNextQuestion: res.Question,
			NextNodeID:            res.State.CurrentNodeID,
			UnclearedNodeIDs:      res.State.UnclearedNodeIDs,
			SocraticStage:         res.State.SocraticStage,
			ConsecFailCount:       res.State.ConsecFailCount,
			History:               res.State.History,
		})
	}
}

func respondStepError(c *gin.Context, err error) {
	switch {
	case engine.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case engine.IsInvalidState(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case engine.IsOracleError(err):
		slog.Error("Oracle failure aborted the turn", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		slog.Error("Interview step failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "interview step failed"})
	}
}
