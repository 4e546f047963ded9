// Copyright (C) 2025 Elenchus AI (dev@elenchus.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "time"

// QARecord is one question/answer exchange in the session history.
// Records are append-only; the evaluation score is attached on the turn
// the answer is evaluated and never changes afterwards.
type QARecord struct {
	NodeID   string `json:"node_id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Stage    int    `json:"stage"`
	Score    int    `json:"score,omitempty"`
}

// TraversalState is the per-session progress record mutated turn by turn.
//
// The engine is stateless across calls: state goes in with the request and
// comes back out with the response. UnclearedNodeIDs only ever shrinks.
type TraversalState struct {
	CurrentNodeID    string     `json:"current_node_id"`
	UnclearedNodeIDs []string   `json:"uncleared_node_ids"`
	SocraticStage    int        `json:"socratic_stage"`
	ConsecFailCount  int        `json:"consec_fail_count"`
	History          []QARecord `json:"history,omitempty"`
}

// HistoryForNode returns the subset of history recorded against nodeID,
// preserving order. Question generation is scoped to this slice.
func (s *TraversalState) HistoryForNode(nodeID string) []QARecord {
	var out []QARecord
	for _, rec := range s.History {
		if rec.NodeID == nodeID {
			out = append(out, rec)
		}
	}
	return out
}

// SessionStatus tracks the lifecycle of an interview session.
type SessionStatus string

const (
	SessionPreparing   SessionStatus = "preparing"
	SessionQuestioning SessionStatus = "questioning"
	SessionCompleted   SessionStatus = "completed"
)

// InterviewSession is the server-side session record. The engine never
// reads it directly; handlers persist the latest TraversalState here so a
// client can resume after losing its copy.
type InterviewSession struct {
	SessionID  string         `json:"session_id"`
	MaterialID string         `json:"material_id"`
	Status     SessionStatus  `json:"status"`
	State      TraversalState `json:"state"`
	StartedAt  time.Time      `json:"started_at"`
	EndedAt    *time.Time     `json:"ended_at,omitempty"`
}
