// Copyright (C) 2025 Elenchus AI (dev@elenchus.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// Interview step statuses returned to the caller.
const (
	StatusInProgress = "interview_in_progress"
	StatusCompleted  = "interview_completed"
)

// StepRequest is one learner turn. On the very first turn CurrentNodeID is
// absent and the traversal state fields are ignored; the engine seeds a
// fresh state from the material's tree. On later turns the caller echoes
// back the state it received with the previous response.
type StepRequest struct {
	SessionID  string `json:"session_id" binding:"required"`
	MaterialID string `json:"material_id" binding:"required"`
	UserAnswer string `json:"user_answer" binding:"required"`

	// PreviousQuestion is the question UserAnswer responds to.
	// Empty only on the first turn.
	PreviousQuestion string `json:"previous_question,omitempty"`

	CurrentNodeID    string     `json:"current_node_id,omitempty"`
	UnclearedNodeIDs []string   `json:"uncleared_node_ids,omitempty"`
	SocraticStage    int        `json:"socratic_stage,omitempty"`
	ConsecFailCount  int        `json:"consec_fail_count,omitempty"`
	History          []QARecord `json:"history,omitempty"`
}

// State assembles the request's traversal-state fields.
func (r *StepRequest) State() TraversalState {
	return TraversalState{
		CurrentNodeID:    r.CurrentNodeID,
		UnclearedNodeIDs: r.UnclearedNodeIDs,
		SocraticStage:    r.SocraticStage,
		ConsecFailCount:  r.ConsecFailCount,
		History:          r.History,
	}
}

// FirstTurn reports whether this request opens the interview.
func (r *StepRequest) FirstTurn() bool {
	return r.CurrentNodeID == ""
}

// StepResponse carries the next question plus the updated traversal state,
// or just the completed status once the uncleared set is empty.
type StepResponse struct {
	Status                string     `json:"status"`
	InterviewNextQuestion string     `json:"interview_next_question,omitempty"`
	NextNodeID            string     `json:"next_node_id,omitempty"`
	UnclearedNodeIDs      []string   `json:"uncleared_node_ids,omitempty"`
	SocraticStage         int        `json:"socratic_stage,omitempty"`
	ConsecFailCount       int        `json:"consec_fail_count"`
	History               []QARecord `json:"history,omitempty"`
}
