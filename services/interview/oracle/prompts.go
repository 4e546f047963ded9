// Copyright (C) 2025 Elenchus AI (dev@elenchus.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package oracle

import (
	"fmt"
	"strings"

	"github.com/elenchus-ai/elenchus/services/interview/datatypes"
)

// Prompt builders. Judgment prompts pin the output to a single JSON
// object so the parse layer stays trivial; generation is free text.

const (
	compareSystem  = "You compare two options and return, as JSON, the one more relevant to the learner's answer."
	evaluateSystem = "You are an education expert who grades answers. Rate how faithfully the answer addresses the question on a 1-5 scale."
	coverageSystem = "You analyze an answer history and return true/false for whether a topic has been addressed."
	pruneSystem    = "You analyze an answer history and return, as a JSON array, only the ids of topics already covered."
)

func renderHistory(history []datatypes.QARecord) string {
	var b strings.Builder
	for _, rec := range history {
		fmt.Fprintf(&b, "  [Q] %s\n  [A] %s\n", rec.Question, rec.Answer)
	}
	return b.String()
}

func comparePrompt(answer string, a, b *datatypes.KnowledgeNode) string {
	return fmt.Sprintf(`You are an expert at analyzing learner answers. Decide whether option A or option B is more relevant to the learner's answer below.

# Learner's answer: %s

# Option A
Title: %s
Description: %s

# Option B
Title: %s
Description: %s

# Output format (JSON):
{"option": (A or B)}`,
		answer, a.Title, a.Description, b.Title, b.Description)
}

func evaluatePrompt(rootTitle string, node *datatypes.KnowledgeNode, question, answer string) string {
	return fmt.Sprintf(`You are an expert on %s. Grade the learner's answer to the question about %s on a five-point scale (1-5).

# Question
%s

# Learner's answer
%s

# Scale: 1 (irrelevant or wrong) to 5 (a proper answer to the question)

# Output format (JSON): {"evaluation": (int)}`,
		rootTitle, node.Title, question, answer)
}

func coveragePrompt(rootTitle string, history []datatypes.QARecord, node *datatypes.KnowledgeNode) string {
	return fmt.Sprintf(`You are an expert on %s. Based on the learner's answer history, judge whether the topic below has already been addressed.

# Answer history:
%s
# Topic:
%s: %s

# Criteria
- The history addresses the substance of the topic's description: true
- Otherwise: false

# Output format (JSON):
{"is_sufficient": true or false}`,
		rootTitle, renderHistory(history), node.Title, node.Description)
}

func prunePrompt(history []datatypes.QARecord, candidates []*datatypes.KnowledgeNode) string {
	var topics strings.Builder
	for _, n := range candidates {
		fmt.Fprintf(&topics, "- id: %s, title: %s, description: %s\n", n.ID, n.Title, n.Description)
	}
	return fmt.Sprintf(`You are a knowledge pruner. Based on the learner's answer history, list the ids of any topics below that the learner has already explicitly covered.

# Answer history:
%s
# Topics:
%s
# Requirements:
1. Compare the history against each topic's description and return, as a JSON array, the ids of every topic the learner has already sufficiently covered.
2. Do not return the id of any topic that is not fully covered.

# Output format (JSON):
{"pruned_ids": ["n-10", "n-15"]}`,
		renderHistory(history), topics.String())
}

// stagePrompt returns the system message and question-type label for a
// Socratic stage. Stage 1 asks for definitions and facts, stage 2 for
// reasons and mechanisms, stage 3 for application and generalization.
func stagePrompt(stage int) (system, questionType string) {
	switch stage {
	case 1:
		return "Based on the provided material, write a question that asks for the topic's definition, key facts, or terminology.",
			"a question about definitions, key facts, or terminology"
	case 2:
		return "Based on the provided material, write a question that asks for the topic's reasons, causes, or operating principles.",
			"a question about reasons, causes, or how it works"
	case 3:
		return "Based on the provided material, write a question that asks about applying, relating, or generalizing the topic.",
			"a question about application or generalization"
	default:
		return "", ""
	}
}

func generateSystem(stage, failCount int) string {
	system, _ := stagePrompt(stage)
	if failCount == 0 {
		system += "\nYou are an education expert. Build on the prior exchanges, especially the most recent one."
	} else {
		system += fmt.Sprintf("\nYou are an education expert. The learner has failed %d time(s) in a row. Ask from a different angle or at an easier level, while still building on the prior exchanges, especially the most recent one.", failCount)
	}
	return system
}

func generatePrompt(in GenerationInput) string {
	_, questionType := stagePrompt(in.Stage)

	var excerpts string
	if len(in.Excerpts) > 0 {
		var b strings.Builder
		b.WriteString("# Lecture material excerpts:\n")
		for _, c := range in.Excerpts {
			fmt.Fprintf(&b, "- %s\n", c.Content)
		}
		b.WriteString("# Instruction: base the question strictly on the information in the excerpts above.\n")
		excerpts = b.String()
	}

	var history strings.Builder
	for _, rec := range in.NodeHistory {
		fmt.Fprintf(&history, "\n  [Q] %s\n  [A] %s", rec.Question, rec.Answer)
	}

	return fmt.Sprintf(`You are an expert on %s. Using the information below, generate %s about %s. Pay attention to the flow of the exchanges so far.

# Overview: %s

%s
# Exchanges so far:
%s

# Important instructions:
- Ask exactly one question.
- You may open with a brief remark on the learner's previous answer.
- Ground the question in the prior exchanges, especially the most recent one.
- Never repeat a question that has already been asked.
- Do not wrap the question in quotation marks.`,
		in.RootTitle, questionType, in.Node.Title, in.Node.Description, excerpts, history.String())
}
