// Copyright (C) 2025 Elenchus AI (dev@elenchus.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers contains the gin handlers for the interview service:
// material registration, session administration, and the interview step
// endpoint itself.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/elenchus-ai/elenchus/pkg/validation"
	"github.com/elenchus-ai/elenchus/services/interview/datatypes"
	"github.com/elenchus-ai/elenchus/services/interview/store"
	"github.com/elenchus-ai/elenchus/services/interview/tree"
)

// CreateMaterial registers a fully materialized knowledge tree. The tree
// is validated structurally before anything is stored; registration is
// all-or-nothing and write-once.
func CreateMaterial(materials store.MaterialStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var m datatypes.Material
		if err := c.ShouldBindJSON(&m); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid material payload: " + err.Error()})
			return
		}
		if err := m.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := validation.ValidateID(m.ID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid material id: " + err.Error()})
			return
		}
		if _, err := tree.New(&m); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid knowledge tree: " + err.Error()})
			return
		}

		if err := materials.PutMaterial(c.Request.Context(), &m); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				c.JSON(http.StatusConflict, gin.H{"error": "material already registered"})
				return
			}
			slog.Error("Failed to store material", "material_id", m.ID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store material"})
			return
		}

		slog.Info("Registered material", "material_id", m.ID,
			"nodes", len(m.Nodes), "chunks", len(m.Chunks))
		c.JSON(http.StatusCreated, gin.H{
			"material_id": m.ID,
			"node_count":  len(m.Nodes),
		})
	}
}

// GetMaterial returns a registered material.
func GetMaterial(materials store.MaterialStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("materialId")
		m, err := materials.GetMaterial(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "material not found"})
				return
			}
			slog.Error("Failed to load material", "material_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load material"})
			return
		}
		c.JSON(http.StatusOK, m)
	}
}

// ListMaterials returns the registered material ids.
func ListMaterials(materials store.MaterialStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ids, err := materials.ListMaterialIDs(c.Request.Context())
		if err != nil {
			slog.Error("Failed to list materials", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list materials"})
			return
		}
		if ids == nil {
			ids = []string{}
		}
		c.JSON(http.StatusOK, gin.H{"material_ids": ids})
	}
}
