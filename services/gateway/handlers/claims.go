// Copyright (C) 2026 HealthBridge Technologies (platform@healthbridge.sa)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/healthbridge-sa/nphies-gateway/services/gateway/datatypes"
	"github.com/healthbridge-sa/nphies-gateway/services/gateway/middleware"
)

// HandleClaim implements POST /nphies/claim.
//
// # Description
//
// Validates the claim submission against its field constraints and
// returns an adjudication receipt. Submission and completion are both
// logged with the claim id for the audit trail. Amounts above the
// review threshold lower the confidence and add a review recommendation;
// nothing here calls the upstream NPHIES network, which is handled by a
// separate settlement job.
func (h *Handlers) HandleClaim(c *gin.Context) {
	var claim datatypes.ClaimSubmission
	if err := c.ShouldBindJSON(&claim); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := claim.Validate(); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	claimID := uuid.NewString()
	subject := "unknown"
	if id, ok := middleware.GetIdentity(c); ok {
		subject = id.Subject
	}
	h.Log.Info("claim submission started",
		"claim_id", claimID,
		"provider_id", claim.ProviderID,
		"submitted_by", subject,
	)

	analysis := adjudicate(claim)

	h.Log.Info("claim processed",
		"claim_id", claimID,
		"confidence", analysis.Confidence,
		"risk_score", analysis.RiskScore,
	)

	c.JSON(http.StatusOK, datatypes.ClaimReceipt{
		ClaimID:      claimID,
		Status:       "processed",
		Analysis:     analysis,
		NphiesStatus: "submitted",
		Timestamp:    time.Now().UTC(),
	})
}

// reviewThreshold is the claimed amount (SAR) above which a claim is
// flagged for manual review.
const reviewThreshold = 10000.0

// adjudicate runs the deterministic pre-submission checks. The real
// adjudication happens downstream at NPHIES; this pass only catches what
// would bounce there.
func adjudicate(claim datatypes.ClaimSubmission) datatypes.ClaimAnalysis {
	analysis := datatypes.ClaimAnalysis{
		Confidence: 0.95,
		Recommendations: []string{
			"Claim data validated successfully",
			"All required fields are properly formatted",
		},
		RiskScore: "low",
	}

	if claim.Amount > reviewThreshold {
		analysis.Confidence = 0.85
		analysis.RiskScore = "medium"
		analysis.Recommendations = append(analysis.Recommendations,
			"Amount exceeds auto-approval threshold, manual review queued")
	}
	if len(claim.ProcedureCodes) > 5 {
		analysis.Confidence -= 0.05
		analysis.Recommendations = append(analysis.Recommendations,
			"High procedure count, consider splitting the claim")
	}

	return analysis
}
