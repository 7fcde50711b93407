// Copyright (C) 2026 HealthBridge Technologies (platform@healthbridge.sa)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
)

var providerIDPattern = regexp.MustCompile(`^[A-Z0-9]{5,15}$`)

// validateProviderID accepts NPHIES provider codes: 5-15 uppercase
// alphanumerics.
func validateProviderID(fl validator.FieldLevel) bool {
	return providerIDPattern.MatchString(fl.Field().String())
}

// ClaimSubmission is the body of POST /nphies/claim.
//
// # Fields
//
//   - PatientID: Required. Saudi national/iqama id, exactly 10 digits.
//   - ProviderID: Required. NPHIES provider code, 5-15 uppercase
//     alphanumerics.
//   - ProcedureCodes: Required. 1-10 procedure codes.
//   - DiagnosisCodes: Required. 1-5 diagnosis codes.
//   - Amount: Required. Claimed amount in SAR, positive and at most
//     100000.
//   - ServiceDate: Required. Date of service, YYYY-MM-DD.
type ClaimSubmission struct {
	PatientID      string   `json:"patient_id" validate:"required,len=10,numeric"`
	ProviderID     string   `json:"provider_id" validate:"required,min=5,max=15,provider_id"`
	ProcedureCodes []string `json:"procedure_codes" validate:"required,min=1,max=10,dive,required"`
	DiagnosisCodes []string `json:"diagnosis_codes" validate:"required,min=1,max=5,dive,required"`
	Amount         float64  `json:"amount" validate:"required,gt=0,lte=100000"`
	ServiceDate    string   `json:"service_date" validate:"required,datetime=2006-01-02"`
}

// Validate checks the submission against its declared field constraints.
func (c *ClaimSubmission) Validate() error {
	return gatewayValidate.Struct(c)
}

// ClaimAnalysis is the adjudication summary attached to a processed claim.
type ClaimAnalysis struct {
	Confidence      float64  `json:"confidence"`
	Recommendations []string `json:"recommendations"`
	RiskScore       string   `json:"risk_score"`
}

// ClaimReceipt is the success body of POST /nphies/claim.
type ClaimReceipt struct {
	ClaimID      string        `json:"claim_id"`
	Status       string        `json:"status"`
	Analysis     ClaimAnalysis `json:"analysis"`
	NphiesStatus string        `json:"nphies_status"`
	Timestamp    time.Time     `json:"timestamp"`
}
