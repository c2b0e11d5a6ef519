// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

// Package validation provides struct validation using go-playground/validator v10.
//
// A thread-safe singleton validator checks API request bodies and the
// configuration sections. Field names in messages come from the json tag,
// then the koanf tag, so a failure reads the way the client or operator
// wrote the field.
//
// Custom tags:
//   - clock: a 24-hour time of day, "9:05" or "23:59"
//   - ipaddr: an IPv4 or IPv6 address
//
// Example:
//
//	type transactionRequest struct {
//	    ID     string  `json:"id" validate:"required,max=128"`
//	    Amount float64 `json:"amount" validate:"gt=0"`
//	    Time   string  `json:"time" validate:"omitempty,clock"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
//	    return
//	}
//
// ToAPIError produces the VALIDATION_ERROR body used across the API:
//
//	{
//	    "code": "VALIDATION_ERROR",
//	    "message": "amount must be greater than 0",
//	    "details": {"field": "amount", "tag": "gt", "value": -5}
//	}
package validation
