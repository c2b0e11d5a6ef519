// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package logging

import "strings"

// MaskIdentity masks an identity attribute (national id, phone, address, name)
// keeping the first and last two characters.
// Example: "317000000" -> "31*****00"
func MaskIdentity(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "***"
	}
	return value[:2] + strings.Repeat("*", len(value)-4) + value[len(value)-2:]
}

// SanitizeValue removes line breaks and truncates free text (transaction
// descriptions, error strings) before it is written to a log field.
func SanitizeValue(value string) string {
	value = strings.NewReplacer("\n", " ", "\r", " ").Replace(value)
	return truncateString(value, 200)
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
