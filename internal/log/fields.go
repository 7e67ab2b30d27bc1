// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID   = "request_id"
	FieldUserID      = "user_id"
	FieldGateSession = "gate_session"
	FieldContentID   = "content_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Gate fields
	FieldAdKind         = "ad_kind"
	FieldCompletedCount = "completed_count"
	FieldAction         = "action"

	// Catalog fields
	FieldContentType = "content_type"
	FieldBackend     = "backend"

	// HTTP fields
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatus     = "status"
	FieldDurationMS = "duration_ms"
	FieldRemoteAddr = "remote_addr"
)
