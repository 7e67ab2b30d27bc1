// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by gate and catalog spans.
const (
	GateActionKey  = "gate.action"
	GateAdKindKey  = "gate.ad_kind"
	GateOutcomeKey = "gate.outcome"
	GateSessionKey = "gate.session"

	ContentIDKey   = "content.id"
	ContentTypeKey = "content.type"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// GateAttributes describes one gated action invocation.
func GateAttributes(action, adKind, session string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(GateActionKey, action)}
	if adKind != "" {
		attrs = append(attrs, attribute.String(GateAdKindKey, adKind))
	}
	if session != "" {
		attrs = append(attrs, attribute.String(GateSessionKey, session))
	}
	return attrs
}

// OutcomeAttribute records how the gate resolved.
func OutcomeAttribute(outcome string) attribute.KeyValue {
	return attribute.String(GateOutcomeKey, outcome)
}

// ContentAttributes identifies the catalog item an action targets.
func ContentAttributes(contentType, id string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if contentType != "" {
		attrs = append(attrs, attribute.String(ContentTypeKey, contentType))
	}
	if id != "" {
		attrs = append(attrs, attribute.String(ContentIDKey, id))
	}
	return attrs
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
