// Package openapi embeds the OpenAPI description of the session HTTP API.
package openapi

import _ "embed"

// SessionSpec is the OpenAPI document served at /api/v1/openapi.yaml.
//
//go:embed session.yaml
var SessionSpec []byte

// Spec returns a copy of the embedded document.
func Spec() []byte {
	return append([]byte(nil), SessionSpec...)
}
