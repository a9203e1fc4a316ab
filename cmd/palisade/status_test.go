// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Palisade Contributors

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palisade/palisade/pkg/errutil"
)

func TestStatus_NoDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	err := execute(t, "status")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}

func TestFormatSchemaStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   SchemaStatus
		contains []string
	}{
		{
			name:     "clean and current",
			status:   SchemaStatus{Version: 2},
			contains: []string{"Schema version: 2", "Pending migrations: none"},
		},
		{
			name:     "dirty",
			status:   SchemaStatus{Version: 1, Dirty: true},
			contains: []string{"dirty", "migrate force"},
		},
		{
			name:     "pending work",
			status:   SchemaStatus{Version: 1, Pending: []string{"000002_audit_log"}},
			contains: []string{"Pending migrations:", "000002_audit_log"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := formatSchemaStatus(tt.status)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
		})
	}
}
