// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Palisade Contributors

package credential_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palisade/palisade/internal/credential"
	"github.com/palisade/palisade/pkg/errutil"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"meets all rules", "Sw0rdfish", false},
		{"unicode uppercase counts", "Ärgernis1", false},
		{"too short", "Ab1", true},
		{"exactly seven chars", "Abcdef1", true},
		{"no uppercase", "sw0rdfish", true},
		{"no digit", "Swordfish", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := credential.ValidatePassword(tt.password)
			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, credential.CodeWeakPassword)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{"simple", "alice", false},
		{"with digits and underscore", "alice_99", false},
		{"minimum length", "abc", false},
		{"too short", "ab", true},
		{"too long", "a234567890123456789012345678901", true},
		{"starts with digit", "9lives", true},
		{"starts with underscore", "_alice", true},
		{"contains space", "al ice", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := credential.ValidateUsername(tt.username)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
