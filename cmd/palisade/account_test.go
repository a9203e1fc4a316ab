// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Palisade Contributors

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palisade/palisade/pkg/errutil"
)

func TestAccountCreate_RequiresPasswordFlag(t *testing.T) {
	err := execute(t, "account", "create", "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password")
}

func TestAccountCreate_NoDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	err := execute(t, "account", "create", "alice", "--password", "Sw0rdfish")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}

func TestAccountUnlock_RequiresUsername(t *testing.T) {
	require.Error(t, execute(t, "account", "unlock"))
}

func TestAccountDelete_RequiresUsername(t *testing.T) {
	require.Error(t, execute(t, "account", "delete"))
}

func TestAccountReset_NoDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	err := execute(t, "account", "reset", "alice")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}

func TestAccountCommand_Help(t *testing.T) {
	cmd := NewAccountCmd()

	names := make([]string, 0, len(cmd.Commands()))
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"create", "list", "delete", "unlock", "reset"}, names)
}
