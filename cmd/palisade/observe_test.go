// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Palisade Contributors

package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/palisade/palisade/pkg/errutil"
)

func TestObserve_EmptyMetricsAddr(t *testing.T) {
	err := execute(t, "observe", "--metrics.addr", "")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}

func TestObserve_NoDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	err := execute(t, "observe")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}
