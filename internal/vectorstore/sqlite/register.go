// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkstone Contributors

package sqlite

import "github.com/inkstone-dev/inkstone/internal/vectorstore"

func init() {
	vectorstore.RegisterBackend("sqlite", func() vectorstore.Backend {
		return &Backend{}
	})
}
