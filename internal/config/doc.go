// IVA Console - Surveillance Operations Session and Live Event Core
// Copyright 2026 Thanh N.D. (thanhnd-MKV)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thanhnd-MKV/iva-console

// Package config loads the console daemon's configuration from layered
// sources with Koanf v2: struct defaults, then an optional YAML file, then
// environment variables. Precedence is ENV > file > defaults. The merged
// result is validated before anything else starts.
package config
