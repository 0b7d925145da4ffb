/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package core wires the configured sources into feeds, panels and the
// dashboard's HTTP and gRPC surfaces.
package core

import (
	"context"

	"github.com/mfreeman451/opsdeck/pkg/view"
)

//go:generate mockgen -destination=mock_server.go -package=core github.com/mfreeman451/opsdeck/pkg/core CoreService

// CoreService represents the main dashboard service functionality.
type CoreService interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	// Snapshot fetches every source once and renders the named page.
	Snapshot(ctx context.Context, page string) (view.Page, error)
}
