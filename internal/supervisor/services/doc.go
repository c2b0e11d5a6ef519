// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

/*
Package services adapts Sentinel components to the suture.Service interface.

	type Service interface {
	    Serve(ctx context.Context) error
	}

HTTPServerService translates http.Server's ListenAndServe/Shutdown pair into
a context-driven Serve with a bounded graceful shutdown.

DetectionService runs detection.Engine.RunWithContext, which waits for
cancellation and then flushes alert publishes that are still in flight.

Components that already implement Serve (ingest.Consumer,
ephemeral.BadgerStore) are added to the tree directly.
*/
package services
