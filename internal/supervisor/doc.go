// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

/*
Package supervisor provides process supervision for Sentinel using suture v4.

Long-running services are organized into a three-layer tree so that a
failure in one layer restarts only that layer:

	RootSupervisor ("sentinel")
	├── DataSupervisor ("data-layer")
	│   └── BadgerStore GC (when state.backend = badger)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── DetectionService (drains in-flight alert publishes on shutdown)
	│   └── ingest.Consumer (when ingest.enabled)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A crashing Kafka consumer is restarted with backoff while the HTTP API keeps
serving synchronous requests.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
	    FailureThreshold: cfg.Supervisor.FailureThreshold,
	    ShutdownTimeout:  cfg.Supervisor.ShutdownTimeout,
	})
	if err != nil {
	    return err
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	tree.AddMessagingService(services.NewDetectionService(engine))

	errCh := tree.ServeBackground(ctx)

Zero values in TreeConfig fall back to DefaultTreeConfig. Supervisor events
(start, failure, backoff, restart) are logged through the sutureslog hook.

On shutdown, UnstoppedServiceReport lists services that did not return
within ShutdownTimeout.
*/
package supervisor
