// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

/*
Package supervisor runs the long-lived parts of a RuVector node under a
suture v4 supervision tree.

# Layout

	RootSupervisor ("ruvector")
	├── DataSupervisor ("data-layer")
	│   ├── IndexMaintenanceService   (rebuild + hyperedge compaction)
	│   └── SnapshotService           (if SNAPSHOT_ENABLED)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── MessagingService          (fine-tuning router)
	│   └── FineTuneService           (if FINETUNE_ENABLED)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Each layer counts failures on its own, so a crashing snapshot upload does
not restart the HTTP server. Restart pacing comes from TreeConfig, which
main maps from the supervisor section of the configuration with
TreeConfigFromSettings.

# Logging

Supervisor events go through sutureslog. The slog.Logger handed to
NewSupervisorTree is normally logging.NewSlogLogger, which forwards to
the process-wide zerolog logger.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(),
	    supervisor.TreeConfigFromSettings(cfg.Supervisor))
	if err != nil {
	    return err
	}
	tree.AddDataService(services.NewIndexMaintenanceService(eng, cfg, logger))
	tree.AddMessagingService(services.NewMessagingService(eng, logger))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	return tree.Serve(ctx)
*/
package supervisor
