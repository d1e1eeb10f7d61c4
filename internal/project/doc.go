// Package project provides the project registry for agentgraph.
//
// Project Representation:
//
// Each project is described by a declarative config.yaml in its own
// subdirectory of the projects root:
//
//	projects/
//	  mycli/
//	    config.yaml    (required)
//	    examples.yaml  (optional few-shot examples)
//
// config.yaml must declare name, type, description, path, tech_stack and
// tools. conventions, coding_standards, test_framework and coverage_target
// are optional.
//
// Discovery:
//
// Discover scans the root in sorted order and loads every subdirectory that
// carries a config.yaml. Discovery is fail-fast: a missing required field or
// a declared path that does not exist on disk aborts the whole load, so a
// broken entry never silently disappears from the registry.
//
// Lookup:
//
// Get and LoadContext return a *NotFoundError carrying the known project
// names when the name is absent. Infos are immutable after load and are
// shared by reference with running state.
package project
