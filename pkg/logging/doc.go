// Package logging provides the structured logger used across hookcheck.
//
// It is a thin layer over log/slog that tags every entry with a subsystem
// so receiver, client and manager output can be told apart when several
// scenarios run in parallel.
//
// # Usage
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Receiver", "listening on port %d", port)
//	logging.Debug("Matcher", "skipping delivery %d", seq)
//	logging.Warn("Manager", "teardown incomplete")
//	logging.Error("Client", err, "failed to create webhook %s", name)
//
// Libraries that take a leveled logger can be handed Logger(subsystem),
// which returns a *slog.Logger carrying the same subsystem attribute.
//
// Until one of the Init functions is called, Debug and Info are dropped and
// Warn/Error go to stderr, so importing packages stay quiet in unit tests.
package logging
