/*
Package persistence stores learned strategies across restarts.

Both stores implement strategy.Persistence. Records are encoded as JSON with
sonic and scoped by owner ID, so several executors can share one database.

  - BadgerStore keeps records in an embedded Badger key-value store under
    "strategy/<owner>/<name>".
  - SQLiteStore keeps them in a single SQLite table keyed by owner and name.

Saving a record with a known name replaces the previous one.

# Usage

	store, err := persistence.OpenBadger(persistence.DefaultBadgerConfig("/var/lib/adaptive"), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	cfg := retry.DefaultConfig("payments")
	cfg.Persistence = store
*/
package persistence
