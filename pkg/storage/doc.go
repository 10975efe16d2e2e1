// Package storage provides the persistent dispatch log for the relay.
//
// Every broadcast that reaches the core is recorded with its filename,
// delivery tally, and outcome classification. Script bodies are never
// stored: the relay does not persist or replay messages, the log exists
// for operator auditing only.
//
// Usage:
//
//	store, err := storage.NewStore(cfg.Database)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	err = store.RecordDispatch(&storage.Dispatch{...})
//	recent, err := store.RecentDispatches(50)
//
// The Store interface has SQLite (default) and MySQL implementations,
// selected by the database.type configuration field.
package storage
