// Package checkpoint persists shipping progress across runs.
//
// The collector client delivers batches at most once: a batch whose
// retries are exhausted is dropped. Callers that must not re-ship (or
// silently lose) source items record their progress here and consult it
// before shipping again.
//
// # Usage
//
// Create a file-based repository:
//
//	repo := checkpoint.NewFileRepository("/var/lib/hecship")
//
//	st, err := repo.Load(ctx)
//	if err != nil {
//	    return err
//	}
//
//	if !st.IsProcessed("feed-2026-08-25.ndjson") {
//	    // ... ship it ...
//	    st.MarkProcessed("feed-2026-08-25.ndjson")
//	    if err := repo.Save(ctx, st); err != nil {
//	        return err
//	    }
//	}
//
// Saves are atomic (temp file, then rename), so a crash mid-save leaves
// the previous checkpoint intact.
//
// # Version
//
// Current version: 0.1.0
// Minimum compatible version: 0.1.0
//
// See version.go for version constants that can be used programmatically.
package checkpoint
