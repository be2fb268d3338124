// Package watcher turns a drop directory into batches of documents to ingest.
//
// fsnotify is the primary source of events, with a polling scan as the
// fallback where inotify is unavailable (network mounts, some container
// volumes). Events are debounced per file so that a document still being
// copied in is reported once, after the writes settle.
//
// Usage:
//
//	w, err := watcher.New(watcher.Options{Dir: "raw", Extensions: []string{".pdf"}})
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	if err := w.Start(ctx); err != nil {
//	    return err
//	}
//	for batch := range w.Batches() {
//	    for _, path := range batch {
//	        // ingest path
//	    }
//	}
package watcher
