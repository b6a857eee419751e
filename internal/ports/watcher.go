package ports

// Watcher monitors a model directory for document changes and triggers re-solving.
// The adapter (fsnotify) must filter out anything that is not a model document
// (.yaml, .yml, .json) before invoking onChange. Only one Watch call should be
// active at a time.
type Watcher interface {
	// Watch starts monitoring dir recursively. onChange is called with the
	// absolute path of each changed document. The callback may be invoked from
	// any goroutine. Returns an error if the directory doesn't exist or
	// permissions are insufficient.
	Watch(dir string, onChange func(path string)) error

	// Stop ends monitoring and releases all resources. After Stop returns,
	// no further onChange calls will fire. Safe to call multiple times.
	Stop() error
}
