// Package tracking implements the read API of the experiment tracking system
// plus the few writes needed for bookkeeping runs.
//
// FileStore works on a local mlruns directory, RESTStore on a tracking
// server. Both expose the Store interface used by the publisher services.
package tracking
