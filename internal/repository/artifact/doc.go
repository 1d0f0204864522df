// Package artifact implements access to run artifacts by artifact URI.
//
// A Repository is opened for a run's artifact root and can download a subtree
// to a local directory or upload a local directory under a path. Local
// directories, S3-compatible buckets and the tracking server artifact proxy
// are supported.
package artifact
