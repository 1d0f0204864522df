// Package publisher publishes a tracked model run to the hosting platform.
//
// Run chains the three steps of a publish: the run is validated, its model
// artifacts are packaged into an archive inside a scratch directory, and the
// archive is uploaded after logging in. The first failing step ends the
// publish and the scratch directory is removed on every exit path.
package publisher
