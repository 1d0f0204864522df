// Package model contains core domain types for publishing a tracked model.
//
// It defines the tracked Run and the LoggedModel descriptor extracted from it,
// the closed set of supported Flavor values with their canonical tags, the
// publish-name rule and the Manifest written next to the packaged artifacts.
package model
