// Package common holds helpers shared by several services.
//
// It provides scratch directory handling with best-effort cleanup and the
// detection of the current system actor (hostname/username) recorded on
// bookkeeping runs.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
