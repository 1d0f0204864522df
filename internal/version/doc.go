// Package version holds build metadata of the shippedbrain binary.
//
// Version, Commit and BuildTime are set through -ldflags "-X ..." at release
// time; local builds keep the defaults.
package version
