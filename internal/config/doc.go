// Package config defines publisher settings and helpers to load, validate and
// save them in YAML format.
//
// Settings come from an optional YAML file and are then overridden by the
// environment, so account credentials and tracking locations can be provided
// the same way the tracking library reads them.
package config
