// Package packager turns a tracked run into a publishable archive.
//
// ValidateRun checks that the run finished and logged a model with a signature
// and an input example. Package downloads the model artifacts into a scratch
// directory, re-associates them with a bookkeeping run, writes the
// shipped-brain.yaml manifest and zips everything into a uniquely named
// archive. Run wraps both steps for the "package" command.
package packager
