// Package cmdtests contains the contract tests for a command service: accepting commands,
// calling back when they are processed, and serving the processed records through a paged
// query endpoint.
//
// The tests are written against the T type, which provides the domain operations on top of
// the lower-level framework package.
package cmdtests
