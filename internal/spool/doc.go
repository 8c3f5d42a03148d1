// Package spool turns a drop directory of newline-delimited JSON files
// into a stream of collector events. A Watcher emits file paths once
// writers have settled; a Reader yields the events inside one file.
package spool
