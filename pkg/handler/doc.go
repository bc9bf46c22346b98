// Package handler provides the reply handlers for the common Insteon
// exchanges: direct standard and extended commands, modem management
// commands, all-linking flows, and unsolicited broadcast routing.
//
// A handler is attached to each command given to the protocol engine.
// It recognizes the command's echo and replies among all inbound
// traffic, decides when the command is resolved, and reports the result
// through its done callback. Base carries the timeout and retry
// bookkeeping shared by all of them.
//
// Database scan and modification handlers live in the db package next to
// the link databases they fill in.
package handler
