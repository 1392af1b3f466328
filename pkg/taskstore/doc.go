// Package taskstore holds task results until their requester collects
// them. A chunk's result is written at most once; a lookup that arrives
// before the result does registers to be notified the moment it lands,
// served in the order requests arrived.
package taskstore
