// Package operations holds the HTTP handlers. Handlers bind and validate the
// typed request for their operation, cross-check the caller identity header,
// and delegate every state decision to the coordinator.
package operations

import (
	"finco/txcoordinator/coordinator"
)

var coord *coordinator.Coordinator

// Setup injects the coordinator instance the handlers dispatch to.
func Setup(c *coordinator.Coordinator) {
	coord = c
}
