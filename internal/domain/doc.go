// Package domain holds the channel state model, gateway event types, and the
// interfaces that connect feature engines to their collaborators. It has no
// dependencies on other internal packages.
package domain
