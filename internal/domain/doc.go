// Package domain holds the core entities shared across the send pipeline,
// tracking endpoints, and webhook reconciliation: delivery records and the
// open/click events attributed to them.
package domain
