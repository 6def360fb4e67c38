// Package workflow defines the interface to the external workflow store that
// packed sub-jobs consume work-items from.
//
// The store itself is provided by the surrounding system. Implementations make
// themselves available to Open() by calling Register(), in the same manner as
// database/sql drivers.
package workflow
