// Package types defines the entity contract, the backend parameter shapes,
// backend configuration, and the standard errors shared by the tablesync
// packages.
package types
