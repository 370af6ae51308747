// Package core defines the shared language between the host platform and
// its query runners.
//
// This package contains:
//   - Result types (Column, QueryResult) and the generic ColumnType enum
//   - Schema introspection types (TableSchema)
//   - The declarative ConfigurationSchema used to render and validate
//     data source settings
//   - The User identity passed to query runners
//
// The Golden Rule: pkg/core imports ONLY the standard library.
// Runners and the host depend on core, not the reverse.
package core
