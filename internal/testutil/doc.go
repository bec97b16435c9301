// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing conversations, rosters and agent update
// events. They are not intended for production usage.
package testutil
