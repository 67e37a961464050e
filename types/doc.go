// Package types defines shared error and schema types used across the
// nodeflow engine, storage, and tool layers.
package types
