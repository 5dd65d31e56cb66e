// Package log defines the logging interface and typed fields used across
// lib-licensing.
//
// Backends (see the zap package) implement Logger. Library code only ever
// depends on this interface, so hosts can plug their own logger in.
package log
