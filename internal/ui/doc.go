// Package ui renders process lifecycle events for interactive terminal sessions.
package ui
