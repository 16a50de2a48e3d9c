// Package stages holds the built-in stage classes. Importing it registers
// them in registry.Default.
package stages
