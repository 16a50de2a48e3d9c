// Package errors defines AppError and the codes used to classify failures:
// configuration problems, stage open failures and internal errors.
// Per-frame failures never surface here; they travel on the event bus.
package errors
