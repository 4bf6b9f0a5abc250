// Package errors provides the classified error primitives used across pagepress.
//
// A ClassifiedError carries a category that maps onto the failure kinds of a
// build pass (scan, marker, parse, render, write, asset copy), a severity, and
// structured context such as the offending source path. The generator uses the
// category to decide whether a failure is confined to one page or aborts the
// pass, and the CLI adapter turns it into an exit code.
//
// Example usage:
//
//	err := errors.WrapError(cause, errors.CategoryParse, "could not parse page").
//		WithContext("path", "blog/first.md").
//		Build()
package errors
