// Package generator runs build passes over a source tree.
//
// A Generator owns the parser and page registries, the template renderer and
// the output writer. Update scans the source tree, compares it to the build
// marker and, when anything changed, regenerates the whole site:
//
//	scan -> check -> parse -> construct -> render -> write -> assets -> marker
//
// Per-page failures are recorded on the BuildReport and, unless stop_on_error
// is set, the pass continues with the next page. Scan and asset failures
// abort the pass. The marker is only written after a pass that was not
// aborted.
package generator
