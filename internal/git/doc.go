// Package git reads the revision of the work tree a site is built from.
//
// The revision is informational: it is attached to build reports, build
// history events and notifications, and exposed to templates as
// .Site.Revision. A base directory outside any repository has no revision.
package git
