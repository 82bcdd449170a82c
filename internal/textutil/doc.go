// Package textutil turns free-form catalogue identifiers into safe filesystem
// names.
//
// DocumentID names provenance documents and their shelfmark directories;
// SanitizeToken builds log file names from worker names.
package textutil
