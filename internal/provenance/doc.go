// Package provenance keeps the per-case XML audit documents.
//
// Each (shelfmark, index) pair owns one document at
// <root>/<DocumentID(shelfmark)>/<DocumentID(index)>.xml. A document holds one
// <item> per page sequence; items accumulate image and OCR artifact paths and
// a log of processing events. Mutations only ever append to those lists.
//
// Every read-modify-write cycle holds an exclusive advisory lock on
// <document>.lock for its full duration and replaces the document by atomic
// rename, so concurrent workers (in any process) updating the same case are
// serialized and never lose each other's entries. Readers take a shared lock.
//
// A document that fails to parse is moved aside to <document>.corrupt and
// regenerated from a fresh skeleton.
package provenance
