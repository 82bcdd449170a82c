// Package workitem defines the JSON payloads carried by folio queues.
//
// Crop and OCR items come in two shapes: direct items name their input and
// output paths, case items name a (shelfmark, index, sequence) triple that is
// resolved against the provenance store. Decoding never rewrites the raw
// payload; the claim engine keeps the exact bytes popped from the read queue
// so the item can be removed from the work queue by value.
//
// ErrorRecord is the payload pushed to a stage's error queue.
package workitem
