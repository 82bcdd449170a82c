// Package workflow runs the claim/process/complete loop for one worker.
//
// An Engine claims items by atomically moving them from the stage's read
// queue to its work queue, asks the stage handler to validate them, runs the
// processor under a timeout while a heartbeat keeps the worker's status
// entry fresh, and finally moves the item to exactly one terminal queue:
// write on success, error on rejection or failure. Every outcome that names
// a case is also appended to the case's provenance document. Provenance
// failures are logged and never block the queue transition.
//
// When the queue is empty the engine sleeps according to the backoff
// scheduler, or terminates with ErrQueueEmpty when configured to exit. A
// cancelled context stops the loop after the current item; an item whose
// processor is interrupted by shutdown is released back to the tail of the
// read queue so it becomes the next claim.
package workflow
