// Package upload moves asset files to a storage backend and records the
// resulting links in the cache.
//
// A run has two phases. Prepare runs once: for Bundlr it sizes every file
// awaiting upload (Estimator), prices the total and, when the node balance is
// short, funds it with a single transfer and polls until the deposit settles
// (FundingGate). UploadData then runs once per data kind through a Scheduler,
// a bounded pool that harvests completions as they arrive, checkpoints the
// cache whenever it refills, and stops dispatching when the Interrupt is set.
//
// Failures of single files are collected as *UploadError values and never
// stop the other uploads. Preflight failures abort before anything is sent.
package upload
