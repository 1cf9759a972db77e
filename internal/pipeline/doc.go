// Package pipeline drives one audiobook from license request to shelved
// library file, and fans a batch of requests out across workers.
//
// Every observable step transitions the queue store so status reporting and
// crash recovery see the same state machine: pending, license_requested,
// license_granted, downloading, download_complete, decrypting, converted,
// with retrying and error as the failure lanes. Staged artifacts are reused
// on re-runs, so an interrupted batch resumes where it stopped instead of
// re-downloading ciphertext.
package pipeline
