// Package pinpoints reduces a whole-program execution trace to a small set of
// representative simulation regions (the SimPoint methodology).
//
// # Reading Guide
//
// Start with these packages to follow the data flow:
//   - fv/: frequency-vector (BBV) files, one slice per `T:` line, plus the trailing block metadata
//   - simpoints/: the clustering tool's slice assignment and weight files
//   - regions/: cumulative icount tables, region boundary synthesis, the regions CSV format
//   - reconcile/: cluster-count scan and the overlap reconciliation loop
//
// # Architecture
//
// This package holds the error taxonomy shared by every stage. Sub-packages
// implement the stages; cmd/ wires them into commands.
//   - pinpoints/jobs/: bounded-parallelism subprocess scheduler
//   - pinpoints/config/: layered configuration and the state document handed to child jobs
//   - pinpoints/zfile/: transparent gzip/zstd/bzip2 input
//   - pinpoints/report/: XLSX export of region descriptors
//
// External tools (the clustering binary, the region materializer) are only ever
// reached through files at agreed paths and subprocess exit codes.
package pinpoints
