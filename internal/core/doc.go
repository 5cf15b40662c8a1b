// Package core runs file repairs on top of the mender package.
//
// It holds everything between a transport and the row repair engine, so web
// handlers and the CLI share one pipeline.
//
// # Profiles
//
// Profiles are registered once at startup with [Register] or [RegisterAll]
// and looked up by name with [Get]. Each job and each synchronous request
// builds its own Mender from the profile, so estimations never leak between
// files and no locking is needed around a Mender.
//
// # Repair Pipeline
//
// [RepairStream] reads a file line by line and writes the repaired file:
//
//  1. The column count comes from the profile or the header line
//  2. Valid rows are written unchanged and fitted into the estimations
//  3. Other rows are optimized when a threshold is set, then mended
//  4. Rows that cannot be repaired are recorded and written unchanged
//
// # Jobs
//
// [Service.StartRepair] runs a repair in the background and returns a job
// ID. Progress is broadcast to subscribers via [Service.SubscribeProgress].
// At most [config.RepairConfig.MaxConcurrent] jobs run at once; see
// [RepairLimiter]. Finished jobs are recorded in the ledger when one is
// configured.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each message carries a code (MND001, FILE001, ...) for support.
package core
