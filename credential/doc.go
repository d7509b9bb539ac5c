// Package credential holds the trust anchors a guard verifies requests against.
//
// Two store shapes exist and exactly one is selected when a guard is installed:
//
//   - Device set: a service (operator) key, a seed key and an arena of device keys
//     addressed by stable uint32 ids.
//   - Certificate trust: a root key that issues short-lived certificates, plus a
//     seed key.
//
// Downstream code only sees the Anchors capability (primary, secondary and seed
// verification); it never branches on the concrete shape except to decide which
// operations a shape supports.
package credential
