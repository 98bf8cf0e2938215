// Package provisioning contains the shared types of the instance lifecycle
// orchestrator: requests, instances, the error taxonomy and the progress
// observer.
//
// The lifecycle itself is organized into focused subpackages:
//   - scheduling/ — node selection and reservation
//   - netbind/ — NIC resolution and port attachment
//   - configdrive/ — first-boot payload assembly
//   - deploy/ — the deployment state machine
//   - teardown/ — undeploy and artifact cleanup
//
// This root package also hosts the read-only instance view used by the
// show and list operations.
package provisioning
