// Package snapshot adapts a cloud provider's image snapshot API to the
// create/describe/delete operations the backup lifecycle needs.
package snapshot

import "context"

// Provider is the remote snapshot backend. All errors returned are *Error.
type Provider interface {
	// VerifyInstance checks that the source instance exists and is reachable.
	VerifyInstance(ctx context.Context, instance, zone string) error
	// CreateSnapshot starts producing a snapshot. Returning nil means the job
	// was accepted, not that the snapshot is ready.
	CreateSnapshot(ctx context.Context, name, instance, zone string) error
	// DescribeSnapshot reports a ready snapshot, or an Error with CodeNotReady
	// while it is still in progress.
	DescribeSnapshot(ctx context.Context, name string) (*Description, error)
	DeleteSnapshot(ctx context.Context, name string) error
}

// Description is the state of a ready snapshot.
type Description struct {
	Name      string
	Status    string
	SizeBytes int64
}
