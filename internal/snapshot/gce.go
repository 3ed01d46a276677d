package snapshot

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/juju/clock"
	"google.golang.org/api/compute/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Machine image states reported by the Compute Engine API.
const (
	gceStatusCreating  = "CREATING"
	gceStatusUploading = "UPLOADING"
	gceStatusReady     = "READY"
	gceStatusInvalid   = "INVALID"
	gceStatusDeleting  = "DELETING"
)

// machineImageAPI is the subset of the Compute Engine API used by GCE.
type machineImageAPI interface {
	GetInstance(ctx context.Context, project, zone, name string) (*compute.Instance, error)
	InsertMachineImage(ctx context.Context, project string, img *compute.MachineImage) (*compute.Operation, error)
	GetMachineImage(ctx context.Context, project, name string) (*compute.MachineImage, error)
	DeleteMachineImage(ctx context.Context, project, name string) (*compute.Operation, error)
}

type computeAPI struct {
	svc *compute.Service
}

func (c computeAPI) GetInstance(ctx context.Context, project, zone, name string) (*compute.Instance, error) {
	return c.svc.Instances.Get(project, zone, name).Context(ctx).Do()
}

func (c computeAPI) InsertMachineImage(ctx context.Context, project string, img *compute.MachineImage) (*compute.Operation, error) {
	return c.svc.MachineImages.Insert(project, img).Context(ctx).Do()
}

func (c computeAPI) GetMachineImage(ctx context.Context, project, name string) (*compute.MachineImage, error) {
	return c.svc.MachineImages.Get(project, name).Context(ctx).Do()
}

func (c computeAPI) DeleteMachineImage(ctx context.Context, project, name string) (*compute.Operation, error) {
	return c.svc.MachineImages.Delete(project, name).Context(ctx).Do()
}

// GCE stores backups as Compute Engine machine images.
type GCE struct {
	api     machineImageAPI
	project string
	clock   clock.Clock
}

// NewGCE connects to the Compute Engine API for project. An empty
// credentialsFile falls back to application default credentials.
func NewGCE(ctx context.Context, project, credentialsFile string) (*GCE, error) {
	opts := []option.ClientOption{option.WithScopes(compute.ComputeScope)}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	svc, err := compute.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create compute service: %w", err)
	}
	return newGCE(computeAPI{svc: svc}, project, clock.WallClock), nil
}

func newGCE(api machineImageAPI, project string, clk clock.Clock) *GCE {
	return &GCE{api: api, project: project, clock: clk}
}

func (g *GCE) VerifyInstance(ctx context.Context, instance, zone string) error {
	if _, err := g.api.GetInstance(ctx, g.project, zone, instance); err != nil {
		return g.classify(OpVerify, instance, err)
	}
	return nil
}

func (g *GCE) CreateSnapshot(ctx context.Context, name, instance, zone string) error {
	img := &compute.MachineImage{
		Name:           name,
		SourceInstance: fmt.Sprintf("projects/%s/zones/%s/instances/%s", g.project, zone, instance),
	}
	op, err := g.api.InsertMachineImage(ctx, g.project, img)
	if err != nil {
		return g.classify(OpCreate, name, err)
	}
	return g.operationError(OpCreate, name, op)
}

func (g *GCE) DescribeSnapshot(ctx context.Context, name string) (*Description, error) {
	img, err := g.api.GetMachineImage(ctx, g.project, name)
	if err != nil {
		return nil, g.classify(OpDescribe, name, err)
	}

	switch img.Status {
	case gceStatusReady:
		return &Description{Name: img.Name, Status: img.Status, SizeBytes: img.TotalStorageBytes}, nil
	case gceStatusCreating, gceStatusUploading, "":
		return nil, NewError(CodeNotReady, OpDescribe, name,
			fmt.Sprintf("machine image %s is %s", name, orPending(img.Status)), g.clock.Now())
	case gceStatusDeleting:
		return nil, NewError(CodeNotFound, OpDescribe, name,
			fmt.Sprintf("machine image %s is being deleted", name), g.clock.Now())
	default:
		return nil, NewError(CodeCommand, OpDescribe, name,
			fmt.Sprintf("machine image %s is %s", name, img.Status), g.clock.Now())
	}
}

func (g *GCE) DeleteSnapshot(ctx context.Context, name string) error {
	op, err := g.api.DeleteMachineImage(ctx, g.project, name)
	if err != nil {
		return g.classify(OpDelete, name, err)
	}
	return g.operationError(OpDelete, name, op)
}

func orPending(status string) string {
	if status == "" {
		return "PENDING"
	}
	return status
}

// operationError turns an operation that failed synchronously into an Error.
func (g *GCE) operationError(op, resource string, operation *compute.Operation) error {
	if operation == nil || operation.Error == nil || len(operation.Error.Errors) == 0 {
		return nil
	}
	first := operation.Error.Errors[0]
	code := CodeCommand
	switch first.Code {
	case "QUOTA_EXCEEDED", "RATE_LIMIT_EXCEEDED":
		code = CodeQuota
	case "RESOURCE_NOT_FOUND":
		code = CodeNotFound
	case "PERMISSION_DENIED", "FORBIDDEN":
		code = CodePermission
	}
	return NewError(code, op, resource, first.Message, g.clock.Now())
}

// classify maps a Compute Engine API error onto a provider Code.
func (g *GCE) classify(op, resource string, err error) error {
	if _, ok := AsError(err); ok {
		return err
	}

	e := NewError(classifyCode(err), op, resource, err.Error(), g.clock.Now())
	e.cause = err
	return e
}

func classifyCode(err error) Code {
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CodeTimeout
	}

	var gErr *googleapi.Error
	if !errors.As(err, &gErr) {
		return CodeCommand
	}

	switch gErr.Code {
	case http.StatusUnauthorized, http.StatusProxyAuthRequired:
		return CodeAuth
	case http.StatusForbidden:
		for _, item := range gErr.Errors {
			switch item.Reason {
			case "quotaExceeded", "rateLimitExceeded", "userRateLimitExceeded", "dailyLimitExceeded":
				return CodeQuota
			}
		}
		return CodePermission
	case http.StatusTooManyRequests, http.StatusPaymentRequired:
		return CodeQuota
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return CodeTimeout
	default:
		return CodeCommand
	}
}
