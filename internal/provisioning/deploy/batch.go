package deploy

import (
	"context"
	"sync"
	"time"

	"github.com/ironsmith-io/ironsmith/internal/provisioning"
)

// DeployAll deploys every request concurrently and returns one result per
// request, in request order. A failed request never aborts its siblings.
func (d *Driver) DeployAll(ctx context.Context, reqs []*provisioning.InstanceRequest, wait time.Duration) []provisioning.Result {
	results := make([]provisioning.Result, len(reqs))

	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req *provisioning.InstanceRequest) {
			defer wg.Done()
			instance, err := d.Deploy(ctx, req, wait)
			results[i] = provisioning.Result{Request: req, Instance: instance, Err: err}
		}(i, req)
	}
	wg.Wait()

	return results
}
