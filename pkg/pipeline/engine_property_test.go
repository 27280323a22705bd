//go:build property
// +build property

package pipeline_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/ASE-Bucure-ti/signbridge/pkg/callback"
	"github.com/ASE-Bucure-ti/signbridge/pkg/pipeline"
	"github.com/ASE-Bucure-ti/signbridge/pkg/store"
	"github.com/ASE-Bucure-ti/signbridge/pkg/telemetry"
	"github.com/ASE-Bucure-ti/signbridge/pkg/wire"
)

// TestResponseStatusInvariantProperty checks spec.md §4.8's status rule
// across arbitrary object counts: with no session or selection supplied,
// every object fails with CERT_NOT_FOUND, so results is always empty and
// status is "error" for any non-empty list and "ok" for an empty one.
func TestResponseStatusInvariantProperty(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 100
	properties := gopter.NewProperties(params)

	tp, err := telemetry.New(context.Background(), telemetry.DefaultConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	engine := pipeline.NewEngine(store.NewRouter(nil, nil, 0, 0), callback.NewClient(0), tp, nil)

	properties.Property("no selection yields status error for every non-empty object list", prop.ForAll(
		func(n int) bool {
			objects := make([]wire.ResolvedObject, n)
			for i := range objects {
				objects[i] = wire.ResolvedObject{ID: fmt.Sprintf("obj-%d", i)}
			}
			env := &wire.RequestEnvelope{RequestID: "req-prop"}
			resp := engine.Run(context.Background(), env, objects, nil, nil, nil, nil)
			if n == 0 {
				return resp.Status == "ok"
			}
			return resp.Status == "error" && len(resp.Results) == 0 && len(resp.Errors) == n
		},
		gen.IntRange(0, 12),
	))

	properties.TestingRun(t)
}
