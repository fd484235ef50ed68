package graph

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/skein-dev/skein/checkpoint"
	"github.com/skein-dev/skein/runnable"
)

// Conditional routing always follows the route function's declared choice.
func TestRouting_FollowsStateProperty(t *testing.T) {
	branch := func(label string) NodeFunc {
		return func(_ context.Context, _ State) (State, error) {
			return State{"branch": label}, nil
		}
	}
	route := func(_ context.Context, state State) (string, error) {
		if v, _ := state["v"].(int); v%2 == 0 {
			return "even", nil
		}
		return "odd", nil
	}
	g, err := New().
		AddNode("classify", func(_ context.Context, _ State) (State, error) {
			return State{}, nil
		}).
		AddNode("even", branch("even")).
		AddNode("odd", branch("odd")).
		AddConditionalEdge("classify", route, "even", "odd").
		AddEdge("even", END).
		AddEdge("odd", END).
		SetEntry("classify").
		Compile()
	require.NoError(t, err)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("branch matches parity of v", prop.ForAll(
		func(v int) bool {
			out, err := g.Invoke(context.Background(), State{"v": v})
			if err != nil {
				return false
			}
			want := "odd"
			if v%2 == 0 {
				want = "even"
			}
			return out.(State)["branch"] == want
		},
		gen.IntRange(0, 10_000),
	))

	properties.TestingRun(t)
}

// A countdown cycle runs exactly n steps and leaves exactly n checkpoints,
// each step strictly one greater than the last.
func TestCycle_CheckpointChainProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("n-step countdown leaves an n-link chain", prop.ForAll(
		func(n int) bool {
			saver := checkpoint.NewMemorySaver()
			g := countdownGraph(t, WithCheckpointer(saver), WithMaxSteps(n+1))

			cfg := &runnable.Config{ThreadID: "t"}
			out, err := g.Invoke(context.Background(), State{"n": float64(n)},
				runnable.WithCallConfig(cfg))
			if err != nil {
				return false
			}
			if out.(State)["n"] != float64(0) {
				return false
			}

			chain, err := saver.List(context.Background(), "t")
			if err != nil || len(chain) != n {
				return false
			}
			for i, cp := range chain {
				if cp.Step != i {
					return false
				}
				if i == 0 && cp.ParentStep != nil {
					return false
				}
				if i > 0 && (cp.ParentStep == nil || *cp.ParentStep != i-1) {
					return false
				}
			}
			return chain[n-1].NextNode == END
		},
		gen.IntRange(1, 15),
	))

	properties.TestingRun(t)
}
