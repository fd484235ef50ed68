package graph

// State is the running state of a graph execution: a serializable map of
// named values. Nodes return partial updates that are merged into the
// running state by the graph's reducers.
type State map[string]any

// Clone returns a shallow copy.
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Reducer combines the current value of a state key with a node's update
// for that key. The default is overwrite; custom reducers are declared per
// key at graph-build time, never inferred.
type Reducer func(current, update any) any

// Overwrite replaces the current value with the update.
func Overwrite() Reducer {
	return func(_, update any) any { return update }
}

// Append accumulates values into a slice. Slice updates are concatenated;
// scalar updates are appended as single elements. The current slice is
// copied before appending: State.Clone is shallow, so writing into spare
// capacity would leak into snapshots cloned from earlier steps.
func Append() Reducer {
	return func(current, update any) any {
		cur, _ := current.([]any)
		out := make([]any, len(cur), len(cur)+1)
		copy(out, cur)
		if items, ok := update.([]any); ok {
			return append(out, items...)
		}
		return append(out, update)
	}
}

// Sum adds numeric updates to the current value. Ints and float64s are
// supported; anything else falls back to overwrite.
func Sum() Reducer {
	return func(current, update any) any {
		switch u := update.(type) {
		case int:
			if c, ok := current.(int); ok {
				return c + u
			}
		case float64:
			if c, ok := current.(float64); ok {
				return c + u
			}
		}
		return update
	}
}

// mergeState folds a partial update into the running state: per-key custom
// reducers when registered, overwrite otherwise. Keys absent from the
// update persist unchanged. The inputs are not mutated.
func mergeState(current, update State, reducers map[string]Reducer) State {
	out := current.Clone()
	for k, v := range update {
		if r, ok := reducers[k]; ok {
			out[k] = r(out[k], v)
			continue
		}
		out[k] = v
	}
	return out
}
