package taskproxy

import (
	"errors"
	"runtime"

	"github.com/cuemby/meshstate/pkg/wire"
)

// ErrNothingToMap is returned when a map call supplies none of mapIter,
// mapArgs or mapKwargs, so there is nothing to spread the call over.
var ErrNothingToMap = errors.New("taskproxy: map requires at least one of an iterable, a per-item args list, or a per-item kwargs list")

// ErrTooManyChunks is returned when a map call asks for at least as many
// chunks as it has items. Every chunk must get at least one item, with
// room to spare for the chunk-size rounding in chunkPlans, so the item
// count must strictly exceed the chunk count.
var ErrTooManyChunks = errors.New("taskproxy: item count must exceed the requested chunk count")

// BuildCallPlans merges a map call's per-item parameters (mapIter,
// mapArgs, mapKwargs) with its shared parameters (args, kwargs) into one
// CallPlan per item. It generalizes the eight-way branch a map call can
// take depending on which of mapIter/mapArgs/mapKwargs the caller
// supplied: each is optional, and presence or absence of each is handled
// independently rather than as a literal combinatorial switch.
//
// When more than one of mapIter/mapArgs/mapKwargs is supplied, they must
// line up positionally; the shorter ones bound the number of items
// produced, matching Python's zip() truncation behavior.
func BuildCallPlans(mapIter []any, mapArgs [][]any, args []any, mapKwargs []map[string]any, kwargs map[string]any) ([]wire.CallPlan, error) {
	hasIter := mapIter != nil
	hasArgs := mapArgs != nil
	hasKwargs := mapKwargs != nil
	if !hasIter && !hasArgs && !hasKwargs {
		return nil, ErrNothingToMap
	}

	length := -1
	for _, n := range []struct {
		present bool
		n       int
	}{
		{hasIter, len(mapIter)},
		{hasArgs, len(mapArgs)},
		{hasKwargs, len(mapKwargs)},
	} {
		if !n.present {
			continue
		}
		if length == -1 || n.n < length {
			length = n.n
		}
	}

	plans := make([]wire.CallPlan, length)
	for i := 0; i < length; i++ {
		plan := wire.CallPlan{}
		if hasIter {
			plan.Item = mapIter[i]
			plan.HasItem = true
		}

		callArgs := args
		if hasArgs {
			merged := make([]any, 0, len(mapArgs[i])+len(args))
			merged = append(merged, mapArgs[i]...)
			merged = append(merged, args...)
			callArgs = merged
		}
		plan.Args = callArgs

		callKwargs := kwargs
		if hasKwargs {
			merged := make(map[string]any, len(mapKwargs[i])+len(kwargs))
			for k, v := range mapKwargs[i] {
				merged[k] = v
			}
			for k, v := range kwargs {
				merged[k] = v
			}
			callKwargs = merged
		}
		plan.Kwargs = callKwargs

		plans[i] = plan
	}
	return plans, nil
}

// PlanMap merges a map call's parameters into per-item CallPlans and
// splits them into chunks, the way both Proxy.MapAsync (submitting
// locally) and a remote client (submitting over the wire) need to: it
// decides the chunk count, mints the TaskID that encodes it, and returns
// the chunks in submission order. It does no I/O; the caller turns each
// chunk into a wire.TaskDispatch and submits it however it submits work.
func PlanMap(numChunks int, mapIter []any, mapArgs [][]any, args []any, mapKwargs []map[string]any, kwargs map[string]any) (wire.TaskID, [][]wire.CallPlan, error) {
	plans, err := BuildCallPlans(mapIter, mapArgs, args, mapKwargs, kwargs)
	if err != nil {
		return wire.TaskID{}, nil, err
	}

	if numChunks <= 0 {
		numChunks = runtime.NumCPU()
	}
	if len(plans) <= numChunks {
		return wire.TaskID{}, nil, ErrTooManyChunks
	}

	chunks := chunkPlans(plans, numChunks)
	chunkLength := 0
	if len(chunks) > 0 {
		chunkLength = len(chunks[0])
	}
	taskID := wire.NewChunkedTaskID(uint32(chunkLength), uint32(len(plans)), uint32(len(chunks)))
	return taskID, chunks, nil
}

// chunkPlans splits plans into numChunks roughly-equal, contiguous runs,
// front-loading the remainder the way divmod(length, numChunks) does: the
// first (length mod numChunks) chunks get one extra item. numChunks is
// clamped to [1, len(plans)] so a short map never produces empty chunks.
func chunkPlans(plans []wire.CallPlan, numChunks int) [][]wire.CallPlan {
	length := len(plans)
	if numChunks <= 0 {
		numChunks = 1
	}
	if numChunks > length {
		numChunks = length
	}
	if numChunks == 0 {
		return nil
	}

	base := length / numChunks
	extra := length % numChunks
	chunks := make([][]wire.CallPlan, numChunks)
	start := 0
	for i := 0; i < numChunks; i++ {
		size := base
		if i < extra {
			size++
		}
		chunks[i] = plans[start : start+size]
		start += size
	}
	return chunks
}
