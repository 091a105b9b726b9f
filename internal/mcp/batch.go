package mcp

import "context"

// maxBatchSize bounds every batch_* operation.
const maxBatchSize = 100

// BatchFailure reports one failed batch element.
type BatchFailure struct {
	Item  interface{} `json:"item"`
	Error string      `json:"error"`
}

// BatchResult is the shared response shape of batch operations.
type BatchResult struct {
	SuccessCount int            `json:"successCount"`
	FailureCount int            `json:"failureCount"`
	Failed       []BatchFailure `json:"failed,omitempty"`
}

// runBatch applies fn to every item independently. All-failed batches
// come back as BATCH_OPERATION_FAILED; partial success is a success.
func runBatch(ctx context.Context, items []Args, fn func(ctx context.Context, item Args) error) (*ToolResult, error) {
	if len(items) > maxBatchSize {
		return nil, NewDomainError(ErrBatchSizeExceeded,
			"batch size %d exceeds the maximum of %d", len(items), maxBatchSize)
	}
	if len(items) == 0 {
		return nil, MissingFieldError("data.items", "object array", `[{"title": "Fix bug"}]`)
	}
	result := BatchResult{}
	for _, item := range items {
		if err := fn(ctx, item); err != nil {
			result.FailureCount++
			result.Failed = append(result.Failed, BatchFailure{
				Item:  map[string]interface{}(item),
				Error: err.Error(),
			})
			continue
		}
		result.SuccessCount++
	}
	if result.SuccessCount == 0 && result.FailureCount > 0 {
		e := NewDomainError(ErrBatchOperationFailed,
			"all %d batch items failed", result.FailureCount)
		for _, f := range result.Failed {
			e.ValidationErrors = append(e.ValidationErrors, f.Error)
		}
		return nil, e
	}
	return JSONResult(result)
}
