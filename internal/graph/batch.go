package graph

import "time"

// BatchConfig sets how many rows go into one UNWIND query per label
type BatchConfig struct {
	FileBatchSize   int
	MethodBatchSize int
	TrashBatchSize  int
}

// DefaultBatchConfig suits repositories of a few thousand files
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		FileBatchSize:   1000,
		MethodBatchSize: 2000,
		TrashBatchSize:  500,
	}
}

const (
	opClear  = "clear_run"
	opRun    = "run_node"
	opFiles  = "file_nodes"
	opMethod = "method_nodes"
	opTrash  = "trash_nodes"
	opRead   = "read"
)

// timeoutFor returns the per-operation query timeout
func timeoutFor(op string) time.Duration {
	switch op {
	case opClear, opFiles, opMethod, opTrash:
		return 3 * time.Minute
	case opRun, opRead:
		return 30 * time.Second
	default:
		return time.Minute
	}
}

// chunks splits rows into slices of at most size elements
func chunks(rows []map[string]any, size int) [][]map[string]any {
	if size <= 0 {
		size = 500
	}
	var out [][]map[string]any
	for i := 0; i < len(rows); i += size {
		end := i + size
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[i:end])
	}
	return out
}
