package milvus

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// sparseIndices and sparseValues split a core.Point's sparse vector (keyed
// by token hash) into the parallel slices milvus-sdk-go's sparse embedding
// constructor expects.
func sparseIndices(v map[uint32]float32) []uint32 {
	idx := make([]uint32, 0, len(v))
	for k := range v {
		idx = append(idx, k)
	}
	sort.Slice(idx, func(i, j int) bool { return idx[i] < idx[j] })
	return idx
}

func sparseValues(v map[uint32]float32) []float32 {
	vals := make([]float32, 0, len(v))
	idx := sparseIndices(v)
	for _, k := range idx {
		vals = append(vals, v[k])
	}
	return vals
}

// marshalPayload serializes a point's payload map to the bytes Milvus's
// dynamic JSON column expects. A nil payload marshals to an empty object
// rather than a JSON null, since Milvus rejects null dynamic-field rows.
func marshalPayload(payload map[string]any) []byte {
	if payload == nil {
		payload = map[string]any{}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return []byte("{}")
	}
	return b
}

// quotedList renders ids as a Milvus boolean-expression list literal, e.g.
// ["a", "b"], for use in "field in [...]" filter expressions.
func quotedList(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = fmt.Sprintf("%q", id)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
