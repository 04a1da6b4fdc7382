package search

// sensitivePayloadKeys are the payload fields spec.md §4.10's "Result
// cleaning" rule names explicitly: vectors, download URLs, local paths,
// checksums, sync ids, and the embeddable-text field. Point payloads
// (internal/vectorstore) don't carry vectors or the embeddable text today,
// and federated hits never carry a sync id — but a driver-specific payload
// addition later getting leaked to a client by accident is exactly the
// failure this step guards against, so every key is stripped whenever
// present rather than only the ones currently populated.
var sensitivePayloadKeys = []string{
	"dense_vector",
	"sparse_vector",
	"url",
	"local_path",
	"checksum",
	"sync_id",
	"sync_job_id",
	"textual_representation",
}

// CleanResults strips large or sensitive fields from every result's
// payload before it leaves the core, regardless of whether the response
// is streamed or synchronous.
func CleanResults(results []Result) []Result {
	cleaned := make([]Result, len(results))
	for i, r := range results {
		cleaned[i] = r
		cleaned[i].Payload = cleanPayload(r.Payload)
	}
	return cleaned
}

func cleanPayload(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}

	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	for _, key := range sensitivePayloadKeys {
		delete(out, key)
	}
	return out
}
