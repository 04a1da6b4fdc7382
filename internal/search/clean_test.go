package search

import "testing"

func TestCleanResultsStripsSensitiveKeys(t *testing.T) {
	results := []Result{{
		EntityID: "e1",
		Score:    0.5,
		Payload: map[string]any{
			"name":                    "doc",
			"source_name":             "notion",
			"url":                     "https://example.com/secret",
			"local_path":              "/tmp/foo",
			"checksum":                "abc123",
			"sync_id":                 "sync_1",
			"sync_job_id":             "job_1",
			"textual_representation":  "the whole document text",
			"dense_vector":            []float32{1, 2, 3},
		},
	}}

	cleaned := CleanResults(results)

	payload := cleaned[0].Payload
	for _, key := range []string{"url", "local_path", "checksum", "sync_id", "sync_job_id", "textual_representation", "dense_vector"} {
		if _, ok := payload[key]; ok {
			t.Errorf("payload still carries sensitive key %q", key)
		}
	}
	if payload["name"] != "doc" {
		t.Errorf("payload lost non-sensitive key %q", "name")
	}
}

func TestCleanResultsDoesNotMutateInput(t *testing.T) {
	original := map[string]any{"url": "https://example.com"}
	results := []Result{{EntityID: "e1", Payload: original}}

	CleanResults(results)

	if _, ok := original["url"]; !ok {
		t.Error("CleanResults mutated the caller's payload map")
	}
}

func TestCleanResultsHandlesNilPayload(t *testing.T) {
	results := []Result{{EntityID: "e1", Payload: nil}}

	cleaned := CleanResults(results)

	if cleaned[0].Payload != nil {
		t.Errorf("Payload = %v, want nil", cleaned[0].Payload)
	}
}
