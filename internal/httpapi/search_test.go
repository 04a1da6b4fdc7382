package httpapi

import (
	"testing"

	"github.com/airweave-core/airweave-core/internal/vectorstore"
)

func TestParseSearchMethodDefaultsToHybrid(t *testing.T) {
	if got := parseSearchMethod(""); got != vectorstore.SearchHybrid {
		t.Errorf("parseSearchMethod(\"\") = %v, want hybrid", got)
	}
	if got := parseSearchMethod("bogus"); got != vectorstore.SearchHybrid {
		t.Errorf("parseSearchMethod(bogus) = %v, want hybrid", got)
	}
}

func TestParseSearchMethodRecognizesNeuralAndKeyword(t *testing.T) {
	if got := parseSearchMethod("neural"); got != vectorstore.SearchNeural {
		t.Errorf("parseSearchMethod(neural) = %v, want neural", got)
	}
	if got := parseSearchMethod("keyword"); got != vectorstore.SearchKeyword {
		t.Errorf("parseSearchMethod(keyword) = %v, want keyword", got)
	}
}
