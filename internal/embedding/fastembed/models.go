// Package fastembed embeds text locally with ONNX sentence-embedding models.
package fastembed

import "errors"

// ErrUnavailable is returned when the binary was built without cgo.
var ErrUnavailable = errors.New("fastembed: not available (binary built without cgo support, use the tfidf or openai embedder)")

// Config configures the FastEmbed embedder.
type Config struct {
	// Model is a friendly model name such as BAAI/bge-small-en-v1.5.
	Model     string
	CacheDir  string
	MaxLength int
}

const defaultModel = "BAAI/bge-small-en-v1.5"

var modelDimensions = map[string]int{
	"BAAI/bge-small-en-v1.5":                 384,
	"BAAI/bge-small-en":                      384,
	"BAAI/bge-base-en-v1.5":                  768,
	"BAAI/bge-base-en":                       768,
	"BAAI/bge-small-zh-v1.5":                 512,
	"sentence-transformers/all-MiniLM-L6-v2": 384,
}

// ModelDimension reports the output size of a supported model.
func ModelDimension(model string) (int, bool) {
	if model == "" {
		model = defaultModel
	}
	dim, ok := modelDimensions[model]
	return dim, ok
}
