package semantic

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	getter "github.com/hashicorp/go-getter"

	"turbopix/internal/logging"
)

// modelFiles are the three artifacts a CLIP model directory must contain
// before New can load it.
var modelFiles = []string{"visual.onnx", "textual.onnx", "tokenizer.json"}

// Fetch downloads the CLIP model artifacts from baseURL (e.g. an object
// storage prefix or a pinned Hugging Face resolve URL) into
// <cacheDir>/<ModelVersion>/, skipping the download if the directory
// already holds all three expected files. This is the cache layout New
// expects to load from.
func Fetch(ctx context.Context, cacheDir, baseURL string) (string, error) {
	modelDir := filepath.Join(cacheDir, ModelVersion)

	if allPresent(modelDir) {
		logging.Debug("semantic: model already cached at %s", modelDir)
		return modelDir, nil
	}

	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		return "", fmt.Errorf("creating model cache dir %s: %w", modelDir, err)
	}

	for _, name := range modelFiles {
		src := baseURL + "/" + name
		dst := filepath.Join(modelDir, name)

		logging.Info("semantic: downloading %s", src)
		client := &getter.Client{
			Ctx:  ctx,
			Src:  src,
			Dst:  dst,
			Mode: getter.ClientModeFile,
		}
		if err := client.Get(); err != nil {
			return "", fmt.Errorf("fetching %s: %w", src, err)
		}
	}

	return modelDir, nil
}

func allPresent(dir string) bool {
	for _, name := range modelFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return false
		}
	}
	return true
}
