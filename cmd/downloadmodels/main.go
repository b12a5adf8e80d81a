// Command downloadmodels pre-fetches the CLIP model weights turbopix's
// semantic encoder needs, so a container image can bake them in at build
// time instead of paying the download on first request.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"turbopix/internal/semantic"
)

func main() {
	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		dataPath = "./data"
	}
	cacheDir := filepath.Join(dataPath, "models")

	baseURL := os.Getenv("MODEL_BASE_URL")
	if baseURL == "" {
		baseURL = "https://huggingface.co/sentence-transformers/clip-ViT-B-32/resolve/main"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	fmt.Printf("fetching model %s into %s\n", semantic.ModelVersion, cacheDir)
	modelDir, err := semantic.Fetch(ctx, cacheDir, baseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to fetch model: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("model ready at %s\n", modelDir)
}
