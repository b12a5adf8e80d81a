// Package semantic wraps the two ONNX CLIP towers (visual and textual) used
// to turn an image, a video's sampled frames, or a text query into a
// 512-dimensional, L2-normalized embedding comparable by cosine distance.
package semantic

import (
	"fmt"
	"image"
	"math"
	"path/filepath"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/sugarme/tokenizer/pretrained"
	"github.com/yalue/onnxruntime_go"

	"turbopix/internal/logging"
)

const (
	// InputSize is the square pixel dimension CLIP ViT-B/32 expects.
	InputSize = 224
	// EmbeddingDim is the dimensionality of the output embedding.
	EmbeddingDim = 512
	// ContextLength is the fixed token count the textual tower expects.
	ContextLength = 77
	// eotTokenID is CLIP's end-of-text token, also used to pad short sequences.
	eotTokenID = 49407
)

var imagenetMean = [3]float32{0.48145466, 0.4578275, 0.40821073}
var imagenetStd = [3]float32{0.26862954, 0.26130258, 0.27577711}

// Encoder holds the loaded ONNX sessions and tokenizer. A single Encoder is
// shared across the pipeline; each tower's Run() is guarded by its own mutex
// since onnxruntime_go sessions are not safe for concurrent Run calls.
type Encoder struct {
	visualMu   sync.Mutex
	visual     *onnxruntime_go.AdvancedSession
	visualIn   *onnxruntime_go.Tensor[float32]
	visualOut  *onnxruntime_go.Tensor[float32]

	textualMu  sync.Mutex
	textual    *onnxruntime_go.AdvancedSession
	textualIn  *onnxruntime_go.Tensor[int32]
	textualOut *onnxruntime_go.Tensor[float32]

	tokenizer *pretrained.Tokenizer
}

// ModelVersion is recorded alongside every vector written to the store, so
// re-running semantic encoding after a model upgrade can be detected.
const ModelVersion = "clip-vit-b32-224"

// New loads the visual and textual ONNX sessions and the tokenizer out of
// modelDir, which is expected to contain visual.onnx, textual.onnx, and
// tokenizer.json — the layout Fetch populates.
func New(modelDir string) (*Encoder, error) {
	if err := onnxruntime_go.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("initializing ONNX runtime: %w", err)
	}

	options, err := onnxruntime_go.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("creating ONNX session options: %w", err)
	}
	defer options.Destroy()

	visualInShape := onnxruntime_go.NewShape(1, 3, InputSize, InputSize)
	visualOutShape := onnxruntime_go.NewShape(1, EmbeddingDim)
	visualIn, err := onnxruntime_go.NewEmptyTensor[float32](visualInShape)
	if err != nil {
		return nil, fmt.Errorf("allocating visual input tensor: %w", err)
	}
	visualOut, err := onnxruntime_go.NewEmptyTensor[float32](visualOutShape)
	if err != nil {
		visualIn.Destroy()
		return nil, fmt.Errorf("allocating visual output tensor: %w", err)
	}

	visualSession, err := onnxruntime_go.NewAdvancedSession(
		filepath.Join(modelDir, "visual.onnx"),
		[]string{"pixel_values"},
		[]string{"image_embeds"},
		[]onnxruntime_go.ArbitraryTensor{visualIn},
		[]onnxruntime_go.ArbitraryTensor{visualOut},
		options,
	)
	if err != nil {
		visualIn.Destroy()
		visualOut.Destroy()
		return nil, fmt.Errorf("creating visual ONNX session: %w", err)
	}

	textualInShape := onnxruntime_go.NewShape(1, ContextLength)
	textualOutShape := onnxruntime_go.NewShape(1, EmbeddingDim)
	textualIn, err := onnxruntime_go.NewEmptyTensor[int32](textualInShape)
	if err != nil {
		return nil, fmt.Errorf("allocating textual input tensor: %w", err)
	}
	textualOut, err := onnxruntime_go.NewEmptyTensor[float32](textualOutShape)
	if err != nil {
		textualIn.Destroy()
		return nil, fmt.Errorf("allocating textual output tensor: %w", err)
	}

	textualSession, err := onnxruntime_go.NewAdvancedSession(
		filepath.Join(modelDir, "textual.onnx"),
		[]string{"input_ids"},
		[]string{"text_embeds"},
		[]onnxruntime_go.ArbitraryTensor{textualIn},
		[]onnxruntime_go.ArbitraryTensor{textualOut},
		options,
	)
	if err != nil {
		textualIn.Destroy()
		textualOut.Destroy()
		return nil, fmt.Errorf("creating textual ONNX session: %w", err)
	}

	tk, err := pretrained.FromFile(filepath.Join(modelDir, "tokenizer.json"))
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer: %w", err)
	}

	logging.Info("semantic: CLIP encoder loaded from %s", modelDir)

	return &Encoder{
		visual:     visualSession,
		visualIn:   visualIn,
		visualOut:  visualOut,
		textual:    textualSession,
		textualIn:  textualIn,
		textualOut: textualOut,
		tokenizer:  tk,
	}, nil
}

// Close releases the ONNX sessions and tensors.
func (e *Encoder) Close() {
	if e.visual != nil {
		e.visual.Destroy()
	}
	if e.visualIn != nil {
		e.visualIn.Destroy()
	}
	if e.visualOut != nil {
		e.visualOut.Destroy()
	}
	if e.textual != nil {
		e.textual.Destroy()
	}
	if e.textualIn != nil {
		e.textualIn.Destroy()
	}
	if e.textualOut != nil {
		e.textualOut.Destroy()
	}
}

// EncodeImage runs the visual tower over img and returns a normalized
// 512-dimensional embedding.
func (e *Encoder) EncodeImage(img image.Image) ([]float32, error) {
	e.visualMu.Lock()
	defer e.visualMu.Unlock()

	preprocessImage(img, e.visualIn.GetData())

	if err := e.visual.Run(); err != nil {
		return nil, fmt.Errorf("running visual inference: %w", err)
	}

	out := e.visualOut.GetData()
	embedding := make([]float32, len(out))
	copy(embedding, out)
	return normalize(embedding), nil
}

// EncodeFrames averages the visual embedding over several sampled video
// frames, producing one representative embedding for the whole clip.
func (e *Encoder) EncodeFrames(frames []image.Image) ([]float32, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("semantic: no frames to encode")
	}

	sum := make([]float32, EmbeddingDim)
	for _, frame := range frames {
		embedding, err := e.EncodeImage(frame)
		if err != nil {
			return nil, err
		}
		for i, v := range embedding {
			sum[i] += v
		}
	}
	for i := range sum {
		sum[i] /= float32(len(frames))
	}
	return normalize(sum), nil
}

// EncodeText runs the textual tower over a search query and returns a
// normalized 512-dimensional embedding directly comparable to image and
// frame embeddings via cosine distance.
func (e *Encoder) EncodeText(text string) ([]float32, error) {
	ids, err := e.tokenize(text)
	if err != nil {
		return nil, err
	}

	e.textualMu.Lock()
	defer e.textualMu.Unlock()

	copy(e.textualIn.GetData(), ids)

	if err := e.textual.Run(); err != nil {
		return nil, fmt.Errorf("running textual inference: %w", err)
	}

	out := e.textualOut.GetData()
	embedding := make([]float32, len(out))
	copy(embedding, out)
	return normalize(embedding), nil
}

// tokenize converts text into a fixed ContextLength slice of token ids,
// padded (or truncated) with the CLIP end-of-text token.
func (e *Encoder) tokenize(text string) ([]int32, error) {
	encoding, err := e.tokenizer.EncodeSingle(text)
	if err != nil {
		return nil, fmt.Errorf("tokenizing %q: %w", text, err)
	}

	ids := make([]int32, ContextLength)
	for i := range ids {
		ids[i] = eotTokenID
	}
	for i, id := range encoding.Ids {
		if i >= ContextLength {
			break
		}
		ids[i] = int32(id)
	}
	return ids, nil
}

// preprocessImage resizes img to InputSize x InputSize and fills dst, laid
// out as [3][InputSize][InputSize] planar channels, with ImageNet
// mean/std normalization matching the CLIP training preprocessing.
func preprocessImage(img image.Image, dst []float32) {
	resized := imaging.Resize(img, InputSize, InputSize, imaging.Linear)
	planeSize := InputSize * InputSize

	i := 0
	for y := 0; y < InputSize; y++ {
		for x := 0; x < InputSize; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			dst[i] = (float32(r>>8)/255.0 - imagenetMean[0]) / imagenetStd[0]
			dst[planeSize+i] = (float32(g>>8)/255.0 - imagenetMean[1]) / imagenetStd[1]
			dst[2*planeSize+i] = (float32(b>>8)/255.0 - imagenetMean[2]) / imagenetStd[2]
			i++
		}
	}
}

// normalize scales vec to unit L2 length so cosine similarity reduces to a
// plain dot product downstream.
func normalize(vec []float32) []float32 {
	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	magnitude := float32(math.Sqrt(sumSquares))
	if magnitude == 0 {
		return vec
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = v / magnitude
	}
	return out
}
