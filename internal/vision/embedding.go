package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rivo/duplo/haar"
)

// Embedder maps an image to a fixed-length, L2-normalized feature vector.
// Implementations must be deterministic for a given image.
type Embedder interface {
	Embed(ctx context.Context, img image.Image) ([]float64, error)
}

// --------------------------------------------------
// Local Haar wavelet backbone
// --------------------------------------------------

const (
	haarInputSize = 64
	haarBlockSize = 16
)

// HaarEmbedder resizes the image to a fixed square, runs a 2D Haar wavelet
// transform in YIQ space and keeps the low-frequency coefficient block.
// The scale coefficient is dropped since it only carries mean brightness.
type HaarEmbedder struct {
	inputSize int
	blockSize int
}

func NewHaarEmbedder() *HaarEmbedder {
	return &HaarEmbedder{inputSize: haarInputSize, blockSize: haarBlockSize}
}

// Dimension is the length of every vector this embedder returns.
func (h *HaarEmbedder) Dimension() int {
	return (h.blockSize*h.blockSize - 1) * haar.ColourChannels
}

func (h *HaarEmbedder) Embed(ctx context.Context, img image.Image) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := haar.Transform(Resize(img, h.inputSize, h.inputSize))
	width := int(m.Width)

	vec := make([]float64, 0, h.Dimension())
	for y := 0; y < h.blockSize; y++ {
		for x := 0; x < h.blockSize; x++ {
			if x == 0 && y == 0 {
				continue
			}
			coef := m.Coefs[y*width+x]
			vec = append(vec, coef[:]...)
		}
	}

	return L2Normalize(vec), nil
}

// --------------------------------------------------
// Remote feature-extraction sidecar
// --------------------------------------------------

// RemoteEmbedder delegates to an HTTP sidecar hosting a pretrained backbone
// (MobileNetV2, CLIP, ...). The sidecar answers POST /extract_features with
// {"features": [...]}.
type RemoteEmbedder struct {
	baseURL string
	client  *http.Client
}

type remoteFeatures struct {
	Features []float64 `json:"features"`
}

func NewRemoteEmbedder(baseURL string, timeout time.Duration) *RemoteEmbedder {
	return &RemoteEmbedder{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Init checks that the sidecar is up. Call once at startup before serving.
func (r *RemoteEmbedder) Init(ctx context.Context) error {
	if r.baseURL == "" {
		return errors.New("embedding sidecar url is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("embedding sidecar unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("embedding sidecar health returned status %d", resp.StatusCode)
	}
	return nil
}

func (r *RemoteEmbedder) Embed(ctx context.Context, img image.Image) ([]float64, error) {
	jpg, err := EncodeJPEG(img, 95)
	if err != nil {
		return nil, err
	}

	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)
	part, err := form.CreateFormFile("image", "image.jpg")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(jpg); err != nil {
		return nil, err
	}
	if err := form.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/extract_features", body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding sidecar returned status %d: %s", resp.StatusCode, string(raw))
	}

	var out remoteFeatures
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(out.Features) == 0 {
		return nil, errors.New("embedding sidecar returned no features")
	}

	return L2Normalize(out.Features), nil
}
