// Package remote implements the remote OCR providers the orchestrator can
// fall back to: Google Cloud Vision document text detection and a Google
// Document AI OCR processor. Both are opaque to the rest of the pipeline.
package remote

import (
	"context"
	"fmt"
	"os"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"docscan/internal/hybrid"
	"docscan/internal/imaging"
	"docscan/internal/logger"
)

// VisionProvider implements hybrid.RemoteProvider using the Google Cloud
// Vision API's document text detection.
type VisionProvider struct {
	client      *vision.ImageAnnotatorClient
	contentRoot string
	log         zerolog.Logger
}

// NewVisionProvider creates a provider with credentials from environment.
// It expects either GOOGLE_APPLICATION_CREDENTIALS path or GOOGLE_CREDENTIALS
// JSON in env, and falls back to Application Default Credentials.
func NewVisionProvider(ctx context.Context, contentRoot string) (*VisionProvider, error) {
	const op = "NewVisionProvider"

	var client *vision.ImageAnnotatorClient
	var err error

	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, WrapRemoteError(op, err, "failed to create client with GOOGLE_CREDENTIALS")
		}
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
		if err != nil {
			return nil, WrapRemoteError(op, err, "failed to create client with GOOGLE_APPLICATION_CREDENTIALS")
		}
	} else {
		client, err = vision.NewImageAnnotatorClient(ctx)
		if err != nil {
			return nil, WrapRemoteError(op, ErrMissingCredentials, "no credentials found in environment")
		}
	}

	return &VisionProvider{
		client:      client,
		contentRoot: contentRoot,
		log:         logger.WithComponent("vision"),
	}, nil
}

// NewVisionProviderWithClient creates a provider with an explicit client
// (for testing).
func NewVisionProviderWithClient(client *vision.ImageAnnotatorClient, contentRoot string) *VisionProvider {
	return &VisionProvider{
		client:      client,
		contentRoot: contentRoot,
		log:         logger.WithComponent("vision"),
	}
}

// Name identifies the provider in logs and unified results.
func (p *VisionProvider) Name() string { return "google-vision" }

// Recognize sends the referenced image to the Vision API and returns the
// detected document text with its average block confidence.
func (p *VisionProvider) Recognize(ctx context.Context, source string) (*hybrid.RemoteResult, error) {
	const op = "Recognize"

	data, err := imaging.ResolveSource(source, p.contentRoot)
	if err != nil {
		return nil, WrapRemoteError(op, err, "failed to resolve source")
	}

	req := &visionpb.AnnotateImageRequest{
		Image: &visionpb.Image{Content: data},
		Features: []*visionpb.Feature{
			{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
		},
	}

	resp, err := p.client.AnnotateImage(ctx, req)
	if err != nil {
		return nil, WrapRemoteError(op, err, "Vision API call failed")
	}
	if resp.Error != nil {
		return nil, WrapRemoteError(op, fmt.Errorf("vision API error: %s", resp.Error.Message), "")
	}

	annotation := resp.GetFullTextAnnotation()
	if annotation == nil || annotation.GetText() == "" {
		return nil, WrapRemoteError(op, ErrNoText, source)
	}

	result := &hybrid.RemoteResult{Text: annotation.GetText()}

	var confidenceSum float64
	var confidenceCount int
	for _, page := range annotation.GetPages() {
		for _, block := range page.GetBlocks() {
			if block.GetConfidence() > 0 {
				confidenceSum += float64(block.GetConfidence())
				confidenceCount++
			}
		}
	}
	if confidenceCount > 0 {
		confidence := confidenceSum / float64(confidenceCount)
		result.Confidence = &confidence
	}

	p.log.Debug().
		Str("source", source).
		Int("text_length", len(result.Text)).
		Msg("Vision recognition completed")
	return result, nil
}

// Close closes the underlying Vision client.
func (p *VisionProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
