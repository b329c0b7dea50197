package remote

import (
	"context"
	"fmt"
	"net/http"
	"os"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"docscan/internal/hybrid"
	"docscan/internal/imaging"
	"docscan/internal/logger"
)

// DocumentAIConfig identifies the OCR processor to invoke.
type DocumentAIConfig struct {
	ProjectID   string
	Location    string
	ProcessorID string
	ContentRoot string
}

// DocumentAIProvider implements hybrid.RemoteProvider using a Google
// Document AI OCR processor. It is the alternate remote backend for
// deployments that already run Document AI.
type DocumentAIProvider struct {
	client *documentai.DocumentProcessorClient
	config DocumentAIConfig
	log    zerolog.Logger
}

// NewDocumentAIProvider creates a provider with credentials from environment.
// Requires a project ID and processor ID; the location defaults to "us" and
// selects the regional endpoint.
func NewDocumentAIProvider(ctx context.Context, config DocumentAIConfig) (*DocumentAIProvider, error) {
	const op = "NewDocumentAIProvider"

	if config.ProjectID == "" {
		return nil, WrapRemoteError(op, ErrInvalidConfiguration, "GOOGLE_CLOUD_PROJECT is required")
	}
	if config.ProcessorID == "" {
		return nil, WrapRemoteError(op, ErrInvalidConfiguration, "DOCUMENT_AI_PROCESSOR_ID is required")
	}
	if config.Location == "" {
		config.Location = "us"
	}

	var clientOptions []option.ClientOption
	if config.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)
		clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
	}
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		clientOptions = append(clientOptions, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		clientOptions = append(clientOptions, option.WithCredentialsFile(credFile))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		if len(clientOptions) == 0 {
			return nil, WrapRemoteError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapRemoteError(op, err, fmt.Sprintf("failed to create Document AI client for location %s", config.Location))
	}

	return &DocumentAIProvider{
		client: client,
		config: config,
		log:    logger.WithComponent("document-ai"),
	}, nil
}

// NewDocumentAIProviderWithClient creates a provider with an explicit
// client (for testing).
func NewDocumentAIProviderWithClient(config DocumentAIConfig, client *documentai.DocumentProcessorClient) *DocumentAIProvider {
	return &DocumentAIProvider{
		client: client,
		config: config,
		log:    logger.WithComponent("document-ai"),
	}
}

// Name identifies the provider in logs and unified results.
func (p *DocumentAIProvider) Name() string { return "document-ai" }

// Recognize sends the referenced image through the OCR processor and
// returns the document text with its average page confidence.
func (p *DocumentAIProvider) Recognize(ctx context.Context, source string) (*hybrid.RemoteResult, error) {
	const op = "Recognize"

	data, err := imaging.ResolveSource(source, p.config.ContentRoot)
	if err != nil {
		return nil, WrapRemoteError(op, err, "failed to resolve source")
	}

	req := &documentaipb.ProcessRequest{
		Name: p.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  data,
				MimeType: http.DetectContentType(data),
			},
		},
	}

	resp, err := p.client.ProcessDocument(ctx, req)
	if err != nil {
		return nil, WrapRemoteError(op, err, "Document AI call failed")
	}

	doc := resp.GetDocument()
	if doc.GetText() == "" {
		return nil, WrapRemoteError(op, ErrNoText, source)
	}

	result := &hybrid.RemoteResult{Text: doc.GetText()}

	var confidenceSum float64
	var confidenceCount int
	for _, page := range doc.GetPages() {
		if layout := page.GetLayout(); layout.GetConfidence() > 0 {
			confidenceSum += float64(layout.GetConfidence())
			confidenceCount++
		}
	}
	if confidenceCount > 0 {
		confidence := confidenceSum / float64(confidenceCount)
		result.Confidence = &confidence
	}

	p.log.Debug().
		Str("source", source).
		Int("text_length", len(result.Text)).
		Msg("Document AI recognition completed")
	return result, nil
}

func (p *DocumentAIProvider) processorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		p.config.ProjectID, p.config.Location, p.config.ProcessorID)
}

// Close closes the underlying Document AI client.
func (p *DocumentAIProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
