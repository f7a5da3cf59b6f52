package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"

	"github.com/maraichr/reviewlens/internal/config"
	"github.com/maraichr/reviewlens/internal/llm"
	"github.com/maraichr/reviewlens/pkg/apierr"
)

const cohereInputType = "search_document"

type modelInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Client wraps the AWS Bedrock runtime for embedding generation.
type Client struct {
	bedrock modelInvoker
	modelID string
}

// NewClient creates a new Bedrock embedding client.
func NewClient(cfg config.BedrockConfig) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := bedrockruntime.NewFromConfig(awsCfg)
	return &Client{bedrock: client, modelID: cfg.ModelID}, nil
}

// cohereEmbedRequest is the Cohere Embed API request format.
type cohereEmbedRequest struct {
	Texts     []string `json:"texts"`
	InputType string   `json:"input_type"`
}

type cohereEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed generates the embedding for one text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody, err := json.Marshal(cohereEmbedRequest{
		Texts:     []string{text},
		InputType: cohereInputType,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := c.bedrock.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		ContentType: aws.String("application/json"),
		Body:        reqBody,
	})
	if err != nil {
		return nil, apierr.InferenceFailed(translateAWS(err))
	}

	var result cohereEmbedResponse
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, apierr.InferenceFailed(&llm.ProviderError{Reason: "unmarshal response: " + err.Error()})
	}
	if len(result.Embeddings) == 0 {
		return nil, apierr.InferenceFailed(&llm.ProviderError{Reason: "embedding returned no data"})
	}
	if len(result.Embeddings[0]) == 0 {
		return nil, apierr.InferenceFailed(&llm.ProviderError{Reason: "embedding returned an empty vector"})
	}
	return result.Embeddings[0], nil
}

// ModelID returns the Bedrock model identifier.
func (c *Client) ModelID() string { return c.modelID }

func translateAWS(err error) *llm.ProviderError {
	pe := &llm.ProviderError{Reason: err.Error()}

	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		pe.Status = re.HTTPStatusCode()
	}
	var ae smithy.APIError
	if errors.As(err, &ae) && ae.ErrorMessage() != "" {
		pe.Reason = ae.ErrorMessage()
	}
	return pe
}
