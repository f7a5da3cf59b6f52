package attributes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maraichr/reviewlens/internal/llm"
	"github.com/maraichr/reviewlens/pkg/apierr"
	"github.com/maraichr/reviewlens/pkg/models"
)

// Extractor turns a restaurant summary into the four keyword attributes.
type Extractor struct {
	llm    llm.Completer
	model  string
	logger *slog.Logger
}

func NewExtractor(c llm.Completer, model string, logger *slog.Logger) *Extractor {
	return &Extractor{llm: c, model: model, logger: logger}
}

// Extract asks the model for a JSON object with purpose, vibe, companion and
// food, and validates the answer. An empty summary is still sent.
func (e *Extractor) Extract(ctx context.Context, summary string) (models.AttributeRecord, error) {
	raw, err := e.llm.Complete(ctx, llm.CompletionRequest{
		Model: e.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: extractionSystemPrompt},
			{Role: llm.RoleUser, Content: summary},
		},
		MaxTokens:   extractionMaxTokens,
		Temperature: extractionTemperature,
		JSONObject:  true,
	})
	if err != nil {
		return models.AttributeRecord{}, fmt.Errorf("extract attributes: %w", err)
	}

	rec, err := Parse(raw)
	if err != nil {
		e.logger.Warn("malformed extraction response", slog.Int("length", len(raw)), slog.String("error", err.Error()))
		return models.AttributeRecord{}, err
	}
	return rec, nil
}

// Parse validates a raw extraction response. All four fields must be
// present and hold strings; unknown fields are ignored.
func Parse(raw string) (models.AttributeRecord, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return models.AttributeRecord{}, apierr.MalformedExtraction(err)
	}
	if obj == nil {
		return models.AttributeRecord{}, apierr.MalformedExtraction(errors.New("response is not a JSON object"))
	}

	values := make(map[string]string, len(models.AttributeFields))
	for _, field := range models.AttributeFields {
		v, ok := obj[field]
		if !ok {
			return models.AttributeRecord{}, apierr.MalformedExtraction(fmt.Errorf("missing field %q", field))
		}
		var s string
		if len(v) == 0 || v[0] != '"' {
			return models.AttributeRecord{}, apierr.MalformedExtraction(fmt.Errorf("field %q is not a string", field))
		}
		if err := json.Unmarshal(v, &s); err != nil {
			return models.AttributeRecord{}, apierr.MalformedExtraction(fmt.Errorf("field %q: %w", field, err))
		}
		values[field] = s
	}

	return models.AttributeRecord{
		Purpose:   values[models.FieldPurpose],
		Vibe:      values[models.FieldVibe],
		Companion: values[models.FieldCompanion],
		Food:      values[models.FieldFood],
	}, nil
}
