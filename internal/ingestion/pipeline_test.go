package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/maraichr/reviewlens/internal/llm"
	"github.com/maraichr/reviewlens/internal/store/blob"
	"github.com/maraichr/reviewlens/pkg/apierr"
	"github.com/maraichr/reviewlens/pkg/models"
)

// scriptedCompleter answers chunk, final and extraction calls, told apart by
// their token budgets.
type scriptedCompleter struct {
	mu          sync.Mutex
	chunkCalls  int
	finalInputs []string
	extractions int
	extraction  string
	failFinal   bool
}

func (c *scriptedCompleter) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	user := req.Messages[len(req.Messages)-1].Content

	switch req.MaxTokens {
	case 500:
		c.chunkCalls++
		first := strings.SplitN(strings.TrimPrefix(user, "다음 리뷰들을 요약해주세요:\n\n"), ":", 2)[0]
		return "요약(" + first + ")", nil
	case 800:
		c.finalInputs = append(c.finalInputs, user)
		if c.failFinal {
			return "", apierr.InferenceFailed(errors.New("status 500"))
		}
		return "조용한 분위기의 파스타집", nil
	case 300:
		c.extractions++
		if c.extraction != "" {
			return c.extraction, nil
		}
		return `{"purpose":"데이트","vibe":"조용한","companion":"친구","food":""}`, nil
	}
	return "", fmt.Errorf("unexpected max_tokens %d", req.MaxTokens)
}

type fakeEmbedder struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, text)
	if e.err != nil {
		return nil, e.err
	}
	return []float32{0.1, 0.2}, nil
}

func (e *fakeEmbedder) ModelID() string { return "fake" }

type fakePublisher struct {
	mu   sync.Mutex
	keys []string
	errs []error
}

func (p *fakePublisher) PublishSaveRequest(ctx context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		if err != nil {
			return err
		}
	}
	p.keys = append(p.keys, key)
	return nil
}

type failingPutBucket struct {
	*blob.Memory
}

func (b failingPutBucket) Put(ctx context.Context, key string, data []byte, contentType string) error {
	return errors.New("access denied")
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func reviewDocument(n int) []byte {
	var sb strings.Builder
	sb.WriteString(`{"placeId":"21053857","name":"테스트 식당","latitude":37.5,"reviews":[`)
	for i := range n {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, `{"id":"%d","content":"리뷰 내용 %d","placeId":"21053857"}`, i+1, i+1)
	}
	sb.WriteString("]}")
	return []byte(sb.String())
}

type harness struct {
	bucket    *blob.Memory
	completer *scriptedCompleter
	embedder  *fakeEmbedder
	publisher *fakePublisher
}

func newHarness(t *testing.T, reviews int) *harness {
	t.Helper()
	h := &harness{
		bucket:    blob.NewMemory(),
		completer: &scriptedCompleter{},
		embedder:  &fakeEmbedder{},
		publisher: &fakePublisher{},
	}
	if err := h.bucket.Put(context.Background(), "review/21053857.json", reviewDocument(reviews), "application/json"); err != nil {
		t.Fatal(err)
	}
	return h
}

func (h *harness) pipeline(variant Variant, bucket blob.Bucket) *Pipeline {
	if bucket == nil {
		bucket = h.bucket
	}
	stages := BuildStages(Options{
		Variant:      variant,
		SourcePrefix: "review",
		ResultPrefix: "embedding",
		ChunkSize:    20,
	}, Deps{
		Bucket:    bucket,
		Completer: h.completer,
		Embedder:  h.embedder,
		Publisher: h.publisher,
		Now:       func() time.Time { return fixedNow },
		Logger:    testLogger(),
	})
	return NewPipeline(stages, testLogger())
}

func TestPipeline_ExtendedEndToEnd(t *testing.T) {
	h := newHarness(t, 45)

	rc, err := h.pipeline(VariantExtended, nil).Process(context.Background(), JobMessage{ReviewKey: "21053857.json"})
	if err != nil {
		t.Fatal(err)
	}

	if h.completer.chunkCalls != 3 {
		t.Errorf("expected 3 chunk calls, got %d", h.completer.chunkCalls)
	}
	wantFinal := "다음 요약들을 종합하여 하나의 완전한 요약을 만들어주세요:\n\n요약(리뷰 1)\n\n요약(리뷰 21)\n\n요약(리뷰 41)"
	if len(h.completer.finalInputs) != 1 || h.completer.finalInputs[0] != wantFinal {
		t.Errorf("final summarizer input mismatch: %q", h.completer.finalInputs)
	}
	if len(h.embedder.calls) != 3 {
		t.Errorf("expected 3 embedding calls, got %v", h.embedder.calls)
	}

	const resultKey = "embedding/21053857_embedding.json"
	if rc.ResultKey != resultKey {
		t.Errorf("unexpected result key %s", rc.ResultKey)
	}
	raw, err := h.bucket.Get(context.Background(), resultKey)
	if err != nil {
		t.Fatalf("result not written: %v", err)
	}
	if !strings.Contains(string(raw), "\n  \"") {
		t.Error("result should be pretty-printed with two-space indentation")
	}
	if h.bucket.ContentType(resultKey) != "application/json" {
		t.Errorf("unexpected content type %q", h.bucket.ContentType(resultKey))
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatal(err)
	}
	if out["name"] != "테스트 식당" || out["placeId"] != "21053857" {
		t.Errorf("metadata should pass through, got name=%v placeId=%v", out["name"], out["placeId"])
	}
	if out["summary"] != "조용한 분위기의 파스타집" {
		t.Errorf("unexpected summary %v", out["summary"])
	}
	if out["totalReviews"] != float64(45) {
		t.Errorf("unexpected totalReviews %v", out["totalReviews"])
	}
	if out["processedAt"] != "2025-06-01T12:00:00.000Z" {
		t.Errorf("unexpected processedAt %v", out["processedAt"])
	}
	emb := out["embeddings"].(map[string]any)
	if food := emb["food"].([]any); len(food) != 0 {
		t.Errorf("blank food should have an empty vector, got %v", food)
	}
	if vibe := emb["vibe"].([]any); len(vibe) != 2 {
		t.Errorf("unexpected vibe vector %v", vibe)
	}

	if len(h.publisher.keys) != 1 || h.publisher.keys[0] != resultKey {
		t.Errorf("expected one save request for %s, got %v", resultKey, h.publisher.keys)
	}
}

func TestPipeline_ProcessedAtNotBeforeStart(t *testing.T) {
	h := newHarness(t, 3)
	stages := BuildStages(Options{Variant: VariantSimple, SourcePrefix: "review", ResultPrefix: "embedding"}, Deps{
		Bucket: h.bucket, Completer: h.completer, Embedder: h.embedder, Logger: testLogger(),
	})
	p := NewPipeline(stages, testLogger())

	rc, err := p.Process(context.Background(), JobMessage{ReviewKey: "21053857.json"})
	if err != nil {
		t.Fatal(err)
	}
	if rc.Result.ProcessedAt.Before(rc.StartedAt) {
		t.Errorf("processedAt %v is before start %v", rc.Result.ProcessedAt, rc.StartedAt)
	}
}

func TestPipeline_StoredProcessedAtNotBeforeStartInSameMillisecond(t *testing.T) {
	h := newHarness(t, 1)
	start := time.Date(2025, 6, 1, 12, 0, 0, 123_400_000, time.UTC)
	assembled := start.Add(300 * time.Microsecond)

	stages := BuildStages(Options{Variant: VariantSimple, SourcePrefix: "review", ResultPrefix: "embedding"}, Deps{
		Bucket: h.bucket, Completer: h.completer, Embedder: h.embedder, Logger: testLogger(),
		Now: func() time.Time { return assembled },
	})
	p := NewPipeline(stages, testLogger())
	p.now = func() time.Time { return start }

	rc, err := p.Process(context.Background(), JobMessage{ReviewKey: "21053857.json"})
	if err != nil {
		t.Fatal(err)
	}

	data, err := h.bucket.Get(context.Background(), rc.ResultKey)
	if err != nil {
		t.Fatal(err)
	}
	var out struct {
		ProcessedAt string `json:"processedAt"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	stored, err := time.Parse(time.RFC3339Nano, out.ProcessedAt)
	if err != nil {
		t.Fatal(err)
	}
	if out.ProcessedAt != "2025-06-01T12:00:00.123Z" {
		t.Errorf("unexpected processedAt %s", out.ProcessedAt)
	}
	if stored.Before(rc.StartedAt) {
		t.Errorf("stored processedAt %v is before start %v", stored, rc.StartedAt)
	}
}

func TestPipeline_SimpleVariant(t *testing.T) {
	h := newHarness(t, 5)

	if _, err := h.pipeline(VariantSimple, nil).Process(context.Background(), JobMessage{ReviewKey: "21053857.json"}); err != nil {
		t.Fatal(err)
	}
	raw, err := h.bucket.Get(context.Background(), "embedding/21053857_embedding.json")
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatal(err)
	}
	if out["placeId"] != "21053857" {
		t.Errorf("simple result should carry the first review's placeId, got %v", out["placeId"])
	}
	for _, k := range []string{"name", "latitude", "reviews"} {
		if _, ok := out[k]; ok {
			t.Errorf("simple result should not pass through %q", k)
		}
	}
	if len(h.publisher.keys) != 0 {
		t.Errorf("simple variant must not notify, got %v", h.publisher.keys)
	}
}

func TestPipeline_SimpleVariantBareArray(t *testing.T) {
	h := newHarness(t, 0)
	doc := []byte(`[{"id":1,"content":"맛있어요","placeId":99},{"id":2,"content":"친절해요"}]`)
	if err := h.bucket.Put(context.Background(), "review/99.json", doc, "application/json"); err != nil {
		t.Fatal(err)
	}

	rc, err := h.pipeline(VariantSimple, nil).Process(context.Background(), JobMessage{ReviewKey: "99.json"})
	if err != nil {
		t.Fatal(err)
	}
	if rc.Result.TotalReviews != 2 {
		t.Errorf("expected 2 reviews, got %d", rc.Result.TotalReviews)
	}
	if string(rc.Result.Metadata["placeId"]) != `"99"` {
		t.Errorf("unexpected placeId %s", rc.Result.Metadata["placeId"])
	}
}

func TestPipeline_ZeroReviews(t *testing.T) {
	h := newHarness(t, 0)

	rc, err := h.pipeline(VariantExtended, nil).Process(context.Background(), JobMessage{ReviewKey: "21053857.json"})
	if err != nil {
		t.Fatal(err)
	}
	if h.completer.chunkCalls != 0 {
		t.Errorf("expected no chunk calls, got %d", h.completer.chunkCalls)
	}
	if len(h.completer.finalInputs) != 1 {
		t.Fatalf("final summarizer should still run once, got %d", len(h.completer.finalInputs))
	}
	if rc.Result.TotalReviews != 0 {
		t.Errorf("expected totalReviews 0, got %d", rc.Result.TotalReviews)
	}
}

func TestPipeline_EmbeddingFailureWritesNothing(t *testing.T) {
	h := newHarness(t, 10)
	h.embedder.err = apierr.InferenceFailed(errors.New("status 503"))

	_, err := h.pipeline(VariantExtended, nil).Process(context.Background(), JobMessage{ReviewKey: "21053857.json"})
	if !apierr.HasCode(err, apierr.CodeInferenceProvider) {
		t.Fatalf("expected inference error, got %v", err)
	}
	if !strings.Contains(err.Error(), "stage embed failed") {
		t.Errorf("error should name the embed stage: %v", err)
	}
	if keys := h.bucket.Keys(); len(keys) != 1 {
		t.Errorf("nothing should be written, bucket holds %v", keys)
	}
	if len(h.publisher.keys) != 0 {
		t.Error("no save request should be published")
	}
}

func TestPipeline_FinalSummaryFailure(t *testing.T) {
	h := newHarness(t, 25)
	h.completer.failFinal = true

	_, err := h.pipeline(VariantExtended, nil).Process(context.Background(), JobMessage{ReviewKey: "21053857.json"})
	if !apierr.HasCode(err, apierr.CodeInferenceProvider) {
		t.Fatalf("expected inference error, got %v", err)
	}
	if h.completer.extractions != 0 {
		t.Error("extraction must not run after a failed final summary")
	}
	if len(h.bucket.Keys()) != 1 {
		t.Error("nothing should be written")
	}
}

func TestPipeline_MalformedExtraction(t *testing.T) {
	h := newHarness(t, 3)
	h.completer.extraction = `{"purpose":"데이트"}`

	_, err := h.pipeline(VariantExtended, nil).Process(context.Background(), JobMessage{ReviewKey: "21053857.json"})
	if !apierr.HasCode(err, apierr.CodeMalformedExtraction) {
		t.Fatalf("expected malformed extraction, got %v", err)
	}
	if len(h.embedder.calls) != 0 {
		t.Error("embedding must not run after a malformed extraction")
	}
	if len(h.bucket.Keys()) != 1 {
		t.Error("nothing should be written")
	}
}

func TestPipeline_MissingDocument(t *testing.T) {
	h := newHarness(t, 3)

	_, err := h.pipeline(VariantExtended, nil).Process(context.Background(), JobMessage{ReviewKey: "missing.json"})
	if !apierr.HasCode(err, apierr.CodeStoreReadFailed) {
		t.Fatalf("expected store read error, got %v", err)
	}
	if !errors.Is(err, blob.ErrNotFound) {
		t.Errorf("not-found cause should be preserved: %v", err)
	}
	if h.completer.chunkCalls+len(h.completer.finalInputs) != 0 {
		t.Error("no inference calls should be made")
	}
}

func TestPipeline_InvalidDocument(t *testing.T) {
	h := newHarness(t, 0)
	_ = h.bucket.Put(context.Background(), "review/bad.json", []byte(`{"reviews":[{"content":"id 없음"}]}`), "application/json")

	_, err := h.pipeline(VariantExtended, nil).Process(context.Background(), JobMessage{ReviewKey: "bad.json"})
	if !apierr.HasCode(err, apierr.CodeStoreReadFailed) {
		t.Fatalf("expected store read error, got %v", err)
	}
}

func TestPipeline_WriteFailureSkipsNotify(t *testing.T) {
	h := newHarness(t, 3)

	_, err := h.pipeline(VariantExtended, failingPutBucket{h.bucket}).Process(context.Background(), JobMessage{ReviewKey: "21053857.json"})
	if !apierr.HasCode(err, apierr.CodeStoreWriteFailed) {
		t.Fatalf("expected store write error, got %v", err)
	}
	if len(h.publisher.keys) != 0 {
		t.Error("notify must not run after a failed write")
	}
}

func TestPipeline_NotifyFailure(t *testing.T) {
	h := newHarness(t, 3)
	h.publisher.errs = []error{errors.New("stream unavailable")}

	_, err := h.pipeline(VariantExtended, nil).Process(context.Background(), JobMessage{ReviewKey: "21053857.json"})
	if !apierr.HasCode(err, apierr.CodeNotificationFailed) {
		t.Fatalf("expected notification error, got %v", err)
	}
	if _, err := h.bucket.Get(context.Background(), "embedding/21053857_embedding.json"); err != nil {
		t.Errorf("result should stay written: %v", err)
	}
}

func TestPipeline_EmptyKey(t *testing.T) {
	h := newHarness(t, 1)
	if err := h.pipeline(VariantExtended, nil).Run(context.Background(), JobMessage{}); !errors.Is(err, ErrEmptyReviewKey) {
		t.Errorf("expected ErrEmptyReviewKey, got %v", err)
	}
}

func TestPipeline_KeyEscapingPrefixWritesNothing(t *testing.T) {
	h := newHarness(t, 1)
	if err := h.bucket.Put(context.Background(), "embedding/other_embedding.json", reviewDocument(1), "application/json"); err != nil {
		t.Fatal(err)
	}
	before := h.bucket.Keys()

	err := h.pipeline(VariantExtended, nil).Run(context.Background(), JobMessage{ReviewKey: "../embedding/other_embedding.json"})
	if !errors.Is(err, ErrInvalidReviewKey) {
		t.Fatalf("expected ErrInvalidReviewKey, got %v", err)
	}
	if h.completer.chunkCalls != 0 {
		t.Errorf("no inference should run, got %d chunk calls", h.completer.chunkCalls)
	}
	if got := h.bucket.Keys(); !slices.Equal(got, before) {
		t.Errorf("bucket changed: %v", got)
	}
}

func TestBuildStages_Order(t *testing.T) {
	names := func(stages []Stage) string {
		var out []string
		for _, s := range stages {
			out = append(out, s.Name())
		}
		return strings.Join(out, ",")
	}
	deps := Deps{Publisher: &fakePublisher{}, Logger: testLogger()}

	ext := names(BuildStages(Options{Variant: VariantExtended}, deps))
	if ext != "fetch,chunk,summarize_chunks,summarize_final,extract,embed,assemble,persist,notify" {
		t.Errorf("unexpected extended stages %s", ext)
	}
	simple := names(BuildStages(Options{Variant: VariantSimple}, deps))
	if simple != "fetch,chunk,summarize_chunks,summarize_final,extract,embed,assemble,persist" {
		t.Errorf("unexpected simple stages %s", simple)
	}
}

func TestResultKey(t *testing.T) {
	tests := []struct {
		prefix, key, want string
	}{
		{"embedding", "21053857.json", "embedding/21053857_embedding.json"},
		{"embedding", "seoul/21053857.json", "embedding/seoul/21053857_embedding.json"},
		{"embedding", "21053857", "embedding/21053857_embedding.json"},
		{"", "a.json", "a_embedding.json"},
		{"out/", "a.txt", "out/a_embedding.txt"},
	}
	for _, tt := range tests {
		if got := ResultKey(tt.prefix, tt.key); got != tt.want {
			t.Errorf("ResultKey(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
		}
	}
}

func TestSourceKey(t *testing.T) {
	if got := SourceKey("review", "1.json"); got != "review/1.json" {
		t.Errorf("unexpected source key %s", got)
	}
	if got := SourceKey("", "1.json"); got != "1.json" {
		t.Errorf("unexpected source key %s", got)
	}
}

func TestAssembleStage_ZeroEmbeddingsMarshalEmpty(t *testing.T) {
	rc := &RunContext{
		Document: &models.Document{Reviews: []models.Review{{ID: "1", Content: "맛있어요"}}},
		Summary:  "요약",
	}
	if err := NewAssembleStage(VariantExtended, func() time.Time { return fixedNow }).Execute(context.Background(), rc); err != nil {
		t.Fatal(err)
	}

	data, err := json.Marshal(rc.Result)
	if err != nil {
		t.Fatal(err)
	}
	var out struct {
		Embeddings map[string]json.RawMessage `json:"embeddings"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	for _, f := range models.AttributeFields {
		if got := string(out.Embeddings[f]); got != "[]" {
			t.Errorf("embeddings.%s = %s, want []", f, got)
		}
	}
}
