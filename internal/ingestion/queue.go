package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/valkey-io/valkey-go"
)

const (
	DefaultJobStream  = "reviewlens:embed"
	JobGroupName      = "reviewlens-embedders"
	DefaultSaveStream = "reviewlens:save"
	SaveGroupName     = "reviewlens-savers"

	// MessageTypeSaveRequest tags entries on the save stream.
	MessageTypeSaveRequest = "restaurant_save_request"

	dataField        = "data"
	messageTypeField = "message_type"
	blockMillis      = 5000

	// A failed message is retried once it has been pending for ClaimTimeout,
	// and dropped after MaxRetries deliveries.
	MaxRetries   = 3
	ClaimTimeout = 5 * time.Minute
)

// MaxReviewKeyLen is the S3 object key limit.
const MaxReviewKeyLen = 1024

var (
	// ErrEmptyReviewKey is returned when a job message names no document.
	ErrEmptyReviewKey = errors.New("job message has no review key")
	// ErrInvalidReviewKey is returned for keys that would resolve outside
	// the source and result prefixes, or that S3 cannot store.
	ErrInvalidReviewKey = errors.New("job message has an invalid review key")
)

// JobMessage asks the worker to enrich one review document. The key is
// relative to the review source prefix.
type JobMessage struct {
	ReviewKey string `json:"reviewS3Key"`
}

// UnmarshalJSON accepts {"reviewS3Key": k}, the older {"s3Key": k} shape,
// and a bare JSON string.
func (m *JobMessage) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &m.ReviewKey)
	}

	var raw struct {
		ReviewS3Key string `json:"reviewS3Key"`
		S3Key       string `json:"s3Key"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.ReviewKey = raw.ReviewS3Key
	if m.ReviewKey == "" {
		m.ReviewKey = raw.S3Key
	}
	return nil
}

// Validate reports ErrEmptyReviewKey for a message without a key and
// ErrInvalidReviewKey for absolute keys, ".." segments, invalid UTF-8 or an
// over-long key.
func (m JobMessage) Validate() error {
	key := m.ReviewKey
	if strings.TrimSpace(key) == "" {
		return ErrEmptyReviewKey
	}
	if len(key) > MaxReviewKeyLen || !utf8.ValidString(key) || strings.HasPrefix(key, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidReviewKey, key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidReviewKey, key)
		}
	}
	return nil
}

// SaveRequest is published after a result document is written. S3Key is the
// full key of the result document.
type SaveRequest struct {
	S3Key        string `json:"s3Key"`
	RestaurantID string `json:"restaurantId,omitempty"`
}

func (r SaveRequest) Validate() error {
	if r.S3Key == "" {
		return errors.New("save request has no s3Key")
	}
	return nil
}

// Producer enqueues review jobs to the job stream.
type Producer struct {
	client valkey.Client
	stream string
}

func NewProducer(client valkey.Client, stream string) *Producer {
	return &Producer{client: client, stream: stream}
}

func (p *Producer) Enqueue(ctx context.Context, msg JobMessage) (string, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}
	return xadd(ctx, p.client, p.stream, dataField, string(data))
}

// Publisher sends save requests downstream.
type Publisher struct {
	client valkey.Client
	stream string
}

func NewPublisher(client valkey.Client, stream string) *Publisher {
	return &Publisher{client: client, stream: stream}
}

// PublishSaveRequest announces a written result document.
func (p *Publisher) PublishSaveRequest(ctx context.Context, resultKey string) error {
	data, err := json.Marshal(SaveRequest{S3Key: resultKey})
	if err != nil {
		return fmt.Errorf("marshal save request: %w", err)
	}
	_, err = xadd(ctx, p.client, p.stream, dataField, string(data), messageTypeField, MessageTypeSaveRequest)
	return err
}

func xadd(ctx context.Context, client valkey.Client, stream string, fieldValues ...string) (string, error) {
	fv := client.B().Xadd().Key(stream).Id("*").FieldValue()
	for i := 0; i+1 < len(fieldValues); i += 2 {
		fv = fv.FieldValue(fieldValues[i], fieldValues[i+1])
	}
	resp := client.Do(ctx, fv.Build())
	if err := resp.Error(); err != nil {
		return "", fmt.Errorf("xadd %s: %w", stream, err)
	}

	id, err := resp.ToString()
	if err != nil {
		return "", fmt.Errorf("parse xadd response: %w", err)
	}
	return id, nil
}

// validator is implemented by message types that can reject themselves
// after decoding.
type validator interface {
	Validate() error
}

// Consumer reads messages of type T from a Valkey stream through a consumer
// group. Each stream entry carries the JSON message in its "data" field.
//
// A failed message stays pending without holding up the rest of its batch.
// Entries idle for longer than the claim timeout are re-claimed and retried;
// after MaxDeliveries deliveries an entry is acked and dropped.
type Consumer[T any] struct {
	client        valkey.Client
	stream        string
	group         string
	consumerID    string
	batchSize     int64
	messageType   string
	claimTimeout  time.Duration
	maxDeliveries int64
	logger        *slog.Logger
}

// ConsumerOptions configures a Consumer.
type ConsumerOptions struct {
	Stream     string
	Group      string
	ConsumerID string
	BatchSize  int
	// MessageType, when set, skips entries whose message_type differs.
	MessageType string
	// ClaimTimeout is how long a pending entry must be idle before it is
	// retried. Defaults to ClaimTimeout.
	ClaimTimeout time.Duration
	// MaxDeliveries caps deliveries per entry. Defaults to MaxRetries.
	MaxDeliveries int
}

func NewConsumer[T any](client valkey.Client, opts ConsumerOptions, logger *slog.Logger) *Consumer[T] {
	batch := int64(opts.BatchSize)
	if batch < 1 {
		batch = 1
	}
	claim := opts.ClaimTimeout
	if claim <= 0 {
		claim = ClaimTimeout
	}
	maxDeliveries := int64(opts.MaxDeliveries)
	if maxDeliveries < 1 {
		maxDeliveries = MaxRetries
	}
	return &Consumer[T]{
		client:        client,
		stream:        opts.Stream,
		group:         opts.Group,
		consumerID:    opts.ConsumerID,
		batchSize:     batch,
		messageType:   opts.MessageType,
		claimTimeout:  claim,
		maxDeliveries: maxDeliveries,
		logger:        logger,
	}
}

// EnsureGroup creates the consumer group if it doesn't exist.
func (c *Consumer[T]) EnsureGroup(ctx context.Context) error {
	resp := c.client.Do(ctx, c.client.B().XgroupCreate().
		Key(c.stream).Group(c.group).Id("0").Mkstream().Build())
	if err := resp.Error(); err != nil {
		// BUSYGROUP means the group already exists
		if err.Error() != "BUSYGROUP Consumer Group name already exists" {
			return fmt.Errorf("xgroup create: %w", err)
		}
	}
	return nil
}

// Consume blocks reading batches and processes each via handler. On startup
// it first drains messages delivered to this consumer but never ACKed, then
// re-claims idle pending entries once per claim-check interval.
func (c *Consumer[T]) Consume(ctx context.Context, handler func(context.Context, T) error) error {
	c.drainPending(ctx, handler)

	interval := c.claimCheckInterval()
	lastClaim := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if time.Since(lastClaim) >= interval {
			c.reclaim(ctx, handler)
			lastClaim = time.Now()
		}

		resp := c.client.Do(ctx, c.client.B().Xreadgroup().
			Group(c.group, c.consumerID).
			Count(c.batchSize).Block(blockMillis).
			Streams().Key(c.stream).Id(">").
			Build())

		if err := resp.Error(); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Timeout is normal for BLOCK reads
			continue
		}

		results, err := resp.AsXRead()
		if err != nil {
			continue
		}

		for _, entries := range results {
			if err := c.handleBatch(ctx, entries, handler, c.ack); err != nil {
				c.logger.Error("batch had failures, failed entries left pending",
					slog.String("stream", c.stream),
					slog.String("error", err.Error()))
			}
		}
	}
}

// claimCheckInterval is a fifth of the claim timeout, at least one second.
func (c *Consumer[T]) claimCheckInterval() time.Duration {
	return max(c.claimTimeout/5, time.Second)
}

// drainPending pages through every entry delivered to this consumer but
// never ACKed.
func (c *Consumer[T]) drainPending(ctx context.Context, handler func(context.Context, T) error) {
	start := "0"
	for ctx.Err() == nil {
		// XREADGROUP with an explicit id returns this consumer's pending
		// entries after that id
		resp := c.client.Do(ctx, c.client.B().Xreadgroup().
			Group(c.group, c.consumerID).
			Count(c.batchSize).
			Streams().Key(c.stream).Id(start).
			Build())

		if err := resp.Error(); err != nil {
			c.logger.Warn("drain pending failed", slog.String("error", err.Error()))
			return
		}

		results, err := resp.AsXRead()
		if err != nil {
			return
		}
		entries := results[c.stream]
		if len(entries) == 0 {
			return
		}

		c.logger.Info("recovering pending messages", slog.Int("count", len(entries)))
		if err := c.handleBatch(ctx, entries, handler, c.ack); err != nil {
			c.logger.Error("pending batch had failures", slog.String("error", err.Error()))
		}
		start = entries[len(entries)-1].ID
	}
}

// pendingEntry is one row of the extended XPENDING reply.
type pendingEntry struct {
	ID         string
	Deliveries int64
}

// reclaim drops idle entries that reached the delivery cap, then claims the
// remaining idle entries from any consumer in the group and retries them.
func (c *Consumer[T]) reclaim(ctx context.Context, handler func(context.Context, T) error) {
	idleMillis := c.claimTimeout.Milliseconds()

	pending, err := c.idlePending(ctx, idleMillis)
	if err != nil {
		c.logger.Warn("xpending failed", slog.String("error", err.Error()))
		return
	}
	for _, id := range exhausted(pending, c.maxDeliveries) {
		c.logger.Error("dropping message after max deliveries",
			slog.String("stream", c.stream),
			slog.String("id", id),
			slog.Int64("max_deliveries", c.maxDeliveries))
		c.ack(ctx, id)
	}

	start := "0-0"
	for ctx.Err() == nil {
		resp := c.client.Do(ctx, c.client.B().Xautoclaim().
			Key(c.stream).Group(c.group).Consumer(c.consumerID).
			MinIdleTime(strconv.FormatInt(idleMillis, 10)).
			Start(start).Count(c.batchSize).
			Build())
		if err := resp.Error(); err != nil {
			c.logger.Warn("xautoclaim failed", slog.String("error", err.Error()))
			return
		}

		reply, err := resp.ToArray()
		if err != nil || len(reply) < 2 {
			return
		}
		next, _ := reply[0].ToString()
		entries, _ := reply[1].AsXRange()

		if len(entries) > 0 {
			c.logger.Info("retrying idle messages", slog.Int("count", len(entries)))
			if err := c.handleBatch(ctx, entries, handler, c.ack); err != nil {
				c.logger.Error("retried batch had failures", slog.String("error", err.Error()))
			}
		}
		if next == "" || next == "0-0" {
			return
		}
		start = next
	}
}

func (c *Consumer[T]) idlePending(ctx context.Context, idleMillis int64) ([]pendingEntry, error) {
	resp := c.client.Do(ctx, c.client.B().Xpending().
		Key(c.stream).Group(c.group).
		Idle(idleMillis).Start("-").End("+").Count(c.batchSize).
		Build())
	rows, err := resp.ToArray()
	if err != nil {
		return nil, err
	}

	out := make([]pendingEntry, 0, len(rows))
	for _, row := range rows {
		fields, err := row.ToArray()
		if err != nil || len(fields) < 4 {
			continue
		}
		id, err := fields[0].ToString()
		if err != nil {
			continue
		}
		n, err := fields[3].AsInt64()
		if err != nil {
			continue
		}
		out = append(out, pendingEntry{ID: id, Deliveries: n})
	}
	return out, nil
}

// exhausted returns the ids that have been delivered at least limit times.
func exhausted(pending []pendingEntry, limit int64) []string {
	var ids []string
	for _, p := range pending {
		if p.Deliveries >= limit {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// handleBatch processes entries in order and ACKs each success. A handler
// failure leaves only that entry pending; the rest of the batch still runs
// and the first failure is returned. Entries that can never succeed
// (missing data, bad JSON, invalid message, wrong message type) are ACKed
// and skipped.
func (c *Consumer[T]) handleBatch(ctx context.Context, entries []valkey.XRangeEntry, handler func(context.Context, T) error, ack func(context.Context, string)) error {
	var firstErr error
	failed := 0
	for _, entry := range entries {
		msg, skip := c.decode(entry)
		if skip {
			ack(ctx, entry.ID)
			continue
		}

		if err := handler(ctx, msg); err != nil {
			failed++
			c.logger.Error("message failed, left pending",
				slog.String("stream", c.stream),
				slog.String("id", entry.ID),
				slog.String("error", err.Error()))
			if firstErr == nil {
				firstErr = fmt.Errorf("message %s: %w", entry.ID, err)
			}
			continue
		}
		ack(ctx, entry.ID)
	}
	if firstErr != nil && failed > 1 {
		return fmt.Errorf("%d messages failed, first: %w", failed, firstErr)
	}
	return firstErr
}

func (c *Consumer[T]) decode(entry valkey.XRangeEntry) (T, bool) {
	var msg T

	if c.messageType != "" {
		if mt := entry.FieldValues[messageTypeField]; mt != c.messageType {
			c.logger.Warn("skipping message of unexpected type",
				slog.String("id", entry.ID),
				slog.String("message_type", mt))
			return msg, true
		}
	}

	dataStr, ok := entry.FieldValues[dataField]
	if !ok {
		c.logger.Warn("message missing data field", slog.String("id", entry.ID))
		return msg, true
	}

	if err := json.Unmarshal([]byte(dataStr), &msg); err != nil {
		c.logger.Error("unmarshal message", slog.String("error", err.Error()), slog.String("id", entry.ID))
		return msg, true
	}

	if v, ok := any(msg).(validator); ok {
		if err := v.Validate(); err != nil {
			c.logger.Error("invalid message", slog.String("error", err.Error()), slog.String("id", entry.ID))
			return msg, true
		}
	}
	return msg, false
}

func (c *Consumer[T]) ack(ctx context.Context, msgID string) {
	resp := c.client.Do(ctx, c.client.B().Xack().
		Key(c.stream).Group(c.group).Id(msgID).Build())
	if err := resp.Error(); err != nil {
		c.logger.Error("xack failed", slog.String("error", err.Error()), slog.String("id", msgID))
	}
}
