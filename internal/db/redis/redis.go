// Package redis stores SSH issuance records as entries of a Redis stream,
// one stream per table.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adamscao/sshrecord/internal/models"
	"github.com/adamscao/sshrecord/internal/recordstore"
)

const (
	// consumerGroup is created with the stream so downstream audit
	// tooling can read it with XREADGROUP
	consumerGroup     = "sshrecord-audit"
	defaultListLimit  = 100
	purgeBatchSize    = 500
	streamType        = "stream"
	busyGroupErrorMsg = "BUSYGROUP"
)

// Config configures the Redis engine
type Config struct {
	URL string
	// MaxLen approximately caps each stream's length; zero keeps everything
	MaxLen int64
}

// Client wraps the go-redis client as a storage engine client
type Client struct {
	rdb    *redis.Client
	maxLen int64
}

// New creates a client from cfg and verifies the server is reachable
func New(ctx context.Context, cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	// Deadlines on the caller's context bound each command
	opts.ContextTimeoutEnabled = true

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewFromClient(rdb, cfg.MaxLen), nil
}

// NewFromClient wraps an existing go-redis client
func NewFromClient(rdb *redis.Client, maxLen int64) *Client {
	return &Client{rdb: rdb, maxLen: maxLen}
}

// Close closes the underlying client
func (c *Client) Close() error {
	return c.rdb.Close()
}

// DescribeTable checks that table names an existing stream
func (c *Client) DescribeTable(ctx context.Context, table string) error {
	kind, err := c.rdb.Type(ctx, table).Result()
	if err != nil {
		return fmt.Errorf("describe stream %q: %w", table, err)
	}
	if kind != streamType {
		return fmt.Errorf("redis stream %q (key type %q): %w", table, kind, recordstore.ErrTableNotFound)
	}
	return nil
}

// CreateTable creates the stream and its consumer group if missing
func (c *Client) CreateTable(ctx context.Context, table string) error {
	if table == "" {
		return errors.New("table name is required")
	}
	err := c.rdb.XGroupCreateMkStream(ctx, table, consumerGroup, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), busyGroupErrorMsg) {
		return fmt.Errorf("create stream %q: %w", table, err)
	}
	return nil
}

// PutRecord appends the record to the table's stream
func (c *Client) PutRecord(ctx context.Context, table string, record *models.SSHRecord) error {
	args := &redis.XAddArgs{
		Stream: table,
		Values: encodeRecord(record),
	}
	if c.maxLen > 0 {
		args.MaxLen = c.maxLen
		args.Approx = true
	}

	if err := c.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("append ssh record to stream %q: %w", table, err)
	}
	return nil
}

// ListRecords returns the newest stream entries matching filter
func (c *Client) ListRecords(ctx context.Context, table string, filter models.RecordFilter) ([]*models.SSHRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var records []*models.SSHRecord
	end := "+"
	for len(records) < limit {
		msgs, err := c.rdb.XRevRangeN(ctx, table, end, "-", purgeBatchSize).Result()
		if err != nil {
			return nil, fmt.Errorf("read stream %q: %w", table, err)
		}
		for _, msg := range msgs {
			record, err := decodeRecord(msg.Values)
			if err != nil {
				return nil, fmt.Errorf("decode stream entry %s: %w", msg.ID, err)
			}
			if filter.Matches(record) {
				records = append(records, record)
				if len(records) == limit {
					break
				}
			}
		}
		if len(msgs) < purgeBatchSize {
			break
		}
		end = "(" + msgs[len(msgs)-1].ID
	}

	return records, nil
}

// PurgeExpired deletes stream entries whose expiry is before the given time
func (c *Client) PurgeExpired(ctx context.Context, table string, before time.Time) (int64, error) {
	var purged int64
	start := "-"
	for {
		msgs, err := c.rdb.XRangeN(ctx, table, start, "+", purgeBatchSize).Result()
		if err != nil {
			return purged, fmt.Errorf("read stream %q: %w", table, err)
		}

		var expired []string
		for _, msg := range msgs {
			record, err := decodeRecord(msg.Values)
			if err != nil {
				continue
			}
			if record.Expired(before) {
				expired = append(expired, msg.ID)
			}
		}
		if len(expired) > 0 {
			n, err := c.rdb.XDel(ctx, table, expired...).Result()
			if err != nil {
				return purged, fmt.Errorf("delete expired entries from %q: %w", table, err)
			}
			purged += n
		}

		if len(msgs) < purgeBatchSize {
			return purged, nil
		}
		start = "(" + msgs[len(msgs)-1].ID
	}
}

func encodeRecord(r *models.SSHRecord) map[string]interface{} {
	values := map[string]interface{}{
		models.FieldID:              r.ID,
		models.FieldPrincipal:       r.Principal,
		models.FieldPrincipalDomain: r.PrincipalDomain,
		models.FieldPrincipalName:   r.PrincipalName,
		models.FieldIssuer:          r.Issuer,
		models.FieldSourceIP:        r.SourceIP,
		models.FieldTargetService:   r.TargetService,
		models.FieldCertificateID:   r.CertificateID,
		models.FieldIssuedAt:        r.IssuedAt.UTC().Format(time.RFC3339Nano),
		models.FieldExpiresAt:       "",
	}
	if !r.ExpiresAt.IsZero() {
		values[models.FieldExpiresAt] = r.ExpiresAt.UTC().Format(time.RFC3339Nano)
	}
	return values
}

func decodeRecord(values map[string]interface{}) (*models.SSHRecord, error) {
	get := func(field string) string {
		s, _ := values[field].(string)
		return s
	}

	r := &models.SSHRecord{
		ID:              get(models.FieldID),
		Principal:       get(models.FieldPrincipal),
		PrincipalDomain: get(models.FieldPrincipalDomain),
		PrincipalName:   get(models.FieldPrincipalName),
		Issuer:          get(models.FieldIssuer),
		SourceIP:        get(models.FieldSourceIP),
		TargetService:   get(models.FieldTargetService),
		CertificateID:   get(models.FieldCertificateID),
	}

	issuedAt, err := time.Parse(time.RFC3339Nano, get(models.FieldIssuedAt))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", models.FieldIssuedAt, err)
	}
	r.IssuedAt = issuedAt

	if s := get(models.FieldExpiresAt); s != "" {
		expiresAt, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", models.FieldExpiresAt, err)
		}
		r.ExpiresAt = expiresAt
	}

	return r, nil
}
