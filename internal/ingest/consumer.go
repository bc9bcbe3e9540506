// Package ingest drains the catalog event topic produced by the library
// backend. Every record is persisted to the audit store, exported to the bus
// for connected servers, and then committed. Delivery is at least once: a
// crash between persist and commit redelivers the record, and the store
// tolerates the resulting duplicate row.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/bookrelay/chat-relay-service/internal/adapter/pubsub"
	"github.com/bookrelay/chat-relay-service/internal/domain/event"
	"github.com/bookrelay/chat-relay-service/internal/domain/model"
	"github.com/bookrelay/chat-relay-service/internal/domain/registry"
	"github.com/bookrelay/chat-relay-service/internal/service/dto"
	"github.com/bookrelay/chat-relay-service/internal/storage/postgres"
)

type Consumer struct {
	fetcher       Fetcher
	store         postgres.ActionStore
	dispatcher    pubsub.EventDispatcher
	logger        *slog.Logger
	retryInterval time.Duration
}

func NewConsumer(
	fetcher Fetcher,
	store postgres.ActionStore,
	dispatcher pubsub.EventDispatcher,
	logger *slog.Logger,
	retryInterval time.Duration,
) *Consumer {
	if retryInterval <= 0 {
		retryInterval = 5 * time.Second
	}
	return &Consumer{
		fetcher:       fetcher,
		store:         store,
		dispatcher:    dispatcher,
		logger:        logger,
		retryInterval: retryInterval,
	}
}

// Run blocks until ctx is cancelled. It first waits for the broker to become
// reachable, probing at a fixed interval, then drains records one at a time.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.awaitBroker(ctx); err != nil {
		return err
	}
	c.logger.Info("[INGEST_READY] broker reachable, consuming catalog events")

	for {
		rec, err := c.fetcher.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return ctx.Err()
			}
			c.logger.Error("[INGEST_FETCH_FAILED] could not fetch record", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryInterval):
			}
			continue
		}

		c.handle(ctx, rec)

		// Commit regardless of handling outcome. A record that cannot be
		// handled now will not become handleable by redelivery, and leaving
		// the offset in place would wedge the whole partition behind it.
		if err := c.fetcher.Commit(ctx, rec); err != nil {
			c.logger.Error("[INGEST_COMMIT_FAILED] could not commit offset",
				"partition", rec.Partition, "offset", rec.Offset, "error", err)
		}
	}
}

// handle persists and exports a single record. Failures are logged and
// swallowed so one bad record never stalls ingestion.
func (c *Consumer) handle(ctx context.Context, rec Record) {
	var raw dto.CatalogActionV1
	if err := json.Unmarshal(rec.Value, &raw); err != nil {
		c.logger.Warn("[INGEST_MALFORMED] skipping undecodable record",
			"partition", rec.Partition, "offset", rec.Offset, "error", err)
		return
	}

	// The record key carries the action name; the value may omit it.
	if raw.Action == "" {
		raw.Action = string(rec.Key)
	}
	if raw.Action == "" {
		c.logger.Warn("[INGEST_MALFORMED] skipping record without action",
			"partition", rec.Partition, "offset", rec.Offset)
		return
	}

	notice := raw.ToDomain()
	action := model.CatalogAction{
		Action:     notice.Action,
		AuthorID:   notice.AuthorID,
		BookID:     notice.BookID,
		OccurredAt: time.Now().UTC(),
	}

	if err := c.store.SaveCatalogAction(ctx, action); err != nil {
		c.logger.Error("[INGEST_PERSIST_FAILED] could not store catalog action",
			"action", action.Action, "book_id", action.BookID, "error", err)
	}

	ev := event.NewCatalogEvent(registry.GroupStaff, notice)
	if err := c.dispatcher.Publish(ctx, ev); err != nil {
		c.logger.Error("[INGEST_EXPORT_FAILED] could not export catalog notice",
			"event_id", ev.GetID(), "error", err)
	}

	c.logger.Info("[INGEST_HANDLED] catalog action processed",
		"action", action.Action, "author_id", action.AuthorID, "book_id", action.BookID)
}

func (c *Consumer) awaitBroker(ctx context.Context) error {
	for {
		err := c.fetcher.Probe(ctx)
		if err == nil {
			return nil
		}
		c.logger.Warn("[INGEST_WAITING] broker not reachable yet",
			"retry_in", c.retryInterval, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryInterval):
		}
	}
}
