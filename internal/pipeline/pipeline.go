package pipeline

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sittingbulll/tokenwatch/internal/decoder"
	"github.com/sittingbulll/tokenwatch/internal/domain/model"
	"github.com/sittingbulll/tokenwatch/internal/metrics"
	"github.com/sittingbulll/tokenwatch/internal/notables"
	"github.com/sittingbulll/tokenwatch/internal/notify"
	"github.com/sittingbulll/tokenwatch/internal/policy"
)

// MetadataFetcher resolves a content URI to token metadata.
type MetadataFetcher interface {
	Fetch(ctx context.Context, mint, uri string) (*model.TokenMetadata, error)
}

// URIResolver looks up the on-chain content URI for a mint when the
// webhook instructions carry none.
type URIResolver interface {
	TokenURI(ctx context.Context, mint string) (string, error)
}

// SocialClient looks up notable followers for a creator handle.
type SocialClient interface {
	TopFollowers(ctx context.Context, handle string, n int) (notables.Result, error)
}

// Notifier delivers a rendered alert.
type Notifier interface {
	Send(ctx context.Context, text, imageURL string) error
}

// Pipeline runs one discovered token event through decode, enrichment,
// decision, and notification. Errors never escape Process: every failure
// degrades into a terminal decision or a logged discard.
type Pipeline struct {
	engine   *policy.Engine
	fetcher  MetadataFetcher
	resolver URIResolver
	social   SocialClient
	notifier Notifier
	topN     int
	tracer   trace.Tracer
	logger   *slog.Logger
}

func New(engine *policy.Engine, fetcher MetadataFetcher, resolver URIResolver, social SocialClient, notifier Notifier, topN int, logger *slog.Logger) *Pipeline {
	if topN <= 0 {
		topN = 5
	}
	return &Pipeline{
		engine:   engine,
		fetcher:  fetcher,
		resolver: resolver,
		social:   social,
		notifier: notifier,
		topN:     topN,
		tracer:   otel.Tracer("tokenwatch/pipeline"),
		logger:   logger.With("component", "pipeline"),
	}
}

// Process takes ev from raw webhook event to terminal decision.
func (p *Pipeline) Process(ctx context.Context, deliveryID string, ev *model.TokenEvent) {
	ctx, span := p.tracer.Start(ctx, "pipeline.process", trace.WithAttributes(
		attribute.String("mint", ev.MintAddress),
		attribute.String("delivery_id", deliveryID),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	}()

	log := p.logger.With("delivery_id", deliveryID, "mint", ev.MintAddress)

	label, guard, ok := p.engine.Admit(ev)
	if !ok {
		metrics.PipelineDiscarded.WithLabelValues(guard).Inc()
		log.Info("event discarded", "guard", guard, "fee_payer", ev.FeePayer)
		return
	}

	// Cheap dedup before any network work. The decisive check is the
	// conditional write inside Decide.
	if existing, err := p.engine.Existing(ctx, ev.MintAddress); err != nil {
		log.Error("dedup lookup failed", "error", err)
	} else if existing != nil {
		metrics.PipelineDiscarded.WithLabelValues("duplicate").Inc()
		log.Info("mint already decided", "status", existing.Status)
		return
	}

	meta := p.enrich(ctx, log, ev)

	var res notables.Result
	var lookupErr error
	if meta != nil && meta.TwitterHandle != "" {
		res, lookupErr = p.social.TopFollowers(ctx, meta.TwitterHandle, p.topN)
		if lookupErr != nil {
			log.Error("notable followers lookup failed", "handle", meta.TwitterHandle, "error", lookupErr)
		}
	}

	created, rec, err := p.engine.Decide(ctx, ev.MintAddress, meta, res, lookupErr, label)
	if err != nil {
		// The mint stays undecided and a redelivery can retry it.
		metrics.PipelineCompleted.WithLabelValues("error").Inc()
		log.Error("decision persist failed", "error", err)
		return
	}
	metrics.PipelineCompleted.WithLabelValues(string(rec.Status)).Inc()

	if !created || !rec.Approved() {
		return
	}

	msg := notify.BuildMessage(meta, res, label)
	if err := p.notifier.Send(ctx, msg, meta.ImageURL); err != nil {
		// One attempt only. A replay would risk duplicate alerts; the
		// record is already durable for manual replay.
		log.Error("alert delivery failed", "error", err)
		return
	}
	log.Info("alert sent", "name", rec.TokenName, "notable_count", rec.NotableCount)
}

// enrich finds a content URI for the event and fetches the metadata
// document behind it. Returns nil when the token has no resolvable
// metadata, which is an expected outcome, not an error.
func (p *Pipeline) enrich(ctx context.Context, log *slog.Logger, ev *model.TokenEvent) *model.TokenMetadata {
	if ev.WrappedNative() {
		log.Info("wrapped native transfer, no creator metadata")
		return nil
	}

	var uri string
	for _, data := range ev.MetadataInstructions() {
		if res := decoder.Decode(data); res.URI != "" {
			uri = res.URI
			break
		}
	}

	if uri == "" && p.resolver != nil {
		resolved, err := p.resolver.TokenURI(ctx, ev.MintAddress)
		if err != nil {
			log.Warn("on-chain uri lookup failed", "error", err)
		} else {
			uri = resolved
		}
	}
	if uri == "" {
		log.Info("no content uri for mint")
		return nil
	}

	meta, err := p.fetcher.Fetch(ctx, ev.MintAddress, uri)
	if err != nil {
		log.Error("metadata fetch failed", "uri", uri, "error", err)
		return nil
	}
	return meta
}
