// Package gateway implements the paid-content request flow: resolve
// the target URL to a priced publisher endpoint, challenge the caller
// for payment, settle the attached authorization through the
// facilitator, fetch the publisher's content, and normalize it.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tessera/tessera/internal/auth"
	"github.com/tessera/tessera/internal/facilitator"
	"github.com/tessera/tessera/internal/metrics"
	"github.com/tessera/tessera/internal/model"
	"github.com/tessera/tessera/internal/normalize"
	"github.com/tessera/tessera/internal/resolver"
	"github.com/tessera/tessera/pkg/x402"
)

// PreviewLength is the max rune count of a preview excerpt.
const PreviewLength = 500

// Config is the payment-side configuration of the gateway, fixed at
// startup.
type Config struct {
	// PayTo is the default receiving wallet address for challenges.
	PayTo string
	// Network is the EVM network challenges are issued for.
	Network string
	// AssetAddress is the payment asset's contract address.
	AssetAddress string
	// AssetName and AssetVersion are the asset's EIP-712 domain
	// metadata, echoed in the challenge's extra block.
	AssetName    string
	AssetVersion string
	// MaxTimeoutSeconds bounds settlement and authorization validity.
	MaxTimeoutSeconds int
	// PublicBaseURL is the gateway's own externally visible base URL,
	// used for challenge resource and fetch_url echoes.
	PublicBaseURL string
}

// UsageSink receives usage records without blocking the caller.
type UsageSink interface {
	PublishAsync(rec *model.UsageRecord)
}

// PriceCache is a best-effort price lookup keyed by normalized origin.
// Resolution keeps it warm; Preview falls back to it when the snapshot
// cannot resolve a URL.
type PriceCache interface {
	GetPrice(ctx context.Context, origin string) (float64, bool)
	SetPrice(ctx context.Context, origin string, priceUSD float64) error
}

// PreviewResult is the outcome of a preview request.
type PreviewResult struct {
	URL       string   `json:"url"`
	Title     string   `json:"title,omitempty"`
	Preview   string   `json:"preview"`
	PriceUSD  *float64 `json:"price,omitempty"`
	Publisher string   `json:"publisher,omitempty"`
	FetchURL  string   `json:"fetch_url"`
}

// FetchResult is the outcome of a successful paid fetch.
type FetchResult struct {
	URL       string    `json:"url"`
	Markdown  string    `json:"markdown"`
	Title     string    `json:"title,omitempty"`
	Publisher string    `json:"publisher"`
	PriceUSD  float64   `json:"price"`
	Paid      bool      `json:"paid"`
	FetchedAt time.Time `json:"fetched_at"`

	// Receipt is the base64 settlement receipt for the
	// X-PAYMENT-RESPONSE header. Not part of the JSON body.
	Receipt string `json:"-"`
}

// Service runs the challenge/response state machine. It holds no
// per-request state; every call is independent.
type Service struct {
	resolver    *resolver.Resolver
	facilitator facilitator.Facilitator
	upstream    Upstream
	usage       UsageSink
	prices      PriceCache
	metrics     metrics.Recorder
	logger      *slog.Logger
	cfg         Config
}

// NewService creates a gateway service. prices may be nil; the price
// cache is then skipped.
func NewService(
	res *resolver.Resolver,
	fac facilitator.Facilitator,
	up Upstream,
	sink UsageSink,
	prices PriceCache,
	recorder metrics.Recorder,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Service{
		resolver:    res,
		facilitator: fac,
		upstream:    up,
		usage:       sink,
		prices:      prices,
		metrics:     recorder,
		logger:      logger.With("component", "gateway"),
		cfg:         cfg,
	}
}

// Preview fetches the target URL without payment, normalizes it, and
// returns a truncated excerpt plus pricing metadata. Never issues a
// challenge.
func (s *Service) Preview(ctx context.Context, target *url.URL) (*PreviewResult, error) {
	start := time.Now()

	result := &PreviewResult{
		URL:      target.String(),
		FetchURL: s.cfg.PublicBaseURL + "/fetch?url=" + url.QueryEscape(target.String()),
	}

	var endpointID string
	if match, _, ok := s.resolve(ctx, target); ok {
		result.Publisher = match.Publisher.Name
		endpointID = match.Endpoint.ID
		if !match.Endpoint.IsFree() {
			price := match.Endpoint.PriceUSD
			result.PriceUSD = &price
		}
	} else if s.prices != nil {
		// Snapshot miss, typically mid-refresh. The last price seen for
		// this origin is still a useful hint.
		if price, hit := s.prices.GetPrice(ctx, resolver.NormalizeOrigin(target)); hit && price > 0 {
			s.metrics.IncPriceCacheHit()
			result.PriceUSD = &price
		} else {
			s.metrics.IncPriceCacheMiss()
		}
	}

	body, err := s.upstream.FetchPublic(ctx, target)
	if err != nil {
		s.recordUsage(ctx, model.RequestPreview, target.String(), endpointID, 0, "", model.UsageFailed, err.Error(), start)
		return nil, err
	}

	doc := s.normalize(body, target)
	result.Title = doc.Title
	result.Preview = truncateRunes(doc.Markdown, PreviewLength)

	s.recordUsage(ctx, model.RequestPreview, target.String(), endpointID, 0, "", model.UsageCompleted, "", start)
	s.metrics.IncRequest("preview", "completed")
	return result, nil
}

// Fetch runs the full paid flow for the target URL. paymentHeader is
// the raw X-PAYMENT header value, empty when none was sent.
func (s *Service) Fetch(ctx context.Context, target *url.URL, paymentHeader string) (*FetchResult, error) {
	start := time.Now()

	match, reason, ok := s.resolve(ctx, target)
	if !ok {
		s.logger.Info("fetch for unintegrated url",
			"url", target.String(),
			"reason", string(reason),
		)
		s.metrics.IncRequest("fetch", "failed")
		return nil, &NotIntegratedError{Hostname: target.Hostname()}
	}

	if match.Endpoint.IsFree() {
		s.metrics.IncRequest("fetch", "failed")
		return nil, &FreeContentError{URL: target.String()}
	}

	opt := s.buildOption(match, target)

	if paymentHeader == "" {
		s.metrics.IncChallengeIssued()
		return nil, &ChallengeError{Challenge: &x402.PaymentRequired{
			X402Version: x402.Version,
			Accepts:     []x402.PaymentOption{*opt},
			Error:       "payment required",
		}}
	}

	env, err := x402.DecodeEnvelope(paymentHeader)
	if err != nil {
		s.metrics.IncChallengeIssued()
		return nil, &ChallengeError{Challenge: &x402.PaymentRequired{
			X402Version: x402.Version,
			Accepts:     []x402.PaymentOption{*opt},
			Error:       fmt.Sprintf("invalid payment header: %v", err),
		}}
	}
	if env.Scheme != opt.Scheme || env.Network != opt.Network {
		s.metrics.IncChallengeIssued()
		return nil, &ChallengeError{Challenge: &x402.PaymentRequired{
			X402Version: x402.Version,
			Accepts:     []x402.PaymentOption{*opt},
			Error:       fmt.Sprintf("unsupported scheme or network: %s/%s", env.Scheme, env.Network),
		}}
	}

	settlement, err := s.settle(ctx, env, opt)
	if err != nil {
		s.recordUsage(ctx, model.RequestFetch, target.String(), match.Endpoint.ID, 0, "", model.UsageFailed, err.Error(), start)
		s.metrics.IncRequest("fetch", "failed")
		if errors.Is(err, facilitator.ErrUnavailable) {
			return nil, &SettlementError{Status: 502, Message: "settlement facilitator unavailable"}
		}
		return nil, err
	}
	if !settlement.Accepted() {
		s.logger.Info("settlement rejected",
			"url", target.String(),
			"status", settlement.Status,
			"message", settlement.Message,
			"payer", settlement.Payer,
		)
		s.metrics.IncSettlement("rejected")
		s.recordUsage(ctx, model.RequestFetch, target.String(), match.Endpoint.ID, 0, "", model.UsageFailed, settlement.Message, start)
		s.metrics.IncRequest("fetch", "failed")
		return nil, &SettlementError{Status: settlement.Status, Message: settlement.Message}
	}
	s.metrics.IncSettlement("success")

	body, err := s.fetchUpstream(ctx, match)
	if err != nil {
		// Money captured, content not delivered. Flag for reconciliation.
		s.logger.Error("upstream fetch failed after settlement",
			"url", target.String(),
			"publisher", match.Publisher.Slug,
			"tx_hash", settlement.TxHash,
			"reconcile", true,
			"error", err,
		)
		s.recordUsage(ctx, model.RequestFetch, target.String(), match.Endpoint.ID,
			match.Endpoint.PriceUSD, settlement.TxHash, model.UsageFailed, err.Error(), start)
		s.metrics.IncRequest("fetch", "failed")
		var ue *UpstreamError
		if errors.As(err, &ue) {
			ue.TxHash = settlement.TxHash
			return nil, ue
		}
		return nil, err
	}

	doc := s.normalize(body, target)

	receipt, err := x402.EncodeReceipt(&x402.SettlementReceipt{
		Success:     true,
		Transaction: settlement.TxHash,
		Network:     settlement.Network,
		Payer:       settlement.Payer,
	})
	if err != nil {
		s.logger.Warn("failed to encode settlement receipt", "error", err)
	}

	s.recordUsage(ctx, model.RequestFetch, target.String(), match.Endpoint.ID,
		match.Endpoint.PriceUSD, settlement.TxHash, model.UsageCompleted, "", start)
	s.metrics.IncRequest("fetch", "completed")

	return &FetchResult{
		URL:       target.String(),
		Markdown:  doc.Markdown,
		Title:     doc.Title,
		Publisher: match.Publisher.Name,
		PriceUSD:  match.Endpoint.PriceUSD,
		Paid:      true,
		FetchedAt: time.Now().UTC(),
		Receipt:   receipt,
	}, nil
}

// resolve wraps the snapshot lookup and keeps the price cache warm:
// every resolution writes the endpoint price under the target's
// normalized origin. A resolution miss is never cached.
func (s *Service) resolve(ctx context.Context, target *url.URL) (*resolver.Match, resolver.Reason, bool) {
	match, reason, ok := s.resolver.Resolve(target)
	if !ok || s.prices == nil {
		return match, reason, ok
	}

	origin := resolver.NormalizeOrigin(target)
	if cached, hit := s.prices.GetPrice(ctx, origin); hit && cached == match.Endpoint.PriceUSD {
		return match, reason, ok
	}
	if err := s.prices.SetPrice(ctx, origin, match.Endpoint.PriceUSD); err != nil {
		s.logger.Debug("price cache write failed", "error", err)
	}
	return match, reason, ok
}

// buildOption constructs the single payment option for an endpoint.
// Pure over (endpoint, config); nothing is persisted.
func (s *Service) buildOption(match *resolver.Match, target *url.URL) *x402.PaymentOption {
	payTo := match.Publisher.WalletAddress
	if payTo == "" {
		payTo = s.cfg.PayTo
	}

	return &x402.PaymentOption{
		Scheme:            x402.SchemeExact,
		Network:           s.cfg.Network,
		MaxAmountRequired: x402.USDToAtomic(match.Endpoint.PriceUSD).String(),
		Resource:          target.String(),
		Description:       fmt.Sprintf("Access to %s content", match.Publisher.Name),
		MimeType:          "text/markdown",
		PayTo:             payTo,
		MaxTimeoutSeconds: s.cfg.MaxTimeoutSeconds,
		Asset:             s.cfg.AssetAddress,
		Extra: x402.DomainExtra{
			Name:    s.cfg.AssetName,
			Version: s.cfg.AssetVersion,
		},
	}
}

// settle calls the facilitator exactly once. The call runs on a
// context detached from the request's cancellation so a client
// disconnect cannot abandon a settlement mid-flight; the option
// timeout still bounds it.
func (s *Service) settle(ctx context.Context, env *x402.PaymentEnvelope, opt *x402.PaymentOption) (*facilitator.Settlement, error) {
	timeout := time.Duration(opt.MaxTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	start := time.Now()
	settlement, err := s.facilitator.VerifyAndSettle(sctx, env, opt)
	s.metrics.ObserveSettlementDuration(time.Since(start))
	if err != nil {
		s.metrics.IncSettlement("error")
		return nil, err
	}
	return settlement, nil
}

func (s *Service) fetchUpstream(ctx context.Context, match *resolver.Match) ([]byte, error) {
	start := time.Now()
	body, err := s.upstream.FetchPaid(ctx, match.Publisher, match.UpstreamPath)
	s.metrics.ObserveUpstreamDuration(time.Since(start))
	return body, err
}

func (s *Service) normalize(body []byte, target *url.URL) normalize.Result {
	doc := normalize.Document(body, target)
	if doc.Fallback {
		s.logger.Warn("no main content region found, converted whole document",
			"url", target.String(),
		)
	}
	return doc
}

// recordUsage emits one usage record for the request's final outcome.
// Fire and forget: the sink never blocks or changes the response.
func (s *Service) recordUsage(
	ctx context.Context,
	kind model.RequestKind,
	rawURL, endpointID string,
	amountUSD float64,
	txHash string,
	status model.UsageStatus,
	errMsg string,
	start time.Time,
) {
	if s.usage == nil {
		return
	}
	s.usage.PublishAsync(&model.UsageRecord{
		ID:             ulid.Make().String(),
		UserID:         auth.UserIDFromContext(ctx),
		APIKeyID:       auth.KeyIDFromContext(ctx),
		RequestKind:    kind,
		URL:            rawURL,
		EndpointID:     endpointID,
		AmountUSD:      amountUSD,
		TxHash:         txHash,
		Status:         status,
		ErrorMessage:   errMsg,
		ResponseTimeMS: time.Since(start).Milliseconds(),
		CreatedAt:      time.Now().UTC(),
	})
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
