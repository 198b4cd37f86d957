// Package gateway orchestrates inbound completion requests: authenticate,
// resolve an upstream credential, consult the response caches, invoke the
// provider and record the outcome.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/cencori/gateway/internal/cache"
	"github.com/cencori/gateway/internal/metrics"
	"github.com/cencori/gateway/internal/models"
	"github.com/cencori/gateway/internal/provider"
	"github.com/cencori/gateway/internal/ratelimit"
	"github.com/cencori/gateway/internal/safety"
	"github.com/cencori/gateway/internal/security"
	"github.com/cencori/gateway/internal/usage"
	"github.com/cencori/gateway/internal/vault"
	"github.com/cencori/gateway/internal/webhooks"
)

const (
	endpointChatCompletions = "chat.completions"
	credentialCacheTTL      = time.Minute
)

// PlatformKeyFunc returns the platform-default credential for a provider,
// or empty when none is configured.
type PlatformKeyFunc func(providerName string) string

// Result is a successful pipeline outcome.
type Result struct {
	RequestID string
	Response  provider.Response
	Cached    bool
	CacheTier string
}

// Pipeline wires the gateway collaborators together. One instance serves
// all requests concurrently; per-request state lives on the stack.
type Pipeline struct {
	db            *gorm.DB
	vault         *vault.Vault
	exact         *cache.ExactCache
	semantic      *cache.SemanticCache
	dispatcher    *webhooks.Dispatcher
	router        *provider.Router
	recorder      *usage.Recorder
	limiter       *ratelimit.Manager
	platformKey   PlatformKeyFunc
	safetyEnabled bool
	credentials   *cache.LookupCache[string]
}

// Options collects the pipeline collaborators.
type Options struct {
	DB            *gorm.DB
	Vault         *vault.Vault
	Exact         *cache.ExactCache
	Semantic      *cache.SemanticCache
	Dispatcher    *webhooks.Dispatcher
	Router        *provider.Router
	Recorder      *usage.Recorder
	Limiter       *ratelimit.Manager
	PlatformKey   PlatformKeyFunc
	SafetyEnabled bool
}

// NewPipeline constructs a Pipeline.
func NewPipeline(opts Options) *Pipeline {
	platformKey := opts.PlatformKey
	if platformKey == nil {
		platformKey = func(string) string { return "" }
	}
	return &Pipeline{
		db:            opts.DB,
		vault:         opts.Vault,
		exact:         opts.Exact,
		semantic:      opts.Semantic,
		dispatcher:    opts.Dispatcher,
		router:        opts.Router,
		recorder:      opts.Recorder,
		limiter:       opts.Limiter,
		platformKey:   platformKey,
		safetyEnabled: opts.SafetyEnabled,
		credentials:   cache.NewLookupCache[string](credentialCacheTTL),
	}
}

// authContext carries the authenticated identity through the pipeline.
type authContext struct {
	key     models.APIKey
	project models.Project
	org     models.Organization
}

// Handle runs one request through the full state machine. It returns
// either a Result or a terminal *Error, never both.
func (p *Pipeline) Handle(ctx context.Context, rawKey string, req provider.Request) (*Result, *Error) {
	requestID := uuid.NewString()
	startedAt := time.Now()

	auth, errAuth := p.authenticate(ctx, rawKey)
	if errAuth != nil {
		return nil, errAuth
	}

	if usage.MonthlyLimitExceeded(auth.org) {
		return nil, NewError(CodeRateLimited, "monthly request limit exceeded")
	}

	if p.limiter != nil {
		limit := auth.project.RateLimitPerMinute
		result, errAllow := p.limiter.Allow(ctx, ratelimit.KeyForProject(auth.project.ID), limit)
		if errAllow == nil && !result.Allowed {
			metrics.RateLimited.Inc()
			return nil, NewError(CodeRateLimited, "rate limit exceeded, retry after "+result.Reset.Format(time.RFC3339))
		}
	}

	model := req.Model
	if model == "" {
		model = auth.project.DefaultModel
	}
	if model == "" {
		return nil, NewError(CodeBadRequest, "no model requested and the project has no default")
	}
	req.Model = model
	if len(req.Messages) == 0 {
		return nil, NewError(CodeBadRequest, "messages must not be empty")
	}
	providerName := provider.NameForModel(model, auth.project.DefaultProvider)

	apiKey, errResolve := p.resolveCredential(ctx, auth.project.ID, providerName)
	if errResolve != nil {
		// Credential resolution failed: terminal before cache or provider
		// interaction, and no usage row is written.
		return nil, errResolve
	}

	prompt := req.Prompt()

	if p.safetyEnabled {
		if finding := safety.Scan(prompt); finding != nil {
			p.dispatcher.TriggerSecurityViolation(ctx, auth.project.ID, finding.Type, finding.Severity, finding.Description)
			p.record(auth, usage.Record{
				RequestID:    requestID,
				Provider:     providerName,
				Model:        model,
				Status:       models.UsageStatusFiltered,
				LatencyMs:    time.Since(startedAt).Milliseconds(),
				ErrorMessage: finding.Description,
				RequestedAt:  startedAt,
			})
			return nil, NewError(CodeBadRequest, "prompt blocked by safety screening")
		}
	}

	cacheKey := cache.Key(auth.project.ID, model, req.Temperature, req.MaxTokens, prompt)

	if p.exact != nil {
		if stored, hit := p.exact.Get(ctx, cacheKey); hit {
			if resp, ok := decodeResponse(stored); ok {
				metrics.CacheLookups.WithLabelValues("exact", "hit").Inc()
				p.recordCacheHit(auth, requestID, providerName, model, startedAt)
				return &Result{RequestID: requestID, Response: *resp, Cached: true, CacheTier: "exact"}, nil
			}
		}
		metrics.CacheLookups.WithLabelValues("exact", "miss").Inc()
	}

	var promptEmbedding []float64
	if p.semantic != nil {
		stored, embedding, hit := p.semantic.Lookup(ctx, prompt)
		promptEmbedding = embedding
		if hit {
			if resp, ok := decodeResponse(stored); ok {
				metrics.CacheLookups.WithLabelValues("semantic", "hit").Inc()
				p.recordCacheHit(auth, requestID, providerName, model, startedAt)
				return &Result{RequestID: requestID, Response: *resp, Cached: true, CacheTier: "semantic"}, nil
			}
		}
		metrics.CacheLookups.WithLabelValues("semantic", "miss").Inc()
	}

	client, errClient := p.router.Client(providerName)
	if errClient != nil {
		return nil, NewError(CodeProviderNotConfigured, "no adapter for provider "+providerName)
	}

	resp, errInvoke := client.Complete(ctx, apiKey, req)
	if errInvoke == nil {
		p.storeCaches(ctx, cacheKey, prompt, resp, promptEmbedding)
		p.record(auth, usage.Record{
			RequestID:        requestID,
			Provider:         providerName,
			Model:            model,
			Status:           models.UsageStatusSuccess,
			PromptTokens:     resp.PromptTokens,
			CompletionTokens: resp.CompletionTokens,
			TotalTokens:      resp.TotalTokens,
			LatencyMs:        time.Since(startedAt).Milliseconds(),
			RequestedAt:      startedAt,
		})
		return &Result{RequestID: requestID, Response: *resp}, nil
	}

	return p.handleInvokeFailure(ctx, auth, requestID, providerName, model, req, cacheKey, prompt, promptEmbedding, startedAt, errInvoke)
}

// handleInvokeFailure runs the single fallback attempt and settles the
// terminal error state.
func (p *Pipeline) handleInvokeFailure(ctx context.Context, auth authContext, requestID, providerName, model string, req provider.Request, cacheKey, prompt string, promptEmbedding []float64, startedAt time.Time, errInvoke error) (*Result, *Error) {
	log.WithError(errInvoke).WithFields(log.Fields{
		"request_id": requestID,
		"provider":   providerName,
		"model":      model,
	}).Warn("provider invocation failed")

	if provider.Retryable(errInvoke) {
		fbName, fbModel := p.router.FallbackFor(providerName, model)
		if fbName != "" {
			if fbKey, errResolve := p.resolveCredential(ctx, auth.project.ID, fbName); errResolve == nil {
				fbClient, errClient := p.router.Client(fbName)
				if errClient == nil {
					fbReq := req
					fbReq.Model = fbModel
					fbResp, errFallback := fbClient.Complete(ctx, fbKey, fbReq)
					// The fallback event fires for the attempt itself,
					// regardless of its outcome.
					p.dispatcher.TriggerFallback(ctx, auth.project.ID, providerName, model, fbName, fbModel, errInvoke.Error())

					if errFallback == nil {
						p.storeCaches(ctx, cacheKey, prompt, fbResp, promptEmbedding)
						p.record(auth, usage.Record{
							RequestID:        requestID,
							Provider:         providerName,
							Model:            model,
							Status:           models.UsageStatusSuccess,
							PromptTokens:     fbResp.PromptTokens,
							CompletionTokens: fbResp.CompletionTokens,
							TotalTokens:      fbResp.TotalTokens,
							LatencyMs:        time.Since(startedAt).Milliseconds(),
							FallbackProvider: fbName,
							FallbackModel:    fbModel,
							RequestedAt:      startedAt,
						})
						return &Result{RequestID: requestID, Response: *fbResp}, nil
					}

					p.dispatcher.TriggerRequestFailed(ctx, auth.project.ID, fbName, fbModel, errFallback.Error())
					p.record(auth, usage.Record{
						RequestID:        requestID,
						Provider:         providerName,
						Model:            model,
						Status:           models.UsageStatusError,
						LatencyMs:        time.Since(startedAt).Milliseconds(),
						FallbackProvider: fbName,
						FallbackModel:    fbModel,
						ErrorMessage:     errFallback.Error(),
						RequestedAt:      startedAt,
					})
					return nil, NewError(CodeInternal, "all providers failed")
				}
			}
		}
	}

	p.dispatcher.TriggerRequestFailed(ctx, auth.project.ID, providerName, model, errInvoke.Error())
	p.record(auth, usage.Record{
		RequestID:    requestID,
		Provider:     providerName,
		Model:        model,
		Status:       models.UsageStatusError,
		LatencyMs:    time.Since(startedAt).Milliseconds(),
		ErrorMessage: errInvoke.Error(),
		RequestedAt:  startedAt,
	})
	return nil, NewError(CodeInternal, "provider request failed")
}

// authenticate hashes the inbound credential and resolves its key, project
// and organization. Revoked keys never match.
func (p *Pipeline) authenticate(ctx context.Context, rawKey string) (authContext, *Error) {
	var auth authContext
	if !security.ValidateAPIKey(rawKey) {
		return auth, NewError(CodeUnauthorized, "invalid api key")
	}

	hash := security.HashAPIKey(rawKey)
	if errFind := p.db.WithContext(ctx).
		Where("key_hash = ? AND revoked_at IS NULL", hash).
		First(&auth.key).Error; errFind != nil {
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			log.WithError(errFind).Warn("api key lookup failed")
		}
		return auth, NewError(CodeUnauthorized, "invalid api key")
	}

	if errFind := p.db.WithContext(ctx).
		First(&auth.project, "id = ?", auth.key.ProjectID).Error; errFind != nil {
		return auth, NewError(CodeUnauthorized, "invalid api key")
	}
	if errFind := p.db.WithContext(ctx).
		First(&auth.org, "id = ?", auth.project.OrganizationID).Error; errFind != nil {
		return auth, NewError(CodeUnauthorized, "invalid api key")
	}

	// Best effort; a lost stamp is not worth failing the request.
	now := time.Now()
	if errStamp := p.db.WithContext(ctx).Model(&models.APIKey{}).
		Where("id = ?", auth.key.ID).
		Update("last_used_at", &now).Error; errStamp != nil {
		log.WithError(errStamp).WithField("api_key_id", auth.key.ID).Debug("last_used_at stamp failed")
	}
	return auth, nil
}

// resolveCredential picks the upstream credential for a project and
// provider: an active tenant credential first (decrypted via the vault),
// then the platform default. Decryption failure degrades to the platform
// default rather than failing the request.
func (p *Pipeline) resolveCredential(ctx context.Context, projectID, providerName string) (string, *Error) {
	cacheKey := projectID + "|" + providerName
	if cached, ok := p.credentials.Get(cacheKey); ok {
		return cached, nil
	}

	var cred models.ProviderCredential
	errFind := p.db.WithContext(ctx).
		Where("project_id = ? AND provider = ? AND is_active = ?", projectID, providerName, true).
		First(&cred).Error
	if errFind == nil {
		plaintext, errDecrypt := p.vault.Decrypt(cred.EncryptedKey, projectID)
		if errDecrypt == nil {
			p.credentials.Set(cacheKey, plaintext)
			return plaintext, nil
		}
		log.WithError(errDecrypt).WithFields(log.Fields{
			"project_id": projectID,
			"provider":   providerName,
		}).Warn("credential decryption failed, trying platform default")
	} else if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		log.WithError(errFind).Warn("provider credential lookup failed")
	}

	if platform := p.platformKey(providerName); platform != "" {
		p.credentials.Set(cacheKey, platform)
		return platform, nil
	}
	return "", NewError(CodeProviderNotConfigured, "no credential configured for provider "+providerName)
}

// recordCacheHit writes the usage row for a cache-served response: it
// counts as a gateway request but carries no tokens and no cost.
func (p *Pipeline) recordCacheHit(auth authContext, requestID, providerName, model string, startedAt time.Time) {
	p.record(auth, usage.Record{
		RequestID:   requestID,
		Provider:    providerName,
		Model:       model,
		Status:      models.UsageStatusSuccess,
		Cached:      true,
		LatencyMs:   time.Since(startedAt).Milliseconds(),
		RequestedAt: startedAt,
	})
}

func (p *Pipeline) record(auth authContext, record usage.Record) {
	if p.recorder == nil {
		return
	}
	keyID := auth.key.ID
	record.ProjectID = auth.project.ID
	record.OrganizationID = auth.org.ID
	record.APIKeyID = &keyID
	record.Endpoint = endpointChatCompletions
	p.recorder.Handle(record)
}

// storeCaches writes a fresh upstream response into both tiers.
func (p *Pipeline) storeCaches(ctx context.Context, cacheKey, prompt string, resp *provider.Response, embedding []float64) {
	encoded, errMarshal := json.Marshal(resp)
	if errMarshal != nil {
		log.WithError(errMarshal).Warn("response cache encode failed")
		return
	}
	if p.exact != nil {
		p.exact.Set(ctx, cacheKey, string(encoded))
	}
	if p.semantic != nil {
		p.semantic.Store(ctx, prompt, string(encoded), embedding)
	}
}

func decodeResponse(stored string) (*provider.Response, bool) {
	var resp provider.Response
	if errUnmarshal := json.Unmarshal([]byte(stored), &resp); errUnmarshal != nil {
		log.WithError(errUnmarshal).Warn("cached response decode failed, treating as miss")
		return nil, false
	}
	return &resp, true
}
