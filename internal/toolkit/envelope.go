// Package toolkit defines the response envelope every tool-style operation
// in the agent returns: a success/data/error/meta contract that lets
// callers (the scheduling loops, and eventually any MCP-style consumer)
// handle results uniformly regardless of which subsystem produced them.
package toolkit

import (
	"encoding/json"
	"time"
)

// ErrorCode is the closed set of machine-readable failure reasons a tool
// response can carry. Retryability is derived from the code, never set
// independently, so callers can't accidentally mark a permanent failure
// retryable.
type ErrorCode string

const (
	ErrDbError                 ErrorCode = "db_error"
	ErrValidationError         ErrorCode = "validation_error"
	ErrInvalidInput            ErrorCode = "invalid_input"
	ErrTweetTooLong            ErrorCode = "tweet_too_long"
	ErrLlmError                ErrorCode = "llm_error"
	ErrLlmNotConfigured        ErrorCode = "llm_not_configured"
	ErrXNotConfigured          ErrorCode = "x_not_configured"
	ErrScraperMutationBlocked  ErrorCode = "scraper_mutation_blocked"
	ErrXRateLimited            ErrorCode = "x_rate_limited"
	ErrXAuthExpired            ErrorCode = "x_auth_expired"
	ErrXForbidden              ErrorCode = "x_forbidden"
	ErrXScopeInsufficient      ErrorCode = "x_scope_insufficient"
	ErrXNetworkError           ErrorCode = "x_network_error"
	ErrXAPIError               ErrorCode = "x_api_error"
	ErrPolicyDeniedBlocked     ErrorCode = "policy_denied_blocked"
	ErrPolicyDeniedRateLimited ErrorCode = "policy_denied_rate_limited"
	ErrPolicyError             ErrorCode = "policy_error"
	ErrNotFound                ErrorCode = "not_found"
	ErrSerializationError      ErrorCode = "serialization_error"
)

// Retryable reports whether a caller may safely retry a request that
// failed with this code. Transient infrastructure and backoff-shaped
// failures are retryable; everything caused by the request's own content
// or a permanent authorization state is not.
func (c ErrorCode) Retryable() bool {
	switch c {
	case ErrDbError, ErrXRateLimited, ErrXNetworkError, ErrXAPIError:
		return true
	default:
		return false
	}
}

// PaginationInfo is normalized pagination metadata extracted from an
// upstream API response.
type PaginationInfo struct {
	NextToken   string `json:"next_token,omitempty"`
	ResultCount int    `json:"result_count"`
	HasMore     bool   `json:"has_more"`
}

// NewPaginationInfo derives HasMore from whether nextToken is non-empty.
func NewPaginationInfo(nextToken string, resultCount int) PaginationInfo {
	return PaginationInfo{
		NextToken:   nextToken,
		ResultCount: resultCount,
		HasMore:     nextToken != "",
	}
}

// ToolError is the structured error payload of a failed ToolResponse.
type ToolError struct {
	Code           ErrorCode `json:"code"`
	Message        string    `json:"message"`
	Retryable      bool      `json:"retryable"`
	RateLimitReset string    `json:"rate_limit_reset,omitempty"`
	RetryAfterMs   *uint64   `json:"retry_after_ms,omitempty"`
	PolicyDecision string    `json:"policy_decision,omitempty"`
}

// ToolMeta is the execution metadata attached to a tool response.
type ToolMeta struct {
	ToolVersion     string          `json:"tool_version"`
	ElapsedMs       int64           `json:"elapsed_ms"`
	Pagination      *PaginationInfo `json:"pagination,omitempty"`
	RetryCount      *int            `json:"retry_count,omitempty"`
	ProviderBackend string          `json:"provider_backend,omitempty"`
	CorrelationID   string          `json:"correlation_id,omitempty"`
	Rollback        json.RawMessage `json:"rollback,omitempty"`
	// Mode and ApprovalMode are flattened workflow context — emitted as
	// top-level keys alongside the rest of ToolMeta's fields, not nested.
	Mode         string `json:"mode,omitempty"`
	ApprovalMode *bool  `json:"approval_mode,omitempty"`
}

// NewToolMeta builds metadata stamped with the time elapsed since start.
func NewToolMeta(start time.Time) ToolMeta {
	return ToolMeta{
		ToolVersion: "1.0",
		ElapsedMs:   time.Since(start).Milliseconds(),
	}
}

// WithProviderBackend attaches the provider backend name.
func (m ToolMeta) WithProviderBackend(backend string) ToolMeta {
	m.ProviderBackend = backend
	return m
}

// WithPagination attaches pagination info.
func (m ToolMeta) WithPagination(p PaginationInfo) ToolMeta {
	m.Pagination = &p
	return m
}

// WithRetryCount attaches the retry count.
func (m ToolMeta) WithRetryCount(n int) ToolMeta {
	m.RetryCount = &n
	return m
}

// WithCorrelationID attaches a mutation audit correlation id.
func (m ToolMeta) WithCorrelationID(id string) ToolMeta {
	m.CorrelationID = id
	return m
}

// WithRollback attaches advisory rollback guidance.
func (m ToolMeta) WithRollback(rollback json.RawMessage) ToolMeta {
	m.Rollback = rollback
	return m
}

// WithWorkflow attaches the flattened mode/approval_mode workflow context.
func (m ToolMeta) WithWorkflow(mode string, approvalMode bool) ToolMeta {
	m.Mode = mode
	m.ApprovalMode = &approvalMode
	return m
}

// ToolResponse is the unified envelope every tool-style operation returns.
type ToolResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *ToolError      `json:"error,omitempty"`
	Meta    *ToolMeta       `json:"meta,omitempty"`
}

// Success builds a success envelope wrapping data, marshaled to JSON. A
// marshal failure collapses to a null payload rather than panicking.
func Success(data any) ToolResponse {
	encoded, err := json.Marshal(data)
	if err != nil {
		encoded = []byte("null")
	}
	return ToolResponse{Success: true, Data: encoded}
}

// Error builds a failure envelope. Retryable is derived from code.
func Error(code ErrorCode, message string) ToolResponse {
	return ToolResponse{
		Success: false,
		Data:    []byte("null"),
		Error: &ToolError{
			Code:      code,
			Message:   message,
			Retryable: code.Retryable(),
		},
	}
}

// DbError is a convenience constructor for a retryable database failure.
func DbError(message string) ToolResponse {
	return Error(ErrDbError, message)
}

// ValidationError is a convenience constructor for a non-retryable input
// validation failure.
func ValidationError(message string) ToolResponse {
	return Error(ErrValidationError, message)
}

// LLMNotConfigured is a convenience constructor for a missing LLM backend.
func LLMNotConfigured() ToolResponse {
	return Error(ErrLlmNotConfigured, "LLM is not configured. Check your config.toml.")
}

// PlatformNotConfigured is a convenience constructor for a missing
// platform client.
func PlatformNotConfigured() ToolResponse {
	return Error(ErrXNotConfigured, "platform client not available; run the auth setup flow")
}

// ScraperMutationBlocked is a convenience constructor for a mutation
// attempted against a read-only scraper backend.
func ScraperMutationBlocked() ToolResponse {
	return Error(ErrScraperMutationBlocked,
		"mutations are blocked when using the scraper backend; set scraper_allow_mutations = true to override")
}

// PolicyDeniedBlocked is a convenience constructor for a mutation denied
// because its tool is in blocked_tools.
func PolicyDeniedBlocked(message string) ToolResponse {
	return Error(ErrPolicyDeniedBlocked, message)
}

// PolicyDeniedRateLimited is a convenience constructor for a mutation
// denied because max_mutations_per_hour was exhausted.
func PolicyDeniedRateLimited(message string) ToolResponse {
	return Error(ErrPolicyDeniedRateLimited, message)
}

// WithMeta attaches metadata to the response.
func (r ToolResponse) WithMeta(meta ToolMeta) ToolResponse {
	r.Meta = &meta
	return r
}

// WithRateLimitReset attaches a rate-limit reset hint to the error payload.
// No-op on a success response.
func (r ToolResponse) WithRateLimitReset(reset string) ToolResponse {
	if r.Error != nil {
		r.Error.RateLimitReset = reset
	}
	return r
}

// WithRetryAfterMs attaches a retry-after hint to the error payload.
func (r ToolResponse) WithRetryAfterMs(ms uint64) ToolResponse {
	if r.Error != nil {
		r.Error.RetryAfterMs = &ms
	}
	return r
}

// WithPolicyDecision attaches a policy decision label to the error payload.
func (r ToolResponse) WithPolicyDecision(decision string) ToolResponse {
	if r.Error != nil {
		r.Error.PolicyDecision = decision
	}
	return r
}

// ToJSON serializes the envelope, falling back to a minimal error document
// if marshaling somehow fails.
func (r ToolResponse) ToJSON() string {
	encoded, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return `{"success":false,"data":null,"error":{"code":"serialization_error","message":"` + err.Error() + `","retryable":false}}`
	}
	return string(encoded)
}
