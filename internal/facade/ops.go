// ABOUTME: Named facade operations shared by the HTTP API and the local bridge
// ABOUTME: Typed payload in, typed result or structured error out

package facade

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chatpilot-app/chatpilot/internal/analytics"
	"github.com/chatpilot-app/chatpilot/internal/credits"
	"github.com/chatpilot-app/chatpilot/internal/license"
	"github.com/chatpilot-app/chatpilot/internal/profile"
)

// Operation names understood by both facade surfaces.
const (
	OpGetSettings     = "GET_SETTINGS"
	OpUpdateSettings  = "UPDATE_SETTINGS"
	OpGetLicense      = "GET_LICENSE"
	OpGetAnalytics    = "GET_ANALYTICS"
	OpUpdateAnalytics = "UPDATE_ANALYTICS"
	OpGetCredits      = "GET_CREDITS"
)

// ErrUnknownOp is returned by Dispatch for an unrecognized operation name.
var ErrUnknownOp = errors.New("unknown operation")

// OpError is the structured error returned across facade surfaces.
type OpError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Service bundles the core engines behind the facade contract.
type Service struct {
	Profiles  *profile.Store
	License   *license.Cache
	Meter     *credits.Meter
	Analytics *analytics.Store
}

// NewService creates the facade service.
func NewService(profiles *profile.Store, lic *license.Cache, meter *credits.Meter, stats *analytics.Store) *Service {
	return &Service{Profiles: profiles, License: lic, Meter: meter, Analytics: stats}
}

// GetSettings returns the active profile's settings.
func (s *Service) GetSettings(ctx context.Context) (profile.Settings, error) {
	return s.Profiles.GetActiveSettings(ctx)
}

// UpdateSettings merges a partial update into the active profile.
func (s *Service) UpdateSettings(ctx context.Context, patch profile.SettingsPatch) (profile.Settings, error) {
	return s.Profiles.UpdateActiveSettings(ctx, patch)
}

// GetLicense returns the cached (or freshly verified) license.
func (s *Service) GetLicense(ctx context.Context) *license.License {
	return s.License.Init(ctx)
}

// GetAnalytics returns the analytics counters.
func (s *Service) GetAnalytics(ctx context.Context) analytics.Stats {
	return s.Analytics.Get(ctx)
}

// UpdateAnalytics merges a partial counter update.
func (s *Service) UpdateAnalytics(ctx context.Context, patch analytics.Patch) (analytics.Stats, error) {
	return s.Analytics.Update(ctx, patch)
}

// GetCredits returns the credit meter status with any low-credit warning.
func (s *Service) GetCredits(ctx context.Context) CreditsResult {
	return CreditsResult{
		Status:  s.Meter.GetStatus(ctx),
		Warning: s.Meter.CheckWarning(ctx),
	}
}

// CreditsResult is the GET_CREDITS payload.
type CreditsResult struct {
	Status  credits.Status  `json:"status"`
	Warning credits.Warning `json:"warning"`
}

// Dispatch executes a named operation with a raw JSON payload. The bridge
// surface is built entirely on this entry point.
func (s *Service) Dispatch(ctx context.Context, op string, payload json.RawMessage) (any, error) {
	switch op {
	case OpGetSettings:
		return s.GetSettings(ctx)
	case OpUpdateSettings:
		var patch profile.SettingsPatch
		if err := unmarshalPayload(payload, &patch); err != nil {
			return nil, err
		}
		return s.UpdateSettings(ctx, patch)
	case OpGetLicense:
		return s.GetLicense(ctx), nil
	case OpGetAnalytics:
		return s.GetAnalytics(ctx), nil
	case OpUpdateAnalytics:
		var patch analytics.Patch
		if err := unmarshalPayload(payload, &patch); err != nil {
			return nil, err
		}
		return s.UpdateAnalytics(ctx, patch)
	case OpGetCredits:
		return s.GetCredits(ctx), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownOp, op)
	}
}

func unmarshalPayload(payload json.RawMessage, out any) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: missing payload", errValidation)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: %v", errValidation, err)
	}
	return nil
}

// errValidation tags malformed payloads so they map to the validation code.
var errValidation = errors.New("invalid payload")

// ErrorCode maps an error to the structured code shared by both surfaces.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, profile.ErrInvalidName),
		errors.Is(err, ErrInvalidKeyName),
		errors.Is(err, errValidation):
		return "validation"
	case errors.Is(err, profile.ErrNotFound),
		errors.Is(err, ErrKeyNotFound),
		errors.Is(err, ErrUnknownOp):
		return "not_found"
	case errors.Is(err, profile.ErrProtectedProfile):
		return "protected"
	case errors.Is(err, profile.ErrProfileLimit),
		errors.Is(err, profile.ErrLimitExceeded):
		return "limit_exceeded"
	case errors.Is(err, credits.ErrQuotaExhausted):
		return "quota_exhausted"
	case errors.Is(err, profile.ErrNeedsMigration):
		return "needs_migration"
	default:
		return "internal"
	}
}

// NewOpError wraps an error into the structured facade form.
func NewOpError(err error) OpError {
	return OpError{Code: ErrorCode(err), Message: err.Error()}
}
