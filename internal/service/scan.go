package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"emirates-passport/internal/location"
	"emirates-passport/internal/model"
)

// ScanStatus is the outcome of a scan.
type ScanStatus int

// Scan outcomes.
const (
	ScanCollected ScanStatus = iota
	ScanAlreadyCollected
	ScanUnrecognized
	ScanSandboxed
)

// String returns the wire name of the status.
func (s ScanStatus) String() string {
	switch s {
	case ScanCollected:
		return "collected"
	case ScanAlreadyCollected:
		return "already_collected"
	case ScanUnrecognized:
		return "unrecognized"
	case ScanSandboxed:
		return "sandboxed"
	default:
		return "unknown"
	}
}

// ScanResult is the outcome of Scan.
type ScanResult struct {
	Status   ScanStatus
	Location model.LocationInfo
	Stamp    model.Stamp
	Balance  int64
}

// ScanService turns a decoded QR payload into a recorded stamp.
type ScanService struct {
	registry *location.Registry
	ledger   *LedgerService
}

// NewScanService creates a new ScanService instance.
func NewScanService(registry *location.Registry, ledger *LedgerService) *ScanService {
	if registry == nil {
		registry = location.Default()
	}
	return &ScanService{registry: registry, ledger: ledger}
}

// Registry returns the registry scans are resolved against.
func (s *ScanService) Registry() *location.Registry {
	return s.registry
}

// Scan resolves raw and records the stamp.
// ctx is checked before resolving and again before recording. Once recording
// has started it runs to completion even if ctx is cancelled.
// An unrecognized payload is a result, not an error, and is never persisted.
func (s *ScanService) Scan(ctx context.Context, user model.UserKey, raw string) (ScanResult, error) {
	if err := ctx.Err(); err != nil {
		return ScanResult{}, err
	}

	info, ok := s.registry.Resolve(raw)
	if !ok {
		s.ledger.metrics.RecordScan(ScanUnrecognized.String())
		log.Debug().
			Str("user_key", user.String()).
			Int("payload_len", len(raw)).
			Msg("Unrecognized scan payload")
		return ScanResult{Status: ScanUnrecognized}, nil
	}

	if err := ctx.Err(); err != nil {
		return ScanResult{}, err
	}

	res, err := s.ledger.RecordStamp(context.WithoutCancel(ctx), user, info)
	if err != nil {
		return ScanResult{}, fmt.Errorf("failed to scan: %w", err)
	}

	out := ScanResult{Location: info, Stamp: res.Stamp, Balance: res.Balance}
	switch {
	case res.Sandboxed:
		out.Status = ScanSandboxed
	case res.Created:
		out.Status = ScanCollected
	default:
		out.Status = ScanAlreadyCollected
	}
	s.ledger.metrics.RecordScan(out.Status.String())

	return out, nil
}
