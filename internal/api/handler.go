package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"emirates-passport/internal/catalog"
	"emirates-passport/internal/location"
	"emirates-passport/internal/model"
	"emirates-passport/internal/notify"
	"emirates-passport/internal/service"
)

// maxBodyBytes bounds request bodies; scan payloads are short QR strings.
const maxBodyBytes = 16 << 10

// Handler serves the passport API.
type Handler struct {
	ledger   LedgerReader
	redeemer Redeemer
	scanner  Scanner
	profiles Profiles
	registry *location.Registry
	notifier *notify.Notifier
	health   HealthChecker
	validate *validator.Validate
}

type scanRequest struct {
	Payload string `json:"payload" validate:"required,max=4096"`
}

type redeemRequest struct {
	RewardID int `json:"reward_id" validate:"required,gt=0"`
}

type profileRequest struct {
	FullName              string `json:"full_name" validate:"max=100"`
	Email                 string `json:"email" validate:"omitempty,email,max=254"`
	Bio                   string `json:"bio" validate:"max=500"`
	FavoriteEmiratesPlace string `json:"favorite_emirates_place" validate:"max=100"`
	Hometown              string `json:"hometown" validate:"max=100"`
}

type profileResponse struct {
	UserKey               string `json:"user_key"`
	Status                string `json:"status,omitempty"`
	FullName              string `json:"full_name"`
	Email                 string `json:"email"`
	Bio                   string `json:"bio"`
	FavoriteEmiratesPlace string `json:"favorite_emirates_place"`
	Hometown              string `json:"hometown"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type locationResponse struct {
	ID          int    `json:"id"`
	EmirateID   string `json:"emirate_id"`
	EmirateName string `json:"emirate_name"`
	Name        string `json:"name"`
	Points      int64  `json:"points"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Token       string `json:"token,omitempty"`
}

type stampResponse struct {
	LocationID   int       `json:"location_id"`
	LocationName string    `json:"location_name"`
	EmirateID    string    `json:"emirate_id"`
	Points       int64     `json:"points"`
	CollectedAt  time.Time `json:"collected_at"`
}

type scanResponse struct {
	Status   string            `json:"status"`
	Location *locationResponse `json:"location,omitempty"`
	Stamp    *stampResponse    `json:"stamp,omitempty"`
	Balance  int64             `json:"balance"`
}

type redemptionResponse struct {
	RewardID   int       `json:"reward_id"`
	Cost       int64     `json:"cost"`
	RedeemedAt time.Time `json:"redeemed_at"`
	Code       string    `json:"code,omitempty"`
}

type redeemResponse struct {
	Status     string              `json:"status"`
	RewardID   int                 `json:"reward_id"`
	Shortfall  int64               `json:"shortfall,omitempty"`
	Balance    int64               `json:"balance"`
	Redemption *redemptionResponse `json:"redemption,omitempty"`
}

type emirateResponse struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	TotalSlots int             `json:"total_slots"`
	Collected  int             `json:"collected"`
	Stamps     []stampResponse `json:"stamps"`
}

type summaryResponse struct {
	UserKey    string            `json:"user_key"`
	Emirates   []emirateResponse `json:"emirates"`
	Collected  int               `json:"collected"`
	TotalSlots int               `json:"total_slots"`
	Completion int               `json:"completion"`
	Balance    int64             `json:"balance"`
	Redeemed   []int             `json:"redeemed"`
}

type rewardResponse struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Cost        int64  `json:"cost"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// Health reports whether the store is reachable.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			log.Warn().Err(err).Msg("Health check failed")
			writeError(w, http.StatusServiceUnavailable, "UNHEALTHY", "store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListRewards returns the reward catalogue.
// GET /api/rewards
func (h *Handler) ListRewards(w http.ResponseWriter, r *http.Request) {
	rewards := h.redeemer.Rewards()
	out := make([]rewardResponse, 0, len(rewards))
	for _, rw := range rewards {
		out = append(out, rewardResponse(rw))
	}
	writeJSON(w, http.StatusOK, map[string]any{"rewards": out})
}

// ListLocations returns the scannable locations in registry order.
// GET /api/locations
func (h *Handler) ListLocations(w http.ResponseWriter, r *http.Request) {
	entries := h.registry.Entries()
	out := make([]locationResponse, 0, len(entries))
	for _, e := range entries {
		loc := toLocationResponse(e.Location)
		loc.Token = e.PrimaryToken()
		out = append(out, *loc)
	}
	writeJSON(w, http.StatusOK, map[string]any{"locations": out})
}

// Scan records a scanned payload.
// POST /api/passport/{userKey}/scans
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	user, _ := UserKeyFromContext(r.Context())

	var req scanRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.scanner.Scan(r.Context(), user, req.Payload)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	out := scanResponse{Status: res.Status.String(), Balance: res.Balance}
	if res.Status != service.ScanUnrecognized {
		out.Location = toLocationResponse(res.Location)
		stamp := toStampResponse(res.Stamp)
		out.Stamp = &stamp
	}

	status := http.StatusOK
	if res.Status == service.ScanCollected {
		status = http.StatusCreated
	}
	writeJSON(w, status, out)
}

// GetStamps returns the user's stamps grouped by emirate.
// GET /api/passport/{userKey}/stamps
func (h *Handler) GetStamps(w http.ResponseWriter, r *http.Request) {
	user, _ := UserKeyFromContext(r.Context())

	book, err := h.ledger.GetStamps(r.Context(), user)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_key": user.String(),
		"stamps":   toStampBookResponse(book),
	})
}

// GetPoints returns the user's derived balance.
// GET /api/passport/{userKey}/points
func (h *Handler) GetPoints(w http.ResponseWriter, r *http.Request) {
	user, _ := UserKeyFromContext(r.Context())

	balance, err := h.ledger.GetBalance(r.Context(), user)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_key": user.String(),
		"balance":  balance,
	})
}

// GetSummary returns passport progress and balance.
// GET /api/passport/{userKey}/summary
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	user, _ := UserKeyFromContext(r.Context())

	sum, err := h.ledger.Summary(r.Context(), user)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	out := summaryResponse{
		UserKey:    sum.UserKey.String(),
		Emirates:   make([]emirateResponse, 0, len(sum.Emirates)),
		Collected:  sum.Collected,
		TotalSlots: sum.TotalSlots,
		Completion: sum.Completion,
		Balance:    sum.Balance,
		Redeemed:   sum.Redeemed,
	}
	for _, p := range sum.Emirates {
		out.Emirates = append(out.Emirates, emirateResponse{
			ID:         p.Emirate.ID,
			Name:       p.Emirate.Name,
			TotalSlots: p.Emirate.TotalStampSlots,
			Collected:  p.Collected,
			Stamps:     toStampResponses(p.Stamps),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// ListRedemptions returns the user's redemption history.
// GET /api/passport/{userKey}/redemptions
func (h *Handler) ListRedemptions(w http.ResponseWriter, r *http.Request) {
	user, _ := UserKeyFromContext(r.Context())

	redemptions, err := h.ledger.GetRedemptions(r.Context(), user)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	out := make([]redemptionResponse, 0, len(redemptions))
	for _, rd := range redemptions {
		out = append(out, toRedemptionResponse(rd))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_key":    user.String(),
		"redemptions": out,
	})
}

// Redeem claims a reward.
// POST /api/passport/{userKey}/redemptions
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	user, _ := UserKeyFromContext(r.Context())

	var req redeemRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.redeemer.RedeemByID(r.Context(), user, req.RewardID)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	out := redeemResponse{
		Status:    res.Status.String(),
		RewardID:  req.RewardID,
		Shortfall: res.Shortfall,
		Balance:   res.Balance,
	}
	status := http.StatusOK
	if res.Status == service.RedeemOK {
		rd := toRedemptionResponse(res.Redemption)
		out.Redemption = &rd
		status = http.StatusCreated
	}
	writeJSON(w, status, out)
}

// GetProfile returns the user's profile.
// GET /api/passport/{userKey}/profile
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, _ := UserKeyFromContext(r.Context())

	p, err := h.profiles.GetProfile(r.Context(), user)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(user, p, ""))
}

// PutProfile replaces the user's profile. The demo identity gets the
// submitted profile back with status "sandboxed" and nothing is stored.
// PUT /api/passport/{userKey}/profile
func (h *Handler) PutProfile(w http.ResponseWriter, r *http.Request) {
	user, _ := UserKeyFromContext(r.Context())

	var req profileRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.profiles.SaveProfile(r.Context(), user, model.Profile(req))
	if err != nil {
		h.serviceError(w, err)
		return
	}

	status := "saved"
	if res.Sandboxed {
		status = "sandboxed"
	}
	writeJSON(w, http.StatusOK, toProfileResponse(user, res.Profile, status))
}

// decode reads and validates a JSON body, writing a 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "request body is not valid JSON")
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return false
	}
	return true
}

// serviceError maps a service error to a status code.
func (h *Handler) serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrRewardNotFound):
		writeError(w, http.StatusNotFound, "REWARD_NOT_FOUND", "reward not found")
	case errors.Is(err, service.ErrInvalidProfile):
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
	case errors.Is(err, model.ErrInvalidUserKey):
		writeError(w, http.StatusBadRequest, "INVALID_USER_KEY", "user key is invalid")
	default:
		log.Error().Err(err).Msg("Ledger operation failed")
		writeError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "passport storage is unavailable")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

func toLocationResponse(l model.LocationInfo) *locationResponse {
	return &locationResponse{
		ID:          l.ID,
		EmirateID:   l.EmirateID,
		EmirateName: emirateName(l.EmirateID),
		Name:        l.Name,
		Points:      l.PointValue,
		Description: l.Description,
		Icon:        l.Icon,
	}
}

func toStampResponse(s model.Stamp) stampResponse {
	return stampResponse{
		LocationID:   s.LocationID,
		LocationName: s.LocationName,
		EmirateID:    s.EmirateID,
		Points:       s.PointValue,
		CollectedAt:  s.CollectedAt,
	}
}

func toStampResponses(stamps []model.Stamp) []stampResponse {
	out := make([]stampResponse, 0, len(stamps))
	for _, s := range stamps {
		out = append(out, toStampResponse(s))
	}
	return out
}

func toStampBookResponse(book model.StampBook) map[string][]stampResponse {
	out := make(map[string][]stampResponse, len(book))
	for emirateID, stamps := range book {
		out[emirateID] = toStampResponses(stamps)
	}
	return out
}

func toProfileResponse(user model.UserKey, p model.Profile, status string) profileResponse {
	return profileResponse{
		UserKey:               user.String(),
		Status:                status,
		FullName:              p.FullName,
		Email:                 p.Email,
		Bio:                   p.Bio,
		FavoriteEmiratesPlace: p.FavoriteEmiratesPlace,
		Hometown:              p.Hometown,
	}
}

func toRedemptionResponse(r model.Redemption) redemptionResponse {
	return redemptionResponse{
		RewardID:   r.RewardID,
		Cost:       r.Cost,
		RedeemedAt: r.RedeemedAt,
		Code:       r.Code,
	}
}

// emirateName returns the display name of an emirate, falling back to its ID.
func emirateName(id string) string {
	if e, ok := catalog.GetEmirate(id); ok {
		return e.Name
	}
	return id
}
