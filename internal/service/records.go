package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"emirates-passport/internal/catalog"
	"emirates-passport/internal/model"
	"emirates-passport/internal/repository"
)

// stampRecord is the persisted shape of a stamp. Points is a pointer so that
// records written before point values were stored can be told apart from
// zero-point stamps.
type stampRecord struct {
	LocationID   int       `json:"locationId"`
	LocationName string    `json:"locationName"`
	CollectedAt  time.Time `json:"collectedAt"`
	EmirateID    string    `json:"emirateId"`
	Points       *int64    `json:"points,omitempty"`
}

// redemptionRecord is the persisted shape of a redemption.
type redemptionRecord struct {
	RewardID   int       `json:"rewardId"`
	Cost       *int64    `json:"cost,omitempty"`
	RedeemedAt time.Time `json:"redeemedAt"`
	Code       string    `json:"code,omitempty"`
}

// readRecord fetches one raw ledger record. A missing key yields "".
func (s *LedgerService) readRecord(ctx context.Context, user model.UserKey, record string) (string, error) {
	raw, err := s.store.Get(ctx, user.StorageKey(record))
	if errors.Is(err, repository.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		s.metrics.RecordStoreError("get")
		return "", fmt.Errorf("failed to read %s: %w", record, err)
	}
	return raw, nil
}

func (s *LedgerService) writeRecord(ctx context.Context, user model.UserKey, record string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", record, err)
	}
	if err := s.store.Set(ctx, user.StorageKey(record), string(data)); err != nil {
		s.metrics.RecordStoreError("set")
		return fmt.Errorf("failed to write %s: %w", record, err)
	}
	return nil
}

// loadStamps returns the user's stamp book. Missing or undecodable data
// yields an empty book; only an unavailable store is an error.
func (s *LedgerService) loadStamps(ctx context.Context, user model.UserKey) (model.StampBook, error) {
	raw, err := s.readRecord(ctx, user, model.RecordCollectedStamps)
	if err != nil {
		return nil, err
	}
	book := make(model.StampBook)
	if strings.TrimSpace(raw) == "" {
		return book, nil
	}

	var stored map[string][]stampRecord
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		s.corrupt(user, model.RecordCollectedStamps, err)
		return book, nil
	}

	for emirateID, records := range stored {
		for _, rec := range records {
			stamp := model.Stamp{
				LocationID:   rec.LocationID,
				LocationName: rec.LocationName,
				CollectedAt:  rec.CollectedAt,
				EmirateID:    rec.EmirateID,
			}
			if stamp.EmirateID == "" {
				stamp.EmirateID = emirateID
			}
			if rec.Points != nil {
				stamp.PointValue = *rec.Points
			} else if info, ok := s.registry.Lookup(stamp.EmirateID, stamp.LocationID); ok {
				stamp.PointValue = info.PointValue
			}
			if _, dup := book.Find(stamp.EmirateID, stamp.LocationID); dup {
				continue
			}
			book[stamp.EmirateID] = append(book[stamp.EmirateID], stamp)
		}
	}
	return book, nil
}

func (s *LedgerService) saveStamps(ctx context.Context, user model.UserKey, book model.StampBook) error {
	stored := make(map[string][]stampRecord, len(book))
	for emirateID, stamps := range book {
		records := make([]stampRecord, 0, len(stamps))
		for _, st := range stamps {
			points := st.PointValue
			records = append(records, stampRecord{
				LocationID:   st.LocationID,
				LocationName: st.LocationName,
				CollectedAt:  st.CollectedAt,
				EmirateID:    st.EmirateID,
				Points:       &points,
			})
		}
		stored[emirateID] = records
	}
	return s.writeRecord(ctx, user, model.RecordCollectedStamps, stored)
}

// loadRedemptions returns the user's redemption history. Both the record list
// and the legacy plain list of reward IDs are accepted.
func (s *LedgerService) loadRedemptions(ctx context.Context, user model.UserKey) (model.Redemptions, error) {
	raw, err := s.readRecord(ctx, user, model.RecordRedeemedRewards)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw) == "" {
		return model.Redemptions{}, nil
	}

	var records []redemptionRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		var ids []int
		if legacyErr := json.Unmarshal([]byte(raw), &ids); legacyErr != nil {
			s.corrupt(user, model.RecordRedeemedRewards, err)
			return model.Redemptions{}, nil
		}
		records = make([]redemptionRecord, 0, len(ids))
		for _, id := range ids {
			records = append(records, redemptionRecord{RewardID: id})
		}
	}

	out := make(model.Redemptions, 0, len(records))
	for _, rec := range records {
		if out.Has(rec.RewardID) {
			continue
		}
		r := model.Redemption{
			RewardID:   rec.RewardID,
			RedeemedAt: rec.RedeemedAt,
			Code:       rec.Code,
		}
		if rec.Cost != nil {
			r.Cost = *rec.Cost
		} else if reward, ok := catalog.GetReward(rec.RewardID); ok {
			r.Cost = reward.Cost
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *LedgerService) saveRedemptions(ctx context.Context, user model.UserKey, redemptions model.Redemptions) error {
	records := make([]redemptionRecord, 0, len(redemptions))
	for _, r := range redemptions {
		cost := r.Cost
		records = append(records, redemptionRecord{
			RewardID:   r.RewardID,
			Cost:       &cost,
			RedeemedAt: r.RedeemedAt,
			Code:       r.Code,
		})
	}
	return s.writeRecord(ctx, user, model.RecordRedeemedRewards, records)
}

func (s *LedgerService) corrupt(user model.UserKey, record string, err error) {
	s.metrics.RecordCorruptRecord(record)
	log.Warn().
		Err(err).
		Str("user_key", user.String()).
		Str("record", record).
		Msg("Corrupt ledger record, treating as empty")
}
