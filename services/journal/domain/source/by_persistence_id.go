package source

import (
	"context"
	"fmt"

	"github.com/ghuser/persistredis/pkg/logger"
	"github.com/ghuser/persistredis/pkg/metrics"
	"github.com/ghuser/persistredis/services/journal/domain"
	"github.com/ghuser/persistredis/services/journal/domain/repositories"
)

type byPersistenceIDDriver struct {
	gateway       repositories.StoreGateway
	keys          repositories.KeyScheme
	serializer    repositories.Serializer
	persistenceID string
}

func (d *byPersistenceIDDriver) Channel() string {
	return d.keys.PersistenceIDChannel(d.persistenceID)
}

func (d *byPersistenceIDDriver) FetchPage(ctx context.Context, lo, hi uint64) ([]RawRecord, error) {
	values, err := d.gateway.Range(ctx, d.keys.PersistenceIDKey(d.persistenceID), lo, hi)
	if err != nil {
		return nil, fmt.Errorf("%w: range %s: %v", domain.ErrStoreFailure, d.persistenceID, err)
	}

	records := make([]RawRecord, 0, len(values))
	for _, v := range values {
		rec, err := d.serializer.DecodeRecord(v.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: decode record for %s at %d: %v", domain.ErrDecodeFailure, d.persistenceID, v.Score, err)
		}
		records = append(records, RawRecord{
			Index:         v.Score,
			PersistenceID: rec.PersistenceID,
			SequenceNr:    rec.SequenceNr,
			Payload:       rec.Payload,
			Deleted:       rec.Deleted,
		})
	}
	return records, nil
}

// NewByPersistenceIDSource builds a source over the per-identifier sorted
// set. Offsets are inclusive on both ends: from and to may each be emitted.
func NewByPersistenceIDSource(
	ctx context.Context,
	gateway repositories.StoreGateway,
	keys repositories.KeyScheme,
	serializer repositories.Serializer,
	persistenceID string,
	fromSeq, toSeq uint64,
	live bool,
	pageSize uint64,
	m *metrics.Journal,
	log logger.Logger,
) (*Machine, error) {
	driver := &byPersistenceIDDriver{
		gateway:       gateway,
		keys:          keys,
		serializer:    serializer,
		persistenceID: persistenceID,
	}
	return New(ctx, driver, gateway, fromSeq, toSeq, live, pageSize, m, log)
}
