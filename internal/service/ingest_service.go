package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tumbleweb-data/internal/blob"
	"tumbleweb-data/internal/domain"
	"tumbleweb-data/internal/repository"
	"tumbleweb-data/internal/store"

	"go.uber.org/zap"
)

// Sample is the transport form of an incoming datapoint. Data is decoded
// according to the data source's dtype: numbers for Int/Float, number or
// string for Long, string for String, base64 for Byte/Image.
type Sample struct {
	Data            json.RawMessage
	Packets         int
	PacketsReceived int
	MessageID       int64
	Size            *int64
	ReceivingStart  *time.Time
	ReceivingDone   *time.Time
	ImageFormat     string
}

// SamplePatch completes a partially received sample. Nil fields are left
// untouched; Data, when present, replaces the payload.
type SamplePatch struct {
	PacketsReceived *int
	ReceivingDone   *time.Time
	Size            *int64
	Data            json.RawMessage
}

// IngestService routes an incoming sample, keyed by (device address, relay
// address, short key), to the typed storage channel of its data source,
// auto-provisioning the relay and the run when absent. The whole persist
// step runs in one repository transaction; blob content for Byte/Image
// payloads is written to disk before the row so a crash can only leave an
// unreferenced file.
type IngestService struct {
	repos  repository.Repos
	blobs  *blob.Store
	kv     store.KV
	locks  *AddressLocks
	logger *zap.Logger
}

func NewIngestService(repos repository.Repos, blobs *blob.Store, kv store.KV, locks *AddressLocks, logger *zap.Logger) *IngestService {
	return &IngestService{repos: repos, blobs: blobs, kv: kv, locks: locks, logger: logger}
}

func (s *IngestService) Ingest(ctx context.Context, deviceAddress, relayAddress, shortKey string, sample Sample, callerHost string) (int64, error) {
	weed, err := s.resolveDevice(ctx, deviceAddress)
	if err != nil {
		return 0, err
	}
	ds, err := s.repos.DataSources.GetByTumbleweedAndShortKey(ctx, weed.ID, shortKey)
	if err != nil {
		return 0, err
	}

	// Serialize implicit run creation per address group, same lock as
	// explicit run activation.
	unlock := s.locks.Lock(weed.Address)
	defer unlock()

	base, created, err := s.repos.Tumblebases.GetOrCreateByAddress(ctx, relayAddress, callerHost)
	if err != nil {
		return 0, err
	}
	if created {
		s.logger.Info("Auto-created tumblebase on ingestion",
			zap.Int64("tumblebase_id", base.ID),
			zap.String("address", relayAddress),
		)
	}
	if err := s.repos.Tumbleweeds.LinkTumblebase(ctx, weed.ID, base.ID); err != nil {
		return 0, err
	}

	run, err := s.repos.Runs.GetActive(ctx, weed.ID)
	if err != nil {
		return 0, err
	}
	if run == nil {
		newRun := &domain.Run{TumbleweedID: weed.ID, CreatedAt: time.Now().UTC()}
		newRun.Name.String, newRun.Name.Valid = "Unnamed run", true
		runID, err := s.repos.Runs.Create(ctx, newRun)
		if err != nil {
			return 0, err
		}
		newRun.ID = runID
		run = newRun
		s.logger.Info("Auto-created run on ingestion",
			zap.Int64("run_id", runID),
			zap.Int64("tumbleweed_id", weed.ID),
		)
	}

	p, err := s.buildDataPoint(ds, run, base, sample)
	if err != nil {
		return 0, err
	}
	id, err := s.repos.DataPoints.Insert(ctx, p)
	if err != nil {
		if p.Path.Valid {
			_ = s.blobs.Remove(p.Path.String)
		}
		return 0, err
	}
	p.ID = id

	s.cacheLatest(ctx, ds.ID, p)
	return id, nil
}

// resolveDevice maps a non-unique device address to exactly one device.
// A single match wins outright; among several, exactly one must hold the
// active run.
func (s *IngestService) resolveDevice(ctx context.Context, address string) (*domain.Tumbleweed, error) {
	weeds, err := s.repos.Tumbleweeds.GetByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	if len(weeds) == 0 {
		return nil, fmt.Errorf("%w: no tumbleweed with address %q", domain.ErrNotFound, address)
	}
	if len(weeds) == 1 {
		return weeds[0], nil
	}

	var holder *domain.Tumbleweed
	for _, w := range weeds {
		run, err := s.repos.Runs.GetActive(ctx, w.ID)
		if err != nil {
			return nil, err
		}
		if run == nil {
			continue
		}
		if holder != nil {
			return nil, fmt.Errorf("%w: address %q has multiple active-run holders",
				domain.ErrAmbiguousAddress, address)
		}
		holder = w
	}
	if holder == nil {
		return nil, fmt.Errorf("%w: address %q is shared and no tumbleweed holds an active run",
			domain.ErrAmbiguousAddress, address)
	}
	return holder, nil
}

func (s *IngestService) buildDataPoint(ds *domain.DataSource, run *domain.Run, base *domain.Tumblebase, sample Sample) (*domain.DataPoint, error) {
	p := &domain.DataPoint{
		DType:           ds.DType,
		DataSourceID:    ds.ID,
		RunID:           run.ID,
		TumblebaseIDs:   []int64{base.ID},
		Packets:         sample.Packets,
		PacketsReceived: sample.PacketsReceived,
		MessageID:       sample.MessageID,
		ReceivingStart:  time.Now().UTC(),
	}
	if sample.ReceivingStart != nil {
		p.ReceivingStart = *sample.ReceivingStart
	}
	if sample.ReceivingDone != nil {
		p.ReceivingDone.Time, p.ReceivingDone.Valid = *sample.ReceivingDone, true
	} else if sample.Packets > 0 && sample.PacketsReceived >= sample.Packets {
		p.ReceivingDone.Time, p.ReceivingDone.Valid = time.Now().UTC(), true
	}
	if sample.Size != nil {
		p.Size.Int64, p.Size.Valid = *sample.Size, true
	}

	if len(sample.Data) == 0 {
		// partial sample: the payload arrives later through the update path
		return p, nil
	}

	switch ds.DType {
	case domain.DTypeInt:
		var v int64
		if err := json.Unmarshal(sample.Data, &v); err != nil {
			return nil, fmt.Errorf("%w: int payload: %v", domain.ErrInvalidFormat, err)
		}
		p.IntValue.Int64, p.IntValue.Valid = v, true
	case domain.DTypeLong:
		v, err := decodeLong(sample.Data)
		if err != nil {
			return nil, err
		}
		p.LongValue.Int64, p.LongValue.Valid = v, true
	case domain.DTypeFloat:
		var v float64
		if err := json.Unmarshal(sample.Data, &v); err != nil {
			return nil, fmt.Errorf("%w: float payload: %v", domain.ErrInvalidFormat, err)
		}
		p.FloatValue.Float64, p.FloatValue.Valid = v, true
	case domain.DTypeString:
		var v string
		if err := json.Unmarshal(sample.Data, &v); err != nil {
			return nil, fmt.Errorf("%w: string payload: %v", domain.ErrInvalidFormat, err)
		}
		p.StringValue.String, p.StringValue.Valid = v, true
	case domain.DTypeByte:
		content, err := decodeBase64(sample.Data)
		if err != nil {
			return nil, err
		}
		path, err := s.blobs.Write(content, "")
		if err != nil {
			return nil, err
		}
		p.Path.String, p.Path.Valid = path, true
		p.Bytes = content
		if !p.Size.Valid {
			p.Size.Int64, p.Size.Valid = int64(len(content)), true
		}
	case domain.DTypeImage:
		format := strings.ToLower(sample.ImageFormat)
		if !domain.ImageFormats[format] {
			return nil, fmt.Errorf("%w: unsupported image format %q", domain.ErrInvalidFormat, sample.ImageFormat)
		}
		content, err := decodeBase64(sample.Data)
		if err != nil {
			return nil, err
		}
		path, err := s.blobs.Write(content, format)
		if err != nil {
			return nil, err
		}
		p.Path.String, p.Path.Valid = path, true
		p.ImageFormat.String, p.ImageFormat.Valid = format, true
		p.Bytes = content
		if !p.Size.Valid {
			p.Size.Int64, p.Size.Valid = int64(len(content)), true
		}
	default:
		return nil, fmt.Errorf("%w: dtype %q", domain.ErrInvalidFormat, ds.DType)
	}
	return p, nil
}

// UpdateDataPoint completes a partially received sample. A replaced
// Byte/Image payload writes the new file first; the previous file is
// removed only after the row update succeeds.
func (s *IngestService) UpdateDataPoint(ctx context.Context, dtype domain.DType, id int64, sp SamplePatch) error {
	current, err := s.repos.DataPoints.Get(ctx, dtype, id)
	if err != nil {
		return err
	}

	patch := repository.DataPointPatch{
		PacketsReceived: sp.PacketsReceived,
		ReceivingDone:   sp.ReceivingDone,
		Size:            sp.Size,
	}

	var oldPath string
	if len(sp.Data) > 0 {
		switch dtype {
		case domain.DTypeInt:
			var v int64
			if err := json.Unmarshal(sp.Data, &v); err != nil {
				return fmt.Errorf("%w: int payload: %v", domain.ErrInvalidFormat, err)
			}
			patch.IntValue = &v
		case domain.DTypeLong:
			v, err := decodeLong(sp.Data)
			if err != nil {
				return err
			}
			patch.LongValue = &v
		case domain.DTypeFloat:
			var v float64
			if err := json.Unmarshal(sp.Data, &v); err != nil {
				return fmt.Errorf("%w: float payload: %v", domain.ErrInvalidFormat, err)
			}
			patch.FloatValue = &v
		case domain.DTypeString:
			var v string
			if err := json.Unmarshal(sp.Data, &v); err != nil {
				return fmt.Errorf("%w: string payload: %v", domain.ErrInvalidFormat, err)
			}
			patch.StringValue = &v
		case domain.DTypeByte, domain.DTypeImage:
			content, err := decodeBase64(sp.Data)
			if err != nil {
				return err
			}
			ext := ""
			if dtype == domain.DTypeImage && current.ImageFormat.Valid {
				ext = current.ImageFormat.String
			}
			path, err := s.blobs.Write(content, ext)
			if err != nil {
				return err
			}
			patch.Path = &path
			if current.Path.Valid {
				oldPath = current.Path.String
			}
			if sp.Size == nil {
				size := int64(len(content))
				patch.Size = &size
			}
		default:
			return fmt.Errorf("%w: dtype %q", domain.ErrInvalidFormat, dtype)
		}
	}

	if err := s.repos.DataPoints.Update(ctx, dtype, id, patch); err != nil {
		if patch.Path != nil {
			_ = s.blobs.Remove(*patch.Path)
		}
		return err
	}
	if oldPath != "" {
		if err := s.blobs.Remove(oldPath); err != nil {
			s.logger.Warn("Failed to remove replaced payload file",
				zap.String("path", oldPath), zap.Error(err))
		}
	}

	if updated, err := s.repos.DataPoints.Get(ctx, dtype, id); err == nil {
		s.cacheLatest(ctx, updated.DataSourceID, updated)
	}
	return nil
}

// GetDataPointsByDataSourceAndRun validates both references, then returns
// datapoints ascending by id. Byte/Image content is loaded from disk so
// the transport form carries the payload inline.
func (s *IngestService) GetDataPointsByDataSourceAndRun(ctx context.Context, dataSourceID, runID int64) ([]*domain.DataPoint, error) {
	ds, err := s.repos.DataSources.Get(ctx, dataSourceID)
	if err != nil {
		return nil, err
	}
	if _, err := s.repos.Runs.Get(ctx, runID); err != nil {
		return nil, err
	}
	points, err := s.repos.DataPoints.ListByDataSourceAndRun(ctx, ds.DType, dataSourceID, runID)
	if err != nil {
		return nil, err
	}
	if ds.DType == domain.DTypeByte || ds.DType == domain.DTypeImage {
		for _, p := range points {
			if !p.Path.Valid {
				continue
			}
			content, err := s.blobs.Read(p.Path.String)
			if err != nil {
				return nil, err
			}
			p.Bytes = content
		}
	}
	return points, nil
}

// GetLatestDataPoint serves the cached summary of the most recently
// ingested sample for the data source.
func (s *IngestService) GetLatestDataPoint(ctx context.Context, dataSourceID int64) (map[string]any, error) {
	if _, err := s.repos.DataSources.Get(ctx, dataSourceID); err != nil {
		return nil, err
	}
	raw, err := s.kv.Get(ctx, latestDataPointKey(dataSourceID))
	if err != nil {
		if err == store.ErrMiss {
			return nil, fmt.Errorf("%w: no datapoint recorded for dataSource %d", domain.ErrNotFound, dataSourceID)
		}
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// cacheLatest is best-effort: a cache fault must never fail an ingestion
// that already committed.
func (s *IngestService) cacheLatest(ctx context.Context, dataSourceID int64, p *domain.DataPoint) {
	encoded, err := json.Marshal(p.ToJSON())
	if err != nil {
		s.logger.Warn("Failed to encode latest-datapoint summary", zap.Error(err))
		return
	}
	if err := s.kv.Set(ctx, latestDataPointKey(dataSourceID), string(encoded), 0); err != nil {
		s.logger.Warn("Failed to cache latest datapoint",
			zap.Int64("data_source_id", dataSourceID),
			zap.Error(err),
		)
	}
}

func latestDataPointKey(dataSourceID int64) string {
	return fmt.Sprintf("tumbleweb:latest-datapoint:%d", dataSourceID)
}

func decodeLong(raw json.RawMessage) (int64, error) {
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return 0, fmt.Errorf("%w: long payload must be a number or numeric string", domain.ErrInvalidFormat)
	}
	n, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: long payload %q: %v", domain.ErrInvalidFormat, str, err)
	}
	return n, nil
}

func decodeBase64(raw json.RawMessage) ([]byte, error) {
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, fmt.Errorf("%w: binary payload must be a base64 string", domain.ErrInvalidFormat)
	}
	content, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 payload: %v", domain.ErrInvalidFormat, err)
	}
	return content, nil
}
