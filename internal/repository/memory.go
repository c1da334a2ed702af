package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tumbleweb-data/internal/domain"
)

// MemoryStore is an in-memory implementation of every repository. It backs
// unit tests and the DB-less fallback mode in main. Cascade and refusal
// rules match the Postgres implementation.
type MemoryStore struct {
	mu sync.RWMutex

	nextID int64

	tumbleweeds  map[int64]*domain.Tumbleweed
	tumblebases  map[int64]*domain.Tumblebase
	runs         map[int64]*domain.Run
	subsystems   map[int64]*domain.SubSystem
	datasources  map[int64]*domain.DataSource
	commandTypes map[int64]*domain.CommandType
	commands     map[int64]*domain.Command
	datapoints   map[domain.DType]map[int64]*domain.DataPoint

	// tumbleweed <-> tumblebase associations
	weedBaseLinks map[int64]map[int64]bool // tumbleweedID -> set of tumblebaseIDs
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		tumbleweeds:   map[int64]*domain.Tumbleweed{},
		tumblebases:   map[int64]*domain.Tumblebase{},
		runs:          map[int64]*domain.Run{},
		subsystems:    map[int64]*domain.SubSystem{},
		datasources:   map[int64]*domain.DataSource{},
		commandTypes:  map[int64]*domain.CommandType{},
		commands:      map[int64]*domain.Command{},
		datapoints:    map[domain.DType]map[int64]*domain.DataPoint{},
		weedBaseLinks: map[int64]map[int64]bool{},
	}
	for _, d := range []domain.DType{
		domain.DTypeInt, domain.DTypeLong, domain.DTypeFloat,
		domain.DTypeString, domain.DTypeByte, domain.DTypeImage,
	} {
		s.datapoints[d] = map[int64]*domain.DataPoint{}
	}
	return s
}

// NewMemoryRepos wires one shared MemoryStore behind every repository
// interface.
func NewMemoryRepos() Repos {
	s := NewMemoryStore()
	return Repos{
		Tumbleweeds:  s,
		Tumblebases:  (*memoryTumblebases)(s),
		Runs:         (*memoryRuns)(s),
		SubSystems:   (*memorySubSystems)(s),
		DataSources:  (*memoryDataSources)(s),
		CommandTypes: (*memoryCommandTypes)(s),
		Commands:     (*memoryCommands)(s),
		DataPoints:   (*memoryDataPoints)(s),
	}
}

func (s *MemoryStore) newID() int64 {
	s.nextID++
	return s.nextID
}

// --- Tumbleweeds ---

func (s *MemoryStore) Create(_ context.Context, t *domain.Tumbleweed) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	cp.ID = s.newID()
	s.tumbleweeds[cp.ID] = &cp
	return cp.ID, nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (*domain.Tumbleweed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tumbleweeds[id]
	if !ok {
		return nil, fmt.Errorf("%w: tumbleweed %d", domain.ErrNotFound, id)
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) List(_ context.Context) ([]*domain.Tumbleweed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Tumbleweed, 0, len(s.tumbleweeds))
	for _, t := range s.tumbleweeds {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetByAddress(_ context.Context, address string) ([]*domain.Tumbleweed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Tumbleweed
	for _, t := range s.tumbleweeds {
		if t.Address == address {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) LinkTumblebase(_ context.Context, tumbleweedID, tumblebaseID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tumbleweeds[tumbleweedID]; !ok {
		return fmt.Errorf("%w: tumbleweed %d", domain.ErrNotFound, tumbleweedID)
	}
	if _, ok := s.tumblebases[tumblebaseID]; !ok {
		return fmt.Errorf("%w: tumblebase %d", domain.ErrNotFound, tumblebaseID)
	}
	if s.weedBaseLinks[tumbleweedID] == nil {
		s.weedBaseLinks[tumbleweedID] = map[int64]bool{}
	}
	s.weedBaseLinks[tumbleweedID][tumblebaseID] = true
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tumbleweeds[id]; !ok {
		return nil, fmt.Errorf("%w: tumbleweed %d", domain.ErrNotFound, id)
	}
	for _, sub := range s.subsystems {
		if sub.TumbleweedID == id {
			return nil, fmt.Errorf("%w: tumbleweed %d still owns subsystems", domain.ErrHasDependents, id)
		}
	}
	for _, ds := range s.datasources {
		if ds.TumbleweedID == id {
			return nil, fmt.Errorf("%w: tumbleweed %d still owns data sources", domain.ErrHasDependents, id)
		}
	}
	var paths []string
	for runID, r := range s.runs {
		if r.TumbleweedID != id {
			continue
		}
		paths = append(paths, s.removeDataPointsOfRun(runID)...)
		for cmdID, c := range s.commands {
			if c.RunID == runID {
				delete(s.commands, cmdID)
			}
		}
		delete(s.runs, runID)
	}
	for cmdID, c := range s.commands {
		if c.TumbleweedID == id {
			delete(s.commands, cmdID)
		}
	}
	delete(s.weedBaseLinks, id)
	delete(s.tumbleweeds, id)
	return paths, nil
}

func (s *MemoryStore) removeDataPointsOfRun(runID int64) []string {
	var paths []string
	for _, byID := range s.datapoints {
		for dpID, p := range byID {
			if p.RunID == runID {
				if p.Path.Valid {
					paths = append(paths, p.Path.String)
				}
				delete(byID, dpID)
			}
		}
	}
	return paths
}

// --- Tumblebases ---

type memoryTumblebases MemoryStore

func (s *memoryTumblebases) Create(_ context.Context, b *domain.Tumblebase) (int64, error) {
	m := (*MemoryStore)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.tumblebases {
		if existing.Address == b.Address {
			return 0, fmt.Errorf("%w: tumblebase address %q already exists", domain.ErrInvalidFormat, b.Address)
		}
	}
	cp := *b
	cp.ID = m.newID()
	m.tumblebases[cp.ID] = &cp
	return cp.ID, nil
}

func (s *memoryTumblebases) Get(_ context.Context, id int64) (*domain.Tumblebase, error) {
	m := (*MemoryStore)(s)
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.tumblebases[id]
	if !ok {
		return nil, fmt.Errorf("%w: tumblebase %d", domain.ErrNotFound, id)
	}
	cp := *b
	return &cp, nil
}

func (s *memoryTumblebases) List(_ context.Context) ([]*domain.Tumblebase, error) {
	m := (*MemoryStore)(s)
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Tumblebase, 0, len(m.tumblebases))
	for _, b := range m.tumblebases {
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryTumblebases) GetByAddress(_ context.Context, address string) (*domain.Tumblebase, error) {
	m := (*MemoryStore)(s)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.tumblebases {
		if b.Address == address {
			cp := *b
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: tumblebase address %q", domain.ErrNotFound, address)
}

func (s *memoryTumblebases) GetOrCreateByAddress(_ context.Context, address, host string) (*domain.Tumblebase, bool, error) {
	m := (*MemoryStore)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.tumblebases {
		if b.Address == address {
			cp := *b
			return &cp, false, nil
		}
	}
	b := &domain.Tumblebase{
		ID:        m.newID(),
		Address:   address,
		Name:      nullString("Default"),
		Host:      nullString(host),
		CreatedAt: time.Now().UTC(),
	}
	m.tumblebases[b.ID] = b
	cp := *b
	return &cp, true, nil
}

func (s *memoryTumblebases) Delete(_ context.Context, id int64) error {
	m := (*MemoryStore)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tumblebases[id]; !ok {
		return fmt.Errorf("%w: tumblebase %d", domain.ErrNotFound, id)
	}
	for _, c := range m.commands {
		if c.SenderBaseID == id {
			return fmt.Errorf("%w: tumblebase %d has sent commands", domain.ErrHasDependents, id)
		}
		for _, rb := range c.ReceivedFromBases {
			if rb == id {
				return fmt.Errorf("%w: tumblebase %d has received commands", domain.ErrHasDependents, id)
			}
		}
	}
	for _, byID := range m.datapoints {
		for _, p := range byID {
			for _, tb := range p.TumblebaseIDs {
				if tb == id {
					return fmt.Errorf("%w: tumblebase %d has relayed datapoints", domain.ErrHasDependents, id)
				}
			}
		}
	}
	for _, links := range m.weedBaseLinks {
		delete(links, id)
	}
	delete(m.tumblebases, id)
	return nil
}

// --- Runs ---

type memoryRuns MemoryStore

func (s *memoryRuns) Create(_ context.Context, r *domain.Run) (int64, error) {
	m := (*MemoryStore)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tumbleweeds[r.TumbleweedID]; !ok {
		return 0, fmt.Errorf("%w: tumbleweed %d", domain.ErrNotFound, r.TumbleweedID)
	}
	cp := *r
	cp.ID = m.newID()
	m.runs[cp.ID] = &cp
	return cp.ID, nil
}

func (s *memoryRuns) Get(_ context.Context, id int64) (*domain.Run, error) {
	m := (*MemoryStore)(s)
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: run %d", domain.ErrNotFound, id)
	}
	cp := *r
	return &cp, nil
}

func (s *memoryRuns) ListByTumbleweed(_ context.Context, tumbleweedID int64) ([]*domain.Run, error) {
	m := (*MemoryStore)(s)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Run
	for _, r := range m.runs {
		if r.TumbleweedID == tumbleweedID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryRuns) GetActive(_ context.Context, tumbleweedID int64) (*domain.Run, error) {
	m := (*MemoryStore)(s)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *domain.Run
	for _, r := range m.runs {
		if r.TumbleweedID != tumbleweedID {
			continue
		}
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) ||
			(r.CreatedAt.Equal(latest.CreatedAt) && r.ID > latest.ID) {
			latest = r
		}
	}
	if latest == nil || latest.EndedAt.Valid {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (s *memoryRuns) End(_ context.Context, id int64, endedAt time.Time) error {
	m := (*MemoryStore)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return fmt.Errorf("%w: run %d", domain.ErrNotFound, id)
	}
	if r.EndedAt.Valid {
		return fmt.Errorf("%w: run %d already ended", domain.ErrNotActive, id)
	}
	r.EndedAt = nullTime(endedAt)
	return nil
}

func (s *memoryRuns) Delete(_ context.Context, id int64) ([]string, error) {
	m := (*MemoryStore)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[id]; !ok {
		return nil, fmt.Errorf("%w: run %d", domain.ErrNotFound, id)
	}
	paths := m.removeDataPointsOfRun(id)
	for cmdID, c := range m.commands {
		if c.RunID == id {
			delete(m.commands, cmdID)
		}
	}
	delete(m.runs, id)
	return paths, nil
}

// --- SubSystems ---

type memorySubSystems MemoryStore

func (s *memorySubSystems) Create(_ context.Context, sub *domain.SubSystem) (int64, error) {
	m := (*MemoryStore)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tumbleweeds[sub.TumbleweedID]; !ok {
		return 0, fmt.Errorf("%w: tumbleweed %d", domain.ErrNotFound, sub.TumbleweedID)
	}
	cp := *sub
	cp.ID = m.newID()
	m.subsystems[cp.ID] = &cp
	return cp.ID, nil
}

func (s *memorySubSystems) Get(_ context.Context, id int64) (*domain.SubSystem, error) {
	m := (*MemoryStore)(s)
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.subsystems[id]
	if !ok {
		return nil, fmt.Errorf("%w: subSystem %d", domain.ErrNotFound, id)
	}
	cp := *sub
	return &cp, nil
}

func (s *memorySubSystems) ListByTumbleweed(_ context.Context, tumbleweedID int64) ([]*domain.SubSystem, error) {
	m := (*MemoryStore)(s)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.SubSystem
	for _, sub := range m.subsystems {
		if sub.TumbleweedID == tumbleweedID {
			cp := *sub
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memorySubSystems) Delete(_ context.Context, id int64) error {
	m := (*MemoryStore)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subsystems[id]; !ok {
		return fmt.Errorf("%w: subSystem %d", domain.ErrNotFound, id)
	}
	for _, ds := range m.datasources {
		if ds.SubSystemID == id {
			return fmt.Errorf("%w: subSystem %d still owns data sources", domain.ErrHasDependents, id)
		}
	}
	delete(m.subsystems, id)
	return nil
}

// --- DataSources ---

type memoryDataSources MemoryStore

func (s *memoryDataSources) Create(_ context.Context, d *domain.DataSource) (int64, error) {
	m := (*MemoryStore)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subsystems[d.SubSystemID]; !ok {
		return 0, fmt.Errorf("%w: subSystem %d", domain.ErrNotFound, d.SubSystemID)
	}
	for _, existing := range m.datasources {
		if existing.TumbleweedID == d.TumbleweedID && existing.ShortKey == d.ShortKey {
			return 0, fmt.Errorf("%w: short_key %q already used on tumbleweed %d",
				domain.ErrInvalidFormat, d.ShortKey, d.TumbleweedID)
		}
	}
	cp := *d
	cp.ID = m.newID()
	m.datasources[cp.ID] = &cp
	return cp.ID, nil
}

func (s *memoryDataSources) Get(_ context.Context, id int64) (*domain.DataSource, error) {
	m := (*MemoryStore)(s)
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.datasources[id]
	if !ok {
		return nil, fmt.Errorf("%w: dataSource %d", domain.ErrNotFound, id)
	}
	cp := *d
	return &cp, nil
}

func (s *memoryDataSources) ListBySubSystem(_ context.Context, subSystemID int64) ([]*domain.DataSource, error) {
	m := (*MemoryStore)(s)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.DataSource
	for _, d := range m.datasources {
		if d.SubSystemID == subSystemID {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryDataSources) ListByTumbleweed(_ context.Context, tumbleweedID int64) ([]*domain.DataSource, error) {
	m := (*MemoryStore)(s)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.DataSource
	for _, d := range m.datasources {
		if d.TumbleweedID == tumbleweedID {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryDataSources) GetByTumbleweedAndShortKey(_ context.Context, tumbleweedID int64, shortKey string) (*domain.DataSource, error) {
	m := (*MemoryStore)(s)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.datasources {
		if d.TumbleweedID == tumbleweedID && d.ShortKey == shortKey {
			cp := *d
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: dataSource with short_key %q on tumbleweed %d",
		domain.ErrNotFound, shortKey, tumbleweedID)
}

func (s *memoryDataSources) Delete(_ context.Context, id int64) ([]string, error) {
	m := (*MemoryStore)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.datasources[id]; !ok {
		return nil, fmt.Errorf("%w: dataSource %d", domain.ErrNotFound, id)
	}
	var paths []string
	for _, byID := range m.datapoints {
		for dpID, p := range byID {
			if p.DataSourceID == id {
				if p.Path.Valid {
					paths = append(paths, p.Path.String)
				}
				delete(byID, dpID)
			}
		}
	}
	delete(m.datasources, id)
	return paths, nil
}

// --- CommandTypes ---

type memoryCommandTypes MemoryStore

func (s *memoryCommandTypes) Create(_ context.Context, c *domain.CommandType) (int64, error) {
	m := (*MemoryStore)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	cp.ID = m.newID()
	m.commandTypes[cp.ID] = &cp
	return cp.ID, nil
}

func (s *memoryCommandTypes) Get(_ context.Context, id int64) (*domain.CommandType, error) {
	m := (*MemoryStore)(s)
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.commandTypes[id]
	if !ok {
		return nil, fmt.Errorf("%w: commandType %d", domain.ErrNotFound, id)
	}
	cp := *c
	return &cp, nil
}

func (s *memoryCommandTypes) List(_ context.Context) ([]*domain.CommandType, error) {
	m := (*MemoryStore)(s)
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.CommandType, 0, len(m.commandTypes))
	for _, c := range m.commandTypes {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryCommandTypes) Delete(_ context.Context, id int64) error {
	m := (*MemoryStore)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.commandTypes[id]; !ok {
		return fmt.Errorf("%w: commandType %d", domain.ErrNotFound, id)
	}
	for cmdID, c := range m.commands {
		if c.CommandTypeID == id {
			delete(m.commands, cmdID)
		}
	}
	delete(m.commandTypes, id)
	return nil
}

// --- Commands ---

type memoryCommands MemoryStore

func (s *memoryCommands) Create(_ context.Context, c *domain.Command) (int64, error) {
	m := (*MemoryStore)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	cp.ID = m.newID()
	m.commands[cp.ID] = &cp
	return cp.ID, nil
}

func (s *memoryCommands) Get(_ context.Context, id int64) (*domain.Command, error) {
	m := (*MemoryStore)(s)
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.commands[id]
	if !ok {
		return nil, fmt.Errorf("%w: command %d", domain.ErrNotFound, id)
	}
	cp := *c
	return &cp, nil
}

func (s *memoryCommands) SetTransmitted(_ context.Context, id int64, transmitted bool) error {
	m := (*MemoryStore)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.commands[id]
	if !ok {
		return fmt.Errorf("%w: command %d", domain.ErrNotFound, id)
	}
	c.Transmitted = transmitted
	return nil
}

func (s *memoryCommands) UpdateResponse(_ context.Context, id int64, response string, responseMessageID *int64, receivedAt time.Time) error {
	m := (*MemoryStore)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.commands[id]
	if !ok {
		return fmt.Errorf("%w: command %d", domain.ErrNotFound, id)
	}
	c.Response = nullString(response)
	c.ReceivedResponseAt = nullTime(receivedAt)
	if responseMessageID != nil {
		c.ResponseMessageID = nullInt64(*responseMessageID)
	}
	return nil
}

func (s *memoryCommands) ListByTumbleweedAndRun(_ context.Context, tumbleweedID, runID int64) ([]*domain.Command, error) {
	m := (*MemoryStore)(s)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Command
	for _, c := range m.commands {
		if c.TumbleweedID == tumbleweedID && c.RunID == runID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryCommands) ListUnanswered(_ context.Context, tumbleweedID, runID int64) ([]*domain.Command, error) {
	m := (*MemoryStore)(s)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Command
	for _, c := range m.commands {
		if c.TumbleweedID == tumbleweedID && c.RunID == runID &&
			!c.Response.Valid && !c.ReceivedResponseAt.Valid && !c.ResponseMessageID.Valid {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- DataPoints ---

type memoryDataPoints MemoryStore

func (s *memoryDataPoints) Insert(_ context.Context, p *domain.DataPoint) (int64, error) {
	m := (*MemoryStore)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	byID, ok := m.datapoints[p.DType]
	if !ok {
		return 0, fmt.Errorf("%w: dtype %q", domain.ErrInvalidFormat, p.DType)
	}
	cp := *p
	cp.ID = m.newID()
	cp.TumblebaseIDs = append([]int64(nil), p.TumblebaseIDs...)
	byID[cp.ID] = &cp
	return cp.ID, nil
}

func (s *memoryDataPoints) Get(_ context.Context, dtype domain.DType, id int64) (*domain.DataPoint, error) {
	m := (*MemoryStore)(s)
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.datapoints[dtype][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s datapoint %d", domain.ErrNotFound, dtype.Name(), id)
	}
	cp := *p
	cp.TumblebaseIDs = append([]int64(nil), p.TumblebaseIDs...)
	return &cp, nil
}

func (s *memoryDataPoints) Update(_ context.Context, dtype domain.DType, id int64, patch DataPointPatch) error {
	m := (*MemoryStore)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.datapoints[dtype][id]
	if !ok {
		return fmt.Errorf("%w: %s datapoint %d", domain.ErrNotFound, dtype.Name(), id)
	}
	if patch.PacketsReceived != nil {
		p.PacketsReceived = *patch.PacketsReceived
	}
	if patch.ReceivingDone != nil {
		p.ReceivingDone = nullTime(*patch.ReceivingDone)
	}
	if patch.Size != nil {
		p.Size = nullInt64(*patch.Size)
	}
	if patch.IntValue != nil {
		p.IntValue = nullInt64(*patch.IntValue)
	}
	if patch.LongValue != nil {
		p.LongValue = nullInt64(*patch.LongValue)
	}
	if patch.FloatValue != nil {
		p.FloatValue.Float64 = *patch.FloatValue
		p.FloatValue.Valid = true
	}
	if patch.StringValue != nil {
		p.StringValue = nullString(*patch.StringValue)
	}
	if patch.Path != nil {
		p.Path = nullString(*patch.Path)
	}
	return nil
}

func (s *memoryDataPoints) ListByDataSourceAndRun(_ context.Context, dtype domain.DType, dataSourceID, runID int64) ([]*domain.DataPoint, error) {
	m := (*MemoryStore)(s)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.DataPoint
	for _, p := range m.datapoints[dtype] {
		if p.DataSourceID == dataSourceID && p.RunID == runID {
			cp := *p
			cp.TumblebaseIDs = append([]int64(nil), p.TumblebaseIDs...)
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
