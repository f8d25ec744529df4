package channel

import (
	"context"
	"sync"

	domainchannels "staysync/internal/domain/channels"
	"staysync/internal/domain/shared/daterange"
)

// StaticStateProvider serves canned remote calendar state per mapping. Used by
// tests and local runs without live channel credentials.
type StaticStateProvider struct {
	mu   sync.RWMutex
	days map[string][]domainchannels.RemoteDay
	err  error
}

func NewStaticStateProvider() *StaticStateProvider {
	return &StaticStateProvider{days: make(map[string][]domainchannels.RemoteDay)}
}

func (p *StaticStateProvider) SetRemote(mappingID string, days []domainchannels.RemoteDay) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.days[mappingID] = days
}

// Fail makes every subsequent fetch return err; nil restores normal behavior.
func (p *StaticStateProvider) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *StaticStateProvider) FetchCalendar(ctx context.Context, mapping domainchannels.ChannelMapping, r daterange.DateRange) ([]domainchannels.RemoteDay, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.err != nil {
		return nil, p.err
	}
	var out []domainchannels.RemoteDay
	for _, d := range p.days[mapping.ID] {
		if r.ContainsDay(d.Date) {
			out = append(out, d)
		}
	}
	return out, nil
}

var _ domainchannels.StateProvider = (*StaticStateProvider)(nil)
