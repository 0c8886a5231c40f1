package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"overlaylookup/pkg/proto"
)

var errNoDecoder = errors.New("no advertisement decoder configured")

// resolveHosts serves the cached/discovered host set for a service.
// Fresh entries return immediately; stale entries return immediately
// and kick one background refresh; absent entries block, with all
// concurrent first-time callers coalesced onto a single discovery.
func (r *Resolver) resolveHosts(ctx context.Context, service string) ([]string, error) {
	hosts, state := r.hosts.get(service, r.now())
	switch state {
	case cacheFresh:
		return hosts, nil
	case cacheStale:
		// singleflight guarantees at most one outstanding refresh per
		// service; the in-flight entry disappears when it settles.
		ch := r.flight.DoChan(service, func() (any, error) {
			return r.refreshHosts(service)
		})
		go func() {
			if res := <-ch; res.Err != nil {
				r.log.WithError(res.Err).WithField("service", service).Debug("background host refresh failed")
			}
		}()
		return hosts, nil
	default:
		v, err, _ := r.flight.Do(service, func() (any, error) {
			return r.refreshHosts(service)
		})
		if err != nil {
			return nil, err
		}
		return v.([]string), nil
	}
}

// refreshHosts runs on its own context: background refreshes must not
// die with the caller that happened to trigger them.
func (r *Resolver) refreshHosts(service string) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	hosts, err := r.discoverHosts(ctx, service)
	if err != nil {
		return nil, err
	}
	r.hosts.put(service, hosts, r.now())
	return hosts, nil
}

// discoverHosts asks the tracker hosts which domains currently claim to
// serve the service, reusing the ordinary query path with the reserved
// tracker service name. Malformed claim tokens are skipped.
func (r *Resolver) discoverHosts(ctx context.Context, service string) ([]string, error) {
	if r.decoder == nil {
		return nil, errNoDecoder
	}
	query, err := json.Marshal(map[string]string{"service": service})
	if err != nil {
		return nil, err
	}
	answer, err := r.Query(ctx, proto.Question{Service: proto.ServiceSLAP, Query: query}, 0)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{})
	for _, out := range answer.Outputs {
		ad, err := r.decoder.DecodeAdvertisement(out)
		if err != nil {
			continue
		}
		if ad.Protocol != proto.ProtocolSLAP || ad.TopicOrService != service {
			continue
		}
		domain := strings.TrimSpace(ad.Domain)
		if domain == "" {
			continue
		}
		set[domain] = struct{}{}
	}
	hosts := make([]string, 0, len(set))
	for domain := range set {
		hosts = append(hosts, domain)
	}
	sort.Strings(hosts)
	return hosts, nil
}
