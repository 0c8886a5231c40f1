// Package lookup resolves which hosts serve a lookup service, ranks
// them by reputation, fans the question out to every available host
// concurrently, and merges the answers into one deduplicated output
// list.
package lookup

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"overlaylookup/pkg/facilitator"
	"overlaylookup/pkg/proto"
	"overlaylookup/pkg/reputation"
)

type NetworkPreset string

const (
	Mainnet NetworkPreset = "mainnet"
	Testnet NetworkPreset = "testnet"
	Local   NetworkPreset = "local"
)

// DefaultSLAPTrackers holds the bootstrap tracker hosts per network.
var DefaultSLAPTrackers = map[NetworkPreset][]string{
	Mainnet: {
		"https://users.bapp.dev",
		"https://overlay-us-1.bsvb.tech",
		"https://overlay-eu-1.bsvb.tech",
	},
	Testnet: {
		"https://testnet-users.bapp.dev",
		"https://testnet-overlay.bsvb.tech",
	},
}

// LocalHost is the single host queried for every service in local mode.
const LocalHost = "http://localhost:8080"

const (
	DefaultHostsCacheTTL        = 5 * time.Minute
	DefaultHostsCacheMaxEntries = 128
	DefaultTxMemoTTL            = 10 * time.Minute
)

type Config struct {
	NetworkPreset NetworkPreset
	Facilitator   facilitator.Facilitator

	// SLAPTrackers overrides the preset's bootstrap tracker list.
	SLAPTrackers []string

	// HostOverrides replaces discovery for a service; AdditionalHosts
	// appends after discovery. Keys must carry the ls_ prefix.
	HostOverrides   map[string][]string
	AdditionalHosts map[string][]string

	HostsCacheTTL        time.Duration
	HostsCacheMaxEntries int
	TxMemoTTL            time.Duration

	Tracker *reputation.Tracker
	Decoder proto.AdvertisementDecoder
	Parser  proto.BundleParser
	Logger  logrus.FieldLogger
}

type Resolver struct {
	preset     NetworkPreset
	fac        facilitator.Facilitator
	trackers   []string
	overrides  map[string][]string
	additional map[string][]string
	tracker    *reputation.Tracker
	decoder    proto.AdvertisementDecoder
	parser     proto.BundleParser
	log        logrus.FieldLogger

	hosts  *hostsCache
	txMemo *txMemoCache
	flight singleflight.Group

	now func() time.Time
}

func NewResolver(cfg Config) (*Resolver, error) {
	for service := range cfg.HostOverrides {
		if !proto.ValidServiceName(service) {
			return nil, fmt.Errorf("host override service %q must use the %q prefix", service, proto.ServicePrefix)
		}
	}
	for service := range cfg.AdditionalHosts {
		if !proto.ValidServiceName(service) {
			return nil, fmt.Errorf("additional hosts service %q must use the %q prefix", service, proto.ServicePrefix)
		}
	}

	preset := cfg.NetworkPreset
	if preset == "" {
		preset = Mainnet
	}
	switch preset {
	case Mainnet, Testnet, Local:
	default:
		return nil, fmt.Errorf("unknown network preset %q", preset)
	}

	parser := cfg.Parser
	if parser == nil {
		parser = proto.HashBundleParser{}
	}
	fac := cfg.Facilitator
	if fac == nil {
		f := facilitator.NewHTTPSFacilitator(preset == Local)
		f.Parser = parser
		fac = f
	}
	trackers := cfg.SLAPTrackers
	if len(trackers) == 0 {
		if preset == Local {
			trackers = []string{LocalHost}
		} else {
			trackers = append([]string(nil), DefaultSLAPTrackers[preset]...)
		}
	}
	tracker := cfg.Tracker
	if tracker == nil {
		tracker = reputation.Default()
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	hostsTTL := cfg.HostsCacheTTL
	if hostsTTL <= 0 {
		hostsTTL = DefaultHostsCacheTTL
	}
	hostsMax := cfg.HostsCacheMaxEntries
	if hostsMax <= 0 {
		hostsMax = DefaultHostsCacheMaxEntries
	}
	memoTTL := cfg.TxMemoTTL
	if memoTTL <= 0 {
		memoTTL = DefaultTxMemoTTL
	}

	return &Resolver{
		preset:     preset,
		fac:        fac,
		trackers:   trackers,
		overrides:  cfg.HostOverrides,
		additional: cfg.AdditionalHosts,
		tracker:    tracker,
		decoder:    cfg.Decoder,
		parser:     parser,
		log:        log,
		hosts:      newHostsCache(hostsTTL, hostsMax),
		txMemo:     newTxMemoCache(memoTTL),
		now:        time.Now,
	}, nil
}

// Query fans q out to every ranked, non-backing-off host for the
// service and merges the successful output lists. Per-host failures
// only feed the reputation tracker; a round where every host fails
// still returns an empty output list. Timeout bounds each individual
// host call; zero selects the facilitator default.
func (r *Resolver) Query(ctx context.Context, q proto.Question, timeout time.Duration) (proto.Answer, error) {
	candidates := r.candidateHosts(ctx, q)
	if len(candidates) == 0 {
		return proto.Answer{}, &NoHostsError{Service: q.Service, Preset: r.preset}
	}

	now := r.now()
	ranked := r.tracker.RankHosts(candidates, now)
	available := make([]reputation.RankedHost, 0, len(ranked))
	for _, h := range ranked {
		if !h.Entry.InBackoff(now) {
			available = append(available, h)
		}
	}
	if len(available) == 0 {
		soonest := ranked[0].Entry.BackoffUntil
		for _, h := range ranked[1:] {
			if h.Entry.BackoffUntil < soonest {
				soonest = h.Entry.BackoffUntil
			}
		}
		wait := time.Duration(soonest-now.UnixMilli()) * time.Millisecond
		if wait < 0 {
			wait = 0
		}
		return proto.Answer{}, &AllHostsBackoffError{Service: q.Service, RetryAfter: wait}
	}

	answers := make([]*proto.Answer, len(available))
	var wg sync.WaitGroup
	for i, h := range available {
		wg.Add(1)
		go func(i int, host string) {
			defer wg.Done()
			start := time.Now()
			answer, err := r.fac.Lookup(ctx, host, q, timeout)
			if err != nil {
				r.tracker.RecordFailure(host, err.Error())
				r.log.WithError(err).WithField("host", host).Debug("lookup host failed")
				return
			}
			r.tracker.RecordSuccess(host, float64(time.Since(start).Milliseconds()))
			answers[i] = &answer
		}(i, h.Host)
	}
	wg.Wait()

	merged := make(map[string]proto.Output)
	for _, answer := range answers {
		if answer == nil || answer.Type != proto.AnswerTypeOutputList {
			continue
		}
		for _, out := range answer.Outputs {
			txID, err := r.txIDFor(out.Beef)
			if err != nil {
				r.log.WithError(err).Debug("dropping undecodable output entry")
				continue
			}
			merged[txID+"."+strconv.FormatUint(uint64(out.OutputIndex), 10)] = out
		}
	}
	outputs := make([]proto.Output, 0, len(merged))
	for _, out := range merged {
		outputs = append(outputs, out)
	}
	return proto.Answer{Type: proto.AnswerTypeOutputList, Outputs: outputs}, nil
}

// candidateHosts implements the resolution priority order: reserved
// tracker service, explicit override, local single host, then cached
// discovery; configured additional hosts are appended on every path.
func (r *Resolver) candidateHosts(ctx context.Context, q proto.Question) []string {
	var hosts []string
	switch {
	case q.Service == proto.ServiceSLAP:
		hosts = append(hosts, r.trackers...)
	case len(r.overrides[q.Service]) > 0:
		hosts = append(hosts, r.overrides[q.Service]...)
	case r.preset == Local:
		hosts = []string{LocalHost}
	default:
		resolved, err := r.resolveHosts(ctx, q.Service)
		if err != nil {
			r.log.WithError(err).WithField("service", q.Service).Warn("host discovery failed")
		}
		hosts = resolved
	}

	seen := make(map[string]struct{}, len(hosts))
	out := make([]string, 0, len(hosts))
	for _, h := range append(hosts, r.additional[q.Service]...) {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}

// txIDFor memoizes the expensive txid derivation behind a fingerprint
// of the envelope bytes. SHA-256 keeps the fingerprint a strict
// content-equality check.
func (r *Resolver) txIDFor(envelope []byte) (string, error) {
	sum := sha256.Sum256(envelope)
	fingerprint := string(sum[:])
	now := r.now()
	if txID, ok := r.txMemo.get(fingerprint, now); ok {
		return txID, nil
	}
	txID, err := r.parser.TxID(envelope)
	if err != nil {
		return "", err
	}
	r.txMemo.put(fingerprint, txID, now)
	return txID, nil
}
