// Package facilitator sends one lookup question to one host and parses
// its answer. It understands the structured JSON body and the compact
// binary output-list body, and it enforces a per-request timeout.
package facilitator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"overlaylookup/pkg/proto"
)

var (
	// ErrRequestTimedOut is the single timeout error surfaced for every
	// cancellation flavor the underlying transport can produce.
	ErrRequestTimedOut = errors.New("request timed out")

	ErrPlaintextHost = errors.New("plaintext host not allowed")
)

const DefaultTimeout = 5 * time.Second

type Facilitator interface {
	Lookup(ctx context.Context, host string, q proto.Question, timeout time.Duration) (proto.Answer, error)
}

// HTTPSFacilitator posts questions to <host>/lookup. Plaintext hosts are
// rejected unless AllowHTTP is set (local/insecure mode).
type HTTPSFacilitator struct {
	Client    *http.Client
	AllowHTTP bool
	Parser    proto.BundleParser
}

func NewHTTPSFacilitator(allowHTTP bool) *HTTPSFacilitator {
	return &HTTPSFacilitator{
		Client:    &http.Client{},
		AllowHTTP: allowHTTP,
		Parser:    proto.HashBundleParser{},
	}
}

func (f *HTTPSFacilitator) Lookup(ctx context.Context, host string, q proto.Question, timeout time.Duration) (proto.Answer, error) {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if !strings.HasPrefix(host, "https://") {
		if !f.AllowHTTP || !strings.HasPrefix(host, "http://") {
			return proto.Answer{}, fmt.Errorf("%w: %s", ErrPlaintextHost, host)
		}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(q)
	if err != nil {
		return proto.Answer{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, host+"/lookup", bytes.NewReader(payload))
	if err != nil {
		return proto.Answer{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/octet-stream, application/json")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return proto.Answer{}, normalizeTransportError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return proto.Answer{}, fmt.Errorf("host %s returned status %d", host, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return proto.Answer{}, normalizeTransportError(err)
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/octet-stream") {
		parser := f.Parser
		if parser == nil {
			parser = proto.HashBundleParser{}
		}
		return ParseOutputList(body, parser)
	}
	var answer proto.Answer
	if err := json.Unmarshal(body, &answer); err != nil {
		return proto.Answer{}, fmt.Errorf("malformed answer from %s: %w", host, err)
	}
	return answer, nil
}

func normalizeTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrRequestTimedOut
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ErrRequestTimedOut
	}
	return err
}
