package proto

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	// ProtocolSLAP tags advertisements published by lookup-service hosts.
	ProtocolSLAP = "SLAP"

	// ServiceSLAP is the reserved service answered by tracker hosts.
	ServiceSLAP = "ls_slap"

	// ServicePrefix is the mandatory prefix of every lookup-service name.
	ServicePrefix = "ls_"

	AnswerTypeOutputList = "output-list"
)

// Question is one request to a lookup service. Query is opaque and is
// forwarded verbatim to the host.
type Question struct {
	Service string          `json:"service"`
	Query   json.RawMessage `json:"query"`
}

// ByteList marshals as a JSON array of byte values rather than base64.
type ByteList []byte

func (b ByteList) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}
	out := make([]byte, 0, len(b)*4+2)
	out = append(out, '[')
	for i, v := range b {
		if i > 0 {
			out = append(out, ',')
		}
		out = strconv.AppendUint(out, uint64(v), 10)
	}
	out = append(out, ']')
	return out, nil
}

func (b *ByteList) UnmarshalJSON(data []byte) error {
	var raw []uint16
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*b = nil
		return nil
	}
	out := make([]byte, len(raw))
	for i, v := range raw {
		if v > 0xff {
			return fmt.Errorf("byte value out of range: %d", v)
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}

// Output is one entry of an output-list answer. Beef carries the
// self-contained transaction envelope the output belongs to.
type Output struct {
	Beef        ByteList `json:"beef"`
	OutputIndex uint32   `json:"outputIndex"`
	Context     ByteList `json:"context,omitempty"`
}

type Answer struct {
	Type    string   `json:"type"`
	Outputs []Output `json:"outputs"`
}

// Advertisement is a decoded host-claim token: Domain claims to serve
// TopicOrService under the named overlay protocol.
type Advertisement struct {
	Domain         string
	TopicOrService string
	Protocol       string
}

// ValidServiceName reports whether a service identifier carries the
// reserved lookup-service prefix.
func ValidServiceName(service string) bool {
	return strings.HasPrefix(service, ServicePrefix) && len(service) > len(ServicePrefix)
}
