package facilitator

import (
	"encoding/binary"
	"errors"
	"math"

	"overlaylookup/pkg/proto"
)

var ErrTruncatedBody = errors.New("truncated binary output list")

// Record is one entry of the compact binary encoding: a fixed 32-byte
// transaction id, the output index, and optional context bytes.
type Record struct {
	TxID        [32]byte
	OutputIndex uint32
	Context     []byte
}

// EncodeOutputList builds the binary response body: a uvarint record
// count, the records, then the uvarint-prefixed shared bundle covering
// every referenced transaction.
func EncodeOutputList(records []Record, bundle []byte) []byte {
	buf := make([]byte, 0, 64+len(records)*40+len(bundle))
	buf = binary.AppendUvarint(buf, uint64(len(records)))
	for _, rec := range records {
		buf = append(buf, rec.TxID[:]...)
		buf = binary.AppendUvarint(buf, uint64(rec.OutputIndex))
		buf = binary.AppendUvarint(buf, uint64(len(rec.Context)))
		buf = append(buf, rec.Context...)
	}
	buf = binary.AppendUvarint(buf, uint64(len(bundle)))
	buf = append(buf, bundle...)
	return buf
}

// DecodeOutputList parses the binary body back into its records and the
// shared bundle, without touching the transaction library.
func DecodeOutputList(body []byte) ([]Record, []byte, error) {
	r := byteReader{buf: body}
	count, err := r.uvarint()
	if err != nil {
		return nil, nil, err
	}
	if count > uint64(len(body)) {
		return nil, nil, ErrTruncatedBody
	}
	records := make([]Record, 0, count)
	for i := uint64(0); i < count; i++ {
		var rec Record
		id, err := r.take(32)
		if err != nil {
			return nil, nil, err
		}
		copy(rec.TxID[:], id)
		vout, err := r.uvarint()
		if err != nil {
			return nil, nil, err
		}
		if vout > math.MaxUint32 {
			return nil, nil, ErrTruncatedBody
		}
		rec.OutputIndex = uint32(vout)
		ctxLen, err := r.uvarint()
		if err != nil {
			return nil, nil, err
		}
		if ctxLen > 0 {
			ctx, err := r.take(int(ctxLen))
			if err != nil {
				return nil, nil, err
			}
			rec.Context = append([]byte(nil), ctx...)
		}
		records = append(records, rec)
	}
	bundleLen, err := r.uvarint()
	if err != nil {
		return nil, nil, err
	}
	bundle, err := r.take(int(bundleLen))
	if err != nil {
		return nil, nil, err
	}
	return records, append([]byte(nil), bundle...), nil
}

// ParseOutputList decodes the binary body into an output-list answer,
// reconstructing each record's envelope from the shared bundle. Records
// whose transaction cannot be extracted are dropped, not fatal.
func ParseOutputList(body []byte, parser proto.BundleParser) (proto.Answer, error) {
	records, bundle, err := DecodeOutputList(body)
	if err != nil {
		return proto.Answer{}, err
	}
	outputs := make([]proto.Output, 0, len(records))
	for _, rec := range records {
		envelope, err := parser.ExtractTx(bundle, rec.TxID)
		if err != nil {
			continue
		}
		outputs = append(outputs, proto.Output{
			Beef:        envelope,
			OutputIndex: rec.OutputIndex,
			Context:     rec.Context,
		})
	}
	return proto.Answer{Type: proto.AnswerTypeOutputList, Outputs: outputs}, nil
}

type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.buf[r.pos:])
	if n <= 0 {
		return 0, ErrTruncatedBody
	}
	r.pos += n
	return v, nil
}

func (r *byteReader) take(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, ErrTruncatedBody
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}
