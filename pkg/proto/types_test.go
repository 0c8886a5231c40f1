package proto

import (
	"encoding/json"
	"testing"
)

func TestByteListMarshalsAsNumberArray(t *testing.T) {
	out := Output{Beef: ByteList{1, 0, 255}, OutputIndex: 3}
	raw, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	want := `{"beef":[1,0,255],"outputIndex":3}`
	if string(raw) != want {
		t.Fatalf("unexpected wire shape: %s", raw)
	}
}

func TestByteListRoundTrip(t *testing.T) {
	in := Answer{Type: AnswerTypeOutputList, Outputs: []Output{
		{Beef: ByteList{9, 8, 7}, OutputIndex: 0, Context: ByteList{1}},
	}}
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var got Answer
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if got.Type != AnswerTypeOutputList || len(got.Outputs) != 1 {
		t.Fatalf("unexpected answer: %+v", got)
	}
	if string(got.Outputs[0].Beef) != string(in.Outputs[0].Beef) {
		t.Fatalf("beef bytes changed: %v", got.Outputs[0].Beef)
	}
	if string(got.Outputs[0].Context) != string(in.Outputs[0].Context) {
		t.Fatalf("context bytes changed: %v", got.Outputs[0].Context)
	}
}

func TestByteListRejectsOutOfRange(t *testing.T) {
	var b ByteList
	if err := json.Unmarshal([]byte("[0,256]"), &b); err == nil {
		t.Fatalf("expected out-of-range error")
	}
}

func TestValidServiceName(t *testing.T) {
	cases := map[string]bool{
		"ls_users": true,
		"ls_slap":  true,
		"ls_":      false,
		"users":    false,
		"tm_topic": false,
		"":         false,
	}
	for name, want := range cases {
		if got := ValidServiceName(name); got != want {
			t.Fatalf("ValidServiceName(%q) = %t, want %t", name, got, want)
		}
	}
}

func TestHashBundleParserDeterministic(t *testing.T) {
	p := HashBundleParser{}
	envelope := []byte{0xde, 0xad, 0xbe, 0xef}
	first, err := p.TxID(envelope)
	if err != nil {
		t.Fatalf("txid failed: %v", err)
	}
	second, err := p.TxID(append([]byte(nil), envelope...))
	if err != nil {
		t.Fatalf("txid failed: %v", err)
	}
	if first != second {
		t.Fatalf("same bytes produced different ids: %s vs %s", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("expected 32-byte hex id, got %q", first)
	}
	other, err := p.TxID([]byte{0xde, 0xad, 0xbe, 0xee})
	if err != nil {
		t.Fatalf("txid failed: %v", err)
	}
	if other == first {
		t.Fatalf("distinct bytes produced the same id")
	}
}

func TestHashBundleParserRejectsEmpty(t *testing.T) {
	p := HashBundleParser{}
	if _, err := p.TxID(nil); err == nil {
		t.Fatalf("expected empty envelope error")
	}
	if _, err := p.ExtractTx(nil, [32]byte{}); err == nil {
		t.Fatalf("expected empty bundle error")
	}
}
