package kafka

import "testing"

func TestOffset_String(t *testing.T) {
	tests := map[Offset]string{
		Earliest:   `Earliest`,
		Latest:     `Latest`,
		Offset(42): `42`,
	}

	for offset, want := range tests {
		if have := offset.String(); have != want {
			t.Errorf(`want %s have %s`, want, have)
		}
	}
}

func TestHeadersToMap(t *testing.T) {
	m := HeadersToMap(RecordHeaders{
		{Key: []byte(`trace-id`), Value: []byte(`1`)},
		{Key: []byte(`source`), Value: []byte(`api`)},
		{Key: []byte(`trace-id`), Value: []byte(`2`)},
	})

	if len(m) != 2 || m[`trace-id`] != `2` || m[`source`] != `api` {
		t.Errorf(`unexpected headers %v`, m)
	}

	if m := HeadersToMap(nil); m == nil || len(m) != 0 {
		t.Errorf(`expected empty map have %v`, m)
	}
}
