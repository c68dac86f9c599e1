package form

import (
	"encoding/json"
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"github.com/bxcodec/faker/v3"
	"github.com/gmbyapa/ktopics/topic"
)

func addParam(t *testing.T, p *CustomParams, name, value string) string {
	t.Helper()
	idx := p.Add()
	if err := p.Update(idx, CustomParam{Name: name, Value: value}); err != nil {
		t.Fatal(err)
	}
	return idx
}

func TestCustomParams_Flatten_Last_Write_Wins(t *testing.T) {
	p := NewCustomParams()
	addParam(t, p, `a`, `1`)
	addParam(t, p, `a`, `2`)

	if !reflect.DeepEqual(p.Flatten(), FormattedParams{`a`: `2`}) {
		t.Errorf(`unexpected result %v`, p.Flatten())
	}
}

func TestCustomParams_Flatten_Drops_Blank_Names(t *testing.T) {
	p := NewCustomParams()
	addParam(t, p, ``, `x`)
	addParam(t, p, `b`, `y`)
	addParam(t, p, `   `, `z`)

	if !reflect.DeepEqual(p.Flatten(), FormattedParams{`b`: `y`}) {
		t.Errorf(`unexpected result %v`, p.Flatten())
	}
}

func TestCustomParams_Flatten_Empty(t *testing.T) {
	flat := NewCustomParams().Flatten()
	if flat == nil || len(flat) != 0 {
		t.Errorf(`want empty mapping have %v`, flat)
	}
}

func TestCustomParams_Flatten_Unique_Names_Roundtrip(t *testing.T) {
	want := FormattedParams{}
	p := NewCustomParams()
	for i := 0; i < 10; i++ {
		name := faker.UUIDHyphenated()
		value := faker.Word()
		want[name] = value
		addParam(t, p, name, value)
	}

	if !reflect.DeepEqual(p.Flatten(), want) {
		t.Errorf(`want %v have %v`, want, p.Flatten())
	}
}

func TestCustomParams_Remove_Does_Not_Renumber(t *testing.T) {
	p := NewCustomParams()
	i0 := addParam(t, p, `a`, `1`)
	i1 := addParam(t, p, `b`, `2`)
	i2 := addParam(t, p, `c`, `3`)

	p.Remove(i1)
	p.Remove(i1)

	if !reflect.DeepEqual(p.Indexes(), []string{i0, i2}) {
		t.Errorf(`unexpected indexes %v`, p.Indexes())
	}

	param, err := p.Get(i2)
	if err != nil || param.Name != `c` {
		t.Errorf(`entry %s changed identity: %+v %v`, i2, param, err)
	}

	i3 := p.Add()
	if i3 == i1 || i3 == i0 || i3 == i2 {
		t.Errorf(`index %s reused`, i3)
	}
}

func TestCustomParams_Update_Missing_Index(t *testing.T) {
	p := NewCustomParams()
	err := p.Update(`7`, CustomParam{Name: `a`})

	var nf *topic.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf(`expected NotFoundError, have %v`, err)
	}

	if err := p.SetName(`7`, `a`); err == nil {
		t.Error(`expected error`)
	}
}

func TestCustomParams_SetName_SetValue(t *testing.T) {
	p := NewCustomParams()
	idx := p.Add()

	if err := p.SetName(idx, `retention.ms`); err != nil {
		t.Fatal(err)
	}
	if err := p.SetValue(idx, `100`); err != nil {
		t.Fatal(err)
	}

	param, _ := p.Get(idx)
	if param != (CustomParam{Name: `retention.ms`, Value: `100`}) {
		t.Errorf(`unexpected param %+v`, param)
	}
}

func TestCustomParams_Random_Operations_Stay_Paired(t *testing.T) {
	p := NewCustomParams()
	r := rand.New(rand.NewSource(3))
	var live []string

	for i := 0; i < 1000; i++ {
		switch r.Intn(3) {
		case 0:
			live = append(live, p.Add())
		case 1:
			if len(live) > 0 {
				j := r.Intn(len(live))
				p.Remove(live[j])
				live = append(live[:j], live[j+1:]...)
			}
		case 2:
			if len(live) > 0 {
				if err := p.SetValue(live[r.Intn(len(live))], faker.Word()); err != nil {
					t.Fatal(err)
				}
			}
		}

		if !reflect.DeepEqual(p.Indexes(), append([]string{}, live...)) {
			t.Fatalf(`indexes %v, expected %v`, p.Indexes(), live)
		}
		for _, idx := range p.Indexes() {
			if _, err := p.Get(idx); err != nil {
				t.Fatalf(`dangling index %s`, idx)
			}
		}
		if p.Len() != len(live) {
			t.Fatalf(`len %d, expected %d`, p.Len(), len(live))
		}
	}
}

func TestCustomParams_UUIDIndexes(t *testing.T) {
	p := NewCustomParams(WithIndexGenerator(UUIDIndexes))
	a := p.Add()
	b := p.Add()

	if a == b || len(a) != 36 {
		t.Errorf(`unexpected uuid indexes %s %s`, a, b)
	}
}

func TestCustomParams_JSON(t *testing.T) {
	p := NewCustomParams()
	addParam(t, p, `a`, `1`)
	i1 := addParam(t, p, `b`, `2`)
	addParam(t, p, `c`, `3`)
	p.Remove(i1)

	byt, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}

	decoded := NewCustomParams()
	if err := json.Unmarshal(byt, decoded); err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(decoded.Indexes(), p.Indexes()) {
		t.Errorf(`want %v have %v`, p.Indexes(), decoded.Indexes())
	}

	next := decoded.Add()
	for _, idx := range p.Indexes() {
		if idx == next {
			t.Errorf(`index %s allocated twice`, next)
		}
	}
}

func TestCustomParams_UnmarshalJSON_Drops_Unpaired(t *testing.T) {
	p := NewCustomParams()
	err := json.Unmarshal([]byte(`{"byIndex":{"0":{"name":"a","value":"1"},"9":{"name":"z","value":"z"}},"allIndexes":["0","5"]}`), p)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(p.Indexes(), []string{`0`}) {
		t.Errorf(`unexpected indexes %v`, p.Indexes())
	}
}
