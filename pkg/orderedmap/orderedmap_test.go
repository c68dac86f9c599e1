package orderedmap

import (
	"fmt"
	"math/rand"
	"reflect"
	"sort"
	"testing"
)

func assertPaired(t *testing.T, m *Map[string, int]) {
	t.Helper()

	seen := map[string]bool{}
	for _, k := range m.keys {
		if seen[k] {
			t.Fatalf(`duplicate key %s in order`, k)
		}
		seen[k] = true
		if _, ok := m.values[k]; !ok {
			t.Fatalf(`dangling key %s`, k)
		}
	}

	if len(seen) != len(m.values) {
		t.Fatalf(`order has %d keys, index has %d`, len(seen), len(m.values))
	}
}

func TestMap_Set_Keeps_Insertion_Order(t *testing.T) {
	m := New[string, int]()
	m.Set(`c`, 1)
	m.Set(`a`, 2)
	m.Set(`b`, 3)
	m.Set(`c`, 4)

	if !reflect.DeepEqual(m.Keys(), []string{`c`, `a`, `b`}) {
		t.Errorf(`unexpected order %v`, m.Keys())
	}

	if !reflect.DeepEqual(m.Values(), []int{4, 2, 3}) {
		t.Errorf(`unexpected values %v`, m.Values())
	}
}

func TestMap_Delete(t *testing.T) {
	m := New[string, int]()
	m.Set(`a`, 1)
	m.Set(`b`, 2)
	m.Set(`c`, 3)

	if !m.Delete(`b`) {
		t.Error(`expected b to be removed`)
	}

	if m.Delete(`b`) {
		t.Error(`second delete must be a no-op`)
	}

	if m.Has(`b`) {
		t.Error(`b still present`)
	}

	if !reflect.DeepEqual(m.Keys(), []string{`a`, `c`}) {
		t.Errorf(`unexpected order %v`, m.Keys())
	}
}

func TestMap_Upsert(t *testing.T) {
	m := New[string, int]()
	sum := func(a, b int) int { return a + b }

	if !m.Upsert(`a`, 1, sum) {
		t.Error(`expected insert`)
	}

	if m.Upsert(`a`, 2, sum) {
		t.Error(`expected merge`)
	}

	v, _ := m.Get(`a`)
	if v != 3 {
		t.Errorf(`want 3 have %d`, v)
	}
}

func TestMap_Keys_Returns_Copy(t *testing.T) {
	m := New[string, int]()
	m.Set(`a`, 1)
	keys := m.Keys()
	keys[0] = `z`

	if m.Keys()[0] != `a` {
		t.Error(`Keys leaked the internal slice`)
	}
}

func TestMap_Random_Operations_Stay_Paired(t *testing.T) {
	m := New[string, int]()
	r := rand.New(rand.NewSource(42))

	for i := 0; i < 5000; i++ {
		key := fmt.Sprint(r.Intn(50))
		switch r.Intn(3) {
		case 0, 1:
			m.Set(key, i)
		case 2:
			m.Delete(key)
		}
		assertPaired(t, m)
	}

	keys := m.Keys()
	sort.Strings(keys)
	var indexKeys []string
	for k := range m.values {
		indexKeys = append(indexKeys, k)
	}
	sort.Strings(indexKeys)
	if !reflect.DeepEqual(keys, indexKeys) {
		t.Fail()
	}
}

func TestMap_Range_Stops(t *testing.T) {
	m := New[string, int]()
	m.Set(`a`, 1)
	m.Set(`b`, 2)
	m.Set(`c`, 3)

	var visited []string
	m.Range(func(key string, _ int) bool {
		visited = append(visited, key)
		return key != `b`
	})

	if !reflect.DeepEqual(visited, []string{`a`, `b`}) {
		t.Errorf(`unexpected visit order %v`, visited)
	}
}

func TestMap_Clone_Is_Independent(t *testing.T) {
	m := New[string, int]()
	m.Set(`a`, 1)
	c := m.Clone()
	c.Set(`b`, 2)
	c.Delete(`a`)

	if m.Len() != 1 || !m.Has(`a`) {
		t.Error(`clone mutated the original`)
	}
}
