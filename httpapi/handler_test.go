package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gmbyapa/ktopics/kafka/mocks"
	"github.com/gmbyapa/ktopics/refresh"
	"github.com/gmbyapa/ktopics/topic"
	"github.com/gmbyapa/ktopics/topic/form"
	"github.com/tryfix/log"
)

func setup(t *testing.T) (http.Handler, *mocks.MockKafkaAdmin, *topic.State) {
	admin := mocks.NewMockAdmin(1, 2)
	state := topic.NewState()

	r, err := refresh.New(state, admin, admin, refresh.NewConfig())
	if err != nil {
		t.Fatal(err)
	}

	if err := admin.Topics.AddTopic(&mocks.MockTopic{
		Name:    `orders`,
		Configs: []topic.Config{{Name: `cleanup.policy`, Value: `compact`, DefaultValue: `delete`}, {Name: `segment.ms`, Value: `604800000`, DefaultValue: `604800000`}},
	}, 2, 2); err != nil {
		t.Fatal(err)
	}
	if err := admin.Topics.AddTopic(&mocks.MockTopic{Name: `__consumer_offsets`, Internal: true}, 1, 1); err != nil {
		t.Fatal(err)
	}

	if err := r.RefreshTopics(context.Background()); err != nil {
		t.Fatal(err)
	}

	return NewRouter(state, r, log.NewNoopLogger()), admin, state
}

func do(h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Topics(t *testing.T) {
	h, _, _ := setup(t)

	rec := do(h, http.MethodGet, `/topics`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf(`unexpected status %d`, rec.Code)
	}

	var topics []topic.DetailedTopic
	if err := json.NewDecoder(rec.Body).Decode(&topics); err != nil {
		t.Fatal(err)
	}
	if len(topics) != 2 || topics[0].Name != `__consumer_offsets` || topics[1].Name != `orders` {
		t.Errorf(`unexpected topics %+v`, topics)
	}

	rec = do(h, http.MethodGet, `/topics?internal=false`, nil)
	topics = nil
	if err := json.NewDecoder(rec.Body).Decode(&topics); err != nil {
		t.Fatal(err)
	}
	if len(topics) != 1 || topics[0].Name != `orders` {
		t.Errorf(`unexpected topics %+v`, topics)
	}

	if rec := do(h, http.MethodGet, `/topics?internal=maybe`, nil); rec.Code != http.StatusBadRequest {
		t.Errorf(`expected 400 have %d`, rec.Code)
	}
}

func TestHandler_Topic(t *testing.T) {
	h, _, _ := setup(t)

	rec := do(h, http.MethodGet, `/topics/orders`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf(`unexpected status %d`, rec.Code)
	}

	var tp topic.DetailedTopic
	if err := json.NewDecoder(rec.Body).Decode(&tp); err != nil {
		t.Fatal(err)
	}
	if tp.PartitionCount == nil || *tp.PartitionCount != 2 || len(tp.Config) != 2 {
		t.Errorf(`unexpected topic %+v`, tp)
	}

	rec = do(h, http.MethodGet, `/topics/missing`, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf(`expected 404 have %d`, rec.Code)
	}

	e := Err{}
	if err := json.NewDecoder(rec.Body).Decode(&e); err != nil || e.Err == `` {
		t.Errorf(`unexpected error body %+v (%v)`, e, err)
	}
}

func TestHandler_Config(t *testing.T) {
	h, _, _ := setup(t)

	var configs []topic.Config
	rec := do(h, http.MethodGet, `/topics/orders/config?overridden=true`, nil)
	if err := json.NewDecoder(rec.Body).Decode(&configs); err != nil {
		t.Fatal(err)
	}
	if len(configs) != 1 || configs[0].Name != `cleanup.policy` {
		t.Errorf(`unexpected configs %+v`, configs)
	}

	if rec := do(h, http.MethodGet, `/topics/missing/config`, nil); rec.Code != http.StatusNotFound {
		t.Errorf(`expected 404 have %d`, rec.Code)
	}
}

func TestHandler_Partition(t *testing.T) {
	h, _, _ := setup(t)

	rec := do(h, http.MethodGet, `/topics/orders/partitions/1`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf(`unexpected status %d`, rec.Code)
	}

	var p topic.Partition
	if err := json.NewDecoder(rec.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.Partition != 1 || p.LeaderReplica().Broker != p.Leader {
		t.Errorf(`unexpected partition %+v`, p)
	}

	if rec := do(h, http.MethodGet, `/topics/orders/partitions/9`, nil); rec.Code != http.StatusNotFound {
		t.Errorf(`expected 404 have %d`, rec.Code)
	}
}

func TestHandler_Graph(t *testing.T) {
	h, _, _ := setup(t)

	rec := do(h, http.MethodGet, `/topics/orders/graph`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf(`unexpected status %d`, rec.Code)
	}

	if !strings.Contains(rec.Body.String(), `orders_1`) {
		t.Errorf(`unexpected graph %s`, rec.Body.String())
	}
}

func TestHandler_EditForm(t *testing.T) {
	h, _, _ := setup(t)

	rec := do(h, http.MethodGet, `/topics/orders/form`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf(`unexpected status %d`, rec.Code)
	}

	data := form.NewData()
	if err := json.NewDecoder(rec.Body).Decode(data); err != nil {
		t.Fatal(err)
	}
	if data.Name != `orders` || data.CleanupPolicy != form.CleanupPolicyCompact || data.Partitions != 2 {
		t.Errorf(`unexpected form %+v`, data)
	}
}

func TestHandler_EditForm_Combined_Cleanup_Policy(t *testing.T) {
	h, _, state := setup(t)
	if err := state.ApplyConfig(`orders`, []topic.Config{{Name: `cleanup.policy`, Value: `compact,delete`, DefaultValue: `delete`}}); err != nil {
		t.Fatal(err)
	}

	rec := do(h, http.MethodGet, `/topics/orders/form`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf(`unexpected status %d: %s`, rec.Code, rec.Body.String())
	}

	data := form.NewData()
	if err := json.NewDecoder(rec.Body).Decode(data); err != nil {
		t.Fatal(err)
	}
	if data.CleanupPolicy != form.CleanupPolicyCompactDelete {
		t.Errorf(`unexpected policy %s`, data.CleanupPolicy)
	}
}

func TestHandler_Submit_And_Delete(t *testing.T) {
	h, admin, state := setup(t)

	body := []byte(`{
		"name": "payments",
		"partitions": 2,
		"replicationFactor": 1,
		"cleanupPolicy": "delete",
		"retentionMs": 1000,
		"customParams": {
			"byIndex": {"0": {"name": "segment.ms", "value": "1"}, "1": {"name": "", "value": "x"}, "2": {"name": "segment.ms", "value": "2"}},
			"allIndexes": ["0", "1", "2"]
		}
	}`)

	rec := do(h, http.MethodPost, `/topics`, body)
	if rec.Code != http.StatusOK {
		t.Fatalf(`unexpected status %d: %s`, rec.Code, rec.Body.String())
	}

	reg, err := state.Config(`payments`)
	if err != nil {
		t.Fatal(err)
	}
	if c, err := reg.Get(`segment.ms`); err != nil || c.Value != `2` {
		t.Errorf(`unexpected config %+v (%v)`, c, err)
	}
	if c, err := reg.Get(`retention.ms`); err != nil || c.Value != `1000` {
		t.Errorf(`unexpected config %+v (%v)`, c, err)
	}

	if rec := do(h, http.MethodPost, `/topics`, []byte(`{`)); rec.Code != http.StatusBadRequest {
		t.Errorf(`expected 400 have %d`, rec.Code)
	}

	if rec := do(h, http.MethodDelete, `/topics/payments`, nil); rec.Code != http.StatusNoContent {
		t.Errorf(`expected 204 have %d`, rec.Code)
	}

	if _, ok := state.Topic(`payments`); ok {
		t.Error(`deleted topic still in state`)
	}
	if _, err := admin.Topics.Topic(`payments`); err == nil {
		t.Error(`deleted topic still in cluster`)
	}
}

func TestHandler_Watch_And_Messages(t *testing.T) {
	h, _, state := setup(t)

	if rec := do(h, http.MethodPut, `/topics/missing/watch`, nil); rec.Code != http.StatusNotFound {
		t.Errorf(`expected 404 have %d`, rec.Code)
	}

	if rec := do(h, http.MethodPut, `/topics/orders/watch`, nil); rec.Code != http.StatusNoContent {
		t.Fatalf(`expected 204 have %d`, rec.Code)
	}

	state.AppendMessages([]topic.Message{{Partition: 0, Offset: 0, Content: `hello`}})

	var msgs []topic.Message
	rec := do(h, http.MethodGet, `/messages`, nil)
	if err := json.NewDecoder(rec.Body).Decode(&msgs); err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Content != `hello` {
		t.Errorf(`unexpected messages %+v`, msgs)
	}

	if rec := do(h, http.MethodDelete, `/topics/orders/watch`, nil); rec.Code != http.StatusNoContent {
		t.Errorf(`expected 204 have %d`, rec.Code)
	}
}

func TestHandler_CustomParams(t *testing.T) {
	h, _, _ := setup(t)

	var opts []topic.CustomParamOption
	rec := do(h, http.MethodGet, `/custom-params`, nil)
	if err := json.NewDecoder(rec.Body).Decode(&opts); err != nil {
		t.Fatal(err)
	}
	if len(opts) != len(topic.DefaultCustomParamOptions()) {
		t.Errorf(`unexpected catalog %+v`, opts)
	}
}

func TestHandler_Read_Only(t *testing.T) {
	h := NewRouter(topic.NewState(), nil, log.NewNoopLogger())

	if rec := do(h, http.MethodDelete, `/topics/orders`, nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf(`expected 405 have %d`, rec.Code)
	}
}

func TestHandler_Errors_Hide_Internal_Details(t *testing.T) {
	h, admin, _ := setup(t)
	admin.FailWith(`CreateTopic`, errors.New(`broker down`))

	rec := do(h, http.MethodPost, `/topics`, []byte(`{"name": "payments", "partitions": 1, "replicationFactor": 1}`))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf(`expected 500 have %d`, rec.Code)
	}

	e := Err{}
	if err := json.NewDecoder(rec.Body).Decode(&e); err != nil {
		t.Fatal(err)
	}
	if e.Err != http.StatusText(http.StatusInternalServerError) {
		t.Errorf(`unexpected error body %s`, e.Err)
	}

	rec = do(h, http.MethodGet, `/topics/orders/partitions/9`, nil)
	e = Err{}
	if err := json.NewDecoder(rec.Body).Decode(&e); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(e.Err, `.go:`) || !strings.Contains(e.Err, `not found`) {
		t.Errorf(`unexpected error body %s`, e.Err)
	}
}
