// Package httpapi exposes a topic.State over HTTP for the UI.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gmbyapa/ktopics/pkg/errors"
	"github.com/gmbyapa/ktopics/topic"
	"github.com/gmbyapa/ktopics/topic/form"
	"github.com/gorilla/mux"
	"github.com/tryfix/log"
)

// Writer submits changes to the cluster and applies them to the state.
type Writer interface {
	Submit(ctx context.Context, data *form.Data) error
	Delete(ctx context.Context, name string) error
	Watch(name string)
	Unwatch(name string)
}

type Err struct {
	Err string `json:"error"`
}

type handler struct {
	state      *topic.State
	writer     Writer
	visualizer topic.Visualizer
	logger     log.Logger
}

// NewRouter registers every route on a new mux.Router. writer may be nil for a read only API.
func NewRouter(state *topic.State, writer Writer, logger log.Logger) *mux.Router {
	h := &handler{
		state:      state,
		writer:     writer,
		visualizer: topic.NewVisualizer(),
		logger:     logger.NewLog(log.Prefixed(`http`)),
	}

	r := mux.NewRouter()
	r.HandleFunc(`/topics`, h.topics).Methods(http.MethodGet)
	r.HandleFunc(`/topics/{name}`, h.topic).Methods(http.MethodGet)
	r.HandleFunc(`/topics/{name}/config`, h.config).Methods(http.MethodGet)
	r.HandleFunc(`/topics/{name}/partitions/{partition:[0-9]+}`, h.partition).Methods(http.MethodGet)
	r.HandleFunc(`/topics/{name}/graph`, h.graph).Methods(http.MethodGet)
	r.HandleFunc(`/topics/{name}/form`, h.editForm).Methods(http.MethodGet)
	r.HandleFunc(`/messages`, h.messages).Methods(http.MethodGet)
	r.HandleFunc(`/custom-params`, h.customParams).Methods(http.MethodGet)

	if writer != nil {
		r.HandleFunc(`/topics`, h.submit).Methods(http.MethodPost)
		r.HandleFunc(`/topics/{name}`, h.delete).Methods(http.MethodDelete)
		r.HandleFunc(`/topics/{name}/watch`, h.watch).Methods(http.MethodPut)
		r.HandleFunc(`/topics/{name}/watch`, h.unwatch).Methods(http.MethodDelete)
	}

	return r
}

func (h *handler) encode(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set(`Content-Type`, `application/json`)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error(fmt.Sprintf(`response encode failed due to %s`, err))
	}
}

// encodeError writes the message of a known topic error, anything else is logged in full and
// answered with the status text only.
func (h *handler) encodeError(w http.ResponseWriter, err error) {
	var notFound *topic.NotFoundError
	if errors.As(err, &notFound) {
		h.encode(w, http.StatusNotFound, Err{Err: notFound.Error()})
		return
	}

	h.logger.Error(err)

	msg := http.StatusText(http.StatusInternalServerError)
	var consistency *topic.ConsistencyError
	var duplicate *topic.DuplicateKeyError
	switch {
	case errors.As(err, &consistency):
		msg = consistency.Error()
	case errors.As(err, &duplicate):
		msg = duplicate.Error()
	}

	h.encode(w, http.StatusInternalServerError, Err{Err: msg})
}

func (h *handler) lookup(r *http.Request) (topic.DetailedTopic, error) {
	name := mux.Vars(r)[`name`]
	t, ok := h.state.Topic(name)
	if !ok {
		return topic.DetailedTopic{}, &topic.NotFoundError{Kind: `topic`, Key: name}
	}

	return t, nil
}

// topics lists every topic in display order. internal=false hides internal topics.
func (h *handler) topics(w http.ResponseWriter, r *http.Request) {
	showInternal := true
	if v := r.URL.Query().Get(`internal`); v != `` {
		b, err := strconv.ParseBool(v)
		if err != nil {
			h.encode(w, http.StatusBadRequest, Err{Err: fmt.Sprintf(`invalid internal flag [%s]`, v)})
			return
		}
		showInternal = b
	}

	topics := make([]topic.DetailedTopic, 0, h.state.Len())
	for _, t := range h.state.Topics() {
		if t.Internal && !showInternal {
			continue
		}
		topics = append(topics, t)
	}

	h.encode(w, http.StatusOK, topics)
}

func (h *handler) topic(w http.ResponseWriter, r *http.Request) {
	t, err := h.lookup(r)
	if err != nil {
		h.encodeError(w, err)
		return
	}

	h.encode(w, http.StatusOK, t)
}

// config lists the topic configuration. overridden=true keeps only non default entries.
func (h *handler) config(w http.ResponseWriter, r *http.Request) {
	reg, err := h.state.Config(mux.Vars(r)[`name`])
	if err != nil {
		h.encodeError(w, err)
		return
	}

	if r.URL.Query().Get(`overridden`) == `true` {
		h.encode(w, http.StatusOK, reg.Overridden())
		return
	}

	h.encode(w, http.StatusOK, reg.All())
}

func (h *handler) partition(w http.ResponseWriter, r *http.Request) {
	t, err := h.lookup(r)
	if err != nil {
		h.encodeError(w, err)
		return
	}

	index, err := strconv.ParseInt(mux.Vars(r)[`partition`], 10, 32)
	if err != nil {
		h.encode(w, http.StatusBadRequest, Err{Err: err.Error()})
		return
	}

	p, err := t.Partition(int32(index))
	if err != nil {
		h.encodeError(w, err)
		return
	}

	h.encode(w, http.StatusOK, p)
}

func (h *handler) graph(w http.ResponseWriter, r *http.Request) {
	t, err := h.lookup(r)
	if err != nil {
		h.encodeError(w, err)
		return
	}

	dot, err := h.visualizer.Visualize(t.Topic)
	if err != nil {
		h.encodeError(w, errors.Wrapf(err, `graph of topic [%s] failed`, t.Name))
		return
	}

	w.Header().Set(`Content-Type`, `text/vnd.graphviz`)
	if _, err := w.Write([]byte(dot)); err != nil {
		h.logger.Error(err)
	}
}

// editForm returns the edit form pre-filled from the known topic.
func (h *handler) editForm(w http.ResponseWriter, r *http.Request) {
	t, err := h.lookup(r)
	if err != nil {
		h.encodeError(w, err)
		return
	}

	data, err := form.FromTopic(t)
	if err != nil {
		h.encodeError(w, err)
		return
	}

	h.encode(w, http.StatusOK, data)
}

func (h *handler) messages(w http.ResponseWriter, _ *http.Request) {
	h.encode(w, http.StatusOK, h.state.Messages())
}

func (h *handler) customParams(w http.ResponseWriter, _ *http.Request) {
	h.encode(w, http.StatusOK, topic.DefaultCustomParamOptions())
}

func (h *handler) submit(w http.ResponseWriter, r *http.Request) {
	data := form.NewData()
	if err := json.NewDecoder(r.Body).Decode(data); err != nil {
		h.encode(w, http.StatusBadRequest, Err{Err: fmt.Sprintf(`invalid form: %s`, err)})
		return
	}

	if data.Name == `` {
		h.encode(w, http.StatusBadRequest, Err{Err: `topic name cannot be empty`})
		return
	}

	if err := h.writer.Submit(r.Context(), data); err != nil {
		h.encodeError(w, err)
		return
	}

	t, ok := h.state.Topic(data.Name)
	if !ok {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	h.encode(w, http.StatusOK, t)
}

func (h *handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.writer.Delete(r.Context(), mux.Vars(r)[`name`]); err != nil {
		h.encodeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) watch(w http.ResponseWriter, r *http.Request) {
	t, err := h.lookup(r)
	if err != nil {
		h.encodeError(w, err)
		return
	}

	h.writer.Watch(t.Name)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) unwatch(w http.ResponseWriter, r *http.Request) {
	h.writer.Unwatch(mux.Vars(r)[`name`])
	w.WriteHeader(http.StatusNoContent)
}
