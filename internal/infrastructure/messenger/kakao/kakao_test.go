package kakao

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PaperNotifier/internal/domain"
)

func results() []domain.RankedResult {
	score := 0.9123
	return []domain.RankedResult{
		{Document: domain.Document{Title: "Dense\n Retrieval", Link: "http://arxiv.org/abs/2401.00001v1"}, Score: &score},
		{Document: domain.Document{Title: "Sparse Retrieval", Link: "http://arxiv.org/abs/2401.00002v2"}},
	}
}

func TestFormatDefaultTemplate(t *testing.T) {
	t.Parallel()

	m := New(Options{APIURL: "https://kapi.kakao.com/", LinkURL: "https://arxiv.org", Template: "default"})
	msg, err := m.Format("retrieval", results())
	require.NoError(t, err)

	assert.Equal(t, domain.MessageDigest, msg.Kind)
	assert.Equal(t, "https://kapi.kakao.com/v2/api/talk/memo/default/send", msg.Endpoint)

	var object struct {
		ObjectType string            `json:"object_type"`
		Text       string            `json:"text"`
		Link       map[string]string `json:"link"`
	}
	require.NoError(t, json.Unmarshal([]byte(msg.Form.Get("template_object")), &object))
	assert.Equal(t, "text", object.ObjectType)
	assert.Equal(t, "https://arxiv.org", object.Link["web_url"])
	assert.Equal(t, "Keyword: retrieval\n\n"+
		"[1] Dense Retrieval (0.912)\nhttp://arxiv.org/abs/2401.00001v1\n\n"+
		"[2] Sparse Retrieval\nhttp://arxiv.org/abs/2401.00002v2", object.Text)
}

func TestFormatCustomTemplate(t *testing.T) {
	t.Parallel()

	m := New(Options{APIURL: "https://kapi.kakao.com", Template: "118367"})
	msg, err := m.Format("retrieval", results())
	require.NoError(t, err)

	assert.Equal(t, "https://kapi.kakao.com/v2/api/talk/memo/send", msg.Endpoint)
	assert.Equal(t, "118367", msg.Form.Get("template_id"))

	var args map[string]string
	require.NoError(t, json.Unmarshal([]byte(msg.Form.Get("template_args")), &args))
	assert.Equal(t, map[string]string{
		"SEARCH_QUERY": "retrieval",
		"N_PAPERS":     "2",
		"TITLE_1":      "Dense Retrieval",
		"LINK_1":       "2401.00001v1",
		"TITLE_2":      "Sparse Retrieval",
		"LINK_2":       "2401.00002v2",
	}, args)
}

func TestFormatEmpty(t *testing.T) {
	t.Parallel()

	msg, err := New(Options{APIURL: "https://kapi.kakao.com", Template: "118367"}).Format("graphs", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.MessageEmpty, msg.Kind)
	assert.Equal(t, "https://kapi.kakao.com/v2/api/talk/memo/default/send", msg.Endpoint)
	assert.Contains(t, msg.Form.Get("template_object"), `No new papers for \"graphs\".`)
}

func TestSend(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("template_object") == "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"msg":"template_object is required","code":-2}`))
			return
		}
		_, _ = w.Write([]byte(`{"result_code":0}`))
	}))
	defer srv.Close()

	m := New(Options{AccessToken: "token", APIURL: srv.URL})
	msg, err := m.Format("retrieval", results())
	require.NoError(t, err)

	delivery, err := m.Send(context.Background(), msg)
	require.NoError(t, err)
	assert.True(t, delivery.OK())
	assert.Equal(t, `{"result_code":0}`, delivery.Body)

	msg.Form.Del("template_object")
	delivery, err = m.Send(context.Background(), msg)
	require.NoError(t, err)
	assert.False(t, delivery.OK())
	assert.Contains(t, delivery.Body, "template_object is required")

	_, err = New(Options{APIURL: srv.URL}).Send(context.Background(), msg)
	assert.Error(t, err)
}
