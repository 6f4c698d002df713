package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractList(t *testing.T) {
	paths := []string{"history", "detection_history", "data", "data.history"}

	cases := map[string]struct {
		body string
		want string
	}{
		"top-level array":      {`[{"id":"1"}]`, `[{"id":"1"}]`},
		"named field":          {`{"history":[{"id":"1"}]}`, `[{"id":"1"}]`},
		"alternate field name": {`{"detection_history":[{"id":"1"}]}`, `[{"id":"1"}]`},
		"data wrapper":         {`{"data":[{"id":"1"}]}`, `[{"id":"1"}]`},
		"nested data wrapper":  {`{"data":{"history":[{"id":"1"}]}}`, `[{"id":"1"}]`},
		"no match":             {`{"something":"else"}`, `[]`},
		"non-array match":      {`{"history":"nope"}`, `[]`},
		"invalid json":         {`{`, `[]`},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got := ExtractList([]byte(tc.body), paths...)
			assert.JSONEq(t, tc.want, string(got))
		})
	}
}

func TestExtractList_Precedence(t *testing.T) {
	// When several shapes match, the earlier path wins.
	body := `{"history":[{"id":"named"}],"data":[{"id":"wrapped"}]}`
	got := ExtractList([]byte(body), "history", "data")
	assert.JSONEq(t, `[{"id":"named"}]`, string(got))
}

func TestExtractString(t *testing.T) {
	body := `{"data":{"access_token":"tok-nested"}}`
	assert.Equal(t, "tok-nested",
		ExtractString([]byte(body), "access_token", "data.access_token"))

	assert.Empty(t, ExtractString([]byte(`{}`), "access_token"))
	assert.Empty(t, ExtractString([]byte(`{"access_token":42}`), "access_token"))
}

func TestExtractObject(t *testing.T) {
	body := `{"user":{"id":"u1"}}`
	raw, ok := ExtractObject([]byte(body), "user")
	assert.True(t, ok)
	assert.JSONEq(t, `{"id":"u1"}`, string(raw))

	_, ok = ExtractObject([]byte(`{"user":[1]}`), "user")
	assert.False(t, ok)
}

func TestBackendMessage(t *testing.T) {
	assert.Equal(t, "bad password", backendMessage([]byte(`{"error":"bad password"}`)))
	assert.Equal(t, "bad password", backendMessage([]byte(`{"message":"bad password"}`)))
	assert.Empty(t, backendMessage([]byte(`not json`)))
}
