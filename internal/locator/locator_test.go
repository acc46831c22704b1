package locator

import (
	"context"
	"errors"
	"testing"

	"github.com/rayen0001/tekup-auto-login/internal/dom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, body string) *dom.HTMLDocument {
	t.Helper()
	doc, err := dom.ParseHTMLString(body)
	require.NoError(t, err)
	return doc
}

func value(t *testing.T, el dom.Element) string {
	t.Helper()
	require.NotNil(t, el)
	v, err := el.Value(context.Background())
	require.NoError(t, err)
	return v
}

func TestLocatePortalIDs(t *testing.T) {
	doc := parse(t, `<form>
		<input id="auth_user" value="u">
		<input id="auth_pass" type="password" value="p">
		<input id="remember" type="checkbox">
		<button id="login" value="go">Login</button>
	</form>`)

	f, err := Locate(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, f.Complete())
	assert.Equal(t, "u", value(t, f.Username))
	assert.Equal(t, "p", value(t, f.Password))
	assert.Equal(t, "go", value(t, f.Submit))
	assert.NotNil(t, f.Checkbox)
}

func TestLocateFallbacks(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		username string
		password string
	}{
		{
			name:     "name attributes",
			body:     `<input name="username" value="a"><input name="password" value="b">`,
			username: "a", password: "b",
		},
		{
			name:     "partial name and password type",
			body:     `<input type="text" name="login_user" value="a"><input type="password" name="secret" value="b">`,
			username: "a", password: "b",
		},
		{
			name:     "placeholder is case insensitive",
			body:     `<input placeholder="Enter Username" value="a"><input type="password" value="b">`,
			username: "a", password: "b",
		},
		{
			name:     "earlier selector wins over document order",
			body:     `<input name="username" value="late"><input id="auth_user" value="early"><input type="password" value="b">`,
			username: "early", password: "b",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Locate(context.Background(), parse(t, tt.body))
			require.NoError(t, err)
			require.True(t, f.Complete())
			assert.Equal(t, tt.username, value(t, f.Username))
			assert.Equal(t, tt.password, value(t, f.Password))
		})
	}
}

func TestLocateMissingPassword(t *testing.T) {
	f, err := Locate(context.Background(), parse(t, `<input id="auth_user">`))
	require.NoError(t, err)
	assert.False(t, f.Complete())
	assert.NotNil(t, f.Username)
	assert.Nil(t, f.Password)
	assert.Nil(t, f.Submit)
}

func TestLocateGenericCheckboxTakesFirst(t *testing.T) {
	doc := parse(t, `<input type="checkbox" value="newsletter"><input type="checkbox" value="other">`)
	f, err := Locate(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "newsletter", value(t, f.Checkbox))
}

func TestProbe(t *testing.T) {
	doc := parse(t, `<input name="auth_user"><input type="password"><button type="submit">Go</button>`)
	matches, err := Probe(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, matches, 4)

	assert.Equal(t, Match{Field: FieldUsername, Selector: `input[name="auth_user"]`, Found: true, Required: true}, matches[0])
	assert.Equal(t, Match{Field: FieldPassword, Selector: `input[type="password"]`, Found: true, Required: true}, matches[1])
	assert.Equal(t, Match{Field: FieldSubmit, Selector: `button[type="submit"]`, Found: true}, matches[2])
	assert.Equal(t, Match{Field: FieldCheckbox}, matches[3])
}

type failingDoc struct {
	failOn string
	inner  dom.Document
}

func (d failingDoc) QuerySelector(ctx context.Context, sel string) (dom.Element, error) {
	if sel == d.failOn {
		return nil, errors.New("bad selector")
	}
	return d.inner.QuerySelector(ctx, sel)
}

func TestFirstSkipsFailingSelector(t *testing.T) {
	doc := failingDoc{failOn: "#auth_user", inner: parse(t, `<input id="auth_user" value="x"><input name="username" value="y">`)}
	el, sel, err := First(context.Background(), doc, UsernameSelectors)
	require.NoError(t, err)
	assert.Equal(t, `input[name="username"]`, sel)
	assert.Equal(t, "y", value(t, el))
}

func TestFirstStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := First(ctx, parse(t, `<input id="auth_user">`), UsernameSelectors)
	assert.ErrorIs(t, err, context.Canceled)
}
