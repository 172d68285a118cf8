package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

const syntheticPlayerJS = `
var Wka=function(a){a=a.split("");a.reverse();return a.join("")};
var g=function(a,b){var c=a.D;c&&(b=a.get("n"))&&(b=Wka(b),a.set("n",b))};
`

const aliasedPlayerJS = `
var Wka=function(a){a=a.split("");a.reverse();return a.join("")};
var qx=[Wka];
var g=function(a,b){var c=a.D;c&&(b=a.get("n"))&&(b=qx[0](b),a.set("n",b))};
`

func TestPlayerScriptPath(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"jsUrl", `{"jsUrl":"/s/player/abc123/player_ias.vflset/en_US/base.js"}`,
			"/s/player/abc123/player_ias.vflset/en_US/base.js"},
		{"PLAYER_JS_URL", `"PLAYER_JS_URL":"/s/player/abc123/base.js"`,
			"/s/player/abc123/base.js"},
		{"absent", `{"other":"/watch"}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := playerScriptPath([]byte(tt.body)); got != tt.want {
				t.Errorf("playerScriptPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractNFunctionDirectCallsite(t *testing.T) {
	snippet, ok := extractNFunction(syntheticPlayerJS)
	if !ok {
		t.Fatal("transform not found")
	}
	eval, err := NewTransformEvaluator(snippet)
	if err != nil {
		t.Fatalf("snippet did not compile: %v", err)
	}
	got, err := eval.Apply(TransformN, "abc")
	if err != nil {
		t.Fatalf("applying transform: %v", err)
	}
	if got != "cba" {
		t.Errorf("transform(abc) = %q, want cba", got)
	}
}

func TestExtractNFunctionAliasedCallsite(t *testing.T) {
	snippet, ok := extractNFunction(aliasedPlayerJS)
	if !ok {
		t.Fatal("transform not found behind dispatch alias")
	}
	eval, err := NewTransformEvaluator(snippet)
	if err != nil {
		t.Fatalf("snippet did not compile: %v", err)
	}
	got, err := eval.Apply(TransformN, "xyz")
	if err != nil {
		t.Fatalf("applying transform: %v", err)
	}
	if got != "zyx" {
		t.Errorf("transform(xyz) = %q, want zyx", got)
	}
}

func TestExtractNFunctionAbsent(t *testing.T) {
	if _, ok := extractNFunction(`var unrelated=function(a){return a};`); ok {
		t.Fatal("expected no transform in an unrelated script")
	}
}

func TestBalancedFunction(t *testing.T) {
	fn, ok := balancedFunction(`function(a){var b="}{";return a}trailing`)
	if !ok {
		t.Fatal("balance not found")
	}
	if fn != `function(a){var b="}{";return a}` {
		t.Errorf("span = %q", fn)
	}
	if _, ok := balancedFunction(`function(a){never closed`); ok {
		t.Error("unterminated body must not balance")
	}
}

func TestInstallTransformsWiresPrepareURL(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/s/player/test/base.js" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(syntheticPlayerJS))
	}))
	defer server.Close()

	s := &Session{
		Type:       ClientWeb,
		profile:    clientProfile{apiHost: strings.TrimPrefix(server.URL, "https://"), userAgent: desktopUserAgent},
		http:       server.Client(),
		log:        zerolog.Nop(),
		playerPath: "/s/player/test/base.js",
	}
	s.installTransforms(context.Background())

	prepared, err := s.PrepareURL("https://media.test/stream?n=abc&itag=140")
	if err != nil {
		t.Fatalf("PrepareURL failed: %v", err)
	}
	parsed, err := url.Parse(prepared)
	if err != nil {
		t.Fatalf("parsing prepared url: %v", err)
	}
	if got := parsed.Query().Get("n"); got != "cba" {
		t.Errorf("n = %q, want the transformed value", got)
	}
	if got := parsed.Query().Get("itag"); got != "140" {
		t.Errorf("itag = %q, other params must pass through", got)
	}
}

func TestInstallTransformsToleratesMissingScript(t *testing.T) {
	server := httptest.NewTLSServer(http.NotFoundHandler())
	defer server.Close()

	s := &Session{
		Type:       ClientWeb,
		profile:    clientProfile{apiHost: strings.TrimPrefix(server.URL, "https://"), userAgent: desktopUserAgent},
		http:       server.Client(),
		log:        zerolog.Nop(),
		playerPath: "/s/player/test/base.js",
	}
	s.installTransforms(context.Background())

	// No transform installed: the n parameter passes through untouched.
	prepared, err := s.PrepareURL("https://media.test/stream?n=abc")
	if err != nil {
		t.Fatalf("PrepareURL failed: %v", err)
	}
	if !strings.Contains(prepared, "n=abc") {
		t.Errorf("prepared = %q, want n untouched", prepared)
	}
}
