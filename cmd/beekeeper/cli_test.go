package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/abdihakim148/beekeeper/cmd/identity"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func initKeys(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keys.json")
	out, err := runCLI(t, "keys", "init", "--key-file", path)
	if err != nil {
		t.Fatalf("keys init: %v", err)
	}
	if !strings.HasPrefix(out, "created "+path) {
		t.Fatalf("keys init output %q", out)
	}
	return path
}

func TestKeysInitAndPublic(t *testing.T) {
	path := initKeys(t)

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("key file mode %v", perm)
	}

	out, err := runCLI(t, "keys", "init", "--key-file", path)
	if err != nil || !strings.HasPrefix(out, "exists ") {
		t.Fatalf("second init: %q %v", out, err)
	}

	pub, err := runCLI(t, "keys", "public", "--key-file", path)
	if err != nil {
		t.Fatalf("keys public: %v", err)
	}
	if got := len(strings.TrimSpace(pub)); got != 64 {
		t.Fatalf("public key hex length %d", got)
	}

	if _, err := runCLI(t, "keys", "public", "--key-file", filepath.Join(t.TempDir(), "none.json")); err == nil {
		t.Fatal("expected error for missing key file")
	}
}

func TestTokenIssueVerify(t *testing.T) {
	path := initKeys(t)

	for _, scheme := range []string{"v4.public", "v4.local", "jwt-eddsa"} {
		t.Run(scheme, func(t *testing.T) {
			raw, err := runCLI(t, "token", "issue", "drone-7",
				"--key-file", path, "--scheme", scheme,
				"--audience", "web,cli", "--ttl", "1h",
				"--claim", "tenant=hive", "--claim", "level=3")
			if err != nil {
				t.Fatalf("issue: %v", err)
			}

			out, err := runCLI(t, "token", "verify", strings.TrimSpace(raw), "--key-file", path, "--scheme", scheme)
			if err != nil {
				t.Fatalf("verify: %v\n%s", err, out)
			}
			var res verifyResult
			if err := json.Unmarshal([]byte(out), &res); err != nil {
				t.Fatalf("decode: %v\n%s", err, out)
			}
			if !res.Valid || res.Token == nil || res.Token.Subject != "drone-7" {
				t.Fatalf("unexpected result %+v", res)
			}
			if !res.Token.Audience.Contains("cli") || res.Token.Claims["tenant"] != "hive" || res.Token.Claims["level"] != 3.0 {
				t.Fatalf("claims not carried: %+v", res.Token)
			}
			// exp is rounded up to the second, iat down.
			if res.Token.Expiration == nil {
				t.Fatal("missing exp")
			}
			if d := res.Token.Expiration.Sub(res.Token.IssuedAt); d < time.Hour || d > time.Hour+time.Second {
				t.Fatalf("exp=%v iat=%v", res.Token.Expiration, res.Token.IssuedAt)
			}
		})
	}
}

func TestTokenVerify_Rejects(t *testing.T) {
	path := initKeys(t)

	raw, err := runCLI(t, "token", "issue", "drone-7", "--key-file", path)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// A token signed for one scheme does not verify under another.
	out, err := runCLI(t, "token", "verify", strings.TrimSpace(raw), "--key-file", path, "--scheme", "jwt-eddsa")
	if err == nil {
		t.Fatal("expected rejection")
	}
	var res verifyResult
	if jerr := json.Unmarshal([]byte(out), &res); jerr != nil {
		t.Fatalf("decode: %v\n%s", jerr, out)
	}
	if res.Valid || res.Reason != "invalid_token" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestTokenIssue_Errors(t *testing.T) {
	path := initKeys(t)

	if _, err := runCLI(t, "token", "issue", "x", "--key-file", path, "--claim", "novalue"); err == nil {
		t.Fatal("expected malformed --claim error")
	}
	if _, err := runCLI(t, "token", "issue", "x", "--key-file", path, "--claim", "sub=other"); err == nil {
		t.Fatal("expected reserved claim error")
	}
	if _, err := runCLI(t, "token", "issue", "x", "--key-file", path, "--scheme", "v3.public"); err == nil {
		t.Fatal("expected unknown scheme error")
	}
	if _, err := runCLI(t, "token", "issue", "--key-file", path); err == nil {
		t.Fatal("expected missing subject error")
	}
}

func TestParseClaims(t *testing.T) {
	got, err := parseClaims([]string{"a=1", "b=text", `c={"x":true}`, "d="})
	if err != nil {
		t.Fatalf("parseClaims: %v", err)
	}
	if got["a"] != 1.0 || got["b"] != "text" || got["d"] != "" {
		t.Fatalf("got %#v", got)
	}
	if m, ok := got["c"].(map[string]any); !ok || m["x"] != true {
		t.Fatalf("c=%#v", got["c"])
	}
	if got, err := parseClaims(nil); err != nil || got != nil {
		t.Fatalf("empty: %v %v", got, err)
	}
}

func TestScopeParse(t *testing.T) {
	owner, err := identity.NewID(time.Now())
	if err != nil {
		t.Fatalf("NewID: %v", err)
	}

	out, err := runCLI(t, "scope", "parse", string(owner)+":hives: WRITE ")
	if err != nil {
		t.Fatalf("scope parse: %v", err)
	}
	var reports []scopeReport
	if err := json.Unmarshal([]byte(out), &reports); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(reports) != 1 || reports[0].Canonical != string(owner)+":hives:write" {
		t.Fatalf("reports=%+v", reports)
	}

	out, err = runCLI(t, "scope", "parse", string(owner)+":hives:read", "nope:x:read", string(owner)+":hives:fly")
	if err == nil {
		t.Fatal("expected error for invalid scopes")
	}
	reports = nil
	if err := json.Unmarshal([]byte(out), &reports); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(reports) != 3 || reports[0].Error != "" || reports[1].Error == "" || reports[2].Error == "" {
		t.Fatalf("reports=%+v", reports)
	}
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	want := map[string]bool{"serve": false, "keys": false, "token": false, "scope": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Fatalf("missing command %q", name)
		}
	}
}
