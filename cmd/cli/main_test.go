package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/tamir303/Afekaton2024/internal/convert"
	pkgcrypto "github.com/tamir303/Afekaton2024/internal/crypto"
	"github.com/tamir303/Afekaton2024/internal/errs"
	"github.com/tamir303/Afekaton2024/internal/limiter"
	"github.com/tamir303/Afekaton2024/internal/notify"
	"github.com/tamir303/Afekaton2024/internal/repository/memory"
	grpcserver "github.com/tamir303/Afekaton2024/internal/server/grpc"
	"github.com/tamir303/Afekaton2024/internal/service"
	"github.com/tamir303/Afekaton2024/internal/token"
)

func withTmpConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return filepath.Join(dir, "afekaton")
}

func Test_cfgDir_And_TokenPath(t *testing.T) {
	base := withTmpConfig(t)
	if got := cfgDir(); got != base {
		t.Fatalf("cfgDir=%q, want %q", got, base)
	}
	if tokenPath() != filepath.Join(base, "token.json") {
		t.Fatalf("tokenPath unexpected: %s", tokenPath())
	}
}

func Test_token_SaveLoad(t *testing.T) {
	_ = withTmpConfig(t)

	if _, err := loadToken(); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("missing token: want ErrUnauthorized, got %v", err)
	}
	if err := saveToken(tokenFile{AccessToken: "tok", ExpiresAt: time.Now().Add(time.Minute)}); err != nil {
		t.Fatalf("saveToken: %v", err)
	}
	tok, err := loadToken()
	if err != nil || tok != "tok" {
		t.Fatalf("loadToken: tok=%q err=%v", tok, err)
	}
	fi, err := os.Stat(tokenPath())
	if err != nil || fi.Mode().Perm() != 0o600 {
		t.Fatalf("token file mode: %v %v", fi, err)
	}

	if err := saveToken(tokenFile{AccessToken: "tok2", ExpiresAt: time.Now().Add(-time.Minute)}); err != nil {
		t.Fatalf("saveToken expired: %v", err)
	}
	if _, err := loadToken(); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("expired token: want ErrUnauthorized, got %v", err)
	}
}

func Test_bearerCreds_Metadata(t *testing.T) {
	t.Parallel()

	b := bearerCreds{token: "T", secure: true}
	md, err := b.GetRequestMetadata(context.Background())
	if err != nil {
		t.Fatalf("GetRequestMetadata: %v", err)
	}
	if md["authorization"] != "Bearer T" {
		t.Fatalf("auth header mismatch: %v", md)
	}
	if !b.RequireTransportSecurity() {
		t.Fatalf("TLS bearer must require transport security")
	}
	if (bearerCreds{token: "T"}).RequireTransportSecurity() {
		t.Fatalf("plaintext bearer must not require transport security")
	}
}

func Test_loadTLS_Variants(t *testing.T) {
	t.Parallel()

	for name, tr := range map[string]transport{
		"plaintext": {plaintext: true},
		"insecure":  {insecure: true},
		"system":    {},
	} {
		creds, err := loadTLS(tr)
		if err != nil || creds == nil {
			t.Fatalf("%s: %v %v", name, creds, err)
		}
	}
	creds, err := loadTLS(transport{plaintext: true})
	if err != nil || creds.Info().SecurityProtocol != "insecure" {
		t.Fatalf("plaintext creds: %v %v", creds, err)
	}

	bad := filepath.Join(t.TempDir(), "bad.pem")
	_ = os.WriteFile(bad, []byte("not pem"), 0o600)
	if creds, err := loadTLS(transport{caPath: bad}); err == nil || creds != nil {
		t.Fatalf("bad CA should error, got creds=%v err=%v", creds, err)
	}
	if _, err := loadTLS(transport{caPath: filepath.Join(t.TempDir(), "missing.pem")}); err == nil {
		t.Fatalf("missing CA should error")
	}
}

func Test_detailsFlag(t *testing.T) {
	t.Parallel()

	if m, err := detailsFlag(""); err != nil || m != nil {
		t.Fatalf("empty: %v %v", m, err)
	}
	m, err := detailsFlag(`{"subjects":["Math"]}`)
	if err != nil || m["subjects"] == nil {
		t.Fatalf("object: %v %v", m, err)
	}
	if _, err := detailsFlag(`[1,2]`); !errors.Is(err, errs.ErrBadRequest) {
		t.Fatalf("array: want ErrBadRequest, got %v", err)
	}
}

func Test_run_UsageAndVersion(t *testing.T) {
	t.Parallel()

	var out, errOut bytes.Buffer
	if err := run(nil, &out, &errOut); !errors.Is(err, errUsage) {
		t.Fatalf("no args: want usage error, got %v", err)
	}
	if !strings.Contains(errOut.String(), "children") {
		t.Fatalf("usage should list commands: %s", errOut.String())
	}
	if err := run([]string{"nope"}, &out, &errOut); !errors.Is(err, errUsage) {
		t.Fatalf("unknown command: want usage error, got %v", err)
	}
	if err := run([]string{"--bogus"}, &out, &errOut); !errors.Is(err, errUsage) {
		t.Fatalf("unknown flag: want usage error, got %v", err)
	}
	if err := run([]string{"--plaintext", "version"}, &out, &errOut); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out.String(), "afk dev") {
		t.Fatalf("version output: %q", out.String())
	}
}

// newTestApp serves the platform from a memory store over bufconn.
func newTestApp(t *testing.T) (*app, *bytes.Buffer) {
	t.Helper()
	log := zaptest.NewLogger(t)

	store, err := memory.New()
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	users, objects, edges := memory.NewUserRepo(store), memory.NewObjectRepo(store), memory.NewEdgeRepo(store)
	tokens := token.NewManager([]byte("cli-secret"), time.Minute)
	hasher := pkgcrypto.NewHasher(pkgcrypto.Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16})
	dispatcher := notify.New(users, log, notify.DefaultOptions)
	commands := service.NewCommandService(memory.NewCommandRepo(store), objects, dispatcher, log)
	graph := service.NewObjectService(users, objects, edges, commands, log)
	srv := grpcserver.New(service.Services{
		Users:    service.NewUserService(users, hasher, tokens, limiter.NewMemory(limiter.DefaultSettings), log),
		Objects:  graph,
		Query:    service.NewQueryService(objects, graph),
		Commands: commands,
		Subjects: service.NewSubjectService(memory.NewSubjectRepo(store), log),
	}, tokens)

	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(grpcserver.AuthUnary(tokens)))
	grpcserver.Register(gs, srv)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(func() {
		gs.Stop()
		_ = lis.Close()
		dispatcher.Wait()
	})

	out := &bytes.Buffer{}
	return &app{
		out: out,
		connect: func(bearer string) (*grpc.ClientConn, error) {
			opts := []grpc.DialOption{
				grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
				grpc.WithTransportCredentials(insecure.NewCredentials()),
			}
			if bearer != "" {
				opts = append(opts, grpc.WithPerRPCCredentials(bearerCreds{token: bearer}))
			}
			return grpc.NewClient("passthrough:///bufnet", opts...)
		},
	}, out
}

func exec(t *testing.T, a *app, out *bytes.Buffer, name string, args ...string) string {
	t.Helper()
	out.Reset()
	if err := commands[name].run(a, context.Background(), args); err != nil {
		t.Fatalf("%s %v: %v", name, args, err)
	}
	return out.String()
}

func TestCommands_GraphFlow(t *testing.T) {
	_ = withTmpConfig(t)
	a, out := newTestApp(t)
	ctx := context.Background()

	if err := commands["create"].run(a, ctx, []string{"--type", "course"}); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("create before login: want ErrUnauthorized, got %v", err)
	}

	id := strings.TrimSpace(exec(t, a, out, "register",
		"--email", "root@x", "--platform", "cli", "--role", "admin", "--username", "root", "--password", "pw"))
	if id == "" {
		t.Fatalf("register printed no id")
	}
	if got := exec(t, a, out, "login", "--email", "root@x", "--platform", "cli", "--password", "pw"); got != "ok\n" {
		t.Fatalf("login output: %q", got)
	}

	var parent, child convert.Object
	if err := json.Unmarshal([]byte(exec(t, a, out, "create", "--type", "course", "--alias", "algebra")), &parent); err != nil {
		t.Fatalf("decode parent: %v", err)
	}
	if parent.CreatedBy != id || parent.ID == "" {
		t.Fatalf("parent: %+v", parent)
	}
	raw := exec(t, a, out, "create", "--type", "lesson", "--alias", "intro", "--details", `{"subject":"Math"}`, "--lat", "32.1", "--lng", "34.8")
	if err := json.Unmarshal([]byte(raw), &child); err != nil {
		t.Fatalf("decode child: %v", err)
	}
	if child.Location == nil || child.Location.Lat == nil || *child.Location.Lat != 32.1 {
		t.Fatalf("child location: %+v", child.Location)
	}

	exec(t, a, out, "bind", "--parent", parent.ID, "--child", child.ID)

	var kids []convert.Object
	if err := json.Unmarshal([]byte(exec(t, a, out, "children", "--id", parent.ID)), &kids); err != nil {
		t.Fatalf("decode children: %v", err)
	}
	if len(kids) != 1 || kids[0].ID != child.ID {
		t.Fatalf("children: %+v", kids)
	}
	var ups []convert.Object
	if err := json.Unmarshal([]byte(exec(t, a, out, "parents", "--id", child.ID, "--type", "course", "--alias", "algebra")), &ups); err != nil {
		t.Fatalf("decode parents: %v", err)
	}
	if len(ups) != 1 || ups[0].ID != parent.ID {
		t.Fatalf("parents filtered: %+v", ups)
	}

	exec(t, a, out, "update", "--id", child.ID, "--alias", "welcome")
	var got convert.Object
	if err := json.Unmarshal([]byte(exec(t, a, out, "get", "--id", child.ID)), &got); err != nil {
		t.Fatalf("decode get: %v", err)
	}
	if got.Alias != "welcome" || got.Type != "lesson" {
		t.Fatalf("after update: %+v", got)
	}

	var lessons []convert.Object
	if err := json.Unmarshal([]byte(exec(t, a, out, "by-type", "--type", "lesson")), &lessons); err != nil {
		t.Fatalf("decode by-type: %v", err)
	}
	if len(lessons) != 1 {
		t.Fatalf("by-type: %+v", lessons)
	}

	exec(t, a, out, "unbind", "--parent", parent.ID, "--child", child.ID)
	kids = nil
	if err := json.Unmarshal([]byte(exec(t, a, out, "children", "--id", parent.ID)), &kids); err != nil {
		t.Fatalf("decode children after unbind: %v", err)
	}
	if len(kids) != 0 {
		t.Fatalf("children after unbind: %+v", kids)
	}

	if strings.TrimSpace(exec(t, a, out, "subjects")) != "[]" {
		t.Fatalf("subjects should start empty: %q", out.String())
	}
}

func TestCommands_MissingFlags(t *testing.T) {
	t.Parallel()
	a := &app{out: &bytes.Buffer{}}
	for _, name := range []string{"register", "login", "create", "get", "update", "bind", "children", "by-type"} {
		if err := commands[name].run(a, context.Background(), nil); !errors.Is(err, errs.ErrBadRequest) {
			t.Fatalf("%s without flags: want ErrBadRequest, got %v", name, err)
		}
	}
}
