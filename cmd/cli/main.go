// Command afk is a CLI client for the Afekaton platform gRPC service.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/pflag"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/tamir303/Afekaton2024/internal/convert"
	"github.com/tamir303/Afekaton2024/internal/errs"
	grpcserver "github.com/tamir303/Afekaton2024/internal/server/grpc"
)

// ---- token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      string    `json:"user_id"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "afekaton")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "afekaton")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tf tokenFile) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tf)
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", fmt.Errorf("no saved token, run login: %w", errs.ErrUnauthorized)
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", fmt.Errorf("token expired, run login: %w", errs.ErrUnauthorized)
	}
	return tf.AccessToken, nil
}

// ---- grpc dial ----

type bearerCreds struct {
	token  string
	secure bool
}

func (b bearerCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}

func (b bearerCreds) RequireTransportSecurity() bool { return b.secure }

type transport struct {
	caPath    string
	insecure  bool
	plaintext bool
}

func loadTLS(t transport) (credentials.TransportCredentials, error) {
	switch {
	case t.plaintext:
		return insecure.NewCredentials(), nil
	case t.insecure:
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil //nolint:gosec // --insecure is opt-in
	case t.caPath == "":
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(t.caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}), nil
}

func dial(addr string, t transport, bearer string) (*grpc.ClientConn, error) {
	creds, err := loadTLS(t)
	if err != nil {
		return nil, err
	}
	opts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	if bearer != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(bearerCreds{token: bearer, secure: !t.plaintext}))
	}
	return grpc.NewClient(addr, opts...)
}

// ---- commands ----

// app runs one subcommand. connect is swapped in tests.
type app struct {
	out     io.Writer
	connect func(bearer string) (*grpc.ClientConn, error)
}

// call invokes method, attaching the saved token when auth is set.
func (a *app) call(ctx context.Context, auth bool, method string, in, out any) error {
	var bearer string
	if auth {
		tok, err := loadToken()
		if err != nil {
			return err
		}
		bearer = tok
	}
	cc, err := a.connect(bearer)
	if err != nil {
		return err
	}
	defer cc.Close()
	return grpcserver.NewClient(cc).Call(ctx, method, in, out)
}

func (a *app) printJSON(v any) {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

type command struct {
	usage string
	run   func(a *app, ctx context.Context, args []string) error
}

var commands = map[string]command{
	"version":  {"", cmdVersion},
	"register": {"--email E --platform P --role R --username U --password S [--details JSON]", cmdRegister},
	"login":    {"--email E --platform P --password S   (saves token)", cmdLogin},
	"create":   {"--type T [--alias A] [--active=false] [--details JSON] [--lat F --lng F]", cmdCreate},
	"get":      {"--id UUID", cmdGet},
	"update":   {"--id UUID [--type T] [--alias A] [--active B] [--details JSON]", cmdUpdate},
	"bind":     {"--parent UUID --child UUID", edgeCmd("BindObject")},
	"unbind":   {"--parent UUID --child UUID", edgeCmd("UnbindObject")},
	"children": {"--id UUID [--type T --alias A]", neighbourCmd("GetChildren", "ChildrenByTypeAndAlias")},
	"parents":  {"--id UUID [--type T --alias A]", neighbourCmd("GetParents", "ParentsByTypeAndAlias")},
	"by-type":  {"--type T", typeCmd("ListByType", false)},
	"distinct": {"--type T", typeCmd("DistinctByType", true)},
	"subjects": {"", cmdSubjects},
}

func usage(w io.Writer) {
	fmt.Fprint(w, `afk CLI
Usage:
  afk [--addr HOST:PORT] [--cacert file | --insecure | --plaintext] <cmd> [args]

Commands:
`)
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "  %-9s %s\n", n, commands[n].usage)
	}
}

func newFlags(name string) *pflag.FlagSet {
	return pflag.NewFlagSet(name, pflag.ContinueOnError)
}

// detailsFlag parses a JSON object flag; empty means nil.
func detailsFlag(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("--details must be a JSON object: %w", errs.ErrBadRequest)
	}
	return m, nil
}

func need(fs *pflag.FlagSet, names ...string) error {
	for _, n := range names {
		if v, _ := fs.GetString(n); v == "" {
			return fmt.Errorf("need --%s: %w", n, errs.ErrBadRequest)
		}
	}
	return nil
}

func cmdVersion(a *app, _ context.Context, _ []string) error {
	_, err := fmt.Fprintf(a.out, "afk %s (%s)\n", version, buildDate)
	return err
}

func cmdRegister(a *app, ctx context.Context, args []string) error {
	fs := newFlags("register")
	email := fs.String("email", "", "email")
	platform := fs.String("platform", "", "platform")
	role := fs.String("role", "PARTICIPANT", "ADMIN, RESEARCHER or PARTICIPANT")
	username := fs.String("username", "", "display name")
	password := fs.String("password", "", "password")
	details := fs.String("details", "", "user details JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := need(fs, "email", "platform", "username", "password"); err != nil {
		return err
	}
	d, err := detailsFlag(*details)
	if err != nil {
		return err
	}
	var out convert.User
	req := convert.NewUser{Email: *email, Platform: *platform, Role: *role, Username: *username, Password: *password, Details: d}
	if err := a.call(ctx, false, "Register", req, &out); err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, out.ID)
	return err
}

func cmdLogin(a *app, ctx context.Context, args []string) error {
	fs := newFlags("login")
	email := fs.String("email", "", "email")
	platform := fs.String("platform", "", "platform")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := need(fs, "email", "platform", "password"); err != nil {
		return err
	}
	var out convert.LoginResult
	if err := a.call(ctx, false, "Login", convert.Login{Email: *email, Platform: *platform, Password: *password}, &out); err != nil {
		return err
	}
	if err := saveToken(tokenFile{AccessToken: out.AccessToken, ExpiresAt: out.ExpiresAt, UserID: out.User.ID}); err != nil {
		return err
	}
	_, err := fmt.Fprintln(a.out, "ok")
	return err
}

func location(fs *pflag.FlagSet, lat, lng *float64) *convert.Location {
	if !fs.Changed("lat") && !fs.Changed("lng") {
		return nil
	}
	return &convert.Location{Lat: lat, Lng: lng}
}

func cmdCreate(a *app, ctx context.Context, args []string) error {
	fs := newFlags("create")
	typ := fs.String("type", "", "object type")
	alias := fs.String("alias", "", "alias")
	active := fs.Bool("active", true, "active flag")
	details := fs.String("details", "{}", "object details JSON")
	createdBy := fs.String("created-by", "", "creator user id (defaults to caller)")
	lat := fs.Float64("lat", 0, "latitude")
	lng := fs.Float64("lng", 0, "longitude")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := need(fs, "type"); err != nil {
		return err
	}
	d, err := detailsFlag(*details)
	if err != nil {
		return err
	}
	if d == nil {
		d = map[string]any{}
	}
	req := convert.Object{
		Type: *typ, Alias: *alias, Active: active, CreatedBy: *createdBy,
		Location: location(fs, lat, lng), Details: d,
	}
	var out convert.Object
	if err := a.call(ctx, true, "CreateObject", req, &out); err != nil {
		return err
	}
	a.printJSON(out)
	return nil
}

func cmdGet(a *app, ctx context.Context, args []string) error {
	fs := newFlags("get")
	id := fs.String("id", "", "object id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := need(fs, "id"); err != nil {
		return err
	}
	var out convert.Object
	if err := a.call(ctx, true, "GetObject", convert.IDRequest{ID: *id}, &out); err != nil {
		return err
	}
	a.printJSON(out)
	return nil
}

func cmdUpdate(a *app, ctx context.Context, args []string) error {
	fs := newFlags("update")
	id := fs.String("id", "", "object id")
	typ := fs.String("type", "", "new type")
	alias := fs.String("alias", "", "new alias")
	active := fs.Bool("active", true, "new active flag")
	details := fs.String("details", "", "replacement details JSON")
	lat := fs.Float64("lat", 0, "latitude")
	lng := fs.Float64("lng", 0, "longitude")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := need(fs, "id"); err != nil {
		return err
	}
	var patch convert.ObjectPatch
	if fs.Changed("type") {
		patch.Type = typ
	}
	if fs.Changed("alias") {
		patch.Alias = alias
	}
	if fs.Changed("active") {
		patch.Active = active
	}
	d, err := detailsFlag(*details)
	if err != nil {
		return err
	}
	patch.Details = d
	patch.Location = location(fs, lat, lng)
	if err := a.call(ctx, true, "UpdateObject", convert.ObjectUpdate{ID: *id, Object: patch}, nil); err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, "ok")
	return err
}

func edgeCmd(method string) func(*app, context.Context, []string) error {
	return func(a *app, ctx context.Context, args []string) error {
		fs := newFlags(method)
		parent := fs.String("parent", "", "parent object id")
		child := fs.String("child", "", "child object id")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := need(fs, "parent", "child"); err != nil {
			return err
		}
		if err := a.call(ctx, true, method, convert.BindRequest{ID: *parent, InternalObjectID: *child}, nil); err != nil {
			return err
		}
		_, err := fmt.Fprintln(a.out, "ok")
		return err
	}
}

// neighbourCmd lists children or parents, filtered when both --type and --alias are given.
func neighbourCmd(all, filtered string) func(*app, context.Context, []string) error {
	return func(a *app, ctx context.Context, args []string) error {
		fs := newFlags(all)
		id := fs.String("id", "", "anchor object id")
		typ := fs.String("type", "", "filter type")
		alias := fs.String("alias", "", "filter alias")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := need(fs, "id"); err != nil {
			return err
		}
		var (
			out convert.Objects
			err error
		)
		if *typ != "" || *alias != "" {
			err = a.call(ctx, true, filtered, convert.TypeAliasRequest{ID: *id, Type: *typ, Alias: *alias}, &out)
		} else {
			err = a.call(ctx, true, all, convert.IDRequest{ID: *id}, &out)
		}
		if err != nil {
			return err
		}
		a.printJSON(out.Objects)
		return nil
	}
}

func typeCmd(method string, single bool) func(*app, context.Context, []string) error {
	return func(a *app, ctx context.Context, args []string) error {
		fs := newFlags(method)
		typ := fs.String("type", "", "object type")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := need(fs, "type"); err != nil {
			return err
		}
		if single {
			var out convert.Object
			if err := a.call(ctx, true, method, convert.TypeRequest{Type: *typ}, &out); err != nil {
				return err
			}
			a.printJSON(out)
			return nil
		}
		var out convert.Objects
		if err := a.call(ctx, true, method, convert.TypeRequest{Type: *typ}, &out); err != nil {
			return err
		}
		a.printJSON(out.Objects)
		return nil
	}
}

func cmdSubjects(a *app, ctx context.Context, _ []string) error {
	var out convert.Subjects
	if err := a.call(ctx, false, "ListSubjects", nil, &out); err != nil {
		return err
	}
	a.printJSON(out.Subjects)
	return nil
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

var errUsage = errors.New("usage")

// run parses global flags and dispatches the subcommand.
func run(args []string, stdout, stderr io.Writer) error {
	fs := newFlags("afk")
	fs.SetInterspersed(false)
	addr := fs.String("addr", "localhost:8443", "server addr")
	caPath := fs.String("cacert", "", "CA cert (PEM)")
	skipVerify := fs.Bool("insecure", false, "skip cert verify (dev)")
	plaintext := fs.Bool("plaintext", false, "no TLS (server started without --tls-cert)")
	fs.Usage = func() { usage(stderr) }
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() < 1 {
		usage(stderr)
		return errUsage
	}
	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		usage(stderr)
		return errUsage
	}

	t := transport{caPath: *caPath, insecure: *skipVerify, plaintext: *plaintext}
	a := &app{
		out:     stdout,
		connect: func(bearer string) (*grpc.ClientConn, error) { return dial(*addr, t, bearer) },
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return cmd.run(a, ctx, fs.Args()[1:])
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fail(err)
	}
}

func fail(err error) {
	if errors.Is(err, errUsage) {
		os.Exit(2)
	}
	if s, ok := status.FromError(err); ok {
		fmt.Fprintf(os.Stderr, "rpc error: code=%s msg=%s\n", s.Code(), s.Message())
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
