// Command cachectl inspects and flushes the repository cache of the portal.
//
//	cachectl -config portal.yaml flush -resource customer -method find
//	cachectl -config portal.yaml flush -resource spot -geo 30.27,-97.74
//	cachectl key -resource appointment -method search_by customerID 1 2
//	cachectl key -resource customer -method search -office 1 status=1 customerID=1,2
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/goliatone/go-crm-repository/cache"
	"github.com/goliatone/go-crm-repository/crm"
	"github.com/goliatone/go-crm-repository/pkg/config"
	"github.com/goliatone/go-crm-repository/repository"
	"github.com/goliatone/go-crm-repository/repositorycache"
)

var errUsage = errors.New("usage: cachectl [-config file] [-v] <flush|key> [flags] [args...]")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("cachectl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "YAML configuration file")
	verbose := fs.Bool("v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	level := cfg.SlogLevel()
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	rest := fs.Args()
	if len(rest) == 0 {
		return errUsage
	}

	switch rest[0] {
	case "flush":
		return flush(ctx, cfg, logger, rest[1:], stdout, stderr)
	case "key":
		return key(rest[1:], stdout, stderr)
	default:
		return fmt.Errorf("unknown command %q: %w", rest[0], errUsage)
	}
}

// flush removes every entry of a resource read method, or of all its read
// methods, and optionally a spot geo bucket.
func flush(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("flush", flag.ContinueOnError)
	fs.SetOutput(stderr)
	resource := fs.String("resource", "", "entity type, e.g. customer")
	methodName := fs.String("method", "", "read method; empty flushes every read method")
	geo := fs.String("geo", "", "spot search location as lat,lng")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	tags, err := flushTags(*resource, *methodName, *geo)
	if err != nil {
		return err
	}

	if cfg.Cache.Backend == "" || cfg.Cache.Backend == cache.BackendMemory {
		logger.Warn("memory backend is process local, nothing shared to flush")
	}

	svc, err := cache.NewCacheService(cfg.Cache, cache.WithLogger(logger))
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.Tags(tags...).Flush(ctx); err != nil {
		return err
	}

	logger.Info("cache flushed", "backend", cfg.Cache.Backend, "tags", tags)
	for _, tag := range tags {
		fmt.Fprintln(stdout, "flushed", tag)
	}
	return nil
}

func flushTags(resource, methodName, geo string) ([]string, error) {
	if err := checkResource(resource); err != nil {
		return nil, err
	}
	keys := repositorycache.NewKeys(repositorycache.Namespace(resource))

	var tags []string
	switch {
	case methodName != "":
		method, ok := repositorycache.ParseMethod(methodName)
		if !ok {
			return nil, fmt.Errorf("unknown method %q", methodName)
		}
		tags = append(tags, keys.Tag(method))
	case geo == "":
		for _, method := range repositorycache.ReadMethods() {
			tags = append(tags, keys.Tag(method))
		}
	}

	if geo != "" {
		if resource != crm.TypeSpot {
			return nil, fmt.Errorf("-geo only applies to %s", crm.TypeSpot)
		}
		lat, lng, err := parseLocation(geo)
		if err != nil {
			return nil, err
		}
		tags = append(tags, crm.GeoTag(lat, lng))
	}
	return tags, nil
}

// key prints the key and tag a cached repository derives for a read, which
// helps when looking entries up directly in Redis or Memcached.
func key(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("key", flag.ContinueOnError)
	fs.SetOutput(stderr)
	resource := fs.String("resource", "", "entity type, e.g. customer")
	methodName := fs.String("method", "find", "read method")
	office := fs.Int("office", 0, "office scope")
	page := fs.Int("page", 0, "page number")
	pageSize := fs.Int("page-size", 0, "page size")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if err := checkResource(*resource); err != nil {
		return err
	}
	method, ok := repositorycache.ParseMethod(*methodName)
	if !ok {
		return fmt.Errorf("unknown method %q", *methodName)
	}

	keyArgs, err := methodArgs(method, fs.Args())
	if err != nil {
		return err
	}

	rc := repository.Context{}.WithOffice(*office)
	if *page > 0 {
		rc = rc.WithPage(*page, *pageSize)
	}

	keys := repositorycache.NewKeys(repositorycache.Namespace(*resource))
	fmt.Fprintln(stdout, "key:", keys.Key(rc, method, keyArgs...))
	fmt.Fprintln(stdout, "tag:", keys.Tag(method))
	if *resource == crm.TypeSpot {
		for _, tag := range crm.SpotGeoTags(method, keyArgs...) {
			fmt.Fprintln(stdout, "tag:", tag)
		}
	}
	return nil
}

// methodArgs converts command line arguments into the arguments the cached
// repository passes for method.
func methodArgs(method repositorycache.Method, args []string) ([]any, error) {
	switch method {
	case repositorycache.MethodFind:
		if len(args) != 1 {
			return nil, errors.New("find takes one id")
		}
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", args[0])
		}
		return []any{id}, nil

	case repositorycache.MethodFindMany:
		ids, err := parseInts(args)
		if err != nil {
			return nil, err
		}
		return []any{ids}, nil

	case repositorycache.MethodSearchBy:
		if len(args) < 2 {
			return nil, errors.New("search_by takes a field and at least one value")
		}
		values, err := parseInts(args[1:])
		if err != nil {
			return nil, err
		}
		return []any{args[0], values}, nil

	default:
		criteria, err := parseCriteria(args)
		if err != nil {
			return nil, err
		}
		return []any{criteria}, nil
	}
}

// parseCriteria reads field=value filters. A comma separated value becomes
// an IN filter. Numbers are kept as numbers so the key matches the one built
// by typed callers.
func parseCriteria(args []string) (repository.Criteria, error) {
	var criteria repository.Criteria
	for _, arg := range args {
		field, value, ok := strings.Cut(arg, "=")
		if !ok || field == "" {
			return criteria, fmt.Errorf("invalid filter %q, want field=value", arg)
		}
		parts := strings.Split(value, ",")
		if len(parts) > 1 {
			values := make([]any, len(parts))
			for i, p := range parts {
				values[i] = parseValue(p)
			}
			criteria = criteria.In(field, values...)
			continue
		}
		criteria = criteria.Where(field, parseValue(value))
	}
	return criteria, nil
}

func parseValue(s string) any {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func parseInts(args []string) ([]int, error) {
	out := make([]int, 0, len(args))
	for _, a := range args {
		for _, p := range strings.Split(a, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				return nil, fmt.Errorf("invalid id %q", p)
			}
			out = append(out, n)
		}
	}
	return out, nil
}

func parseLocation(s string) (float64, float64, error) {
	latS, lngS, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("invalid location %q, want lat,lng", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latS), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latitude %q", latS)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngS), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid longitude %q", lngS)
	}
	return lat, lng, nil
}

func checkResource(resource string) error {
	if resource == "" {
		return errors.New("-resource is required")
	}
	if _, ok := crm.DefaultTTLs()[resource]; !ok {
		return fmt.Errorf("unknown resource %q", resource)
	}
	return nil
}
