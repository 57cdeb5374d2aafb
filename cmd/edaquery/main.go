package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/kailas-cloud/edasearch/internal/config"
	"github.com/kailas-cloud/edasearch/internal/domain"
	"github.com/kailas-cloud/edasearch/internal/domain/search/request"
	"github.com/kailas-cloud/edasearch/internal/domain/search/settings"
	logpkg "github.com/kailas-cloud/edasearch/internal/logger"
	"github.com/kailas-cloud/edasearch/internal/transport/opensearch"
	searchuc "github.com/kailas-cloud/edasearch/internal/usecase/search"
	"github.com/kailas-cloud/edasearch/internal/version"
)

type CLI struct {
	Env      string `help:"Config environment (config/<env>.yaml)" default:"local" env:"ENV"`
	LogLevel string `help:"Log level (debug, info, warn, error)" default:"warn" env:"LOG_LEVEL"`
	User     string `help:"Caller identity attached to log records" default:"edaquery"`
	Execute  bool   `help:"Send the request to the configured engine and print the normalized result" default:"false"`
	Timeout  int    `help:"Execution timeout in seconds" default:"60"`

	Version kong.VersionFlag `help:"Print version and exit"`

	Pages    PagesCmd    `cmd:"" help:"Build the per-document pages request from a JSON parameters file."`
	Stats    StatsCmd    `cmd:"" help:"Build the aggregate stats request from a JSON parameters file."`
	Similar  SimilarCmd  `cmd:"" help:"Build the similar-documents request from a JSON file of page fragments."`
	Contract ContractCmd `cmd:"" help:"Build the award lookup request for an IDV-AWARD or award id."`
}

type PagesCmd struct {
	File string `arg:"" type:"existingfile" help:"JSON file with searchText, parsedQuery, limit, edaSearchSettings, ..."`
}

type StatsCmd struct {
	File string `arg:"" type:"existingfile" help:"JSON file with stats parameters"`
}

type SimilarCmd struct {
	File string `arg:"" type:"existingfile" help:"JSON file with {pages: [{id, text}], filters: {...}}"`
}

type ContractCmd struct {
	AwardID string `arg:"" help:"Award id, optionally prefixed with the referenced IDV (IDV-AWARD)"`
	IsAward bool   `help:"Restrict to the base award record" default:"false"`
}

// app bundles what every sub-command needs.
type app struct {
	ctx     context.Context
	service *searchuc.Service
	execute bool
	user    string
}

func (c *PagesCmd) Run(cli *CLI) error {
	var p request.PagesParams
	if err := readJSON(c.File, &p); err != nil {
		return err
	}
	a, cancel, err := cli.setup()
	if err != nil {
		return err
	}
	defer cancel()

	if a.execute {
		res, err := a.service.Search(a.ctx, p, searchuc.SearchContext{User: a.user})
		if err != nil {
			return err
		}
		return printJSON(res)
	}
	return printRequest(a.service.BuildPagesQuery(a.ctx, p, a.user))
}

func (c *StatsCmd) Run(cli *CLI) error {
	var p request.StatsParams
	if err := readJSON(c.File, &p); err != nil {
		return err
	}
	a, cancel, err := cli.setup()
	if err != nil {
		return err
	}
	defer cancel()

	if a.execute {
		stats, err := a.service.Stats(a.ctx, p, a.user)
		if err != nil {
			return err
		}
		return printJSON(stats)
	}
	return printRequest(a.service.BuildStatsQuery(a.ctx, p, a.user))
}

func (c *SimilarCmd) Run(cli *CLI) error {
	var in struct {
		Pages   []request.PageFragment `json:"pages"`
		Filters settings.Search        `json:"filters"`
	}
	if err := readJSON(c.File, &in); err != nil {
		return err
	}
	a, cancel, err := cli.setup()
	if err != nil {
		return err
	}
	defer cancel()

	if a.execute {
		res, err := a.service.Similar(a.ctx, in.Pages, in.Filters, searchuc.SearchContext{User: a.user})
		if err != nil {
			return err
		}
		return printJSON(res)
	}
	return printRequest(a.service.BuildSimilarityQuery(a.ctx, in.Pages, in.Filters, a.user))
}

func (c *ContractCmd) Run(cli *CLI) error {
	a, cancel, err := cli.setup()
	if err != nil {
		return err
	}
	defer cancel()

	if a.execute {
		res, err := a.service.Contract(a.ctx, c.AwardID, c.IsAward, a.user)
		if err != nil {
			return err
		}
		return printJSON(res)
	}
	return printRequest(a.service.BuildContractQuery(a.ctx, request.SplitAwardID(c.AwardID), c.IsAward, false, a.user))
}

// setup loads configuration and wires the search service. Building a request
// needs no engine, so a missing config file only matters with --execute.
func (c *CLI) setup() (*app, context.CancelFunc, error) {
	logger, err := logpkg.NewLogger("dev", c.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load(c.Env)
	if err != nil {
		if c.Execute {
			return nil, nil, err
		}
		logger.Debug("config not loaded, using defaults", zap.Error(err))
		cfg = config.Config{}
		cfg.ApplyDefaults()
	}

	var engine searchuc.Engine
	if c.Execute {
		eng, err := opensearch.New(&opensearch.Config{
			Addresses:          cfg.Engine.Addresses,
			Username:           cfg.Engine.Username,
			Password:           cfg.Engine.Password,
			Timeout:            time.Duration(cfg.Engine.RequestTimeoutSec) * time.Second,
			RetryAttempts:      cfg.Engine.RetryAttempts,
			RetryDelay:         time.Duration(cfg.Engine.RetryDelayMs) * time.Millisecond,
			InsecureSkipVerify: cfg.Engine.InsecureSkipVerify,
			Logger:             logger,
		})
		if err != nil {
			return nil, nil, err
		}
		engine = eng
	}

	service := searchuc.New(engine,
		searchuc.WithIndexes(cfg.Engine.Index, cfg.Engine.StatsIndex),
		searchuc.WithDefaults(searchuc.Defaults{
			Limit:        cfg.Search.DefaultLimit,
			MaxLimit:     cfg.Search.MaxLimit,
			CharsPadding: cfg.Search.CharsPadding,
			Operator:     cfg.Search.DefaultOperator,
		}),
	)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(c.Timeout)*time.Second)
	ctx = logpkg.ContextWithLogger(ctx, logger)
	return &app{ctx: ctx, service: service, execute: c.Execute, user: c.User}, cancel, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func printRequest(req *request.Request) error {
	if req == nil {
		return domain.ErrNoQuery
	}
	return printJSON(req)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("edaquery"),
		kong.Description("Build and optionally run EDA contract search requests"),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)
	// Dispatch to the selected subcommand
	err := ctx.Run(cli)
	if err != nil {
		if errors.Is(err, domain.ErrNoQuery) {
			fmt.Fprintln(os.Stderr, "Error: no request could be built; see log output for the failing step")
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
