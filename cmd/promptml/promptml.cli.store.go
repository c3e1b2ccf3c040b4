package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/itsatony/go-promptml"
)

// storeConfig holds parsed store command configuration
type storeConfig struct {
	subcommand string

	driver     string
	dsn        string
	configPath string
	verbose    bool

	name         string
	templatePath string
	tags         stringList
	meta         stringList
	createdBy    string
	version      int
	source       bool
	format       string
	prefix       string
	contains     string
	limit        int
	offset       int
	allVersions  bool
}

// storeHandler runs one store subcommand against an open library
type storeHandler func(ctx context.Context, lib *promptml.Library, cfg *storeConfig, stdin io.Reader, stdout io.Writer) error

var storeHandlers = map[string]storeHandler{
	StoreCmdSave:     storeSave,
	StoreCmdGet:      storeGet,
	StoreCmdList:     storeList,
	StoreCmdVersions: storeVersions,
	StoreCmdDelete:   storeDelete,
}

func runStore(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := parseStoreFlags(args)
	if err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgInvalidFlags, err)
		return ExitCodeUsageError
	}

	logger := newLogger(cfg.verbose, stderr)
	defer func() { _ = logger.Sync() }()

	lib, err := openLibrary(cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgOpenStorageFailed, err)
		return ExitCodeError
	}

	err = storeHandlers[cfg.subcommand](context.Background(), lib, cfg, stdin, stdout)
	err = multierr.Append(err, lib.Close())
	if err != nil {
		fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgStoreFailed, err)
		return storeExitCode(err)
	}
	return ExitCodeSuccess
}

func parseStoreFlags(args []string) (*storeConfig, error) {
	if len(args) == 0 {
		return nil, errors.New(ErrMsgMissingSubcommand)
	}

	cfg := &storeConfig{subcommand: args[0]}
	if _, ok := storeHandlers[cfg.subcommand]; !ok {
		return nil, fmt.Errorf(FmtWrapDetail, ErrMsgUnknownSubcommand, cfg.subcommand)
	}

	fs := flag.NewFlagSet(CmdNameStore+" "+cfg.subcommand, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.driver, FlagDriver, "", "")
	fs.StringVar(&cfg.dsn, FlagDSN, "", "")
	fs.StringVar(&cfg.configPath, FlagConfig, "", "")
	fs.BoolVar(&cfg.verbose, FlagVerbose, false, "")
	fs.BoolVar(&cfg.verbose, FlagVerboseShort, false, "")

	fs.StringVar(&cfg.name, FlagName, "", "")
	fs.StringVar(&cfg.name, FlagNameShort, "", "")
	fs.StringVar(&cfg.templatePath, FlagTemplate, "", "")
	fs.StringVar(&cfg.templatePath, FlagTemplateShort, "", "")
	fs.Var(&cfg.tags, FlagTag, "")
	fs.Var(&cfg.meta, FlagMeta, "")
	fs.StringVar(&cfg.createdBy, FlagCreatedBy, "", "")
	fs.IntVar(&cfg.version, FlagVersion, 0, "")
	fs.BoolVar(&cfg.source, FlagSource, false, "")
	fs.StringVar(&cfg.format, FlagFormat, FlagDefaultFormat, "")
	fs.StringVar(&cfg.format, FlagFormatShort, FlagDefaultFormat, "")
	fs.StringVar(&cfg.prefix, FlagPrefix, "", "")
	fs.StringVar(&cfg.contains, FlagContains, "", "")
	fs.IntVar(&cfg.limit, FlagLimit, 0, "")
	fs.IntVar(&cfg.offset, FlagOffset, 0, "")
	fs.BoolVar(&cfg.allVersions, FlagAllVersions, false, "")

	if err := fs.Parse(args[1:]); err != nil {
		return nil, err
	}

	var errs error
	switch cfg.subcommand {
	case StoreCmdSave:
		if cfg.templatePath == "" {
			errs = multierr.Append(errs, errors.New(ErrMsgMissingTemplate))
		}
		fallthrough
	case StoreCmdGet, StoreCmdVersions, StoreCmdDelete:
		if cfg.name == "" {
			errs = multierr.Append(errs, errors.New(ErrMsgMissingName))
		}
	}
	if !validFormat(cfg.format) {
		errs = multierr.Append(errs, errors.New(ErrMsgInvalidFormat))
	}
	if errs != nil {
		return nil, errs
	}

	return cfg, nil
}

// openLibrary opens the configured storage. Flags win over the config file.
func openLibrary(cfg *storeConfig, logger *zap.Logger) (*promptml.Library, error) {
	fileCfg, err := loadStoreFileConfig(cfg.configPath)
	if err != nil {
		return nil, fmt.Errorf(FmtWrapCause, ErrMsgInvalidConfig, err)
	}

	driver := firstNonEmpty(cfg.driver, fileCfg.Driver, FlagDefaultDriver)
	dsn := firstNonEmpty(cfg.dsn, fileCfg.DSN)
	if dsn == "" && driver == promptml.StorageDriverNameFilesystem {
		dsn = FlagDefaultDSN
	}

	var storage promptml.TemplateStorage
	if driver == promptml.StorageDriverNamePostgres && fileCfg.Postgres != nil {
		pgCfg := *fileCfg.Postgres
		if dsn != "" {
			pgCfg.ConnectionString = dsn
		}
		storage, err = promptml.NewPostgresStorage(pgCfg)
	} else {
		storage, err = promptml.OpenStorage(driver, dsn)
	}
	if err != nil {
		return nil, err
	}

	if fileCfg.Cache != nil {
		storage = promptml.NewCachedStorage(storage, *fileCfg.Cache)
	}

	return promptml.NewLibrary(promptml.LibraryConfig{
		Storage: storage,
		Parser:  promptml.NewParser(promptml.WithStrict(true), promptml.WithLogger(logger)),
		Logger:  logger,
	})
}

func storeSave(ctx context.Context, lib *promptml.Library, cfg *storeConfig, stdin io.Reader, stdout io.Writer) error {
	source, err := readInput(cfg.templatePath, stdin)
	if err != nil {
		return err
	}
	meta, err := parseMeta(cfg.meta)
	if err != nil {
		return err
	}

	tmpl, err := lib.Parser().ParseTemplate(string(source))
	if err != nil {
		return err
	}

	opts := []promptml.SaveOption{promptml.WithTags(cfg.tags...), promptml.WithCreatedBy(cfg.createdBy)}
	if meta != nil {
		opts = append(opts, promptml.WithMetadata(meta))
	}

	stored, err := lib.Save(ctx, cfg.name, tmpl, opts...)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, StoreTextSaved, stored.Name, stored.Version)
	return nil
}

func storeGet(ctx context.Context, lib *promptml.Library, cfg *storeConfig, _ io.Reader, stdout io.Writer) error {
	if cfg.format == OutputFormatJSON {
		var stored *promptml.StoredTemplate
		var err error
		if cfg.version > 0 {
			stored, err = lib.Storage().GetVersion(ctx, cfg.name, cfg.version)
		} else {
			stored, err = lib.Storage().Get(ctx, cfg.name)
		}
		if err != nil {
			return err
		}
		return writeJSON(stored, stdout)
	}

	var tmpl *promptml.Template
	var err error
	if cfg.version > 0 {
		tmpl, err = lib.LoadVersion(ctx, cfg.name, cfg.version)
	} else {
		tmpl, err = lib.Load(ctx, cfg.name)
	}
	if err != nil {
		return err
	}

	if cfg.source {
		fmt.Fprintln(stdout, tmpl.Source())
	} else {
		fmt.Fprintln(stdout, tmpl.String())
	}
	return nil
}

func storeList(ctx context.Context, lib *promptml.Library, cfg *storeConfig, _ io.Reader, stdout io.Writer) error {
	list, err := lib.List(ctx, &promptml.TemplateQuery{
		Tags:               cfg.tags,
		CreatedBy:          cfg.createdBy,
		NamePrefix:         cfg.prefix,
		NameContains:       cfg.contains,
		Limit:              cfg.limit,
		Offset:             cfg.offset,
		IncludeAllVersions: cfg.allVersions,
	})
	if err != nil {
		return err
	}

	if cfg.format == OutputFormatJSON {
		return writeJSON(list, stdout)
	}
	for _, stored := range list {
		fmt.Fprintf(stdout, StoreTextListRow, stored.Name, stored.Version, strings.Join(stored.Tags, ","))
	}
	return nil
}

func storeVersions(ctx context.Context, lib *promptml.Library, cfg *storeConfig, _ io.Reader, stdout io.Writer) error {
	versions, err := lib.ListVersions(ctx, cfg.name)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		return promptml.NewStorageTemplateNotFoundError(cfg.name)
	}
	for _, v := range versions {
		fmt.Fprintln(stdout, v)
	}
	return nil
}

func storeDelete(ctx context.Context, lib *promptml.Library, cfg *storeConfig, _ io.Reader, stdout io.Writer) error {
	if cfg.version > 0 {
		if err := lib.DeleteVersion(ctx, cfg.name, cfg.version); err != nil {
			return err
		}
		fmt.Fprintf(stdout, StoreTextDeleted, fmt.Sprintf(FmtNameVersion, cfg.name, cfg.version))
		return nil
	}

	if err := lib.Delete(ctx, cfg.name); err != nil {
		return err
	}
	fmt.Fprintf(stdout, StoreTextDeleted, cfg.name)
	return nil
}

// storeExitCode maps a store error to an exit code
func storeExitCode(err error) int {
	if promptml.IsNotFound(err) {
		return ExitCodeNotFound
	}
	return ExitCodeError
}

func writeJSON(v any, stdout io.Writer) error {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, string(jsonBytes))
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
