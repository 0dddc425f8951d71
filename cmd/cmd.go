package cmd

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mmbros/pricewatch/pkg/subcmd"
)

type appArgs struct {
	config     subcmd.String
	configType subcmd.String
	database   subcmd.String
	output     subcmd.String
	proxy      subcmd.String
	tickers    subcmd.Strings
	workers    subcmd.Int
	days       subcmd.Int
	dryrun     subcmd.Bool
	verbose    subcmd.Bool
}

const (
	defaultBackfillDays = 30

	usageApp = `Usage:
    pricewatch <command> [options]

Available Commands:
    get       Get the prices of the configured instruments
    backfill  Fill the price history of the last days from the batch sources
    sources   Show available source kinds
`

	usageGet = `Usage:
    pricewatch get [options]

Resolves the price of every configured instrument through its source
chain, saves the observations and renders the snapshot pages.

Options:
    -c, --config      path     config file
        --config-type string   used if config file does not have the extension in the name;
                               accepted values are: YAML and TOML
    -t, --tickers     strings  resolve only the listed instruments
    -n, --dry-run              perform a trial run with no request/updates made
    -p, --proxy       url      default proxy
    -w, --workers     int      number of workers (default 1)
    -d, --database    path     sqlite3 database used to save the prices
    -o, --output      dir      directory of the rendered snapshot pages
    -v, --verbose              enable debug logging
`

	usageBackfill = `Usage:
    pricewatch backfill [options]

Fills the price history of the markets served by a batch source,
one request per missing date.

Options:
    -c, --config      path     config file
        --config-type string   used if config file does not have the extension in the name;
                               accepted values are: YAML and TOML
    -d, --days        int      number of past days to fill (default 30)
        --database    path     sqlite3 database used to save the prices
    -p, --proxy       url      default proxy
    -v, --verbose              enable debug logging
`

	usageSources = `Usage:
    pricewatch sources

Prints the list of available source kinds.
`
)

func initCommandGet(args *appArgs) *subcmd.Command {

	flags := []*subcmd.Flag{
		{Value: &args.config, Names: "c,config"},
		{Value: &args.configType, Names: "config-type"},
		{Value: &args.database, Names: "d,database"},
		{Value: &args.output, Names: "o,output"},
		{Value: &args.dryrun, Names: "n,dryrun,dry-run"},
		{Value: &args.tickers, Names: "t,tickers"},
		{Value: &args.proxy, Names: "p,proxy"},
		{Value: &args.workers, Names: "w,workers"},
		{Value: &args.verbose, Names: "v,verbose"},
	}

	return &subcmd.Command{
		Names: "get,g",
		Usage: usageGet,
		Flags: flags,
	}
}

func initCommandBackfill(args *appArgs) *subcmd.Command {

	flags := []*subcmd.Flag{
		{Value: &args.config, Names: "c,config"},
		{Value: &args.configType, Names: "config-type"},
		{Value: &args.database, Names: "database"},
		{Value: &args.days, Names: "d,days"},
		{Value: &args.proxy, Names: "p,proxy"},
		{Value: &args.verbose, Names: "v,verbose"},
	}

	return &subcmd.Command{
		Names: "backfill,b",
		Usage: usageBackfill,
		Flags: flags,
	}
}

func initCommandSources(args *appArgs) *subcmd.Command {

	return &subcmd.Command{
		Names: "sources,s",
		Usage: usageSources,
	}
}

func initApp(args *appArgs) *subcmd.App {

	return &subcmd.App{
		ErrorHandling: flag.ExitOnError,
		Name:          "pricewatch",
		Usage:         usageApp,
		Commands: []*subcmd.Command{
			initCommandGet(args),
			initCommandBackfill(args),
			initCommandSources(args),
		},
	}
}

func execSources(args *appArgs, cfg *Config) error {
	fmt.Printf("Available source kinds: \"%s\"\n", strings.Join(strategyKinds(), "\", \""))
	return nil
}

// Execute is the main function
func Execute() {

	arguments := os.Args[1:]

	args := &appArgs{}
	app := initApp(args)

	// NOTE: if app.Parse has success, as a side effect
	// the args struct is initialized
	err := app.Parse(arguments)

	var cfg *Config
	if err == nil {
		cfg, err = getConfig(args)
	}

	if err == nil {
		switch app.CommandName() {
		case "get":
			err = execGet(args, cfg)
		case "backfill":
			err = execBackfill(args, cfg)
		case "sources":
			err = execSources(args, cfg)
		}
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
