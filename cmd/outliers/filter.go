package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-gota/gota/dataframe"
	"github.com/spf13/cobra"

	"github.com/damiani91/aprende/config"
	"github.com/damiani91/aprende/outliers"
	"github.com/damiani91/aprende/pipeline"
	"github.com/damiani91/aprende/rpc"
	"github.com/damiani91/aprende/store"
)

type filterOptions struct {
	*rootOptions

	configFile string
	method     string
	idColumn   string
	in         string
	out        string
	dbFile     string
	table      string
	outTable   string
	server     string
}

func newFilterCmd(root *rootOptions) *cobra.Command {
	opts := &filterOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Remove outlier entities from a CSV file or SQLite table",
		Long: `Read a data set, remove the outlier entities and write the result.

Input is a CSV file (--in, default stdin) or a SQLite table (--table).
Output is a CSV file (--out, default stdout) or a SQLite table (--out-table).
With --server the filtering is done by a remote outliers server.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "YAML config file")
	flags.StringVarP(&opts.method, "method", "m", config.DefaultMethod, "outlier method")
	flags.StringVar(&opts.idColumn, "id-column", outliers.DefaultIDColumn, "entity identifier column")
	flags.StringVar(&opts.in, "in", "", "input CSV file (default stdin)")
	flags.StringVar(&opts.out, "out", "", "output CSV file (default stdout)")
	flags.StringVar(&opts.dbFile, "db", root.env.DBFile, "SQLite database file")
	flags.StringVar(&opts.table, "table", "", "input table")
	flags.StringVar(&opts.outTable, "out-table", "", "output table")
	flags.StringVar(&opts.server, "server", "", "outliers server address")
	cmd.MarkFlagsMutuallyExclusive("in", "table")
	cmd.MarkFlagsMutuallyExclusive("out", "out-table")

	return cmd
}

func (o *filterOptions) run(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := o.config(cmd)
	if err != nil {
		return err
	}

	var db *store.DB
	if o.table != "" || o.outTable != "" {
		db, err = store.Open(o.dbFile)
		if err != nil {
			return err
		}
		defer db.Close()
	}

	df, err := o.read(ctx, cmd.InOrStdin(), db)
	if err != nil {
		return err
	}

	var clean dataframe.DataFrame
	if o.server != "" {
		clean, err = o.remote(ctx, cfg, df)
	} else {
		clean, err = o.local(cfg, df)
	}
	if err != nil {
		return err
	}

	return o.write(ctx, cmd.OutOrStdout(), db, clean)
}

// config loads the config file, flags set on the command line win.
func (o *filterOptions) config(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if o.configFile != "" {
		var err error
		if cfg, err = config.Load(o.configFile); err != nil {
			return config.Config{}, err
		}
	}

	if cmd.Flags().Changed("method") {
		cfg.Method = o.method
	}
	if cmd.Flags().Changed("id-column") {
		cfg.IDColumn = o.idColumn
	}
	return cfg, nil
}

func (o *filterOptions) read(ctx context.Context, stdin io.Reader, db *store.DB) (dataframe.DataFrame, error) {
	if o.table != "" {
		return db.Load(ctx, o.table)
	}

	r := stdin
	if o.in != "" {
		file, err := os.Open(o.in)
		if err != nil {
			return dataframe.DataFrame{}, err
		}
		defer file.Close()
		r = file
	}

	df := dataframe.ReadCSV(r)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("read CSV: %w", df.Err)
	}
	return df, nil
}

func (o *filterOptions) local(cfg config.Config, df dataframe.DataFrame) (dataframe.DataFrame, error) {
	f, err := cfg.Filter(outliers.WithLogger(o.log))
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	return pipeline.New(f, pipeline.TransformStage()).Apply(df)
}

func (o *filterOptions) remote(ctx context.Context, cfg config.Config, df dataframe.DataFrame) (dataframe.DataFrame, error) {
	c, err := rpc.Dial(o.server)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	defer c.Close()

	params := cfg.Map()
	delete(params, "method")
	o.log.Debug("remote filter", "server", o.server, "method", cfg.Method)
	return c.Filter(ctx, cfg.Method, df, params)
}

func (o *filterOptions) write(ctx context.Context, stdout io.Writer, db *store.DB, df dataframe.DataFrame) error {
	if o.outTable != "" {
		return db.Save(ctx, o.outTable, df)
	}

	if o.out == "" {
		return df.WriteCSV(stdout)
	}

	file, err := os.Create(o.out)
	if err != nil {
		return err
	}

	if err := df.WriteCSV(file); err != nil {
		file.Close()
		return err
	}
	return errors.Join(file.Sync(), file.Close())
}
