package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/Jonatan852/columnar-datasource/internal/app"
	"github.com/Jonatan852/columnar-datasource/internal/config"
	"github.com/Jonatan852/columnar-datasource/internal/export"
	"github.com/Jonatan852/columnar-datasource/internal/loader"
	"github.com/Jonatan852/columnar-datasource/internal/logging"
	"github.com/Jonatan852/columnar-datasource/internal/storage"
	"github.com/Jonatan852/columnar-datasource/internal/visualizer"
)

const usage = `uso: cli <comando> [flags]

comandos:
  query    [flags] "SELECT ..."   executa uma consulta e imprime ou exporta o resultado
  explain  [flags] "SELECT ..."   mostra os planos lógico e físico
  describe [flags]                schema, linhas e estatísticas da tabela carregada
  correct  -in X -out Y           normaliza NULL e datas zeradas de um csv(.gz)
`

// common agrupa as flags compartilhadas por todos os comandos.
type common struct {
	configPath string
	dataPath   string
	table      string
	schema     string
	logLevel   string
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "Arquivo de configuração yaml")
	fs.StringVar(&c.dataPath, "data", "", "Arquivo csv ou csv.gz a carregar (sobrepõe data.path)")
	fs.StringVar(&c.table, "table", "", "Nome da tabela (sobrepõe data.table)")
	fs.StringVar(&c.schema, "schema", "", "Schema compacto nome:tipo[?],... (sobrepõe data.schema)")
	fs.StringVar(&c.logLevel, "log-level", "", "debug|info|warn|error (sobrepõe log.level)")
}

func (c *common) load() (*config.Config, *slog.Logger, func(), error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if c.dataPath != "" {
		cfg.Data.Path = c.dataPath
	}
	if c.table != "" {
		cfg.Data.Table = c.table
	}
	if c.schema != "" {
		cfg.Data.Schema = c.schema
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	logger, cleanup, err := logging.Setup(logging.Options{Level: cfg.Log.Level, SeqURL: cfg.Log.SeqURL, Output: os.Stderr})
	if err != nil {
		return nil, nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, cleanup, nil
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "query":
		err = runQuery(os.Args[2:], os.Stdout)
	case "explain":
		err = runExplain(os.Args[2:], os.Stdout)
	case "describe":
		err = runDescribe(os.Args[2:], os.Stdout)
	case "correct":
		err = runCorrect(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "comando desconhecido %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "erro: %v\n", err)
		os.Exit(1)
	}
}

func sqlArg(fs *flag.FlagSet) (string, error) {
	sql := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if sql == "" {
		return "", errors.New("consulta SQL é obrigatória")
	}
	return sql, nil
}

func runQuery(args []string, stdout io.Writer) error {
	var c common
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	c.register(fs)
	out := fs.String("out", "", "Exporta o resultado (.parquet ou .csv) em vez de imprimir")
	_ = fs.Parse(args)
	sql, err := sqlArg(fs)
	if err != nil {
		return err
	}

	cfg, logger, cleanup, err := c.load()
	if err != nil {
		return err
	}
	defer cleanup()
	sess, err := app.OpenSession(cfg, logger)
	if err != nil {
		return err
	}

	res, err := sess.SQL(context.Background(), sql)
	if err != nil {
		return err
	}
	defer res.Release()

	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		if err := export.Write(f, export.FormatFromPath(*out), res.Schema, res.Records); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		logger.Info("result exported", slog.String("path", *out), slog.Int64("rows", res.NumRows()))
		return nil
	}

	rows, err := res.Rows()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(res.Columns, "\t"))
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = "NULL"
			} else {
				cells[i] = fmt.Sprint(v)
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "(%d linhas em %s)\n", len(rows), res.Duration)
	return nil
}

func runExplain(args []string, stdout io.Writer) error {
	var c common
	fs := flag.NewFlagSet("explain", flag.ExitOnError)
	c.register(fs)
	format := fs.String("format", "text", "text|json|dot")
	_ = fs.Parse(args)
	sql, err := sqlArg(fs)
	if err != nil {
		return err
	}

	cfg, logger, cleanup, err := c.load()
	if err != nil {
		return err
	}
	defer cleanup()
	sess, err := app.OpenSession(cfg, logger)
	if err != nil {
		return err
	}
	exp, err := sess.Explain(context.Background(), sql)
	if err != nil {
		return err
	}

	switch *format {
	case "text":
		fmt.Fprintln(stdout, "== logical plan ==")
		fmt.Fprint(stdout, exp.Logical.String())
		fmt.Fprintln(stdout, "== physical plan ==")
		fmt.Fprint(stdout, exp.Physical)
	case "json":
		data, err := visualizer.PlanToJSON(exp.Logical)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, string(data))
	case "dot":
		dot, err := visualizer.PlanToDOT(exp.Logical)
		if err != nil {
			return err
		}
		fmt.Fprint(stdout, dot)
	default:
		return fmt.Errorf("formato %q inválido", *format)
	}
	return nil
}

func runDescribe(args []string, stdout io.Writer) error {
	var c common
	fs := flag.NewFlagSet("describe", flag.ExitOnError)
	c.register(fs)
	manifest := fs.String("manifest", "", "Atualiza um manifesto json com os metadados da tabela")
	_ = fs.Parse(args)

	cfg, logger, cleanup, err := c.load()
	if err != nil {
		return err
	}
	defer cleanup()
	src, err := app.LoadTable(cfg, logger)
	if err != nil {
		return err
	}
	defer src.Close()

	meta := src.Metadata(cfg.Data.Path)
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "tabela %s (%d linhas)\n", meta.Name, meta.RowCount)
	fmt.Fprintln(tw, "coluna\ttipo\tnullable\tnulls\tmin\tmax")
	for _, col := range meta.Schema.Columns {
		st := meta.Stats[col.Name]
		fmt.Fprintf(tw, "%s\t%s\t%t\t%d\t%s\t%s\n",
			col.Name, col.Type, col.Nullable, st.NullCount, scalar(st.Min), scalar(st.Max))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if *manifest == "" {
		return nil
	}
	tables, err := storage.LoadManifest(*manifest)
	if err != nil {
		return err
	}
	replaced := false
	for i := range tables {
		if strings.EqualFold(tables[i].Name, meta.Name) {
			tables[i] = meta
			replaced = true
		}
	}
	if !replaced {
		tables = append(tables, meta)
	}
	if err := storage.SaveManifest(*manifest, tables); err != nil {
		return err
	}
	logger.Info("manifest written", slog.String("path", *manifest), slog.Int("tables", len(tables)))
	return nil
}

func scalar(v *storage.ScalarValue) string {
	if v == nil {
		return "-"
	}
	return v.ToValue().String()
}

func runCorrect(args []string) error {
	var c common
	fs := flag.NewFlagSet("correct", flag.ExitOnError)
	c.register(fs)
	in := fs.String("in", "", "Arquivo de entrada csv ou csv.gz")
	out := fs.String("out", "", "Arquivo de saída (gzip se terminar em .gz)")
	_ = fs.Parse(args)
	if *in == "" || *out == "" {
		return errors.New("-in e -out são obrigatórios")
	}

	cfg, logger, cleanup, err := c.load()
	if err != nil {
		return err
	}
	defer cleanup()
	schema, err := cfg.TableSchema()
	if err != nil {
		return err
	}
	opts := cfg.LoaderOptions()
	opts.Logger = logger
	_, err = loader.CorrectFile(*in, *out, schema, opts)
	return err
}
