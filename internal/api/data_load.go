package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/Jonatan852/columnar-datasource/internal/datasource"
	"github.com/Jonatan852/columnar-datasource/internal/loader"
	"github.com/Jonatan852/columnar-datasource/internal/storage"
	"github.com/Jonatan852/columnar-datasource/pkg/columnar"
)

// loadRequest cria uma tabela nova a partir de linhas JSON. Tabelas são
// imutáveis depois de carregadas; recarregar exige DELETE antes.
type loadRequest struct {
	Table string `json:"table"`
	// Schema no formato compacto "nome:tipo[?],..."; alternativa a Columns.
	Schema  string                   `json:"schema"`
	Columns []columnSchemaPayload    `json:"columns"`
	Rows    []map[string]interface{} `json:"rows"`
}

type columnSchemaPayload struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

func (s *Server) handleDataLoad(w http.ResponseWriter, r *http.Request) {
	var req loadRequest
	dec := json.NewDecoder(r.Body)
	// números chegam como json.Number para não perder precisão de uint64
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "payload inválido")
		return
	}
	rows, err := s.applyLoadRequest(req)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"table":  strings.ToLower(req.Table),
		"rows":   rows,
		"status": "carregado",
	})
}

func (s *Server) applyLoadRequest(req loadRequest) (int, error) {
	if strings.TrimSpace(req.Table) == "" {
		return 0, fmt.Errorf("campo table é obrigatório")
	}
	if _, err := s.cfg.Session.Table(req.Table); err == nil {
		return 0, fmt.Errorf("%w: %s", storage.ErrTableExists, req.Table)
	}
	schema, err := buildSchema(req)
	if err != nil {
		return 0, err
	}
	rows, err := s.buildRows(schema, req.Rows)
	if err != nil {
		return 0, err
	}
	src, err := datasource.NewMemSource(schema, rows)
	if err != nil {
		return 0, err
	}
	if err := s.cfg.Session.RegisterTable(req.Table, src); err != nil {
		_ = src.Close()
		return 0, err
	}
	s.cfg.Logger.Info("table loaded via api", slog.String("table", schema.Name), slog.Int("rows", len(rows)))
	return len(rows), nil
}

func buildSchema(req loadRequest) (storage.TableSchema, error) {
	if req.Schema != "" {
		return storage.ParseSchema(req.Table, req.Schema)
	}
	if len(req.Columns) == 0 {
		return storage.TableSchema{}, fmt.Errorf("schema ou columns deve ser informado")
	}
	columns := make([]storage.ColumnSchema, 0, len(req.Columns))
	for _, col := range req.Columns {
		dt, err := storage.ParseColumnType(col.Type)
		if err != nil {
			return storage.TableSchema{}, err
		}
		columns = append(columns, storage.ColumnSchema{
			Name:     strings.ToLower(col.Name),
			Type:     dt,
			Nullable: col.Nullable,
		})
	}
	schema := storage.TableSchema{Name: req.Table, Columns: columns}
	return schema, schema.Validate()
}

func (s *Server) buildRows(schema storage.TableSchema, data []map[string]interface{}) ([]storage.Row, error) {
	rows := make([]storage.Row, 0, len(data))
	for i, item := range data {
		// chaves casam com as colunas sem diferenciar maiúsculas
		byIndex := make(map[int]interface{}, len(item))
		for key, raw := range item {
			idx := schema.ColumnIndex(key)
			if idx < 0 {
				return nil, fmt.Errorf("linha %d: coluna desconhecida %s (esperadas: %s)",
					i, key, strings.Join(schema.ColumnNames(), ", "))
			}
			byIndex[idx] = raw
		}
		row := make(storage.Row, len(schema.Columns))
		for c, col := range schema.Columns {
			raw, ok := byIndex[c]
			if !ok && !col.Nullable {
				return nil, fmt.Errorf("linha %d: coluna %s ausente", i, col.Name)
			}
			value, err := s.convertValue(col, raw)
			if err != nil {
				return nil, fmt.Errorf("linha %d coluna %s: %w", i, col.Name, err)
			}
			row[c] = value
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// convertValue aceita null, números inteiros não negativos e strings; strings
// passam pelo mesmo parser das cargas CSV.
func (s *Server) convertValue(col storage.ColumnSchema, raw interface{}) (columnar.Value, error) {
	switch v := raw.(type) {
	case nil:
		return columnar.NewNullValue(col.Type), nil
	case string:
		opts := s.cfg.Loader
		opts.Strict = true
		return loader.ParseField(v, col, opts)
	case json.Number:
		if col.Type != columnar.TypeUint64 {
			return columnar.Value{}, fmt.Errorf("valor %s não é %s", v, col.Type)
		}
		n, err := strconv.ParseUint(v.String(), 10, 64)
		if err != nil {
			return columnar.Value{}, fmt.Errorf("valor %s não é inteiro sem sinal de 64 bits", v)
		}
		return columnar.NewUint64Value(n), nil
	default:
		return columnar.Value{}, fmt.Errorf("valor %v não suportado", raw)
	}
}
