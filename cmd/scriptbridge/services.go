package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/scriptbridge/capability"
	"github.com/jonwraymond/scriptbridge/failure"
)

// localServices stands in for the host collaborators when running scripts
// from the command line.
type localServices struct {
	log      *zap.Logger
	fixtures map[string][]map[string]any

	mu  sync.Mutex
	out io.Writer
}

func (s *localServices) ReportStep(_ context.Context, message string) error {
	s.log.Info("step", zap.String("message", message))
	return nil
}

func (s *localServices) ReportProgress(_ context.Context, message string) error {
	s.log.Info("progress", zap.String("message", message))
	return nil
}

// GenerateSQL passes the question through unchanged, so fixtures can be
// keyed by either the question or literal SQL.
func (s *localServices) GenerateSQL(_ context.Context, queryText, tableRef string) (string, error) {
	s.log.Debug("gen_sql", zap.String("query_text", queryText), zap.String("table_ref", tableRef))
	return queryText, nil
}

func (s *localServices) ExecSQL(_ context.Context, sql string) ([]map[string]any, error) {
	rows, ok := s.fixtures[normalizeSQL(sql)]
	if !ok {
		return nil, failure.New(failure.NoDataAvailable, "no fixture rows for query %q", sql)
	}
	return rows, nil
}

func (s *localServices) Emit(_ context.Context, v capability.Visualization) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode visualization: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = fmt.Fprintln(s.out, string(data))
	return err
}

// loadFixtures reads a YAML map of SQL text to rows.
func loadFixtures(path string) (map[string][]map[string]any, error) {
	fixtures := map[string][]map[string]any{}
	if path == "" {
		return fixtures, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	var raw map[string][]map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse fixtures %s: %w", path, err)
	}
	for query, rows := range raw {
		if rows == nil {
			rows = []map[string]any{}
		}
		fixtures[normalizeSQL(query)] = rows
	}
	return fixtures, nil
}

// normalizeSQL collapses whitespace so fixture keys need not match
// formatting exactly.
func normalizeSQL(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}
