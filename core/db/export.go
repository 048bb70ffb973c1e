// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/digital-drip/ddrip-deploy/core/model"
)

// ExportSchemaVersion is bumped when the export layout changes.
const ExportSchemaVersion = 1

// HistoryExport is the document written by Export.
type HistoryExport struct {
	SchemaVersion int             `json:"schema_version"`
	ExportedAt    time.Time       `json:"exported_at"`
	Runs          []model.TaskRun `json:"runs"`
}

// Export writes the whole history to w as zstd-compressed JSON.
func (s *Store) Export(ctx context.Context, w io.Writer) error {
	runs, err := s.allRuns(ctx)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	doc := HistoryExport{SchemaVersion: ExportSchemaVersion, ExportedAt: time.Now().UTC(), Runs: runs}
	if err := json.NewEncoder(enc).Encode(doc); err != nil {
		enc.Close()
		return fmt.Errorf("failed to encode history: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to flush zstd stream: %w", err)
	}
	return nil
}

// ReadExport decodes a document written by Export.
func ReadExport(r io.Reader) (HistoryExport, error) {
	var doc HistoryExport
	dec, err := zstd.NewReader(r)
	if err != nil {
		return doc, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer dec.Close()
	if err := json.NewDecoder(dec).Decode(&doc); err != nil {
		return doc, fmt.Errorf("failed to decode history: %w", err)
	}
	if doc.SchemaVersion != ExportSchemaVersion {
		return doc, fmt.Errorf("unsupported history export version %d", doc.SchemaVersion)
	}
	return doc, nil
}
