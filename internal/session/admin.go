package session

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/roach88/cozoq/internal/dberr"
	"github.com/roach88/cozoq/internal/literal"
	"github.com/roach88/cozoq/internal/result"
	"github.com/roach88/cozoq/internal/script"
)

// Export returns the named relations in the engine's export format.
func (s *Session) Export(ctx context.Context, relations ...string) (map[string]result.Relation, error) {
	raw, err := s.ExportRaw(ctx, relations...)
	if err != nil {
		return nil, err
	}
	data, err := result.DecodeExport([]byte(raw))
	if err != nil {
		return nil, dberr.NewSessionError("export", "", err)
	}
	return data, nil
}

// ExportRaw is Export without decoding: the engine's payload verbatim.
func (s *Session) ExportRaw(ctx context.Context, relations ...string) (string, error) {
	if err := s.enter(ctx, "export"); err != nil {
		return "", err
	}
	defer s.leave()
	names, err := relationsJSON(relations)
	if err != nil {
		return "", err
	}
	raw, err := s.engine.ExportRelations(ctx, names)
	if err != nil {
		return "", dberr.NewSessionError("export", "", err)
	}
	s.logger.Debug("relations exported", "relations", relations)
	return raw, nil
}

// Import loads relations from data in the export format. The payload is
// passed through; either the bare {"rel": {...}} map or a full export
// envelope is accepted.
func (s *Session) Import(ctx context.Context, data string) error {
	if err := s.enter(ctx, "import"); err != nil {
		return err
	}
	defer s.leave()
	if strings.TrimSpace(data) == "" {
		return dberr.Usagef("import: no data")
	}
	if err := s.engine.ImportRelations(ctx, data); err != nil {
		return dberr.NewSessionError("import", "", err)
	}
	s.logger.Debug("relations imported")
	return nil
}

// ImportRelations marshals relations and imports them.
func (s *Session) ImportRelations(ctx context.Context, relations map[string]result.Relation) error {
	data, err := json.Marshal(relations)
	if err != nil {
		return dberr.Usagef("import: %v", err)
	}
	return s.Import(ctx, string(data))
}

// Backup writes a backup of the whole database to path.
func (s *Session) Backup(ctx context.Context, path string) error {
	return s.fileOp(ctx, "backup", path, s.engine.Backup)
}

// Restore replaces the database contents from a backup at path.
func (s *Session) Restore(ctx context.Context, path string) error {
	return s.fileOp(ctx, "restore", path, s.engine.Restore)
}

// ImportFromBackup copies the named relations out of a backup at path.
func (s *Session) ImportFromBackup(ctx context.Context, path string, relations ...string) error {
	if err := s.enter(ctx, "import_from_backup"); err != nil {
		return err
	}
	defer s.leave()
	if strings.TrimSpace(path) == "" {
		return dberr.Usagef("import_from_backup: path is required")
	}
	if len(relations) == 0 {
		return dberr.Usagef("import_from_backup: at least one relation is required")
	}
	names, err := relationsJSON(relations)
	if err != nil {
		return err
	}
	if err := s.engine.ImportFromBackup(ctx, path, names); err != nil {
		return dberr.NewSessionError("import_from_backup", "", err)
	}
	s.logger.Debug("relations imported from backup", "path", path, "relations", relations)
	return nil
}

func (s *Session) fileOp(ctx context.Context, op, path string, fn func(context.Context, string) error) error {
	if err := s.enter(ctx, op); err != nil {
		return err
	}
	defer s.leave()
	if strings.TrimSpace(path) == "" {
		return dberr.Usagef("%s: path is required", op)
	}
	if err := fn(ctx, path); err != nil {
		return dberr.NewSessionError(op, "", err)
	}
	s.logger.Debug(op+" complete", "path", path)
	return nil
}

func relationsJSON(relations []string) (string, error) {
	if err := literal.Idents(relations); err != nil {
		return "", err
	}
	if relations == nil {
		relations = []string{}
	}
	data, err := json.Marshal(relations)
	if err != nil {
		return "", dberr.Usagef("relations: %v", err)
	}
	return string(data), nil
}

// Upsert writes rows into relation with :put.
func (s *Session) Upsert(ctx context.Context, relation string, rows []map[string]any) (*result.Result, error) {
	req, err := script.Upsert(relation, rows)
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, req)
}

// Delete removes rows from relation by their key columns.
func (s *Session) Delete(ctx context.Context, relation string, keys []string, rows []map[string]any) (*result.Result, error) {
	req, err := script.DeleteByKey(relation, keys, rows)
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, req)
}

// CreateRelation creates a stored relation.
func (s *Session) CreateRelation(ctx context.Context, name string, columns []script.Column, keys []string) error {
	req, err := script.CreateRelation(name, columns, keys)
	if err != nil {
		return err
	}
	_, err = s.Mutate(ctx, req)
	return err
}

// Relations lists stored relation names.
func (s *Session) Relations(ctx context.Context) ([]string, error) {
	res, err := s.Query(ctx, script.ListRelations())
	if err != nil {
		return nil, err
	}
	col, err := res.Column("name")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(col))
	for _, v := range col {
		if name, ok := v.(string); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

// Kill cancels a running query by the id reported by ::running.
func (s *Session) Kill(ctx context.Context, id int64) error {
	req, err := script.Kill(id)
	if err != nil {
		return err
	}
	_, err = s.Mutate(ctx, req)
	return err
}
