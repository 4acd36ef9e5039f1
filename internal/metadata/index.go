// Package metadata builds the IFC GUID to sub-model index of a federated
// model from a metadata query dump.
//
// A dump is any JSON document listing model objects, for example
//
//	{"data": [{"model": "arch", "metadata": {"IFC GUID": "2O2Fr$t4X7Zf8NOew3FLOH"}}]}
//
// Query paths use gjson syntax with a single "#" marking the object list.
package metadata

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"
)

// Default query paths.
const (
	DefaultIDPath    = "data.#.metadata.IFC GUID"
	DefaultModelPath = "data.#.model"
)

// Query locates object ids and their models in a dump. Both paths must share
// the part before ".#.".
type Query struct {
	IDPath    string
	ModelPath string
}

// DefaultQuery matches the metadata query service's output.
func DefaultQuery() Query {
	return Query{IDPath: DefaultIDPath, ModelPath: DefaultModelPath}
}

// Index is the result of LoadIndex.
type Index struct {
	// Entries maps IFC GUID to sub-model.
	Entries map[string]string
	// Skipped counts objects missing an id or a model.
	Skipped int
	// Conflicts lists ids claimed by more than one model. The first model
	// seen wins.
	Conflicts []string
}

// LoadIndex extracts (IFC GUID, sub-model) pairs from a metadata dump.
func LoadIndex(data []byte, q Query, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if q.IDPath == "" {
		q.IDPath = DefaultIDPath
	}
	if q.ModelPath == "" {
		q.ModelPath = DefaultModelPath
	}
	list, idPath, err := splitPath(q.IDPath)
	if err != nil {
		return nil, err
	}
	modelList, modelPath, err := splitPath(q.ModelPath)
	if err != nil {
		return nil, err
	}
	if list != modelList {
		return nil, fmt.Errorf("id path %q and model path %q list different arrays", q.IDPath, q.ModelPath)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("metadata is not valid JSON")
	}

	items := gjson.GetBytes(data, list)
	if list == "" {
		items = gjson.ParseBytes(data)
	}
	if !items.IsArray() {
		return nil, fmt.Errorf("metadata path %q is not an array", list)
	}

	idx := &Index{Entries: make(map[string]string)}
	conflicted := make(map[string]bool)
	items.ForEach(func(_, item gjson.Result) bool {
		id := strings.TrimSpace(item.Get(idPath).String())
		model := strings.TrimSpace(item.Get(modelPath).String())
		if id == "" || model == "" {
			idx.Skipped++
			return true
		}
		if prev, ok := idx.Entries[id]; ok {
			if prev != model && !conflicted[id] {
				conflicted[id] = true
				idx.Conflicts = append(idx.Conflicts, id)
				logger.Warn("IFC GUID claimed by several models", "ifc_guid", id, "kept", prev, "ignored", model)
			}
			return true
		}
		idx.Entries[id] = model
		return true
	})
	return idx, nil
}

// splitPath splits "data.#.model" into the list path "data" and the
// per-item path "model". "#.model" addresses a top-level array.
func splitPath(path string) (list, item string, err error) {
	if rest, ok := strings.CutPrefix(path, "#."); ok {
		return "", rest, nil
	}
	list, item, ok := strings.Cut(path, ".#.")
	if !ok || item == "" || strings.Contains(item, "#") {
		return "", "", fmt.Errorf("metadata path %q needs exactly one \".#.\" list marker", path)
	}
	return list, item, nil
}
